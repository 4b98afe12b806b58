package mapconfig

// SourceSpec is a MapLibre source specification.
type SourceSpec struct {
	Type string `json:"type" doc:"Source type" example:"geojson"`
	Data string `json:"data" doc:"URL or path of the GeoJSON document" example:"/apartments.geojson"`
}

// SourceEntry pairs a source id with its specification.
type SourceEntry struct {
	ID   string     `json:"id" doc:"Source identifier" example:"apartments-source"`
	Spec SourceSpec `json:"spec" doc:"Source specification"`
}

// SourceSpecFunc builds one named source.
type SourceSpecFunc func() (string, SourceSpec)

// CreateApartmentsSourceSpec returns the apartments source id and a geojson
// source pointing at the static apartments file.
func CreateApartmentsSourceSpec() (string, SourceSpec) {
	return ApartmentsSourceID, SourceSpec{
		Type: SourceTypeGeoJSON,
		Data: ApartmentsDataPath,
	}
}

// CreateDistrictsSourceSpec returns the districts source id and a geojson
// source pointing at the static districts file.
func CreateDistrictsSourceSpec() (string, SourceSpec) {
	return DistrictsSourceID, SourceSpec{
		Type: SourceTypeGeoJSON,
		Data: DistrictsDataPath,
	}
}

// SourceSpecs returns the sources in attach order. Districts come first so
// their fill sits under the apartment markers.
func SourceSpecs(withDistricts bool) []SourceEntry {
	builders := []SourceSpecFunc{CreateApartmentsSourceSpec}
	if withDistricts {
		builders = append([]SourceSpecFunc{CreateDistrictsSourceSpec}, builders...)
	}

	entries := make([]SourceEntry, 0, len(builders))
	for _, build := range builders {
		id, spec := build()
		entries = append(entries, SourceEntry{ID: id, Spec: spec})
	}
	return entries
}
