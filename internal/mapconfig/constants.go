// Package mapconfig describes the map's data sources and style layers.
//
// Everything here is a value description. Nothing in this package holds a
// reference to a live map widget or performs I/O; fetching the data paths is
// the widget's job once a spec is attached.
package mapconfig

// Districts layer.
const (
	DistrictsSourceID     = "districts-source"
	DistrictsLayerID      = "districts-layer"
	DistrictsLabelLayerID = "districts-label-layer"
	DistrictsColorOpacity = 0.3
	DistrictColorField    = "color"
	DistrictNameField     = "name"
	DistrictsDataPath     = "/districts.geojson"
)

// Apartments layers.
const (
	ApartmentsSourceID       = "apartments-source"
	ApartmentsLayerID        = "apartments-layer"
	ApartmentsHeatmapLayerID = "apartments-heatmap-layer"
	ApartmentsDataPath       = "/apartments.geojson"
	ApartmentsPriceField     = "price"
	ApartmentsApartmentField = "apartment"
	ApartmentsHouseField     = "house"
)

// SourceTypeGeoJSON is the MapLibre source type for inline or remote GeoJSON.
const SourceTypeGeoJSON = "geojson"
