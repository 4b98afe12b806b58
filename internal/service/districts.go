package service

import (
	"fmt"
	"os"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"github.com/Mad0squirrel/MLOps-pet-project/internal/mapconfig"
	"github.com/Mad0squirrel/MLOps-pet-project/internal/maperr"
)

type districtShape struct {
	District
	geom  orb.Geometry
	bound orb.Bound
}

// DistrictService holds the district polygons.
type DistrictService struct {
	path string

	mu     sync.RWMutex
	raw    []byte
	shapes []districtShape
}

// NewDistrictService creates a service reading from the GeoJSON file at path.
// An empty path disables districts.
func NewDistrictService(path string) *DistrictService {
	return &DistrictService{path: path}
}

// Enabled reports whether a districts file is configured.
func (s *DistrictService) Enabled() bool {
	return s.path != ""
}

// Load reads and parses the districts file.
func (s *DistrictService) Load() error {
	if !s.Enabled() {
		return nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("reading districts: %w", err)
	}
	return s.LoadBytes(data)
}

// LoadBytes replaces the districts with the given GeoJSON document. Every
// feature must be a Polygon or MultiPolygon with name and color properties.
func (s *DistrictService) LoadBytes(data []byte) error {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return maperr.New(maperr.Data, "parse districts", err)
	}

	shapes := make([]districtShape, 0, len(fc.Features))
	for i, f := range fc.Features {
		switch f.Geometry.(type) {
		case orb.Polygon, orb.MultiPolygon:
		default:
			return maperr.Dataf("parse districts", "feature %d: geometry must be a polygon", i)
		}
		name, ok := f.Properties[mapconfig.DistrictNameField].(string)
		if !ok {
			return maperr.Dataf("parse districts", "feature %d: missing %q", i, mapconfig.DistrictNameField)
		}
		color, ok := f.Properties[mapconfig.DistrictColorField].(string)
		if !ok {
			return maperr.Dataf("parse districts", "feature %d: missing %q", i, mapconfig.DistrictColorField)
		}
		shapes = append(shapes, districtShape{
			District: District{Name: name, Color: color},
			geom:     f.Geometry,
			bound:    f.Geometry.Bound(),
		})
	}

	s.mu.Lock()
	s.raw = append([]byte(nil), data...)
	s.shapes = shapes
	s.mu.Unlock()
	return nil
}

// Raw returns the GeoJSON document as loaded.
func (s *DistrictService) Raw() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.raw == nil {
		return nil, ErrNotLoaded
	}
	return s.raw, nil
}

// List returns the districts in source order.
func (s *DistrictService) List() ([]District, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.raw == nil {
		return nil, ErrNotLoaded
	}
	out := make([]District, len(s.shapes))
	for i, sh := range s.shapes {
		out[i] = sh.District
	}
	return out, nil
}

// At returns the first district containing (lon, lat).
func (s *DistrictService) At(lon, lat float64) (District, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.raw == nil {
		return District{}, false, ErrNotLoaded
	}

	pt := orb.Point{lon, lat}
	for _, sh := range s.shapes {
		if !sh.bound.Contains(pt) {
			continue
		}
		switch g := sh.geom.(type) {
		case orb.Polygon:
			if planar.PolygonContains(g, pt) {
				return sh.District, true, nil
			}
		case orb.MultiPolygon:
			if planar.MultiPolygonContains(g, pt) {
				return sh.District, true, nil
			}
		}
	}
	return District{}, false, nil
}
