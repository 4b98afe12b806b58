package service

import (
	"fmt"
	"os"
	"sync"

	"github.com/paulmach/orb/geojson"

	"github.com/Mad0squirrel/MLOps-pet-project/internal/geoindex"
	"github.com/Mad0squirrel/MLOps-pet-project/internal/maperr"
	"github.com/Mad0squirrel/MLOps-pet-project/internal/metrics"
	"github.com/Mad0squirrel/MLOps-pet-project/internal/popup"
)

// ParseApartments decodes an apartments FeatureCollection and validates every
// feature against the apartment schema.
func ParseApartments(data []byte) ([]popup.Apartment, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, maperr.New(maperr.Data, "parse apartments", err)
	}
	return popup.ApartmentsFromCollection(fc)
}

// ApartmentService holds the apartments dataset and its click index.
type ApartmentService struct {
	path string

	mu         sync.RWMutex
	raw        []byte
	apartments []popup.Apartment
	index      *geoindex.Index[popup.Apartment]
	maxPrice   float64
}

// NewApartmentService creates a service reading from the GeoJSON file at path.
func NewApartmentService(path string) *ApartmentService {
	return &ApartmentService{path: path}
}

// Path returns the GeoJSON file the service reads.
func (s *ApartmentService) Path() string {
	return s.path
}

// Load reads and parses the GeoJSON file. On failure the previously loaded
// data, if any, is kept.
func (s *ApartmentService) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("reading apartments: %w", err)
	}
	return s.LoadBytes(data)
}

// LoadBytes replaces the dataset with the given GeoJSON document.
func (s *ApartmentService) LoadBytes(data []byte) error {
	apts, err := ParseApartments(data)
	if err != nil {
		return err
	}

	var maxPrice float64
	for _, a := range apts {
		if a.Price > maxPrice {
			maxPrice = a.Price
		}
	}
	index := geoindex.New(apts, popup.Apartment.Point)

	s.mu.Lock()
	s.raw = append([]byte(nil), data...)
	s.apartments = apts
	s.index = index
	s.maxPrice = maxPrice
	s.mu.Unlock()

	metrics.ApartmentsLoaded.Set(float64(len(apts)))
	return nil
}

// Loaded reports whether a dataset is available.
func (s *ApartmentService) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index != nil
}

// Raw returns the GeoJSON document as loaded.
func (s *ApartmentService) Raw() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.raw == nil {
		return nil, ErrNotLoaded
	}
	return s.raw, nil
}

// All returns every apartment in source order.
func (s *ApartmentService) All() ([]popup.Apartment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.index == nil {
		return nil, ErrNotLoaded
	}
	return append([]popup.Apartment(nil), s.apartments...), nil
}

// List returns one page of apartments and the total count.
func (s *ApartmentService) List(offset, limit int) ([]popup.Apartment, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.index == nil {
		return nil, 0, ErrNotLoaded
	}

	total := len(s.apartments)
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return append([]popup.Apartment(nil), s.apartments[offset:end]...), total, nil
}

// MaxPrice returns the highest listing price, or 0 when nothing is loaded.
func (s *ApartmentService) MaxPrice() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxPrice
}

// PopupAt resolves a click at (lon, lat) into the popup of the nearest house
// within tolerance degrees.
func (s *ApartmentService) PopupAt(lon, lat, tolerance float64) (popup.ApartmentPopup, bool, error) {
	s.mu.RLock()
	index := s.index
	s.mu.RUnlock()
	if index == nil {
		return popup.ApartmentPopup{}, false, ErrNotLoaded
	}

	hits, err := index.Near(lon, lat, tolerance)
	if err != nil {
		return popup.ApartmentPopup{}, false, err
	}
	p, ok := popup.At(lon, lat, hits)
	return p, ok, nil
}
