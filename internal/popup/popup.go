// Package popup holds the data shown when a user clicks an apartment marker.
package popup

import (
	"fmt"
	"math"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/Mad0squirrel/MLOps-pet-project/internal/mapconfig"
	"github.com/Mad0squirrel/MLOps-pet-project/internal/maperr"
)

// ApartmentInfo is one line of a popup.
type ApartmentInfo struct {
	Apartment string  `json:"apartment" doc:"Apartment label" example:"42"`
	Price     float64 `json:"price" doc:"Listing price" example:"15500000"`
}

// ApartmentPopup lists the apartments of one house at one position.
type ApartmentPopup struct {
	Longitude  float64         `json:"longitude" doc:"Longitude of the house" example:"37.6173"`
	Latitude   float64         `json:"latitude" doc:"Latitude of the house" example:"55.7558"`
	House      string          `json:"house" doc:"House address" example:"Tverskaya 1"`
	Apartments []ApartmentInfo `json:"apartments" doc:"Apartments in source order"`
}

// Apartment is a single listing parsed from a GeoJSON feature.
type Apartment struct {
	House     string  `json:"house" doc:"House address"`
	Apartment string  `json:"apartment" doc:"Apartment label"`
	Price     float64 `json:"price" doc:"Listing price"`
	Longitude float64 `json:"longitude" doc:"Longitude"`
	Latitude  float64 `json:"latitude" doc:"Latitude"`
}

// Info returns the popup line for a.
func (a Apartment) Info() ApartmentInfo {
	return ApartmentInfo{Apartment: a.Apartment, Price: a.Price}
}

// Point returns the apartment position.
func (a Apartment) Point() orb.Point {
	return orb.Point{a.Longitude, a.Latitude}
}

// ApartmentFromFeature validates f against the apartment schema: a Point
// geometry with a numeric price and apartment and house labels. Labels given
// as JSON numbers are accepted and formatted.
func ApartmentFromFeature(f *geojson.Feature) (Apartment, error) {
	if f == nil {
		return Apartment{}, maperr.Dataf("parse apartment", "nil feature")
	}
	pt, ok := f.Geometry.(orb.Point)
	if !ok {
		return Apartment{}, maperr.Dataf("parse apartment", "geometry is %s, want Point", geometryType(f.Geometry))
	}

	price, err := number(f.Properties, mapconfig.ApartmentsPriceField)
	if err != nil {
		return Apartment{}, err
	}
	apartment, err := label(f.Properties, mapconfig.ApartmentsApartmentField)
	if err != nil {
		return Apartment{}, err
	}
	house, err := label(f.Properties, mapconfig.ApartmentsHouseField)
	if err != nil {
		return Apartment{}, err
	}

	return Apartment{
		House:     house,
		Apartment: apartment,
		Price:     price,
		Longitude: pt.Lon(),
		Latitude:  pt.Lat(),
	}, nil
}

// ApartmentsFromCollection parses every feature of fc, failing on the first
// invalid one.
func ApartmentsFromCollection(fc *geojson.FeatureCollection) ([]Apartment, error) {
	if fc == nil {
		return nil, maperr.Dataf("parse apartments", "nil feature collection")
	}
	out := make([]Apartment, 0, len(fc.Features))
	for i, f := range fc.Features {
		a, err := ApartmentFromFeature(f)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		out = append(out, a)
	}
	return out, nil
}

// At builds the popup for a click at (lon, lat) from candidate apartments,
// usually the hits of an index query. The anchor is the candidate nearest to
// the click, the earliest one on ties. The popup lists every candidate with
// the anchor's exact position and house, in candidate order.
func At(lon, lat float64, candidates []Apartment) (ApartmentPopup, bool) {
	if len(candidates) == 0 {
		return ApartmentPopup{}, false
	}

	click := orb.Point{lon, lat}
	anchor := 0
	best := math.Inf(1)
	for i, c := range candidates {
		if d := distanceSquared(click, c.Point()); d < best {
			best = d
			anchor = i
		}
	}
	return Group(candidates[anchor], candidates), true
}

// Group collects the apartments co-located with anchor: same coordinates and
// same house. Order follows apartments.
func Group(anchor Apartment, apartments []Apartment) ApartmentPopup {
	p := ApartmentPopup{
		Longitude:  anchor.Longitude,
		Latitude:   anchor.Latitude,
		House:      anchor.House,
		Apartments: []ApartmentInfo{},
	}
	for _, a := range apartments {
		if a.House == anchor.House && a.Longitude == anchor.Longitude && a.Latitude == anchor.Latitude {
			p.Apartments = append(p.Apartments, a.Info())
		}
	}
	return p
}

func distanceSquared(a, b orb.Point) float64 {
	dx, dy := a.Lon()-b.Lon(), a.Lat()-b.Lat()
	return dx*dx + dy*dy
}

func number(props geojson.Properties, key string) (float64, error) {
	v, ok := props[key]
	if !ok || v == nil {
		return 0, maperr.Dataf("parse apartment", "missing %q", key)
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	}
	return 0, maperr.Dataf("parse apartment", "%q is %T, want number", key, v)
}

func label(props geojson.Properties, key string) (string, error) {
	v, ok := props[key]
	if !ok || v == nil {
		return "", maperr.Dataf("parse apartment", "missing %q", key)
	}
	switch s := v.(type) {
	case string:
		return s, nil
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(s), nil
	}
	return "", maperr.Dataf("parse apartment", "%q is %T, want string", key, v)
}

func geometryType(g orb.Geometry) string {
	if g == nil {
		return "null"
	}
	return g.GeoJSONType()
}
