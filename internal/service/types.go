// Package service loads and serves the map's data: apartments, districts,
// the remote base style and price analytics.
package service

import "errors"

// ErrNotLoaded is returned by services queried before their data loaded.
var ErrNotLoaded = errors.New("data not loaded")

// District is an administrative area drawn by the districts layer.
type District struct {
	Name  string `json:"name" doc:"District name" example:"Tverskoy"`
	Color string `json:"color" doc:"Fill color (CSS)" example:"#3388ff"`
}

// HouseStats summarizes the listings of one house.
type HouseStats struct {
	House      string  `json:"house" doc:"House address"`
	Apartments int64   `json:"apartments" doc:"Number of listings"`
	MinPrice   float64 `json:"minPrice" doc:"Cheapest listing"`
	MaxPrice   float64 `json:"maxPrice" doc:"Most expensive listing"`
	AvgPrice   float64 `json:"avgPrice" doc:"Mean listing price"`
}
