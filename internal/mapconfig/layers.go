package mapconfig

// Layer types used by this map.
const (
	LayerTypeFill    = "fill"
	LayerTypeSymbol  = "symbol"
	LayerTypeCircle  = "circle"
	LayerTypeHeatmap = "heatmap"
)

// Zoom at which the heatmap hands over to individual markers.
const (
	heatmapMaxZoom = 15
	markerMinZoom  = 12
)

// LayerSpec is a MapLibre style layer.
type LayerSpec struct {
	ID      string         `json:"id" doc:"Layer identifier" example:"apartments-layer"`
	Type    string         `json:"type" enum:"fill,symbol,circle,heatmap" doc:"Layer type"`
	Source  string         `json:"source" doc:"Source the layer renders" example:"apartments-source"`
	MinZoom float64        `json:"minzoom,omitempty" doc:"Minimum zoom"`
	MaxZoom float64        `json:"maxzoom,omitempty" doc:"Maximum zoom"`
	Filter  []any          `json:"filter,omitempty" doc:"Filter expression"`
	Layout  map[string]any `json:"layout,omitempty" doc:"Layout properties"`
	Paint   map[string]any `json:"paint,omitempty" doc:"Paint properties"`
}

// DistrictsFillLayer fills each district polygon with its own color.
func DistrictsFillLayer() LayerSpec {
	return LayerSpec{
		ID:     DistrictsLayerID,
		Type:   LayerTypeFill,
		Source: DistrictsSourceID,
		Paint: map[string]any{
			"fill-color":   []any{"get", DistrictColorField},
			"fill-opacity": DistrictsColorOpacity,
		},
	}
}

// DistrictsLabelLayer writes the district name at the polygon.
func DistrictsLabelLayer() LayerSpec {
	return LayerSpec{
		ID:     DistrictsLabelLayerID,
		Type:   LayerTypeSymbol,
		Source: DistrictsSourceID,
		Layout: map[string]any{
			"text-field": []any{"get", DistrictNameField},
			"text-size":  12,
		},
	}
}

// ApartmentsHeatmapLayer weights each apartment by its price relative to
// maxPrice. A non-positive maxPrice weights every point equally.
func ApartmentsHeatmapLayer(maxPrice float64) LayerSpec {
	var weight any = 1
	if maxPrice > 0 {
		weight = []any{
			"interpolate", []any{"linear"}, []any{"get", ApartmentsPriceField},
			0, 0,
			maxPrice, 1,
		}
	}
	return LayerSpec{
		ID:      ApartmentsHeatmapLayerID,
		Type:    LayerTypeHeatmap,
		Source:  ApartmentsSourceID,
		MaxZoom: heatmapMaxZoom,
		Paint: map[string]any{
			"heatmap-weight": weight,
			"heatmap-radius": []any{
				"interpolate", []any{"linear"}, []any{"zoom"},
				0, 2,
				heatmapMaxZoom, 20,
			},
			"heatmap-opacity": []any{
				"interpolate", []any{"linear"}, []any{"zoom"},
				markerMinZoom, 1,
				heatmapMaxZoom, 0,
			},
		},
	}
}

// ApartmentsCircleLayer draws one marker per apartment feature.
func ApartmentsCircleLayer() LayerSpec {
	return LayerSpec{
		ID:      ApartmentsLayerID,
		Type:    LayerTypeCircle,
		Source:  ApartmentsSourceID,
		MinZoom: markerMinZoom,
		Paint: map[string]any{
			"circle-radius":       6,
			"circle-color":        "#e4572e",
			"circle-stroke-color": "#ffffff",
			"circle-stroke-width": 1,
		},
	}
}

// Layers returns the style layers in draw order.
func Layers(withDistricts bool, maxPrice float64) []LayerSpec {
	var layers []LayerSpec
	if withDistricts {
		layers = append(layers, DistrictsFillLayer(), DistrictsLabelLayer())
	}
	return append(layers, ApartmentsHeatmapLayer(maxPrice), ApartmentsCircleLayer())
}

// InteractiveLayerIDs are the layers whose features open an apartment popup.
// The heatmap covers the zooms below the markers' minzoom, so both are
// clickable.
func InteractiveLayerIDs() []string {
	return []string{ApartmentsHeatmapLayerID, ApartmentsLayerID}
}
