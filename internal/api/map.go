package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/Mad0squirrel/MLOps-pet-project/internal/mapconfig"
	"github.com/Mad0squirrel/MLOps-pet-project/internal/maperr"
)

// MapConfigBody is everything the viewer needs to construct its widget.
type MapConfigBody struct {
	Container string                  `json:"container" doc:"Element id the map mounts into" example:"map"`
	StyleURL  string                  `json:"styleUrl" doc:"Composed style document URL"`
	Center    [2]float64              `json:"center" doc:"Initial center as [longitude, latitude]"`
	Zoom      float64                 `json:"zoom" doc:"Initial zoom" example:"10"`
	Mode      string                  `json:"mode" doc:"Deployment mode" example:"dev"`
	APIHost   string                  `json:"apiHost" doc:"Prediction API host"`
	Sources   []mapconfig.SourceEntry `json:"sources" doc:"Sources in attach order"`
	Layers    []mapconfig.LayerSpec   `json:"layers" doc:"Layers in attach order"`
	Clickable []string                `json:"clickable" doc:"Layers that open the apartment popup"`
}

type StyleInput struct {
	Base bool `query:"base" doc:"Return the remote base style without our sources and layers"`
}

type StyleOutput struct {
	ContentType string `header:"Content-Type"`
	Body        map[string]any
}

// RegisterMap registers the widget configuration routes.
func (h *APIHandler) RegisterMap(api huma.API) {
	huma.Get(api, "/api/v1/map/config", h.GetMapConfig, huma.OperationTags("map"))
	huma.Get(api, "/api/v1/map/style", h.GetMapStyle, huma.OperationTags("map"))
}

func (h *APIHandler) GetMapConfig(ctx context.Context, input *struct{}) (*struct{ Body MapConfigBody }, error) {
	withDistricts := h.withDistricts()
	return &struct{ Body MapConfigBody }{Body: MapConfigBody{
		Container: h.settings.Container,
		StyleURL:  "/api/v1/map/style",
		Center:    h.settings.Center,
		Zoom:      h.settings.Zoom,
		Mode:      h.settings.Mode,
		APIHost:   h.settings.APIHost,
		Sources:   mapconfig.SourceSpecs(withDistricts),
		Layers:    mapconfig.Layers(withDistricts, h.maxPrice()),
		Clickable: mapconfig.InteractiveLayerIDs(),
	}}, nil
}

// GetMapStyle returns the remote base style with our sources and layers
// appended, or the cached base style alone for clients that attach the
// overlays themselves.
func (h *APIHandler) GetMapStyle(ctx context.Context, input *StyleInput) (*StyleOutput, error) {
	if h.svc == nil || h.svc.Style == nil {
		return nil, huma.Error503ServiceUnavailable("style not configured")
	}

	var doc map[string]any
	var err error
	if input.Base {
		doc, err = h.svc.Style.Base(ctx)
	} else {
		withDistricts := h.withDistricts()
		doc, err = h.svc.Style.Compose(ctx, mapconfig.SourceSpecs(withDistricts), mapconfig.Layers(withDistricts, h.maxPrice()))
	}
	switch {
	case maperr.Is(err, maperr.Network), maperr.Is(err, maperr.Data):
		return nil, huma.Error502BadGateway("remote style unavailable", err)
	case err != nil:
		return nil, huma.Error500InternalServerError("compose style", err)
	}
	return &StyleOutput{ContentType: "application/json", Body: doc}, nil
}
