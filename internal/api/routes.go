// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/Mad0squirrel/MLOps-pet-project/internal/mapconfig"
	"github.com/Mad0squirrel/MLOps-pet-project/internal/service"
)

// Services holds the service dependencies for API handlers.
type Services struct {
	Apartments *service.ApartmentService
	Districts  *service.DistrictService
	Style      *service.StyleService
	Analytics  *service.AnalyticsService
	Bus        *service.EventBus
}

// MapSettings is the widget configuration handed to the viewer.
type MapSettings struct {
	Center    [2]float64
	Zoom      float64
	Container string
	Mode      string
	APIHost   string
}

// Types

type IDInput struct {
	ID string `path:"id" doc:"Layer ID" example:"apartments-layer"`
}

type LayerOutput struct {
	Body mapconfig.LayerSpec
}

type LayersOutput struct {
	Body []mapconfig.LayerSpec
}

type SourcesOutput struct {
	Body []mapconfig.SourceEntry
}

type MessageBody struct {
	Message string `json:"message" doc:"Result message"`
}

type HealthBody struct {
	Status     string `json:"status" doc:"Health status" example:"ok"`
	Version    string `json:"version" doc:"API version" example:"1.0.0"`
	Apartments bool   `json:"apartments" doc:"Whether the apartments dataset is loaded"`
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc      *Services
	settings MapSettings
}

func NewAPIHandler(svc *Services, settings MapSettings) *APIHandler {
	return &APIHandler{svc: svc, settings: settings}
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterLayers registers layer listing routes.
func (h *APIHandler) RegisterLayers(api huma.API) {
	huma.Get(api, "/api/v1/layers", h.GetLayers, huma.OperationTags("layers"))
	huma.Get(api, "/api/v1/layers/{id}", h.GetLayer, huma.OperationTags("layers"))
}

// RegisterSources registers source listing routes.
func (h *APIHandler) RegisterSources(api huma.API) {
	huma.Get(api, "/api/v1/sources", h.GetSources, huma.OperationTags("sources"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	loaded := h.svc != nil && h.svc.Apartments != nil && h.svc.Apartments.Loaded()
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: "1.0.0", Apartments: loaded}}, nil
}

func (h *APIHandler) GetLayers(ctx context.Context, input *struct{}) (*LayersOutput, error) {
	return &LayersOutput{Body: h.layers()}, nil
}

func (h *APIHandler) GetLayer(ctx context.Context, input *IDInput) (*LayerOutput, error) {
	for _, l := range h.layers() {
		if l.ID == input.ID {
			return &LayerOutput{Body: l}, nil
		}
	}
	return nil, huma.Error404NotFound("layer not found")
}

func (h *APIHandler) GetSources(ctx context.Context, input *struct{}) (*SourcesOutput, error) {
	return &SourcesOutput{Body: mapconfig.SourceSpecs(h.withDistricts())}, nil
}

func (h *APIHandler) withDistricts() bool {
	return h.svc != nil && h.svc.Districts != nil && h.svc.Districts.Enabled()
}

func (h *APIHandler) maxPrice() float64 {
	if h.svc == nil || h.svc.Apartments == nil {
		return 0
	}
	return h.svc.Apartments.MaxPrice()
}

func (h *APIHandler) layers() []mapconfig.LayerSpec {
	return mapconfig.Layers(h.withDistricts(), h.maxPrice())
}

// serviceError maps service errors onto Huma status errors.
func serviceError(msg string, err error) error {
	if errors.Is(err, service.ErrNotLoaded) {
		return huma.Error503ServiceUnavailable(msg + ": data not loaded")
	}
	return huma.Error500InternalServerError(msg, err)
}
