// Package viewer contains the Datastar SSE handlers behind the map viewer
// page.
package viewer

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/Mad0squirrel/MLOps-pet-project/internal/geoindex"
	"github.com/Mad0squirrel/MLOps-pet-project/internal/humastar"
	"github.com/Mad0squirrel/MLOps-pet-project/internal/metrics"
	"github.com/Mad0squirrel/MLOps-pet-project/internal/service"
	"github.com/Mad0squirrel/MLOps-pet-project/internal/templates"
)

// PopupSelector is the element the popup fragment is patched into.
const PopupSelector = "#popup"

// PopupHandler resolves viewer clicks into the apartment popup.
type PopupHandler struct {
	humastar.Handler
	apartments *service.ApartmentService
}

// NewPopupHandler creates a popup handler.
func NewPopupHandler(apartments *service.ApartmentService, renderer *templates.Renderer) *PopupHandler {
	return &PopupHandler{
		Handler:    humastar.Handler{Renderer: renderer},
		apartments: apartments,
	}
}

func (h *PopupHandler) RegisterRoutes(api huma.API) {
	huma.Post(api, "/api/v1/viewer/popup", h.Popup, huma.OperationTags("viewer"))
}

// Popup reads the clicked position from the longitude and latitude signals,
// patches the popup fragment and sets the popup signals.
func (h *PopupHandler) Popup(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.Parse()
	if err != nil {
		return nil, err
	}
	lon, lat, okPos := signals.Coordinates("longitude", "latitude")
	tolerance, _ := signals.Float("tolerance")
	if tolerance <= 0 {
		tolerance = geoindex.DefaultTolerance
	}

	return h.Stream(func(sse humastar.SSE) {
		if !okPos {
			h.Fail(sse, PopupSelector, "Invalid click", "longitude and latitude signals are required")
			return
		}

		p, ok, err := h.apartments.PopupAt(lon, lat, tolerance)
		switch {
		case errors.Is(err, service.ErrNotLoaded):
			h.Fail(sse, PopupSelector, "Apartments unavailable", "the apartments dataset is not loaded")
			return
		case err != nil:
			h.Fail(sse, PopupSelector, "Lookup failed", err.Error())
			return
		case !ok:
			metrics.PopupLookupsTotal.WithLabelValues("miss").Inc()
			sse.Fragment(h.Render("popup-empty", nil), PopupSelector)
			sse.Signals(map[string]any{"popupOpen": false, humastar.ErrorSignal: ""})
			return
		}

		metrics.PopupLookupsTotal.WithLabelValues("hit").Inc()
		sse.Fragment(h.Render("popup", p), PopupSelector)
		sse.Signals(map[string]any{"popup": p, "popupOpen": true, humastar.ErrorSignal: ""})
	}), nil
}
