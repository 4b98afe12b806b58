package api

import (
	"context"
	"errors"
	"math"

	"github.com/danielgtaylor/huma/v2"

	"github.com/Mad0squirrel/MLOps-pet-project/internal/humastar"
	"github.com/Mad0squirrel/MLOps-pet-project/internal/popup"
	"github.com/Mad0squirrel/MLOps-pet-project/internal/service"
)

type ListApartmentsInput struct {
	Offset int `query:"offset" minimum:"0" default:"0" doc:"Items to skip"`
	Limit  int `query:"limit" minimum:"1" maximum:"1000" default:"50" doc:"Page size"`
}

type ApartmentsOutput struct {
	Body humastar.PageBody[popup.Apartment]
}

type PointInput struct {
	Lon float64 `query:"lon" required:"true" minimum:"-180" maximum:"180" doc:"Longitude" example:"37.6173"`
	Lat float64 `query:"lat" required:"true" minimum:"-90" maximum:"90" doc:"Latitude" example:"55.7558"`
}

// Resolve rejects NaN and infinite coordinates, which pass the range checks.
func (i *PointInput) Resolve(ctx huma.Context) []error {
	var errs []error
	if !finite(i.Lon) {
		errs = append(errs, &huma.ErrorDetail{Location: "query.lon", Message: "expected a finite number", Value: ctx.Query("lon")})
	}
	if !finite(i.Lat) {
		errs = append(errs, &huma.ErrorDetail{Location: "query.lat", Message: "expected a finite number", Value: ctx.Query("lat")})
	}
	return errs
}

type PopupInput struct {
	PointInput
	Tolerance float64 `query:"tolerance" minimum:"0" doc:"Search radius in degrees; 0 uses the default"`
}

func (i *PopupInput) Resolve(ctx huma.Context) []error {
	errs := i.PointInput.Resolve(ctx)
	if !finite(i.Tolerance) {
		errs = append(errs, &huma.ErrorDetail{Location: "query.tolerance", Message: "expected a finite number", Value: ctx.Query("tolerance")})
	}
	return errs
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

type PopupOutput struct {
	Body popup.ApartmentPopup
}

type HousesOutput struct {
	Body []service.HouseStats
}

// RegisterApartments registers the apartment dataset routes.
func (h *APIHandler) RegisterApartments(api huma.API) {
	huma.Get(api, "/api/v1/apartments", h.ListApartments, huma.OperationTags("apartments"))
	huma.Get(api, "/api/v1/apartments/popup", h.GetPopup, huma.OperationTags("apartments"))
	huma.Get(api, "/api/v1/apartments/houses", h.GetHouses, huma.OperationTags("apartments"))
	huma.Post(api, "/api/v1/apartments/reload", h.ReloadApartments, huma.OperationTags("apartments"))
}

func (h *APIHandler) ListApartments(ctx context.Context, input *ListApartmentsInput) (*ApartmentsOutput, error) {
	if h.svc == nil || h.svc.Apartments == nil {
		return nil, huma.Error503ServiceUnavailable("apartments not configured")
	}
	items, total, err := h.svc.Apartments.List(input.Offset, input.Limit)
	if err != nil {
		return nil, serviceError("list apartments", err)
	}
	return &ApartmentsOutput{Body: humastar.Page(items, input.Offset, input.Limit, total)}, nil
}

func (h *APIHandler) GetPopup(ctx context.Context, input *PopupInput) (*PopupOutput, error) {
	if h.svc == nil || h.svc.Apartments == nil {
		return nil, huma.Error503ServiceUnavailable("apartments not configured")
	}
	p, ok, err := h.svc.Apartments.PopupAt(input.Lon, input.Lat, input.Tolerance)
	if err != nil {
		return nil, serviceError("popup lookup", err)
	}
	if !ok {
		return nil, huma.Error404NotFound("no apartments at this position")
	}
	return &PopupOutput{Body: p}, nil
}

func (h *APIHandler) GetHouses(ctx context.Context, input *struct{}) (*HousesOutput, error) {
	if h.svc == nil || h.svc.Analytics == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}
	stats, err := h.svc.Analytics.HouseStats(ctx)
	if err != nil {
		return nil, serviceError("house stats", err)
	}
	return &HousesOutput{Body: stats}, nil
}

// ReloadApartments rereads the apartments file, refreshes the analytics
// table, drops the cached base style and notifies viewers.
func (h *APIHandler) ReloadApartments(ctx context.Context, input *struct{}) (*struct{ Body MessageBody }, error) {
	if h.svc == nil || h.svc.Apartments == nil || h.svc.Apartments.Path() == "" {
		return nil, huma.Error400BadRequest("apartments are not file backed")
	}
	if err := h.svc.Apartments.Load(); err != nil {
		return nil, huma.Error422UnprocessableEntity("reload apartments", err)
	}
	if h.svc.Analytics != nil && h.svc.Analytics.DB() != nil {
		apts, err := h.svc.Apartments.All()
		if err == nil {
			err = h.svc.Analytics.LoadApartments(ctx, apts)
		}
		if err != nil && !errors.Is(err, service.ErrNotLoaded) {
			return nil, huma.Error500InternalServerError("refresh analytics", err)
		}
	}
	if h.svc.Style != nil {
		h.svc.Style.Invalidate()
	}
	if h.svc.Bus != nil {
		h.svc.Bus.Publish(service.Event{Resource: "apartments", Action: "reloaded"})
	}
	return &struct{ Body MessageBody }{Body: MessageBody{Message: "Apartments reloaded"}}, nil
}
