package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/Mad0squirrel/MLOps-pet-project/internal/service"
)

type DistrictsOutput struct {
	Body []service.District
}

type DistrictOutput struct {
	Body service.District
}

// RegisterDistricts registers the district overlay routes.
func (h *APIHandler) RegisterDistricts(api huma.API) {
	huma.Get(api, "/api/v1/districts", h.ListDistricts, huma.OperationTags("districts"))
	huma.Get(api, "/api/v1/districts/at", h.GetDistrictAt, huma.OperationTags("districts"))
}

func (h *APIHandler) ListDistricts(ctx context.Context, input *struct{}) (*DistrictsOutput, error) {
	if !h.withDistricts() {
		return &DistrictsOutput{Body: []service.District{}}, nil
	}
	ds, err := h.svc.Districts.List()
	if err != nil {
		return nil, serviceError("list districts", err)
	}
	return &DistrictsOutput{Body: ds}, nil
}

func (h *APIHandler) GetDistrictAt(ctx context.Context, input *PointInput) (*DistrictOutput, error) {
	if !h.withDistricts() {
		return nil, huma.Error404NotFound("districts are not configured")
	}
	d, ok, err := h.svc.Districts.At(input.Lon, input.Lat)
	if err != nil {
		return nil, serviceError("district lookup", err)
	}
	if !ok {
		return nil, huma.Error404NotFound("no district contains this position")
	}
	return &DistrictOutput{Body: d}, nil
}
