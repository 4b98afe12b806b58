package viewer

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/Mad0squirrel/MLOps-pet-project/internal/humastar"
	"github.com/Mad0squirrel/MLOps-pet-project/internal/service"
)

// EventHandler streams apartments change events to the viewer via SSE so the page
// can refetch its sources.
type EventHandler struct {
	bus *service.EventBus
}

// NewEventHandler creates a new event handler.
func NewEventHandler(bus *service.EventBus) *EventHandler {
	return &EventHandler{bus: bus}
}

func (h *EventHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/viewer/events", h.Events,
		huma.OperationTags("viewer"),
	)
}

func (h *EventHandler) Events(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return &huma.StreamResponse{
		Body: func(humaCtx huma.Context) {
			sse := humastar.NewSSE(humaCtx)
			ch := h.bus.Subscribe("apartments")
			defer h.bus.Unsubscribe(ch)

			for {
				select {
				case <-ctx.Done():
					return
				case ev, ok := <-ch:
					if !ok {
						return
					}
					sse.Notify(ev.Resource, ev.Action, ev.ID)
				}
			}
		},
	}, nil
}
