package maphost

import (
	"context"

	"github.com/paulmach/orb/geojson"

	"github.com/Mad0squirrel/MLOps-pet-project/internal/mapconfig"
)

// EventType tags a widget notification.
type EventType int

const (
	// EventStyleLoad fires once the style document and base tiles are ready.
	EventStyleLoad EventType = iota + 1
	// EventSourceLoaded fires when a geojson source finished fetching its data.
	EventSourceLoaded
	// EventError reports an asynchronous style, tile or data failure.
	EventError
	// EventClick reports a click on the map with the features under it.
	EventClick
)

func (t EventType) String() string {
	switch t {
	case EventStyleLoad:
		return "style.load"
	case EventSourceLoaded:
		return "source.loaded"
	case EventError:
		return "error"
	case EventClick:
		return "click"
	}
	return "unknown"
}

// Event is a notification from a Widget to its host.
type Event struct {
	Type     EventType
	SourceID string             // EventSourceLoaded, EventError for a source
	LayerID  string             // EventClick: first interactive layer hit
	Features []*geojson.Feature // EventSourceLoaded, EventClick
	Lon, Lat float64            // EventClick
	Err      error              // EventError
}

// WidgetOptions configures a widget at construction.
type WidgetOptions struct {
	Container   string
	StyleURL    string
	Center      [2]float64 // longitude, latitude
	Zoom        float64
	DataBaseURL string // resolves relative source data paths
}

//go:generate mockgen -source=widget.go -destination=mock_widget_test.go -package=maphost

// Widget is a map rendering widget bound to a container.
//
// Construction attaches the widget's canvas to the container. Start begins
// loading the style in the background and returns the widget's event stream;
// sources and layers may only be added after EventStyleLoad. Remove releases
// the canvas and stops all background work; after Remove no events are sent.
type Widget interface {
	Start(ctx context.Context) (<-chan Event, error)
	AddSource(id string, spec mapconfig.SourceSpec) error
	AddLayer(layer mapconfig.LayerSpec) error
	OnClick(layerID string) error
	Click(lon, lat float64)
	Layers() []string
	Remove()
}

// WidgetFactory constructs a widget. It fails when the container is missing.
type WidgetFactory func(opts WidgetOptions) (Widget, error)
