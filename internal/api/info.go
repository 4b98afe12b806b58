package api

import (
	"context"
	"net/url"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

// Build describes the running binary and its environment.
type Build struct {
	Name    string
	Version string
	Mode    string
	DataDir string
	Started time.Time
}

// InfoHandler reports what the server has loaded and which map features are
// on.
type InfoHandler struct {
	build Build
	svc   *Services
	db    bool
}

func NewInfoHandler(build Build, svc *Services, dbAvailable bool) *InfoHandler {
	if build.Started.IsZero() {
		build.Started = time.Now()
	}
	return &InfoHandler{build: build, svc: svc, db: dbAvailable}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type DatasetInfo struct {
	Loaded   bool    `json:"loaded" doc:"Whether the dataset is loaded"`
	Features int     `json:"features" doc:"Number of features in the dataset"`
	MaxPrice float64 `json:"max_price,omitempty" doc:"Highest apartment price, drives the heatmap weight"`
}

type InfoBody struct {
	Name       string      `json:"name" doc:"Service name"`
	Version    string      `json:"version" doc:"Service version"`
	Mode       string      `json:"mode" doc:"Deployment mode"`
	DataDir    string      `json:"data_dir" doc:"Data directory path"`
	UptimeSec  int64       `json:"uptime_sec" doc:"Seconds since start"`
	StyleHost  string      `json:"style_host,omitempty" doc:"Host serving the base map style"`
	DB         bool        `json:"db" doc:"Whether the analytics database is available"`
	Apartments DatasetInfo `json:"apartments" doc:"Apartments dataset"`
	Districts  DatasetInfo `json:"districts" doc:"Districts overlay"`
	Features   []string    `json:"features" doc:"Enabled map features"`
	Dropped    int64       `json:"events_dropped" doc:"Viewer events dropped for slow subscribers"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	body := InfoBody{
		Name:      h.build.Name,
		Version:   h.build.Version,
		Mode:      h.build.Mode,
		DataDir:   h.build.DataDir,
		UptimeSec: int64(time.Since(h.build.Started) / time.Second),
		DB:        h.db,
		Features:  []string{"heatmap", "popup"},
	}

	if h.svc.Apartments != nil {
		if all, err := h.svc.Apartments.All(); err == nil {
			body.Apartments = DatasetInfo{Loaded: true, Features: len(all), MaxPrice: h.svc.Apartments.MaxPrice()}
		}
	}
	if h.svc.Districts != nil && h.svc.Districts.Enabled() {
		body.Features = append(body.Features, "districts")
		if ds, err := h.svc.Districts.List(); err == nil {
			body.Districts = DatasetInfo{Loaded: true, Features: len(ds)}
		}
	}
	if h.db {
		body.Features = append(body.Features, "duckdb")
	}
	if h.svc.Bus != nil {
		body.Dropped = h.svc.Bus.Dropped()
	}
	if h.svc.Style != nil {
		if u, err := url.Parse(h.svc.Style.URL()); err == nil {
			body.StyleHost = u.Host
		}
	}
	return &struct{ Body InfoBody }{Body: body}, nil
}
