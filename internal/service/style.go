package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/Mad0squirrel/MLOps-pet-project/internal/mapconfig"
	"github.com/Mad0squirrel/MLOps-pet-project/internal/maperr"
	"github.com/Mad0squirrel/MLOps-pet-project/internal/metrics"
)

// maxStyleBytes bounds the size of a remote style document.
const maxStyleBytes = 8 << 20

// FetchStyle downloads a style document and checks that it has a version and
// a layers array. Transport failures and non-2xx responses are network
// errors; undecodable or incomplete documents are data errors.
func FetchStyle(ctx context.Context, client *http.Client, url string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, maperr.New(maperr.Config, "fetch style", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, maperr.New(maperr.Network, "fetch style", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, maperr.New(maperr.Network, "fetch style", fmt.Errorf("unexpected status %s", resp.Status))
	}

	var doc map[string]any
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxStyleBytes)).Decode(&doc); err != nil {
		return nil, maperr.New(maperr.Data, "decode style", err)
	}
	if _, ok := doc["version"]; !ok {
		return nil, maperr.Dataf("decode style", "style document has no version")
	}
	if _, ok := doc["layers"].([]any); !ok {
		return nil, maperr.Dataf("decode style", "style document has no layers array")
	}
	return doc, nil
}

// StyleService fetches the remote base style and composes it with the
// apartments and districts layers.
type StyleService struct {
	url    string
	client *http.Client
	cache  *cache.Cache
}

// NewStyleService creates a style service for the remote style at url.
// Fetched documents are cached for ttl; a nil client uses a 10s timeout.
func NewStyleService(url string, ttl time.Duration, client *http.Client) *StyleService {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &StyleService{
		url:    url,
		client: client,
		cache:  cache.New(ttl, 2*ttl),
	}
}

// URL returns the remote style URL.
func (s *StyleService) URL() string {
	return s.url
}

// Base returns the remote style, from cache when fresh.
func (s *StyleService) Base(ctx context.Context) (map[string]any, error) {
	if v, ok := s.cache.Get(s.url); ok {
		metrics.StyleCacheHitsTotal.Inc()
		return v.(map[string]any), nil
	}

	doc, err := FetchStyle(ctx, s.client, s.url)
	if err != nil {
		metrics.StyleFetchTotal.WithLabelValues("error").Inc()
		slog.Warn("style_fetch_error", "url", s.url, "err", err)
		return nil, err
	}
	metrics.StyleFetchTotal.WithLabelValues("ok").Inc()
	s.cache.SetDefault(s.url, doc)
	return doc, nil
}

// Compose returns the remote style with sources and layers appended.
func (s *StyleService) Compose(ctx context.Context, sources []mapconfig.SourceEntry, layers []mapconfig.LayerSpec) (map[string]any, error) {
	base, err := s.Base(ctx)
	if err != nil {
		return nil, err
	}
	return mapconfig.Compose(base, sources, layers)
}

// Invalidate drops the cached remote style.
func (s *StyleService) Invalidate() {
	s.cache.Delete(s.url)
}
