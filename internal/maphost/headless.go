package maphost

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/gammazero/workerpool"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/Mad0squirrel/MLOps-pet-project/internal/geoindex"
	"github.com/Mad0squirrel/MLOps-pet-project/internal/mapconfig"
	"github.com/Mad0squirrel/MLOps-pet-project/internal/maperr"
	"github.com/Mad0squirrel/MLOps-pet-project/internal/service"
)

// maxSourceBytes bounds a single geojson source download.
const maxSourceBytes = 64 << 20

// fetchWorkers is how many style and source downloads one widget runs at once.
const fetchWorkers = 2

// ErrSurfaceBusy is returned when a container already hosts a canvas.
var ErrSurfaceBusy = errors.New("surface already hosts a map")

// Surface is a container element a widget draws on.
type Surface struct {
	ID string

	mu       sync.Mutex
	attached bool
}

// Attached reports whether a widget canvas is attached.
func (s *Surface) Attached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attached
}

func (s *Surface) attach() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attached {
		return ErrSurfaceBusy
	}
	s.attached = true
	return nil
}

func (s *Surface) detach() {
	s.mu.Lock()
	s.attached = false
	s.mu.Unlock()
}

// Page holds the surfaces widgets can be mounted into.
type Page struct {
	mu       sync.Mutex
	surfaces map[string]*Surface
}

// NewPage returns a page with one surface per id.
func NewPage(ids ...string) *Page {
	p := &Page{surfaces: map[string]*Surface{}}
	for _, id := range ids {
		p.AddSurface(id)
	}
	return p
}

// AddSurface adds (or returns the existing) surface with id.
func (p *Page) AddSurface(id string) *Surface {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.surfaces[id]; ok {
		return s
	}
	s := &Surface{ID: id}
	p.surfaces[id] = s
	return s
}

// Surface looks a surface up by id.
func (p *Page) Surface(id string) (*Surface, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.surfaces[id]
	return s, ok
}

// HeadlessFactory builds Headless widgets on page. A nil client uses
// http.DefaultClient.
func HeadlessFactory(page *Page, client *http.Client) WidgetFactory {
	if client == nil {
		client = http.DefaultClient
	}
	return func(opts WidgetOptions) (Widget, error) {
		return NewHeadless(page, client, opts)
	}
}

type pointIndex = geoindex.Index[*geojson.Feature]

// Headless is a Widget without a canvas. It fetches the style and geojson
// sources over HTTP, keeps the source and layer registry a renderer would,
// and answers clicks from a spatial index of the loaded points.
type Headless struct {
	opts    WidgetOptions
	client  *http.Client
	surface *Surface

	mu          sync.Mutex
	ctx         context.Context
	events      chan Event
	styleLoaded bool
	baseLayers  []string
	sources     map[string]mapconfig.SourceSpec
	layers      []mapconfig.LayerSpec
	indexes     map[string]*pointIndex
	clickable   []string

	fetches *workerpool.WorkerPool
	wg      sync.WaitGroup
	done    chan struct{}
	removed sync.Once
}

// NewHeadless attaches a headless widget to the surface named by
// opts.Container.
func NewHeadless(page *Page, client *http.Client, opts WidgetOptions) (*Headless, error) {
	if page == nil {
		return nil, maperr.Configf("new widget", "no page to mount into")
	}
	s, ok := page.Surface(opts.Container)
	if !ok {
		return nil, maperr.Configf("new widget", "container %q not found", opts.Container)
	}
	if err := s.attach(); err != nil {
		return nil, maperr.New(maperr.Config, "new widget", fmt.Errorf("container %q: %w", opts.Container, err))
	}
	return &Headless{
		opts:    opts,
		client:  client,
		surface: s,
		events:  make(chan Event, 16),
		sources: map[string]mapconfig.SourceSpec{},
		indexes: map[string]*pointIndex{},
		fetches: workerpool.New(fetchWorkers),
		done:    make(chan struct{}),
	}, nil
}

// Start fetches the style in the background.
func (w *Headless) Start(ctx context.Context) (<-chan Event, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ctx != nil {
		return nil, errors.New("widget already started")
	}
	if w.closed() {
		return nil, errors.New("widget removed")
	}
	w.ctx = ctx

	w.wg.Add(1)
	w.fetches.Submit(func() {
		defer w.wg.Done()
		doc, err := service.FetchStyle(ctx, w.client, w.opts.StyleURL)
		if err != nil {
			w.emit(Event{Type: EventError, Err: err})
			return
		}
		var ids []string
		for _, l := range doc["layers"].([]any) {
			if m, ok := l.(map[string]any); ok {
				if id, ok := m["id"].(string); ok {
					ids = append(ids, id)
				}
			}
		}
		w.mu.Lock()
		w.baseLayers = ids
		w.styleLoaded = true
		w.mu.Unlock()
		w.emit(Event{Type: EventStyleLoad})
	})
	return w.events, nil
}

// AddSource registers a source and, for geojson sources, starts loading its
// data.
func (w *Headless) AddSource(id string, spec mapconfig.SourceSpec) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed() {
		return errors.New("widget removed")
	}
	if !w.styleLoaded {
		return errors.New("style is not done loading")
	}
	if _, dup := w.sources[id]; dup {
		return fmt.Errorf("there is already a source with id %q", id)
	}
	if spec.Type != mapconfig.SourceTypeGeoJSON {
		return maperr.Configf("add source", "source %q has unsupported type %q", id, spec.Type)
	}
	u, err := w.resolve(spec.Data)
	if err != nil {
		return err
	}
	w.sources[id] = spec
	ctx := w.ctx

	w.wg.Add(1)
	w.fetches.Submit(func() {
		defer w.wg.Done()
		fc, err := w.fetchCollection(ctx, u)
		if err != nil {
			w.emit(Event{Type: EventError, SourceID: id, Err: err})
			return
		}
		var points []*geojson.Feature
		for _, f := range fc.Features {
			if _, ok := f.Geometry.(orb.Point); ok {
				points = append(points, f)
			}
		}
		ix := geoindex.New(points, func(f *geojson.Feature) orb.Point { return f.Geometry.(orb.Point) })
		w.mu.Lock()
		w.indexes[id] = ix
		w.mu.Unlock()
		w.emit(Event{Type: EventSourceLoaded, SourceID: id, Features: fc.Features})
	})
	return nil
}

// AddLayer appends a layer drawing an existing source.
func (w *Headless) AddLayer(layer mapconfig.LayerSpec) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.styleLoaded {
		return errors.New("style is not done loading")
	}
	if w.hasLayer(layer.ID) {
		return fmt.Errorf("layer %q already exists", layer.ID)
	}
	if _, ok := w.sources[layer.Source]; !ok {
		return fmt.Errorf("layer %q references unknown source %q", layer.ID, layer.Source)
	}
	w.layers = append(w.layers, layer)
	return nil
}

// OnClick makes a layer report clicks.
func (w *Headless) OnClick(layerID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.hasLayer(layerID) {
		return fmt.Errorf("layer %q does not exist", layerID)
	}
	for _, id := range w.clickable {
		if id == layerID {
			return nil
		}
	}
	w.clickable = append(w.clickable, layerID)
	return nil
}

// Click reports the features of clickable layers under (lon, lat). The event
// is always sent, with no features when nothing was hit.
func (w *Headless) Click(lon, lat float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed() {
		return
	}
	ev := Event{Type: EventClick, Lon: lon, Lat: lat}
	seen := map[string]bool{}
	for _, id := range w.clickable {
		src := w.sourceOf(id)
		ix, ok := w.indexes[src]
		if !ok || seen[src] {
			continue
		}
		seen[src] = true
		hits, err := ix.Near(lon, lat, geoindex.DefaultTolerance)
		if err != nil || len(hits) == 0 {
			continue
		}
		if ev.LayerID == "" {
			ev.LayerID = id
		}
		ev.Features = append(ev.Features, hits...)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.emit(ev)
	}()
}

// Layers returns base style layer ids followed by added layer ids.
func (w *Headless) Layers() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	ids := append([]string(nil), w.baseLayers...)
	for _, l := range w.layers {
		ids = append(ids, l.ID)
	}
	return ids
}

// Remove detaches the widget from its surface and stops background work.
func (w *Headless) Remove() {
	w.removed.Do(func() {
		w.mu.Lock()
		close(w.done)
		w.mu.Unlock()
		w.wg.Wait()
		w.fetches.Stop()
		w.mu.Lock()
		w.sources = map[string]mapconfig.SourceSpec{}
		w.indexes = map[string]*pointIndex{}
		w.layers = nil
		w.clickable = nil
		w.mu.Unlock()
		w.surface.detach()
	})
}

// closed reports whether Remove has run. Callers hold w.mu.
func (w *Headless) closed() bool {
	select {
	case <-w.done:
		return true
	default:
		return false
	}
}

func (w *Headless) emit(ev Event) {
	w.mu.Lock()
	ctx := w.ctx
	w.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case w.events <- ev:
	case <-w.done:
	case <-ctx.Done():
	}
}

func (w *Headless) hasLayer(id string) bool {
	for _, l := range w.layers {
		if l.ID == id {
			return true
		}
	}
	return false
}

func (w *Headless) sourceOf(layerID string) string {
	for _, l := range w.layers {
		if l.ID == layerID {
			return l.Source
		}
	}
	return ""
}

func (w *Headless) resolve(data string) (string, error) {
	ref, err := url.Parse(data)
	if err != nil {
		return "", maperr.New(maperr.Config, "resolve source", err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	if w.opts.DataBaseURL == "" {
		return "", maperr.Configf("resolve source", "relative data path %q needs a data base url", data)
	}
	base, err := url.Parse(w.opts.DataBaseURL)
	if err != nil {
		return "", maperr.New(maperr.Config, "resolve source", err)
	}
	return base.ResolveReference(ref).String(), nil
}

func (w *Headless) fetchCollection(ctx context.Context, u string) (*geojson.FeatureCollection, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, maperr.New(maperr.Config, "fetch source", err)
	}
	req.Header.Set("Accept", "application/geo+json, application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, maperr.New(maperr.Network, "fetch source", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, maperr.New(maperr.Network, "fetch source", fmt.Errorf("%s: unexpected status %s", u, resp.Status))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceBytes))
	if err != nil {
		return nil, maperr.New(maperr.Network, "fetch source", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, maperr.New(maperr.Data, "decode source", err)
	}
	return fc, nil
}
