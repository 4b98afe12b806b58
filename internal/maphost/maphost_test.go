package maphost

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mad0squirrel/MLOps-pet-project/internal/mapconfig"
	"github.com/Mad0squirrel/MLOps-pet-project/internal/maperr"
)

func testConfig() Config {
	return Config{
		StyleURL:    "https://tiles.example.com/style.json",
		Center:      [2]float64{37.6173, 55.7558},
		Zoom:        10,
		Container:   "map",
		DataBaseURL: "http://localhost:8080",
		Districts:   true,
	}
}

// fakeWidget records the calls a host makes and lets tests push events.
type fakeWidget struct {
	mu      sync.Mutex
	calls   []string
	events  chan Event
	removed int
}

func newFakeWidget() *fakeWidget {
	return &fakeWidget{events: make(chan Event, 16)}
}

func (f *fakeWidget) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeWidget) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeWidget) Removed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.removed
}

func (f *fakeWidget) Start(ctx context.Context) (<-chan Event, error) {
	f.record("start")
	return f.events, nil
}

func (f *fakeWidget) AddSource(id string, spec mapconfig.SourceSpec) error {
	f.record("source:" + id)
	return nil
}

func (f *fakeWidget) AddLayer(layer mapconfig.LayerSpec) error {
	f.record("layer:" + layer.ID)
	return nil
}

func (f *fakeWidget) OnClick(layerID string) error {
	f.record("click:" + layerID)
	return nil
}

func (f *fakeWidget) Click(lon, lat float64) {}

func (f *fakeWidget) Layers() []string { return nil }

func (f *fakeWidget) Remove() {
	f.mu.Lock()
	f.removed++
	f.mu.Unlock()
}

func fakeFactory(w *fakeWidget) WidgetFactory {
	return func(WidgetOptions) (Widget, error) { return w, nil }
}

func apartmentFeature(lon, lat float64, house, apartment string, price float64) *geojson.Feature {
	f := geojson.NewFeature(orb.Point{lon, lat})
	f.Properties["house"] = house
	f.Properties["apartment"] = apartment
	f.Properties["price"] = price
	return f
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(*Config) {}, true},
		{"empty style", func(c *Config) { c.StyleURL = "" }, false},
		{"relative style", func(c *Config) { c.StyleURL = "/style.json" }, false},
		{"ftp style", func(c *Config) { c.StyleURL = "ftp://example.com/style.json" }, false},
		{"longitude out of range", func(c *Config) { c.Center[0] = 181 }, false},
		{"latitude out of range", func(c *Config) { c.Center[1] = -91 }, false},
		{"zoom too high", func(c *Config) { c.Zoom = 25 }, false},
		{"negative zoom", func(c *Config) { c.Zoom = -1 }, false},
		{"no container", func(c *Config) { c.Container = "" }, false},
		{"relative data base", func(c *Config) { c.DataBaseURL = "data" }, false},
		{"no data base", func(c *Config) { c.DataBaseURL = "" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, maperr.Is(err, maperr.Config), "got %v", err)
		})
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Container = ""
	_, err := New(cfg, fakeFactory(newFakeWidget()))
	assert.True(t, maperr.Is(err, maperr.Config))

	_, err = New(testConfig(), nil)
	assert.Error(t, err)
}

func TestMountThenDisposeImmediately(t *testing.T) {
	w := newFakeWidget()
	h, err := New(testConfig(), fakeFactory(w))
	require.NoError(t, err)
	assert.Equal(t, StateUninitialized, h.State())

	dispose, err := h.Mount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateLoading, h.State())

	dispose()
	assert.Equal(t, StateDisposed, h.State())
	assert.NoError(t, h.Err(), "dispose is not a failure")
	assert.Equal(t, 1, w.Removed())
	assert.Equal(t, []string{"start"}, w.Calls(), "no source or layer calls after dispose")

	dispose()
	h.Dispose()
	assert.Equal(t, 1, w.Removed(), "widget removed exactly once")

	// Events arriving after dispose are ignored.
	w.events <- Event{Type: EventStyleLoad}
	assert.Equal(t, StateDisposed, h.State())
}

func TestDisposeWithoutMount(t *testing.T) {
	h, err := New(testConfig(), fakeFactory(newFakeWidget()))
	require.NoError(t, err)
	h.Dispose()
	assert.Equal(t, StateDisposed, h.State())

	_, err = h.Mount(context.Background())
	assert.Error(t, err)
}

func TestMountTwice(t *testing.T) {
	h, err := New(testConfig(), fakeFactory(newFakeWidget()))
	require.NoError(t, err)
	dispose, err := h.Mount(context.Background())
	require.NoError(t, err)
	defer dispose()

	_, err = h.Mount(context.Background())
	assert.Error(t, err)
}

func TestMountContextCanceledFails(t *testing.T) {
	w := newFakeWidget()
	h, err := New(testConfig(), fakeFactory(w))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	dispose, err := h.Mount(ctx)
	require.NoError(t, err)
	cancel()

	require.Equal(t, StateFailed, h.Wait(waitCtx(t)))
	assert.True(t, maperr.Is(h.Err(), maperr.Network), "got %v", h.Err())
	assert.ErrorIs(t, h.Err(), context.Canceled)
	assert.Equal(t, 0, w.Removed(), "failed host keeps the widget until dispose")

	w.events <- Event{Type: EventStyleLoad}
	assert.Never(t, func() bool { return len(w.Calls()) > 1 }, 50*time.Millisecond, 5*time.Millisecond,
		"events after cancel are not handled")

	dispose()
	assert.Equal(t, StateDisposed, h.State())
	assert.Equal(t, 1, w.Removed())
}

func TestLifecycleOrder(t *testing.T) {
	w := newFakeWidget()
	h, err := New(testConfig(), fakeFactory(w))
	require.NoError(t, err)
	dispose, err := h.Mount(context.Background())
	require.NoError(t, err)
	defer dispose()

	w.events <- Event{Type: EventStyleLoad}
	w.events <- Event{Type: EventSourceLoaded, SourceID: mapconfig.DistrictsSourceID}

	assert.Never(t, func() bool { return h.State() == StateReady }, 50*time.Millisecond, 5*time.Millisecond,
		"ready before every source loaded")

	w.events <- Event{Type: EventSourceLoaded, SourceID: mapconfig.ApartmentsSourceID,
		Features: []*geojson.Feature{apartmentFeature(37.6, 55.7, "A", "1", 100)}}
	require.Equal(t, StateReady, h.Wait(waitCtx(t)))

	assert.Equal(t, []string{
		"start",
		"source:" + mapconfig.DistrictsSourceID,
		"source:" + mapconfig.ApartmentsSourceID,
		"layer:" + mapconfig.DistrictsLayerID,
		"layer:" + mapconfig.DistrictsLabelLayerID,
		"layer:" + mapconfig.ApartmentsHeatmapLayerID,
		"layer:" + mapconfig.ApartmentsLayerID,
		"click:" + mapconfig.ApartmentsHeatmapLayerID,
		"click:" + mapconfig.ApartmentsLayerID,
	}, w.Calls())
	assert.NoError(t, h.Err())
}

func TestInvalidApartmentFeatureFails(t *testing.T) {
	w := newFakeWidget()
	cfg := testConfig()
	cfg.Districts = false
	h, err := New(cfg, fakeFactory(w))
	require.NoError(t, err)
	dispose, err := h.Mount(context.Background())
	require.NoError(t, err)
	defer dispose()

	bad := geojson.NewFeature(orb.Point{37.6, 55.7})
	bad.Properties["house"] = "A"
	bad.Properties["apartment"] = "1"

	w.events <- Event{Type: EventStyleLoad}
	w.events <- Event{Type: EventSourceLoaded, SourceID: mapconfig.ApartmentsSourceID,
		Features: []*geojson.Feature{bad}}

	require.Equal(t, StateFailed, h.Wait(waitCtx(t)))
	assert.True(t, maperr.Is(h.Err(), maperr.Data), "got %v", h.Err())
	assert.Equal(t, 0, w.Removed(), "failed host keeps the widget until dispose")

	dispose()
	assert.Equal(t, StateDisposed, h.State())
	assert.Equal(t, 1, w.Removed())
}

func TestErrorEventFails(t *testing.T) {
	w := newFakeWidget()
	h, err := New(testConfig(), fakeFactory(w))
	require.NoError(t, err)
	dispose, err := h.Mount(context.Background())
	require.NoError(t, err)
	defer dispose()

	events := h.Subscribe()
	defer h.Unsubscribe(events)

	cause := maperr.New(maperr.Network, "fetch style", errors.New("connection refused"))
	w.events <- Event{Type: EventError, Err: cause}

	require.Equal(t, StateFailed, h.Wait(waitCtx(t)))
	assert.ErrorIs(t, h.Err(), cause)

	select {
	case ev := <-events:
		change, ok := ev.Payload.(StateChange)
		require.True(t, ok)
		assert.Equal(t, "state", ev.Action)
		assert.Equal(t, StateFailed, change.State)
	case <-time.After(time.Second):
		t.Fatal("no state event published")
	}
}

func TestAttachFailureKeepsWidgetUntilDispose(t *testing.T) {
	tests := []struct {
		name   string
		expect func(w *MockWidget)
	}{
		{"add source", func(w *MockWidget) {
			w.EXPECT().AddSource(mapconfig.ApartmentsSourceID, gomock.Any()).Return(errors.New("source already exists"))
		}},
		{"add layer", func(w *MockWidget) {
			w.EXPECT().AddSource(mapconfig.ApartmentsSourceID, gomock.Any()).Return(nil)
			w.EXPECT().AddLayer(gomock.Any()).Return(errors.New("unknown source"))
		}},
		{"register click", func(w *MockWidget) {
			w.EXPECT().AddSource(mapconfig.ApartmentsSourceID, gomock.Any()).Return(nil)
			w.EXPECT().AddLayer(gomock.Any()).Return(nil).Times(2)
			w.EXPECT().OnClick(mapconfig.ApartmentsHeatmapLayerID).Return(errors.New("layer does not exist"))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			w := NewMockWidget(ctrl)
			events := make(chan Event, 2)
			w.EXPECT().Start(gomock.Any()).Return((<-chan Event)(events), nil)
			tt.expect(w)

			cfg := testConfig()
			cfg.Districts = false
			h, err := New(cfg, func(WidgetOptions) (Widget, error) { return w, nil })
			require.NoError(t, err)
			dispose, err := h.Mount(context.Background())
			require.NoError(t, err)

			events <- Event{Type: EventStyleLoad}
			events <- Event{Type: EventSourceLoaded, SourceID: mapconfig.ApartmentsSourceID,
				Features: []*geojson.Feature{apartmentFeature(37.6, 55.7, "A", "1", 100)}}

			require.Equal(t, StateFailed, h.Wait(waitCtx(t)))
			assert.Error(t, h.Err())

			w.EXPECT().Remove()
			dispose()
			assert.Equal(t, StateDisposed, h.State())
		})
	}
}

func TestFactoryErrorFails(t *testing.T) {
	h, err := New(testConfig(), func(WidgetOptions) (Widget, error) {
		return nil, maperr.Configf("new widget", "container missing")
	})
	require.NoError(t, err)

	dispose, err := h.Mount(context.Background())
	require.Error(t, err)
	require.NotNil(t, dispose)
	assert.Equal(t, StateFailed, h.State())
	dispose()
	assert.Equal(t, StateDisposed, h.State())
}

// mapServer serves a base style and the two geojson sources. An empty
// apartments document answers 404.
func mapServer(t *testing.T, apartments string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/style.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"version": 8, "sources": {}, "layers": [{"id": "background", "type": "background"}]}`)
	})
	mux.HandleFunc(mapconfig.ApartmentsDataPath, func(w http.ResponseWriter, r *http.Request) {
		if apartments == "" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, apartments)
	})
	mux.HandleFunc(mapconfig.DistrictsDataPath, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"type": "FeatureCollection", "features": [
		  {"type": "Feature", "geometry": {"type": "Polygon", "coordinates": [[[37.5,55.7],[37.7,55.7],[37.7,55.8],[37.5,55.8],[37.5,55.7]]]},
		   "properties": {"name": "Tverskoy", "color": "#ff0000"}}]}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

const apartmentsGeoJSON = `{"type": "FeatureCollection", "features": [
  {"type": "Feature", "geometry": {"type": "Point", "coordinates": [37.6173, 55.7558]},
   "properties": {"house": "Red Square 1", "apartment": "12", "price": 30000000}},
  {"type": "Feature", "geometry": {"type": "Point", "coordinates": [37.5850, 55.7520]},
   "properties": {"house": "Arbat 10", "apartment": "3", "price": 18000000}},
  {"type": "Feature", "geometry": {"type": "Point", "coordinates": [37.6173, 55.7558]},
   "properties": {"house": "Red Square 1", "apartment": "7", "price": 25000000}}
]}`

func headlessHost(t *testing.T, srv *httptest.Server, page *Page) *Host {
	t.Helper()
	cfg := testConfig()
	cfg.StyleURL = srv.URL + "/style.json"
	cfg.DataBaseURL = srv.URL
	h, err := New(cfg, HeadlessFactory(page, srv.Client()))
	require.NoError(t, err)
	return h
}

func TestHeadlessReadyAndPopup(t *testing.T) {
	srv := mapServer(t, apartmentsGeoJSON)
	page := NewPage("map")
	h := headlessHost(t, srv, page)

	dispose, err := h.Mount(context.Background())
	require.NoError(t, err)
	surface, _ := page.Surface("map")
	assert.True(t, surface.Attached())

	require.Equal(t, StateReady, h.Wait(waitCtx(t)), "err: %v", h.Err())
	layers := h.Layers()
	assert.Contains(t, layers, "background")
	assert.Contains(t, layers, mapconfig.DistrictsLayerID)
	assert.Contains(t, layers, mapconfig.ApartmentsLayerID)

	p, ok, err := h.Click(waitCtx(t), 37.6173, 55.7558)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Red Square 1", p.House)
	require.Len(t, p.Apartments, 2)
	assert.Equal(t, "12", p.Apartments[0].Apartment)
	assert.Equal(t, "7", p.Apartments[1].Apartment)

	current, ok := h.Popup()
	assert.True(t, ok)
	assert.Equal(t, p, current)

	_, ok, err = h.Click(waitCtx(t), 30.0, 59.9)
	require.NoError(t, err)
	assert.False(t, ok, "a miss closes the popup")

	dispose()
	assert.Equal(t, StateDisposed, h.State())
	assert.False(t, surface.Attached())
	assert.Empty(t, h.Layers())

	_, _, err = h.Click(waitCtx(t), 37.6173, 55.7558)
	assert.Error(t, err)
}

func TestHeadlessInvalidGeoJSONFails(t *testing.T) {
	srv := mapServer(t, `{"type": "FeatureCollection", "features": [`)
	h := headlessHost(t, srv, NewPage("map"))
	dispose, err := h.Mount(context.Background())
	require.NoError(t, err)
	defer dispose()

	require.Equal(t, StateFailed, h.Wait(waitCtx(t)))
	assert.True(t, maperr.Is(h.Err(), maperr.Data), "got %v", h.Err())
}

func TestHeadlessApartmentsNotFoundFails(t *testing.T) {
	srv := mapServer(t, "")
	page := NewPage("map")
	h := headlessHost(t, srv, page)
	dispose, err := h.Mount(context.Background())
	require.NoError(t, err)

	require.Equal(t, StateFailed, h.Wait(waitCtx(t)))
	assert.True(t, maperr.Is(h.Err(), maperr.Network), "got %v", h.Err())
	assert.ErrorContains(t, h.Err(), mapconfig.ApartmentsSourceID)
	assert.ErrorContains(t, h.Err(), "404")

	_, _, err = h.Click(waitCtx(t), 37.6173, 55.7558)
	assert.Error(t, err, "a failed map takes no clicks")

	dispose()
	surface, _ := page.Surface("map")
	assert.False(t, surface.Attached())
}

func TestHeadlessStyleUnavailableFails(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	h := headlessHost(t, srv, NewPage("map"))
	dispose, err := h.Mount(context.Background())
	require.NoError(t, err)
	defer dispose()

	require.Equal(t, StateFailed, h.Wait(waitCtx(t)))
	assert.True(t, maperr.Is(h.Err(), maperr.Network), "got %v", h.Err())
}

func TestHeadlessMissingContainer(t *testing.T) {
	srv := mapServer(t, apartmentsGeoJSON)
	h := headlessHost(t, srv, NewPage("other"))

	dispose, err := h.Mount(context.Background())
	require.Error(t, err)
	assert.True(t, maperr.Is(err, maperr.Config))
	assert.Equal(t, StateFailed, h.State())
	dispose()
}

func TestHeadlessSurfaceReusedAfterDispose(t *testing.T) {
	srv := mapServer(t, apartmentsGeoJSON)
	page := NewPage("map")

	first := headlessHost(t, srv, page)
	disposeFirst, err := first.Mount(context.Background())
	require.NoError(t, err)

	second := headlessHost(t, srv, page)
	_, err = second.Mount(context.Background())
	require.ErrorIs(t, err, ErrSurfaceBusy)

	disposeFirst()
	third := headlessHost(t, srv, page)
	disposeThird, err := third.Mount(context.Background())
	require.NoError(t, err)
	defer disposeThird()
	assert.Equal(t, StateReady, third.Wait(waitCtx(t)))
}
