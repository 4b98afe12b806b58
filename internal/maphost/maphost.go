// Package maphost owns the lifecycle of one map widget: construct on mount,
// attach sources and layers once the style loads, resolve clicks into
// apartment popups, and tear everything down on dispose.
package maphost

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"sync"

	"github.com/Mad0squirrel/MLOps-pet-project/internal/mapconfig"
	"github.com/Mad0squirrel/MLOps-pet-project/internal/maperr"
	"github.com/Mad0squirrel/MLOps-pet-project/internal/metrics"
	"github.com/Mad0squirrel/MLOps-pet-project/internal/popup"
	"github.com/Mad0squirrel/MLOps-pet-project/internal/service"
)

// State is the lifecycle state of a Host.
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
	StateFailed
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateDisposed:
		return "disposed"
	}
	return "unknown"
}

// settled reports whether Wait should stop at s.
func (s State) settled() bool {
	return s == StateReady || s == StateFailed || s == StateDisposed
}

// Config is everything a Host needs to build its widget.
type Config struct {
	StyleURL    string
	Center      [2]float64 // longitude, latitude
	Zoom        float64
	Container   string
	DataBaseURL string
	Districts   bool
	MaxPrice    float64 // scales the heatmap weight; 0 weights every point equally
}

// Validate reports configuration errors before any widget is built.
func (c Config) Validate() error {
	if c.StyleURL == "" {
		return maperr.Configf("validate config", "style url is empty")
	}
	u, err := url.Parse(c.StyleURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return maperr.Configf("validate config", "style url %q is not an absolute http(s) url", c.StyleURL)
	}
	if c.DataBaseURL != "" {
		if u, err := url.Parse(c.DataBaseURL); err != nil || !u.IsAbs() {
			return maperr.Configf("validate config", "data base url %q is not absolute", c.DataBaseURL)
		}
	}
	lon, lat := c.Center[0], c.Center[1]
	if math.IsNaN(lon) || math.IsNaN(lat) || lon < -180 || lon > 180 || lat < -90 || lat > 90 {
		return maperr.Configf("validate config", "center %v is out of range", c.Center)
	}
	if c.Zoom < 0 || c.Zoom > 24 {
		return maperr.Configf("validate config", "zoom %v is outside 0..24", c.Zoom)
	}
	if c.Container == "" {
		return maperr.Configf("validate config", "container is empty")
	}
	return nil
}

// StateChange is the payload of "state" events on the bus.
type StateChange struct {
	State State
	Err   error
}

// Option configures a Host.
type Option func(*Host)

// WithBus publishes lifecycle and popup events on bus.
func WithBus(bus *service.EventBus) Option {
	return func(h *Host) { h.bus = bus }
}

// WithLogger sets the logger; the default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(h *Host) { h.log = l }
}

// Host manages one widget instance. All widget events are handled on a single
// goroutine; observers may be called from any goroutine.
type Host struct {
	cfg     Config
	factory WidgetFactory
	bus     *service.EventBus
	log     *slog.Logger

	mu        sync.RWMutex
	disposing bool
	state     State
	err       error
	changed   chan struct{}
	mounted   bool
	widget    Widget
	cancel    context.CancelFunc
	done      chan struct{}
	current   *popup.ApartmentPopup
	clicks    uint64
	clicked   chan struct{}
	disposer  sync.Once

	// owned by the event loop
	styleLoaded bool
	pending     map[string]bool
}

// New validates cfg and returns an unmounted host.
func New(cfg Config, factory WidgetFactory, opts ...Option) (*Host, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if factory == nil {
		return nil, maperr.Configf("new host", "widget factory is nil")
	}
	h := &Host{
		cfg:     cfg,
		factory: factory,
		bus:     service.NewEventBus(),
		log:     slog.Default(),
		changed: make(chan struct{}),
		clicked: make(chan struct{}),
		pending: map[string]bool{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Mount constructs the widget and starts loading the style. The returned
// dispose func is never nil and must be called on every teardown path,
// including when Mount returns an error.
func (h *Host) Mount(ctx context.Context) (dispose func(), err error) {
	h.mu.Lock()
	if h.mounted || h.state == StateDisposed {
		st := h.state
		h.mu.Unlock()
		return h.Dispose, fmt.Errorf("host cannot mount in state %s", st)
	}
	h.mounted = true
	h.mu.Unlock()

	w, err := h.factory(WidgetOptions{
		Container:   h.cfg.Container,
		StyleURL:    h.cfg.StyleURL,
		Center:      h.cfg.Center,
		Zoom:        h.cfg.Zoom,
		DataBaseURL: h.cfg.DataBaseURL,
	})
	if err != nil {
		h.fail(err)
		return h.Dispose, err
	}

	started := false
	loopCtx, cancel := context.WithCancel(ctx)
	defer func() {
		if !started {
			cancel()
			w.Remove()
		}
	}()

	events, err := w.Start(loopCtx)
	if err != nil {
		h.fail(err)
		return h.Dispose, err
	}

	h.mu.Lock()
	if h.state == StateDisposed {
		h.mu.Unlock()
		return h.Dispose, errors.New("host disposed during mount")
	}
	h.widget = w
	h.cancel = cancel
	h.done = make(chan struct{})
	done := h.done
	h.mu.Unlock()

	started = true
	h.setState(StateLoading, nil)
	go h.loop(loopCtx, events, done)
	return h.Dispose, nil
}

// Dispose tears the widget down. It is idempotent and safe in any state.
func (h *Host) Dispose() {
	h.disposer.Do(func() {
		h.mu.Lock()
		h.disposing = true
		cancel, w, done := h.cancel, h.widget, h.done
		h.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if done != nil {
			<-done
		}
		if w != nil {
			w.Remove()
		}

		h.mu.Lock()
		h.widget = nil
		h.current = nil
		h.mu.Unlock()
		h.setState(StateDisposed, nil)
	})
}

// State returns the current lifecycle state.
func (h *Host) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// Err returns the error that moved the host to StateFailed.
func (h *Host) Err() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.err
}

// Popup returns the popup opened by the last click, if any.
func (h *Host) Popup() (popup.ApartmentPopup, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.current == nil {
		return popup.ApartmentPopup{}, false
	}
	return *h.current, true
}

// Layers returns the layer ids registered on the widget.
func (h *Host) Layers() []string {
	h.mu.RLock()
	w := h.widget
	h.mu.RUnlock()
	if w == nil {
		return nil
	}
	return w.Layers()
}

// Wait blocks until the host is ready, failed or disposed, or ctx ends, and
// returns the state at that moment.
func (h *Host) Wait(ctx context.Context) State {
	for {
		h.mu.RLock()
		st, ch := h.state, h.changed
		h.mu.RUnlock()
		if st.settled() {
			return st
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return h.State()
		}
	}
}

// Subscribe returns a channel of lifecycle ("state") and "popup" events.
func (h *Host) Subscribe() chan service.Event {
	return h.bus.Subscribe()
}

// Unsubscribe stops delivery to ch and closes it.
func (h *Host) Unsubscribe(ch chan service.Event) {
	h.bus.Unsubscribe(ch)
}

// Click simulates a user click at (lon, lat) and waits for the host to
// resolve it. It only works once the host is ready.
func (h *Host) Click(ctx context.Context, lon, lat float64) (popup.ApartmentPopup, bool, error) {
	h.mu.RLock()
	st, w, seq, ch := h.state, h.widget, h.clicks, h.clicked
	h.mu.RUnlock()
	if st != StateReady || w == nil {
		return popup.ApartmentPopup{}, false, fmt.Errorf("map is %s, not ready", st)
	}

	w.Click(lon, lat)
	for {
		select {
		case <-ch:
		case <-ctx.Done():
			return popup.ApartmentPopup{}, false, ctx.Err()
		}
		h.mu.RLock()
		resolved, next := h.clicks > seq, h.clicked
		h.mu.RUnlock()
		if resolved {
			p, ok := h.Popup()
			return p, ok, nil
		}
		ch = next
	}
}

func (h *Host) loop(ctx context.Context, events <-chan Event, done chan struct{}) {
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			h.fail(fmt.Errorf("map event handler panicked: %v", r))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			h.interrupted(ctx.Err())
			return
		case ev, ok := <-events:
			if !ok {
				h.interrupted(errors.New("event stream closed"))
				return
			}
			if ctx.Err() != nil {
				h.interrupted(ctx.Err())
				return
			}
			h.handle(ev)
		}
	}
}

// interrupted fails a live host whose event loop stopped for any reason
// other than Dispose, so it never stays loading with nobody listening.
func (h *Host) interrupted(cause error) {
	h.mu.RLock()
	disposing, st := h.disposing, h.state
	h.mu.RUnlock()
	if disposing || (st != StateLoading && st != StateReady) {
		return
	}
	h.fail(maperr.New(maperr.Network, "widget events", cause))
}

func (h *Host) handle(ev Event) {
	st := h.State()
	if st == StateFailed || st == StateDisposed {
		return
	}

	switch ev.Type {
	case EventStyleLoad:
		if st != StateLoading || h.styleLoaded {
			return
		}
		h.styleLoaded = true
		if err := h.attach(); err != nil {
			h.fail(err)
		}

	case EventSourceLoaded:
		if !h.styleLoaded || !h.pending[ev.SourceID] {
			return
		}
		if ev.SourceID == mapconfig.ApartmentsSourceID {
			for i, f := range ev.Features {
				if _, err := popup.ApartmentFromFeature(f); err != nil {
					h.fail(fmt.Errorf("%s feature %d: %w", ev.SourceID, i, err))
					return
				}
			}
		}
		delete(h.pending, ev.SourceID)
		if len(h.pending) == 0 {
			if err := h.registerHandlers(); err != nil {
				h.fail(err)
				return
			}
			h.setState(StateReady, nil)
		}

	case EventError:
		err := ev.Err
		if err == nil {
			err = errors.New("unknown map error")
		}
		if ev.SourceID != "" {
			err = fmt.Errorf("source %s: %w", ev.SourceID, err)
		}
		h.fail(err)

	case EventClick:
		if st != StateReady {
			return
		}
		h.resolveClick(ev)
	}
}

// attach adds every source, then every layer. Called once, after style load.
func (h *Host) attach() error {
	h.mu.RLock()
	w := h.widget
	h.mu.RUnlock()

	sources := mapconfig.SourceSpecs(h.cfg.Districts)
	layers := mapconfig.Layers(h.cfg.Districts, h.cfg.MaxPrice)
	if err := mapconfig.Validate(sources, layers); err != nil {
		return maperr.New(maperr.Config, "attach", err)
	}
	for _, src := range sources {
		if err := w.AddSource(src.ID, src.Spec); err != nil {
			return fmt.Errorf("add source %s: %w", src.ID, err)
		}
		h.pending[src.ID] = true
	}
	for _, layer := range layers {
		if err := w.AddLayer(layer); err != nil {
			return fmt.Errorf("add layer %s: %w", layer.ID, err)
		}
	}
	h.log.Debug("map_attached", "container", h.cfg.Container, "sources", len(h.pending))
	return nil
}

func (h *Host) registerHandlers() error {
	h.mu.RLock()
	w := h.widget
	h.mu.RUnlock()

	for _, id := range mapconfig.InteractiveLayerIDs() {
		if err := w.OnClick(id); err != nil {
			return fmt.Errorf("register click on %s: %w", id, err)
		}
	}
	return nil
}

func (h *Host) resolveClick(ev Event) {
	apts := make([]popup.Apartment, 0, len(ev.Features))
	for _, f := range ev.Features {
		if a, err := popup.ApartmentFromFeature(f); err == nil {
			apts = append(apts, a)
		}
	}

	p, ok := popup.At(ev.Lon, ev.Lat, apts)

	h.mu.Lock()
	if ok {
		h.current = &p
	} else {
		h.current = nil
	}
	h.clicks++
	close(h.clicked)
	h.clicked = make(chan struct{})
	h.mu.Unlock()

	if ok {
		metrics.PopupLookupsTotal.WithLabelValues("hit").Inc()
		h.bus.Publish(service.Event{Resource: "map", Action: "popup", ID: h.cfg.Container, Payload: p})
	} else {
		metrics.PopupLookupsTotal.WithLabelValues("miss").Inc()
	}
}

func (h *Host) fail(err error) {
	h.setState(StateFailed, err)
}

// setState moves the host to s. Disposed is final; Failed only yields to
// Disposed.
func (h *Host) setState(s State, err error) {
	h.mu.Lock()
	if h.state == StateDisposed || (h.state == StateFailed && s != StateDisposed) || h.state == s {
		h.mu.Unlock()
		return
	}
	h.state = s
	if s == StateFailed {
		h.err = err
	}
	close(h.changed)
	h.changed = make(chan struct{})
	h.mu.Unlock()

	metrics.HostTransitionsTotal.WithLabelValues(s.String()).Inc()
	if err != nil {
		h.log.Warn("host_state", "container", h.cfg.Container, "state", s.String(), "kind", maperr.KindOf(err).String(), "err", err)
	} else {
		h.log.Info("host_state", "container", h.cfg.Container, "state", s.String())
	}
	h.bus.Publish(service.Event{Resource: "map", Action: "state", ID: h.cfg.Container, Payload: StateChange{State: s, Err: err}})
}
