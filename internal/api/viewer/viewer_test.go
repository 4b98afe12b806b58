package viewer

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mad0squirrel/MLOps-pet-project/internal/service"
	"github.com/Mad0squirrel/MLOps-pet-project/internal/templates"
)

const apartments = `{"type": "FeatureCollection", "features": [
  {"type": "Feature", "geometry": {"type": "Point", "coordinates": [37.6173, 55.7558]},
   "properties": {"house": "Red Square 1", "apartment": "12", "price": 30000000}},
  {"type": "Feature", "geometry": {"type": "Point", "coordinates": [37.6173, 55.7558]},
   "properties": {"house": "Red Square 1", "apartment": "7", "price": 25000000}}
]}`

func newAPI(t *testing.T, register func(huma.API)) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	api := humago.New(mux, huma.DefaultConfig("viewer test", "1.0.0"))
	register(api)
	return mux
}

func postPopup(t *testing.T, svc *service.ApartmentService, body string) string {
	t.Helper()
	h := NewPopupHandler(svc, templates.Default())
	mux := newAPI(t, h.RegisterRoutes)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/viewer/popup", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return rec.Body.String()
}

func loadedService(t *testing.T) *service.ApartmentService {
	t.Helper()
	svc := service.NewApartmentService("")
	require.NoError(t, svc.LoadBytes([]byte(apartments)))
	return svc
}

func TestPopupHit(t *testing.T) {
	out := postPopup(t, loadedService(t), `{"longitude": 37.6173, "latitude": 55.7558}`)

	assert.Contains(t, out, "datastar-patch-elements")
	assert.Contains(t, out, PopupSelector)
	assert.Contains(t, out, "Red Square 1")
	assert.Contains(t, out, "30 000 000")
	assert.Less(t, strings.Index(out, "кв. 12"), strings.Index(out, "кв. 7"))
	assert.Contains(t, out, "datastar-patch-signals")
	assert.Contains(t, out, `"popupOpen":true`)
}

func TestPopupMiss(t *testing.T) {
	out := postPopup(t, loadedService(t), `{"longitude": 30.3, "latitude": "59.9"}`)
	assert.Contains(t, out, "No apartments here")
	assert.Contains(t, out, `"popupOpen":false`)
}

func TestPopupNotLoaded(t *testing.T) {
	out := postPopup(t, service.NewApartmentService(""), `{"longitude": 37.6, "latitude": 55.7}`)
	assert.Contains(t, out, "error-state")
	assert.Contains(t, out, "not loaded")
}

func TestPopupMissingSignals(t *testing.T) {
	out := postPopup(t, loadedService(t), `{"longitude": 37.6}`)
	assert.Contains(t, out, "error-state")
	assert.Contains(t, out, `"error":`)
}

func TestPopupNaNCoordinates(t *testing.T) {
	out := postPopup(t, loadedService(t), `{"longitude": "NaN", "latitude": "55.7558"}`)
	assert.Contains(t, out, "error-state")
	assert.NotContains(t, out, "Red Square 1")
	assert.NotContains(t, out, `"popupOpen":true`)
}

func TestPopupInvalidBody(t *testing.T) {
	h := NewPopupHandler(loadedService(t), templates.Default())
	mux := newAPI(t, h.RegisterRoutes)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/viewer/popup", strings.NewReader(`{`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEventsStream(t *testing.T) {
	bus := service.NewEventBus()
	mux := newAPI(t, NewEventHandler(bus).RegisterRoutes)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/viewer/events", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	// The handler subscribes after the response starts, so keep publishing
	// until the first event comes through.
	go func() {
		tick := time.NewTicker(10 * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
				bus.Publish(service.Event{Resource: "apartments", Action: "reloaded"})
			}
		}
	}()

	scanner := bufio.NewScanner(resp.Body)
	found := false
	for scanner.Scan() {
		if strings.Contains(scanner.Text(), "resource-changed") {
			found = true
			break
		}
	}
	cancel()
	assert.True(t, found, "no resource-changed event received")
}
