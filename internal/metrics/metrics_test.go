package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiddlewareCountsByPathAndCode(t *testing.T) {
	h := Middleware(func(*http.Request) string { return "/test" })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	before := testutil.ToFloat64(RequestsTotal.WithLabelValues("/test", "404"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
	after := testutil.ToFloat64(RequestsTotal.WithLabelValues("/test", "404"))

	assert.Equal(t, before+1, after)
}

func TestHandlerServesMetrics(t *testing.T) {
	PopupLookupsTotal.WithLabelValues("hit").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "aptmap_popup_lookups_total")
}
