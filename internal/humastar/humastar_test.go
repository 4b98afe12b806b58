package humastar

import (
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mad0squirrel/MLOps-pet-project/internal/templates"
)

func TestDecodeSignals(t *testing.T) {
	s, err := DecodeSignals([]byte(`{"longitude": 37.6173, "latitude": "55.7558", "house": "Arbat 10", "open": true}`))
	require.NoError(t, err)

	lon, ok := s.Float("longitude")
	assert.True(t, ok)
	assert.InDelta(t, 37.6173, lon, 1e-9)

	lat, ok := s.Float("latitude")
	assert.True(t, ok)
	assert.InDelta(t, 55.7558, lat, 1e-9)

	_, ok = s.Float("house")
	assert.False(t, ok)
	_, ok = s.Float("open")
	assert.False(t, ok)
	_, ok = s.Float("missing")
	assert.False(t, ok)

	assert.Equal(t, "Arbat 10", s.String("house"))
	assert.Equal(t, "", s.String("longitude"))
}

func TestDecodeSignalsRejects(t *testing.T) {
	for _, raw := range []string{`{`, `null`, `[1, 2]`, `"x"`} {
		_, err := DecodeSignals([]byte(raw))
		assert.Error(t, err, raw)
	}

	s, err := DecodeSignals([]byte("  "))
	require.NoError(t, err)
	assert.Empty(t, s)
}

func TestCoordinates(t *testing.T) {
	tests := []struct {
		raw string
		ok  bool
	}{
		{`{"lon": 37.6, "lat": 55.7}`, true},
		{`{"lon": "37.6", "lat": "55.7"}`, true},
		{`{"lon": 181, "lat": 55.7}`, false},
		{`{"lon": 37.6, "lat": -91}`, false},
		{`{"lon": 37.6}`, false},
		{`{"lon": "", "lat": ""}`, false},
		{`{"lon": "NaN", "lat": "55.7"}`, false},
		{`{"lon": "37.6", "lat": "nan"}`, false},
		{`{"lon": "Inf", "lat": "55.7"}`, false},
		{`{"lon": "-Infinity", "lat": "55.7"}`, false},
		{`{"lon": 1e400, "lat": 55.7}`, false},
	}
	for _, tt := range tests {
		s, err := DecodeSignals([]byte(tt.raw))
		require.NoError(t, err)
		_, _, ok := s.Coordinates("lon", "lat")
		assert.Equal(t, tt.ok, ok, tt.raw)
	}
}

func TestSignalsInputParse(t *testing.T) {
	in := &SignalsInput{RawBody: []byte(`{"a": "body"}`), Datastar: `{"a": "query"}`}
	s, err := in.Parse()
	require.NoError(t, err)
	assert.Equal(t, "body", s.String("a"))

	in = &SignalsInput{Datastar: `{"a": "query"}`}
	s, err = in.Parse()
	require.NoError(t, err)
	assert.Equal(t, "query", s.String("a"))

	in = &SignalsInput{RawBody: []byte(`{`)}
	_, err = in.Parse()
	var se huma.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.GetStatus())
}

func TestRenderFallsBackToErrorState(t *testing.T) {
	h := &Handler{Renderer: templates.Default()}

	html := h.Render("missing-fragment", nil)
	assert.Contains(t, html, `class="error-state"`)
	assert.Contains(t, html, "missing-fragment")

	html = h.Render(errorFragment, errorData("Oops", "broken"))
	assert.Contains(t, html, "Oops")
	assert.Contains(t, html, "broken")
}
