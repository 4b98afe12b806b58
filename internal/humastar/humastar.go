// Package humastar lets Huma operations answer Datastar requests.
//
// A Datastar action posts the page's signals as a JSON object (or, for GET,
// as the "datastar" query parameter). Operations take a [SignalsInput],
// return [Handler.Stream], and push fragments and signal patches through
// [SSE]:
//
//	func (h *PopupHandler) Popup(ctx context.Context, in *humastar.SignalsInput) (*huma.StreamResponse, error) {
//	    signals, err := in.Parse()
//	    if err != nil {
//	        return nil, err
//	    }
//	    return h.Stream(func(sse humastar.SSE) {
//	        sse.Fragment(h.Render("popup", p), "#popup")
//	    }), nil
//	}
package humastar

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/Mad0squirrel/MLOps-pet-project/internal/templates"
)

// ChangeEvent is the browser event name carried by [SSE.Notify].
const ChangeEvent = "resource-changed"

// ErrorSignal is the signal holding the last user-visible error.
const ErrorSignal = "error"

// errorFragment is rendered in place of any fragment that fails to render.
const errorFragment = "error-state"

// Handler is embedded by operations that answer with Datastar events.
type Handler struct {
	Renderer *templates.Renderer
}

// Stream wraps fn in a Huma streaming response.
func (h *Handler) Stream(fn func(sse SSE)) *huma.StreamResponse {
	return &huma.StreamResponse{
		Body: func(ctx huma.Context) {
			fn(NewSSE(ctx))
		},
	}
}

// Render renders a named fragment. An unknown fragment or a render failure
// yields the error-state fragment so the target element is never left blank.
func (h *Handler) Render(name string, data any) string {
	if !h.Renderer.Has(name) {
		return h.renderError(fmt.Sprintf("fragment %q is not defined", name))
	}
	html, err := h.Renderer.Render(name, data)
	if err == nil {
		return html
	}
	return h.renderError(err.Error())
}

func (h *Handler) renderError(msg string) string {
	html, _ := h.Renderer.Render(errorFragment, errorData("Render failed", msg))
	return html
}

// Fail shows the error-state fragment at selector and sets the error signal.
func (h *Handler) Fail(sse SSE, selector, title, msg string) {
	sse.Fragment(h.Render(errorFragment, errorData(title, msg)), selector)
	sse.Signals(map[string]any{ErrorSignal: msg})
}

func errorData(title, msg string) map[string]string {
	return map[string]string{"Title": title, "Message": msg}
}

// SSE is a Datastar event writer bound to one Huma response.
type SSE struct {
	*datastar.ServerSentEventGenerator
}

// NewSSE starts a Datastar event stream on a Huma streaming context.
func NewSSE(ctx huma.Context) SSE {
	r, w := humago.Unwrap(ctx)
	return SSE{datastar.NewSSE(w, r)}
}

// Fragment replaces the children of the element at selector.
func (s SSE) Fragment(html, selector string) {
	s.PatchElements(html,
		datastar.WithSelector(selector),
		datastar.WithModeInner(),
	)
}

// Signals merges values into the page signals.
func (s SSE) Signals(values map[string]any) {
	s.MarshalAndPatchSignals(values)
}

// Notify dispatches a [ChangeEvent] browser event describing a data change.
func (s SSE) Notify(resource, action, id string) {
	s.DispatchCustomEvent(ChangeEvent, map[string]any{
		"resource": resource,
		"action":   action,
		"id":       id,
	})
}

// Signals is the decoded signal object of a Datastar request.
type Signals map[string]any

// DecodeSignals decodes a signal object. Numbers are kept exact as
// json.Number until read.
func DecodeSignals(raw []byte) (Signals, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Signals{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var s Signals
	if err := dec.Decode(&s); err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("signals must be a JSON object")
	}
	return s, nil
}

// String returns a string signal, or "" when missing or not a string.
func (s Signals) String(key string) string {
	v, _ := s[key].(string)
	return v
}

// Float returns a finite numeric signal. Inputs bound with data-bind arrive
// as strings, so numeric strings are accepted; "NaN" and "Inf" are not.
func (s Signals) Float(key string) (float64, bool) {
	var f float64
	switch v := s[key].(type) {
	case json.Number:
		n, err := strconv.ParseFloat(v.String(), 64)
		if err != nil {
			return 0, false
		}
		f = n
	case float64:
		f = v
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		f = n
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Coordinates reads a longitude and latitude pair. ok is false unless both
// are numbers within range.
func (s Signals) Coordinates(lonKey, latKey string) (lon, lat float64, ok bool) {
	lon, okLon := s.Float(lonKey)
	lat, okLat := s.Float(latKey)
	if !okLon || !okLat {
		return 0, 0, false
	}
	if lon < -180 || lon > 180 || lat < -90 || lat > 90 {
		return 0, 0, false
	}
	return lon, lat, true
}

// EmptyInput is the input of operations without parameters.
type EmptyInput struct{}

// SignalsInput carries Datastar signals from either the request body or the
// "datastar" query parameter.
type SignalsInput struct {
	Datastar string `query:"datastar" doc:"Signals of a GET action, JSON encoded"`
	RawBody  []byte
}

// Parse decodes the signals, preferring the body. Malformed signals are a
// 400.
func (i *SignalsInput) Parse() (Signals, error) {
	raw := i.RawBody
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = []byte(i.Datastar)
	}
	s, err := DecodeSignals(raw)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid datastar signals: " + err.Error())
	}
	return s, nil
}
