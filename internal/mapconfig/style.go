package mapconfig

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/Mad0squirrel/MLOps-pet-project/internal/maperr"
)

// KeyPlaceholder is replaced by the API key in a style URL template.
const KeyPlaceholder = "{key}"

// StyleURL builds the remote style URL from a base map URL and API key.
// A {key} placeholder in base is substituted; otherwise key is appended as
// the "key" query parameter. An empty key leaves the URL untouched.
func StyleURL(base, key string) (string, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		return "", maperr.Configf("style url", "base map url is empty")
	}

	if strings.Contains(base, KeyPlaceholder) {
		if key == "" {
			return "", maperr.Configf("style url", "base map url %q needs an api key", base)
		}
		base = strings.ReplaceAll(base, KeyPlaceholder, url.QueryEscape(key))
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", maperr.New(maperr.Config, "style url", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", maperr.Configf("style url", "unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", maperr.Configf("style url", "missing host in %q", base)
	}

	if key != "" && !u.Query().Has("key") {
		q := u.Query()
		q.Set("key", key)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Compose appends sources and layers to a decoded style document and returns
// a new document. The input is not modified. It fails if the base style
// already uses one of the ids.
func Compose(base map[string]any, sources []SourceEntry, layers []LayerSpec) (map[string]any, error) {
	if base == nil {
		return nil, maperr.Dataf("compose style", "style document is empty")
	}
	if _, ok := base["version"]; !ok {
		return nil, maperr.Dataf("compose style", "style document has no version")
	}

	out := make(map[string]any, len(base)+2)
	for k, v := range base {
		out[k] = v
	}

	baseSources, _ := base["sources"].(map[string]any)
	mergedSources := make(map[string]any, len(baseSources)+len(sources))
	for k, v := range baseSources {
		mergedSources[k] = v
	}
	for _, s := range sources {
		if _, dup := mergedSources[s.ID]; dup {
			return nil, maperr.Configf("compose style", "source %q already defined", s.ID)
		}
		mergedSources[s.ID] = s.Spec
	}
	out["sources"] = mergedSources

	baseLayers, _ := base["layers"].([]any)
	seen := make(map[string]bool, len(baseLayers))
	mergedLayers := make([]any, 0, len(baseLayers)+len(layers))
	for _, l := range baseLayers {
		if m, ok := l.(map[string]any); ok {
			if id, ok := m["id"].(string); ok {
				seen[id] = true
			}
		}
		mergedLayers = append(mergedLayers, l)
	}
	for _, l := range layers {
		if seen[l.ID] {
			return nil, maperr.Configf("compose style", "layer %q already defined", l.ID)
		}
		if _, ok := mergedSources[l.Source]; !ok {
			return nil, maperr.Configf("compose style", "layer %q references unknown source %q", l.ID, l.Source)
		}
		seen[l.ID] = true
		mergedLayers = append(mergedLayers, l)
	}
	out["layers"] = mergedLayers

	return out, nil
}

// Validate checks that layer ids are unique and every layer renders one of
// the given sources.
func Validate(sources []SourceEntry, layers []LayerSpec) error {
	known := make(map[string]bool, len(sources))
	for _, s := range sources {
		if known[s.ID] {
			return fmt.Errorf("duplicate source id %q", s.ID)
		}
		known[s.ID] = true
	}
	ids := make(map[string]bool, len(layers))
	for _, l := range layers {
		if ids[l.ID] {
			return fmt.Errorf("duplicate layer id %q", l.ID)
		}
		ids[l.ID] = true
		if !known[l.Source] {
			return fmt.Errorf("layer %q references unknown source %q", l.ID, l.Source)
		}
	}
	return nil
}
