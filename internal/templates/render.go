// Package templates renders the HTML fragments streamed to the viewer over
// Datastar SSE.
package templates

import (
	"bytes"
	"embed"
	"html/template"
	"path/filepath"
	"sync"
)

//go:embed fragments/*.html
var embedded embed.FS

// Renderer executes named fragments. It is safe for concurrent use, and
// Reload swaps the parsed set atomically.
type Renderer struct {
	dir string // empty for the embedded fragments

	mu   sync.RWMutex
	tmpl *template.Template
}

// New parses dir/*.html. An empty dir uses the fragments compiled into the
// binary.
func New(dir string) (*Renderer, error) {
	r := &Renderer{dir: dir}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Default returns a renderer over the embedded fragments.
func Default() *Renderer {
	r, err := New("")
	if err != nil {
		panic(err)
	}
	return r
}

// Dir returns the directory fragments are parsed from, or "" when embedded.
func (r *Renderer) Dir() string {
	return r.dir
}

// Reload re-parses the fragments. On error the previous set stays in use.
func (r *Renderer) Reload() error {
	t := template.New("").Funcs(funcMap)
	var err error
	if r.dir == "" {
		t, err = t.ParseFS(embedded, "fragments/*.html")
	} else {
		t, err = t.ParseGlob(filepath.Join(r.dir, "*.html"))
	}
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.tmpl = t
	r.mu.Unlock()
	return nil
}

// Has reports whether a fragment called name is defined.
func (r *Renderer) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tmpl.Lookup(name) != nil
}

// Render executes the named fragment.
func (r *Renderer) Render(name string, data any) (string, error) {
	r.mu.RLock()
	t := r.tmpl
	r.mu.RUnlock()

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
