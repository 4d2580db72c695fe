// Package starter provides the built-in starter templates and the buffers of
// a fresh pen.
package starter

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"gopkg.in/yaml.v3"

	"github.com/ziadkadry99/livepen/internal/compose"
)

//go:embed templates.yaml
var templatesYAML []byte

// Template is a named starting point for a pen.
type Template struct {
	ID          string `yaml:"id" json:"id"`
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description" json:"description"`
	Category    string `yaml:"category" json:"category"`
	HTML        string `yaml:"html" json:"html"`
	CSS         string `yaml:"css" json:"css"`
	JS          string `yaml:"js" json:"js"`
}

// Source returns the template's buffers.
func (t Template) Source() compose.Source {
	return compose.Source{HTML: t.HTML, CSS: t.CSS, JS: t.JS}
}

var (
	loadOnce  sync.Once
	templates []Template
	loadErr   error
)

func load() ([]Template, error) {
	loadOnce.Do(func() {
		if err := yaml.Unmarshal(templatesYAML, &templates); err != nil {
			loadErr = fmt.Errorf("parsing starter templates: %w", err)
		}
	})
	return templates, loadErr
}

// All returns every template in display order.
func All() []Template {
	ts, err := load()
	if err != nil {
		panic(err)
	}
	out := make([]Template, len(ts))
	copy(out, ts)
	return out
}

// Get looks a template up by id.
func Get(id string) (Template, bool) {
	for _, t := range All() {
		if t.ID == id {
			return t, true
		}
	}
	return Template{}, false
}

// Default is the content of a new, blank pen.
func Default() compose.Source {
	return compose.Source{
		HTML: "<div class=\"container\">\n  <h1>Hello LivePen!</h1>\n  <p>Start editing to see some magic happen</p>\n</div>",
		CSS:  ".container {\n  font-family: sans-serif;\n  text-align: center;\n  padding: 20px;\n}\n\nh1 {\n  color: #3b82f6;\n}\n\np {\n  color: #666;\n}",
		JS:   "console.log(\"Hello from JavaScript!\");",
	}
}

// RegisterRoutes mounts GET /api/templates, optionally filtered by ?category=.
func RegisterRoutes(r chi.Router) {
	r.Get("/api/templates", func(w http.ResponseWriter, r *http.Request) {
		category := r.URL.Query().Get("category")
		out := []Template{}
		for _, t := range All() {
			if category == "" || category == "all" || t.Category == category {
				out = append(out, t)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	})
}
