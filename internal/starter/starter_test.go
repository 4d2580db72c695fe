package starter

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestTemplatesLoad(t *testing.T) {
	all := All()
	want := []string{"responsive-landing", "animated-card", "interactive-form"}
	if len(all) != len(want) {
		t.Fatalf("expected %d templates, got %d", len(want), len(all))
	}
	for i, id := range want {
		if all[i].ID != id {
			t.Errorf("template %d = %q, want %q", i, all[i].ID, id)
		}
		if all[i].HTML == "" || all[i].CSS == "" || all[i].JS == "" {
			t.Errorf("template %q has an empty buffer", id)
		}
	}
}

func TestGet(t *testing.T) {
	tpl, ok := Get("animated-card")
	if !ok {
		t.Fatal("animated-card not found")
	}
	if !strings.Contains(tpl.Source().HTML, "card") {
		t.Errorf("unexpected html %q", tpl.HTML)
	}
	if _, ok := Get("nope"); ok {
		t.Error("unknown template found")
	}
}

func TestAllReturnsCopy(t *testing.T) {
	a := All()
	a[0].Title = "changed"
	if All()[0].Title == "changed" {
		t.Error("All() exposed internal slice")
	}
}

func TestDefault(t *testing.T) {
	src := Default()
	if !strings.Contains(src.HTML, "Hello LivePen!") || src.JS == "" {
		t.Errorf("unexpected default %+v", src)
	}
}

func TestRouteFiltersByCategory(t *testing.T) {
	r := chi.NewRouter()
	RegisterRoutes(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/templates?category=interactive", nil))
	var got []Template
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].ID != "interactive-form" {
		t.Errorf("unexpected filter result %+v", got)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/templates", nil))
	json.Unmarshal(w.Body.Bytes(), &got)
	if len(got) != 3 {
		t.Errorf("expected 3 templates, got %d", len(got))
	}
}
