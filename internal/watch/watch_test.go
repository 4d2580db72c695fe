package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ziadkadry99/livepen/internal/buffer"
	"github.com/ziadkadry99/livepen/internal/compose"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestMatches(t *testing.T) {
	tests := []struct {
		path     string
		patterns []string
		want     bool
	}{
		{"index.html", []string{"**/*.html"}, true},
		{"src/app/main.js", []string{"**/*.js"}, true},
		{"src/app/main.js", []string{"*.js"}, true},
		{"styles/site.css", []string{"**/*.js"}, false},
		{"a.css", nil, false},
	}
	for _, tt := range tests {
		if got := Matches(tt.path, tt.patterns); got != tt.want {
			t.Errorf("Matches(%q, %v) = %v, want %v", tt.path, tt.patterns, got, tt.want)
		}
	}
}

func TestScanFirstMatchPerLanguage(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.html"), "b")
	writeFile(t, filepath.Join(dir, "a.html"), "a")
	writeFile(t, filepath.Join(dir, "css", "site.css"), "p{}")
	writeFile(t, filepath.Join(dir, "node_modules", "lib.js"), "ignored")

	b, err := Scan(dir, DefaultPatterns())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a.html"), b[buffer.HTML])
	assert.Equal(t, filepath.Join(dir, "css", "site.css"), b[buffer.CSS])
	_, bound := b[buffer.JS]
	assert.False(t, bound, "excluded directories must not bind")

	src, err := Load(b)
	require.NoError(t, err)
	assert.Equal(t, compose.Source{HTML: "a", CSS: "p{}"}, src)
}

func TestReadFileRejectsBinary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.js")
	writeFile(t, path, "ab\x00cd")
	_, err := ReadFile(path)
	assert.Error(t, err)
}

func TestWatcherReloadsBuffers(t *testing.T) {
	dir := t.TempDir()
	htmlPath := filepath.Join(dir, "index.html")
	writeFile(t, htmlPath, "<p>one</p>")

	store := buffer.NewStore(compose.Source{})
	w, err := New(dir, DefaultPatterns(), store, nil)
	require.NoError(t, err)
	assert.Equal(t, "<p>one</p>", store.Snapshot().HTML)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	writeFile(t, htmlPath, "<p>two</p>")
	require.Eventually(t, func() bool { return store.Snapshot().HTML == "<p>two</p>" }, 3*time.Second, 10*time.Millisecond)

	jsPath := filepath.Join(dir, "app.js")
	writeFile(t, jsPath, "console.log(1)")
	require.Eventually(t, func() bool { return store.Snapshot().JS == "console.log(1)" }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, jsPath, w.Bindings()[buffer.JS])

	// A second js file does not steal the binding.
	writeFile(t, filepath.Join(dir, "other.js"), "other()")
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, "console.log(1)", store.Snapshot().JS)
}
