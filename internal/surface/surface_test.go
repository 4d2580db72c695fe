package surface_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ziadkadry99/livepen/internal/metrics"
	"github.com/ziadkadry99/livepen/internal/surface"
	"github.com/ziadkadry99/livepen/internal/surface/surfacetest"
)

func TestSandboxPolicy(t *testing.T) {
	tokens := surface.SandboxTokens()
	assert.ElementsMatch(t, []string{
		"allow-scripts", "allow-same-origin", "allow-forms", "allow-popups", "allow-modals",
	}, tokens)
	for _, tok := range tokens {
		assert.False(t, strings.Contains(tok, "top-navigation"), tok)
	}
}

func TestParseMode(t *testing.T) {
	m, err := surface.ParseMode("Responsive")
	require.NoError(t, err)
	assert.Equal(t, surface.Responsive, m)
	_, err = surface.ParseMode("fullscreen")
	assert.Error(t, err)
}

func TestRenderSetsLoadingUntilCompletion(t *testing.T) {
	ec := surfacetest.New()
	s := surface.New(ec, surface.Standard)

	var settled []surface.Generation
	s.OnSettled(func(g surface.Generation) { settled = append(settled, g) })

	require.NoError(t, s.Render(1, "<p>one</p>"))
	assert.True(t, s.IsLoading())
	doc, gen := s.LastRendered()
	assert.Empty(t, doc)
	assert.Zero(t, gen)

	ec.Complete(1)
	assert.False(t, s.IsLoading())
	doc, gen = s.LastRendered()
	assert.Equal(t, "<p>one</p>", doc)
	assert.Equal(t, surface.Generation(1), gen)
	assert.Equal(t, []surface.Generation{1}, settled)
}

func TestStaleCompletionIgnored(t *testing.T) {
	m := metrics.New()
	ec := surfacetest.New()
	s := surface.New(ec, surface.Standard, surface.WithMetrics(m))

	require.NoError(t, s.Render(1, "first"))
	require.NoError(t, s.Render(2, "second"))

	ec.Complete(1)
	assert.True(t, s.IsLoading(), "completion for a superseded generation must not clear loading")
	doc, _ := s.LastRendered()
	assert.Empty(t, doc)

	ec.Complete(2)
	assert.False(t, s.IsLoading())
	doc, gen := s.LastRendered()
	assert.Equal(t, "second", doc)
	assert.Equal(t, surface.Generation(2), gen)

	// A second ack for the same generation changes nothing.
	ec.Complete(2)
	assert.Equal(t, 1.0, counterValue(t, m, "livepen_stale_completions_total"))
}

func counterValue(t *testing.T, m *metrics.Metrics, name string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == name {
			return f.GetMetric()[0].GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func TestMissingCompletionStaysLoading(t *testing.T) {
	ec := surfacetest.New()
	s := surface.New(ec, surface.Standard)
	require.NoError(t, s.Render(1, "doc"))
	time.Sleep(10 * time.Millisecond)
	assert.True(t, s.IsLoading())
}

func TestRenderErrorKeepsLoading(t *testing.T) {
	ec := surfacetest.New()
	ec.Err = errors.New("boom")
	s := surface.New(ec, surface.Standard)

	err := s.Render(1, "doc")
	require.Error(t, err)
	assert.True(t, s.IsLoading())
	assert.Equal(t, "doc", s.Export())
}

func TestExportReturnsLatestRequest(t *testing.T) {
	ec := surfacetest.New()
	s := surface.New(ec, surface.Standard)
	require.NoError(t, s.Render(1, "a"))
	require.NoError(t, s.Render(2, "b"))
	assert.Equal(t, "b", s.Export())
	assert.Equal(t, surface.Generation(2), s.Generation())
}

func TestDestroy(t *testing.T) {
	ec := surfacetest.New()
	s := surface.New(ec, surface.Responsive)
	require.NoError(t, s.Render(1, "a"))

	require.NoError(t, s.Destroy())
	require.NoError(t, s.Destroy())
	assert.True(t, ec.Destroyed())

	ec.Complete(1)
	assert.True(t, s.IsLoading())
	assert.ErrorIs(t, s.Render(2, "b"), surface.ErrDestroyed)
	_, err := s.OpenInNewContext(context.Background())
	assert.ErrorIs(t, err, surface.ErrDestroyed)
}

func TestOpenInNewContext(t *testing.T) {
	blobs := surface.NewBlobs("/blob/", nil)
	opener := &surfacetest.Opener{}
	ec := surfacetest.New()
	s := surface.New(ec, surface.Standard, surface.WithOpener(blobs, opener, 20*time.Millisecond))

	require.NoError(t, s.Render(1, "<p>doc</p>"))
	url, err := s.OpenInNewContext(context.Background())
	require.NoError(t, err)

	require.Len(t, opener.URLs, 1)
	assert.Equal(t, url, opener.URLs[0])
	require.True(t, strings.HasPrefix(url, "/blob/"))

	doc, ok := blobs.Get(strings.TrimPrefix(url, "/blob/"))
	require.True(t, ok, "document must stay loadable during the grace period")
	assert.Equal(t, "<p>doc</p>", doc)

	assert.Eventually(t, func() bool { return blobs.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestOpenInNewContextFailureRevokes(t *testing.T) {
	blobs := surface.NewBlobs("/blob/", nil)
	opener := &surfacetest.Opener{Err: errors.New("no viewer")}
	s := surface.New(surfacetest.New(), surface.Standard, surface.WithOpener(blobs, opener, time.Minute))

	_, err := s.OpenInNewContext(context.Background())
	require.Error(t, err)
	assert.Zero(t, blobs.Len())
}

func TestOpenInNewContextWithoutOpener(t *testing.T) {
	s := surface.New(surfacetest.New(), surface.Standard)
	_, err := s.OpenInNewContext(context.Background())
	assert.ErrorIs(t, err, surface.ErrNoOpener)
}

func TestSynchronousCompletionDoesNotDeadlock(t *testing.T) {
	ec := surfacetest.New()
	ec.AutoComplete = true
	s := surface.New(ec, surface.Standard)
	require.NoError(t, s.Render(1, "a"))
	assert.False(t, s.IsLoading())
}
