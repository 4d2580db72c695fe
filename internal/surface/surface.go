// Package surface keeps one sandboxed execution context in sync with the most
// recently requested composed document.
package surface

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ziadkadry99/livepen/internal/logging"
	"github.com/ziadkadry99/livepen/internal/metrics"
)

// Generation tags a composition request. Generations only grow; a load
// completion is honoured only for the generation most recently requested.
type Generation uint64

// Mode is the hosting container a surface lives in.
type Mode string

const (
	Standard   Mode = "standard"
	Responsive Mode = "responsive"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case Standard:
		return Standard, nil
	case Responsive:
		return Responsive, nil
	}
	return "", fmt.Errorf("invalid preview mode %q: must be standard or responsive", s)
}

// SandboxPolicy is the iframe sandbox attribute every host must apply. It
// never grants top-level navigation.
const SandboxPolicy = "allow-scripts allow-same-origin allow-forms allow-popups allow-modals"

// SandboxTokens returns the individual permissions in SandboxPolicy.
func SandboxTokens() []string {
	return strings.Fields(SandboxPolicy)
}

// ExecutionContext is the capability-scoped host a document runs in: a
// sandboxed iframe in a browser, or an in-process runtime.
type ExecutionContext interface {
	// SetContent replaces the context's content wholesale.
	SetContent(gen Generation, document string) error
	// OnLoadComplete registers the callback fired when content for a
	// generation has finished loading. It may run on any goroutine.
	OnLoadComplete(fn func(Generation))
	// Destroy releases the context. No callbacks fire afterwards.
	Destroy() error
}

var (
	// ErrDestroyed is returned by operations on a destroyed surface.
	ErrDestroyed = errors.New("render surface destroyed")
	// ErrNoOpener is returned by OpenInNewContext when no host can open windows.
	ErrNoOpener = errors.New("no new-context opener configured")
)

// BlobRegistry materializes documents as short-lived loadable resources.
type BlobRegistry interface {
	Create(document string) (url, id string)
	Revoke(id string)
}

// Opener asks the host environment to open url in a new top-level context.
type Opener interface {
	Open(ctx context.Context, url string) error
}

// DefaultBlobGrace is how long an opened document stays loadable.
const DefaultBlobGrace = 5 * time.Second

// Surface owns exactly one ExecutionContext.
type Surface struct {
	mu sync.Mutex

	ec        ExecutionContext
	mode      Mode
	destroyed bool

	expected    Generation
	requested   string
	loading     bool
	rendered    string
	renderedGen Generation

	onSettled func(Generation)

	blobs  BlobRegistry
	opener Opener
	grace  time.Duration

	log     *zap.Logger
	metrics *metrics.Metrics
}

// Option configures a Surface.
type Option func(*Surface)

// WithLogger sets the surface logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Surface) { s.log = logging.OrNop(l) }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Surface) { s.metrics = m }
}

// WithOpener enables OpenInNewContext. grace <= 0 selects DefaultBlobGrace.
func WithOpener(blobs BlobRegistry, opener Opener, grace time.Duration) Option {
	return func(s *Surface) {
		s.blobs = blobs
		s.opener = opener
		if grace <= 0 {
			grace = DefaultBlobGrace
		}
		s.grace = grace
	}
}

// New takes ownership of ec.
func New(ec ExecutionContext, mode Mode, opts ...Option) *Surface {
	s := &Surface{
		ec:    ec,
		mode:  mode,
		grace: DefaultBlobGrace,
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	ec.OnLoadComplete(s.loadComplete)
	s.metrics.SurfaceOpened()
	return s
}

// OnSettled registers the callback fired after a generation's load
// completion is honoured.
func (s *Surface) OnSettled(fn func(Generation)) {
	s.mu.Lock()
	s.onSettled = fn
	s.mu.Unlock()
}

// Render hands document to the execution context and marks the surface as
// loading. Only gen's completion will clear the flag; earlier generations
// still in flight are superseded.
func (s *Surface) Render(gen Generation, document string) error {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return ErrDestroyed
	}
	s.expected = gen
	s.requested = document
	s.loading = true
	ec := s.ec
	s.mu.Unlock()

	if err := ec.SetContent(gen, document); err != nil {
		s.log.Warn("execution context rejected content", zap.Uint64("generation", uint64(gen)), zap.Error(err))
		return fmt.Errorf("setting content for generation %d: %w", gen, err)
	}
	return nil
}

func (s *Surface) loadComplete(gen Generation) {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	if gen != s.expected {
		expected := s.expected
		s.mu.Unlock()
		s.metrics.StaleCompletion()
		s.log.Debug("discarding stale load completion",
			zap.Uint64("generation", uint64(gen)), zap.Uint64("expected", uint64(expected)))
		return
	}
	if !s.loading {
		// Duplicate completion from a second viewer of the same context.
		s.mu.Unlock()
		return
	}
	s.loading = false
	s.rendered = s.requested
	s.renderedGen = gen
	fn := s.onSettled
	mode := s.mode
	s.mu.Unlock()

	s.metrics.Committed(string(mode))
	if fn != nil {
		fn(gen)
	}
}

// IsLoading reports whether the latest requested generation has not yet
// finished loading.
func (s *Surface) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// LastRendered returns the last committed document and its generation.
func (s *Surface) LastRendered() (string, Generation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rendered, s.renderedGen
}

// Generation returns the generation most recently requested.
func (s *Surface) Generation() Generation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expected
}

// Mode returns the hosting container kind.
func (s *Surface) Mode() Mode { return s.mode }

// Export returns the most recently requested document.
func (s *Surface) Export() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requested
}

// OpenInNewContext publishes the most recently requested document in a new
// top-level context. It returns the resource URL.
func (s *Surface) OpenInNewContext(ctx context.Context) (string, error) {
	return s.Open(ctx, s.Export())
}

// Open publishes document as a temporary resource, asks the host to open it,
// and revokes the resource once the grace period has passed.
func (s *Surface) Open(ctx context.Context, document string) (string, error) {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return "", ErrDestroyed
	}
	blobs, opener, grace := s.blobs, s.opener, s.grace
	s.mu.Unlock()

	if blobs == nil || opener == nil {
		return "", ErrNoOpener
	}

	url, id := blobs.Create(document)
	if err := opener.Open(ctx, url); err != nil {
		blobs.Revoke(id)
		return "", fmt.Errorf("opening new context: %w", err)
	}
	time.AfterFunc(grace, func() { blobs.Revoke(id) })
	s.log.Debug("opened document in new context", zap.String("url", url), zap.Duration("grace", grace))
	return url, nil
}

// Destroy releases the execution context. Later completions are ignored and
// Render returns ErrDestroyed.
func (s *Surface) Destroy() error {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return nil
	}
	s.destroyed = true
	ec := s.ec
	s.ec = nil
	s.onSettled = nil
	s.mu.Unlock()

	s.metrics.SurfaceClosed()
	if err := ec.Destroy(); err != nil {
		return fmt.Errorf("destroying execution context: %w", err)
	}
	return nil
}
