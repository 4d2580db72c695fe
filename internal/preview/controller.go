// Package preview sequences buffer changes into render commits.
//
// The Controller observes a buffer.Store, composes a document on every
// change, tags it with a monotonically increasing generation and hands it to
// the active render surface. Only the completion for the latest generation
// moves the controller back to idle; everything older is discarded.
package preview

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ziadkadry99/livepen/internal/buffer"
	"github.com/ziadkadry99/livepen/internal/logging"
	"github.com/ziadkadry99/livepen/internal/metrics"
	"github.com/ziadkadry99/livepen/internal/surface"
	"github.com/ziadkadry99/livepen/internal/viewport"
)

// State is the controller's position in the render cycle.
type State string

const (
	Idle         State = "idle"
	Composing    State = "composing"
	AwaitingLoad State = "awaiting-load"
)

// HostFactory creates a fresh execution context for a hosting mode.
type HostFactory func(mode surface.Mode) (surface.ExecutionContext, error)

var (
	// ErrClosed is returned by operations on a closed controller.
	ErrClosed = errors.New("preview controller closed")
	// ErrNoSurface is returned when the last mode switch failed to create a host.
	ErrNoSurface = errors.New("no active render surface")
)

// Status is a point-in-time view of the controller.
type Status struct {
	State      State           `json:"state"`
	Mode       surface.Mode    `json:"mode"`
	Generation uint64          `json:"generation"`
	Loading    bool            `json:"loading"`
	Fullscreen bool            `json:"fullscreen"`
	Frame      *viewport.Frame `json:"frame,omitempty"`
}

// Options configures a Controller. Zero values are usable.
type Options struct {
	Mode      surface.Mode
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
	Blobs     surface.BlobRegistry
	Opener    surface.Opener
	BlobGrace time.Duration
	// OnFrame receives simulator frame changes in responsive mode.
	OnFrame func(viewport.Frame)
	// OnStatus receives the status after every state transition.
	OnStatus func(Status)
}

// Controller is the orchestration state machine tying buffer changes to
// render commits.
type Controller struct {
	// renderMu serializes compose-and-handover so the last composition issued
	// is always the last one handed to the surface. Completion callbacks
	// never take it.
	renderMu sync.Mutex

	mu         sync.Mutex
	state      State
	gen        surface.Generation
	mode       surface.Mode
	surface    *surface.Surface
	sim        *viewport.Simulator
	fullscreen bool
	closed     bool

	store       *buffer.Store
	factory     HostFactory
	unsubscribe func()
	opts        Options
	log         *zap.Logger
}

// New mounts a surface for opts.Mode (standard when empty), renders the
// current buffers and starts observing store.
func New(store *buffer.Store, factory HostFactory, opts Options) (*Controller, error) {
	if opts.Mode == "" {
		opts.Mode = surface.Standard
	}
	c := &Controller{
		state:   Idle,
		store:   store,
		factory: factory,
		opts:    opts,
		log:     logging.OrNop(opts.Logger),
	}

	c.renderMu.Lock()
	if err := c.mountLocked(opts.Mode); err != nil {
		c.renderMu.Unlock()
		return nil, err
	}
	err := c.composeLocked("mount")
	c.renderMu.Unlock()
	if err != nil {
		c.log.Warn("initial render failed", zap.Error(err))
	}

	c.unsubscribe = store.Subscribe(c.onBufferChange)
	return c, nil
}

func (c *Controller) onBufferChange(ch buffer.Change) {
	reason := "edit"
	if ch.Reset {
		reason = "reset"
	}
	if err := c.recompose(reason); err != nil && !errors.Is(err, ErrClosed) {
		c.log.Warn("render after buffer change failed", zap.Uint64("clock", ch.Clock), zap.Error(err))
	}
}

// Refresh recomposes from the current buffers even when nothing changed.
func (c *Controller) Refresh() error {
	return c.recompose("refresh")
}

func (c *Controller) recompose(reason string) error {
	c.renderMu.Lock()
	defer c.renderMu.Unlock()
	return c.composeLocked(reason)
}

// composeLocked requires renderMu.
func (c *Controller) composeLocked(reason string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	target := c.surface
	if target == nil {
		c.mu.Unlock()
		return ErrNoSurface
	}
	c.state = Composing
	doc := c.store.Snapshot().Compose()
	c.gen++
	gen := c.gen
	c.state = AwaitingLoad
	mode := c.mode
	c.mu.Unlock()

	c.opts.Metrics.Composed()
	c.log.Debug("rendering",
		zap.String("reason", reason),
		zap.Uint64("generation", uint64(gen)),
		zap.String("mode", string(mode)))
	c.publish()

	// A synchronous completion re-enters through settled, which only takes mu.
	if err := target.Render(gen, doc); err != nil {
		return fmt.Errorf("rendering generation %d: %w", gen, err)
	}
	return nil
}

func (c *Controller) settled(gen surface.Generation) {
	c.mu.Lock()
	if c.closed || gen != c.gen || c.state != AwaitingLoad {
		c.mu.Unlock()
		return
	}
	c.state = Idle
	c.mu.Unlock()
	c.publish()
}

// mountLocked creates the surface for mode. It requires renderMu.
func (c *Controller) mountLocked(mode surface.Mode) error {
	ec, err := c.factory(mode)
	if err != nil {
		return fmt.Errorf("creating %s execution context: %w", mode, err)
	}
	s := surface.New(ec, mode,
		surface.WithLogger(c.log.With(zap.String("mode", string(mode)))),
		surface.WithMetrics(c.opts.Metrics),
		surface.WithOpener(c.opts.Blobs, c.opts.Opener, c.opts.BlobGrace),
	)
	s.OnSettled(c.settled)

	var sim *viewport.Simulator
	if mode == surface.Responsive {
		sim = viewport.New(s)
		if c.opts.OnFrame != nil {
			sim.OnChange(c.opts.OnFrame)
		}
	}

	c.mu.Lock()
	c.surface = s
	c.sim = sim
	c.mode = mode
	fullscreen := c.fullscreen
	c.mu.Unlock()

	if sim != nil {
		sim.SetFullscreen(fullscreen)
		if c.opts.OnFrame != nil {
			c.opts.OnFrame(sim.Frame())
		}
	}
	return nil
}

// unmountLocked destroys the current surface. It requires renderMu.
func (c *Controller) unmountLocked() error {
	c.mu.Lock()
	s, sim := c.surface, c.sim
	c.surface, c.sim = nil, nil
	c.state = Idle
	c.mu.Unlock()

	switch {
	case sim != nil:
		return sim.Destroy()
	case s != nil:
		return s.Destroy()
	}
	return nil
}

// SetMode tears down the current surface, mounts one in the new hosting
// container and renders the current buffers into it. Switching to the
// current mode is a no-op.
func (c *Controller) SetMode(mode surface.Mode) error {
	c.renderMu.Lock()
	defer c.renderMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	same := c.mode == mode && c.surface != nil
	c.mu.Unlock()
	if same {
		return nil
	}

	if err := c.unmountLocked(); err != nil {
		c.log.Warn("destroying previous surface", zap.Error(err))
	}
	if err := c.mountLocked(mode); err != nil {
		c.publish()
		return err
	}
	c.log.Info("preview mode switched", zap.String("mode", string(mode)))
	return c.composeLocked("mode switch")
}

// Export returns the standalone document for the current buffers.
func (c *Controller) Export() string {
	return c.store.Snapshot().Standalone()
}

// OpenInNewContext opens the standalone document for the current buffers in
// a new top-level context and returns the temporary resource URL.
func (c *Controller) OpenInNewContext(ctx context.Context) (string, error) {
	c.mu.Lock()
	s := c.surface
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return "", ErrClosed
	}
	if s == nil {
		return "", ErrNoSurface
	}
	return s.Open(ctx, c.Export())
}

// ToggleFullscreen flips the fullscreen flag and returns the new value.
func (c *Controller) ToggleFullscreen() bool {
	c.mu.Lock()
	c.fullscreen = !c.fullscreen
	on := c.fullscreen
	sim := c.sim
	c.mu.Unlock()

	if sim != nil {
		sim.SetFullscreen(on)
	}
	c.publish()
	return on
}

func (c *Controller) Fullscreen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fullscreen
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Generation returns the most recently issued generation.
func (c *Controller) Generation() surface.Generation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

func (c *Controller) Mode() surface.Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// IsLoading reports whether the active surface is waiting for a completion.
func (c *Controller) IsLoading() bool {
	c.mu.Lock()
	s := c.surface
	c.mu.Unlock()
	return s != nil && s.IsLoading()
}

// Surface returns the active render surface, which may be nil after a
// failed mode switch.
func (c *Controller) Surface() *surface.Surface {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.surface
}

// Simulator returns the viewport simulator, or nil in standard mode.
func (c *Controller) Simulator() *viewport.Simulator {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sim
}

// Status returns a snapshot of the controller.
func (c *Controller) Status() Status {
	c.mu.Lock()
	st := Status{
		State:      c.state,
		Mode:       c.mode,
		Generation: uint64(c.gen),
		Fullscreen: c.fullscreen,
	}
	s, sim := c.surface, c.sim
	c.mu.Unlock()

	if s != nil {
		st.Loading = s.IsLoading()
	}
	if sim != nil {
		f := sim.Frame()
		st.Frame = &f
	}
	return st
}

func (c *Controller) publish() {
	if c.opts.OnStatus != nil {
		c.opts.OnStatus(c.Status())
	}
}

// Close stops observing the store and destroys the surface. It is safe to
// call more than once.
func (c *Controller) Close() error {
	c.renderMu.Lock()
	defer c.renderMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	unsubscribe := c.unsubscribe
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	return c.unmountLocked()
}
