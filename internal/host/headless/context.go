// Package headless hosts execution contexts in-process: documents are
// parsed with goquery and their scripts run in a goja runtime. It is a
// rendering convenience for the CLI, MCP tools and tests, not a security
// boundary.
package headless

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ziadkadry99/livepen/internal/logging"
	"github.com/ziadkadry99/livepen/internal/surface"
)

// DefaultTimeout bounds each script's execution.
const DefaultTimeout = 2 * time.Second

// keepReports bounds how many finished generations stay queryable.
const keepReports = 16

// ErrDestroyed is returned by SetContent after Destroy.
var ErrDestroyed = errors.New("headless context destroyed")

// Context is an in-process ExecutionContext. Each SetContent runs the
// document on its own goroutine and signals completion when it finishes,
// so completions for superseded generations may arrive late.
type Context struct {
	timeout time.Duration
	log     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	onLoad    func(surface.Generation)
	destroyed bool
	reports   map[surface.Generation]Report
	last      surface.Generation
	onReport  func(Report)
}

// Option configures a Context.
type Option func(*Context)

// WithTimeout sets the per-script execution limit.
func WithTimeout(d time.Duration) Option {
	return func(c *Context) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Context) { c.log = logging.OrNop(l) }
}

// WithReportHandler registers fn to receive every finished report before
// the load completion fires.
func WithReportHandler(fn func(Report)) Option {
	return func(c *Context) { c.onReport = fn }
}

// New returns an idle context.
func New(opts ...Option) *Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Context{
		timeout: DefaultTimeout,
		log:     zap.NewNop(),
		ctx:     ctx,
		cancel:  cancel,
		reports: make(map[surface.Generation]Report),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Factory adapts New to a host factory; the mode only affects logging.
func Factory(opts ...Option) func(surface.Mode) (surface.ExecutionContext, error) {
	return func(mode surface.Mode) (surface.ExecutionContext, error) {
		c := New(opts...)
		c.log = c.log.With(zap.String("mode", string(mode)))
		return c, nil
	}
}

func (c *Context) SetContent(gen surface.Generation, document string) error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return ErrDestroyed
	}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		report, err := Run(c.ctx, document, c.timeout)
		if err != nil {
			c.log.Debug("headless run aborted", zap.Uint64("generation", uint64(gen)), zap.Error(err))
			return
		}
		report.Generation = uint64(gen)

		c.mu.Lock()
		if c.destroyed {
			c.mu.Unlock()
			return
		}
		c.reports[gen] = report
		if gen > c.last {
			c.last = gen
		}
		for g := range c.reports {
			if g+keepReports <= c.last {
				delete(c.reports, g)
			}
		}
		fn, onReport := c.onLoad, c.onReport
		c.mu.Unlock()

		if onReport != nil {
			onReport(report)
		}
		if fn != nil {
			fn(gen)
		}
	}()
	return nil
}

func (c *Context) OnLoadComplete(fn func(surface.Generation)) {
	c.mu.Lock()
	c.onLoad = fn
	c.mu.Unlock()
}

// Report returns the report for gen once its run has finished.
func (c *Context) Report(gen surface.Generation) (Report, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.reports[gen]
	return r, ok
}

// Latest returns the report with the highest finished generation.
func (c *Context) Latest() (Report, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.reports[c.last]
	return r, ok
}

// Wait blocks until every started run has finished.
func (c *Context) Wait() { c.wg.Wait() }

// Destroy cancels in-flight runs. No completion fires afterwards.
func (c *Context) Destroy() error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return nil
	}
	c.destroyed = true
	c.onLoad = nil
	c.mu.Unlock()
	c.cancel()
	return nil
}
