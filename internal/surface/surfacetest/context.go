// Package surfacetest provides an ExecutionContext whose load completions
// are driven by the test.
package surfacetest

import (
	"context"
	"errors"
	"sync"

	"github.com/ziadkadry99/livepen/internal/surface"
)

// Content is one SetContent call.
type Content struct {
	Generation surface.Generation
	Document   string
}

// Context records every SetContent call and fires completions only when the
// test calls Complete. It never completes on its own.
type Context struct {
	mu        sync.Mutex
	contents  []Content
	onLoad    func(surface.Generation)
	destroyed bool

	// AutoComplete fires the completion synchronously inside SetContent.
	AutoComplete bool
	// Err, when set, is returned from SetContent.
	Err error
}

// New returns an idle fake context.
func New() *Context { return &Context{} }

func (c *Context) SetContent(gen surface.Generation, document string) error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return errors.New("surfacetest: context destroyed")
	}
	if c.Err != nil {
		err := c.Err
		c.mu.Unlock()
		return err
	}
	c.contents = append(c.contents, Content{Generation: gen, Document: document})
	auto := c.AutoComplete
	c.mu.Unlock()

	if auto {
		c.Complete(gen)
	}
	return nil
}

func (c *Context) OnLoadComplete(fn func(surface.Generation)) {
	c.mu.Lock()
	c.onLoad = fn
	c.mu.Unlock()
}

func (c *Context) Destroy() error {
	c.mu.Lock()
	c.destroyed = true
	c.mu.Unlock()
	return nil
}

// Complete delivers a load completion for gen, stale or not.
func (c *Context) Complete(gen surface.Generation) {
	c.mu.Lock()
	fn := c.onLoad
	c.mu.Unlock()
	if fn != nil {
		fn(gen)
	}
}

// Contents returns every document handed to the context so far.
func (c *Context) Contents() []Content {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Content(nil), c.contents...)
}

// Last returns the latest content; ok is false before the first render.
func (c *Context) Last() (Content, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.contents) == 0 {
		return Content{}, false
	}
	return c.contents[len(c.contents)-1], true
}

// Destroyed reports whether Destroy was called.
func (c *Context) Destroyed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destroyed
}

// Opener records opened URLs.
type Opener struct {
	mu   sync.Mutex
	URLs []string
	Err  error
}

func (o *Opener) Open(_ context.Context, url string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Err != nil {
		return o.Err
	}
	o.URLs = append(o.URLs, url)
	return nil
}
