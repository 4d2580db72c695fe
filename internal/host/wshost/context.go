package wshost

import (
	"sync"

	"github.com/ziadkadry99/livepen/internal/surface"
)

// Context is an ExecutionContext rendered by every browser attached to its
// hub. The first "loaded" ack for a generation completes it.
type Context struct {
	id   string
	mode surface.Mode
	hub  *Hub

	mu        sync.Mutex
	onLoad    func(surface.Generation)
	destroyed bool
}

// ID identifies the context in content and loaded messages.
func (c *Context) ID() string { return c.id }

func (c *Context) SetContent(gen surface.Generation, document string) error {
	c.mu.Lock()
	destroyed := c.destroyed
	c.mu.Unlock()
	if destroyed {
		return ErrContextDestroyed
	}
	return c.hub.publish(c, Message{
		Type:       TypeContent,
		Context:    c.id,
		Generation: uint64(gen),
		Mode:       string(c.mode),
		Document:   document,
		Sandbox:    surface.SandboxPolicy,
	})
}

func (c *Context) OnLoadComplete(fn func(surface.Generation)) {
	c.mu.Lock()
	c.onLoad = fn
	c.mu.Unlock()
}

func (c *Context) complete(gen surface.Generation) {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	fn := c.onLoad
	c.mu.Unlock()
	if fn != nil {
		fn(gen)
	}
}

// Destroy detaches the context from its hub. Acks addressed to it are
// ignored from then on.
func (c *Context) Destroy() error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return nil
	}
	c.destroyed = true
	c.onLoad = nil
	c.mu.Unlock()
	c.hub.release(c)
	return nil
}
