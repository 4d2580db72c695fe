// Package wshost hosts execution contexts in browser iframes driven over a
// websocket. The server pushes composed documents; the browser loads them
// into a sandboxed iframe and acknowledges each load.
package wshost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ziadkadry99/livepen/internal/logging"
	"github.com/ziadkadry99/livepen/internal/surface"
	"github.com/ziadkadry99/livepen/internal/viewport"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

var (
	// ErrNoClients is returned by Open when no browser is attached.
	ErrNoClients = errors.New("no preview clients connected")
	// ErrContextDestroyed is returned by SetContent on a destroyed context.
	ErrContextDestroyed = errors.New("execution context destroyed")
)

// Handler receives inbound edit and refresh messages.
type Handler func(Message)

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub tracks the browser clients of one session and the single active
// execution context they render.
type Hub struct {
	// sendMu orders outbound writes so a late joiner's replay never lands
	// after newer content. It is taken before mu.
	sendMu sync.Mutex

	mu      sync.Mutex
	clients map[*client]struct{}
	active  *Context
	content []byte
	frame   []byte
	closed  bool

	handler Handler
	log     *zap.Logger
}

// NewHub creates a hub. handler may be nil.
func NewHub(handler Handler, log *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		handler: handler,
		log:     logging.OrNop(log),
	}
}

// NewContext destroys the active context, if any, and returns a fresh one.
// Its signature matches preview.HostFactory.
func (h *Hub) NewContext(mode surface.Mode) (surface.ExecutionContext, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, errors.New("hub closed")
	}
	prev := h.active
	ctx := &Context{id: uuid.New().String(), mode: mode, hub: h}
	h.active = ctx
	h.content = nil
	if mode != surface.Responsive {
		h.frame = nil
	}
	h.mu.Unlock()

	if prev != nil {
		prev.Destroy()
	}
	h.log.Debug("execution context created", zap.String("context", ctx.id), zap.String("mode", string(mode)))
	return ctx, nil
}

// ServeWS upgrades the request and attaches a browser client. Late joiners
// immediately receive the latest content and frame.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade", zap.Error(err))
		return
	}
	c := &client{conn: conn}

	if !h.attach(c) {
		conn.Close()
		return
	}
	defer h.detach(c)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("websocket read", zap.Error(err))
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			h.sendError(c, "invalid message format")
			continue
		}

		switch msg.Type {
		case TypeLoaded:
			h.loaded(msg)
		case TypeEdit, TypeRefresh:
			if h.handler != nil {
				h.handler(msg)
			}
		default:
			h.sendError(c, "unknown message type: "+msg.Type)
		}
	}
}

// attach registers c and replays the latest content and frame to it before
// any newer broadcast can reach it.
func (h *Hub) attach(c *client) bool {
	h.sendMu.Lock()
	defer h.sendMu.Unlock()

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	h.clients[c] = struct{}{}
	content, frame := h.content, h.frame
	h.mu.Unlock()

	for _, data := range [][]byte{content, frame} {
		if data == nil {
			continue
		}
		if err := c.write(data); err != nil {
			h.log.Debug("websocket replay", zap.Error(err))
			break
		}
	}
	return true
}

func (h *Hub) detach(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.conn.Close()
}

func (h *Hub) loaded(msg Message) {
	h.mu.Lock()
	active := h.active
	h.mu.Unlock()

	if active == nil || active.id != msg.Context {
		h.log.Debug("ignoring ack for inactive context", zap.String("context", msg.Context))
		return
	}
	active.complete(surface.Generation(msg.Generation))
}

func (h *Hub) sendError(c *client, text string) {
	data, _ := json.Marshal(Message{Type: TypeError, Error: text})
	if err := c.write(data); err != nil {
		h.log.Debug("websocket write error", zap.Error(err))
	}
}

// Broadcast sends msg to every attached client.
func (h *Hub) Broadcast(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding %s message: %w", msg.Type, err)
	}
	h.sendMu.Lock()
	defer h.sendMu.Unlock()
	h.broadcast(data)
	return nil
}

// broadcast requires sendMu.
func (h *Hub) broadcast(data []byte) {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		if err := c.write(data); err != nil {
			h.log.Debug("websocket broadcast", zap.Error(err))
		}
	}
}

// SendFrame broadcasts a simulator frame and remembers it for late joiners.
func (h *Hub) SendFrame(f viewport.Frame) {
	data, err := json.Marshal(Message{Type: TypeFrame, Frame: &f})
	if err != nil {
		return
	}
	h.sendMu.Lock()
	defer h.sendMu.Unlock()
	h.mu.Lock()
	h.frame = data
	h.mu.Unlock()
	h.broadcast(data)
}

// Open implements surface.Opener by asking attached browsers to open url in
// a new top-level context.
func (h *Hub) Open(_ context.Context, url string) error {
	if h.Clients() == 0 {
		return ErrNoClients
	}
	return h.Broadcast(Message{Type: TypeOpen, URL: url})
}

// Clients returns the number of attached browsers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close destroys the active context and disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	active := h.active
	h.active = nil
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	if active != nil {
		active.Destroy()
	}
	for c := range clients {
		c.conn.Close()
	}
}

func (h *Hub) publish(ctx *Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding content: %w", err)
	}
	h.sendMu.Lock()
	defer h.sendMu.Unlock()
	h.mu.Lock()
	if h.active != ctx {
		h.mu.Unlock()
		return ErrContextDestroyed
	}
	h.content = data
	h.mu.Unlock()
	h.broadcast(data)
	return nil
}

func (h *Hub) release(ctx *Context) {
	h.mu.Lock()
	if h.active == ctx {
		h.active = nil
		h.content = nil
	}
	h.mu.Unlock()
}
