package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ziadkadry99/livepen/internal/assistant"
	"github.com/ziadkadry99/livepen/internal/buffer"
	"github.com/ziadkadry99/livepen/internal/compose"
	"github.com/ziadkadry99/livepen/internal/host/wshost"
	"github.com/ziadkadry99/livepen/internal/logging"
	"github.com/ziadkadry99/livepen/internal/metrics"
	"github.com/ziadkadry99/livepen/internal/pens"
	"github.com/ziadkadry99/livepen/internal/preview"
	"github.com/ziadkadry99/livepen/internal/starter"
	"github.com/ziadkadry99/livepen/internal/surface"
	"github.com/ziadkadry99/livepen/internal/viewport"
)

// BlobPrefix is the URL path under which open-in-new-context documents are
// served.
const BlobPrefix = "/blob/"

var (
	// ErrNotFound is returned for an unknown session id.
	ErrNotFound = errors.New("session not found")
	// ErrUnknownTemplate is returned for an unknown starter template.
	ErrUnknownTemplate = errors.New("unknown starter template")
)

// Config configures a Manager. Zero values are usable.
type Config struct {
	DefaultMode surface.Mode
	BlobGrace   time.Duration
	Logger      *zap.Logger
	Metrics     *metrics.Metrics
	Assistant   *assistant.Assistant
	Pens        *pens.Store
}

// Manager owns every open session.
type Manager struct {
	cfg   Config
	log   *zap.Logger
	blobs *surface.Blobs

	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool
}

// NewManager creates an empty manager.
func NewManager(cfg Config) *Manager {
	if cfg.DefaultMode == "" {
		cfg.DefaultMode = surface.Standard
	}
	if cfg.Assistant == nil {
		cfg.Assistant = assistant.New(nil, assistant.Options{Logger: cfg.Logger})
	}
	return &Manager{
		cfg:      cfg,
		log:      logging.OrNop(cfg.Logger),
		blobs:    surface.NewBlobs(BlobPrefix, cfg.Metrics),
		sessions: make(map[string]*Session),
	}
}

// Blobs returns the registry serving open-in-new-context documents.
func (m *Manager) Blobs() *surface.Blobs { return m.blobs }

// CreateRequest selects a session's initial buffers: a saved pen, a starter
// template, or the default blank pen.
type CreateRequest struct {
	PenID    string       `json:"pen_id,omitempty"`
	Template string       `json:"template,omitempty"`
	Mode     surface.Mode `json:"mode,omitempty"`
}

func (m *Manager) initialSource(ctx context.Context, req CreateRequest) (compose.Source, error) {
	switch {
	case req.PenID != "":
		if m.cfg.Pens == nil {
			return compose.Source{}, ErrNoPenStore
		}
		pen, err := m.cfg.Pens.GetByID(ctx, req.PenID)
		if err != nil {
			return compose.Source{}, err
		}
		if pen == nil {
			return compose.Source{}, fmt.Errorf("%w: %s", pens.ErrNotFound, req.PenID)
		}
		if err := m.cfg.Pens.IncrementViews(ctx, pen.ID); err != nil {
			m.log.Warn("counting pen view", zap.String("pen", pen.ID), zap.Error(err))
		}
		return pen.Source(), nil
	case req.Template != "":
		t, ok := starter.Get(req.Template)
		if !ok {
			return compose.Source{}, fmt.Errorf("%w: %s", ErrUnknownTemplate, req.Template)
		}
		return t.Source(), nil
	}
	return starter.Default(), nil
}

// Create opens a new session.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*Session, error) {
	src, err := m.initialSource(ctx, req)
	if err != nil {
		return nil, err
	}
	mode := req.Mode
	if mode == "" {
		mode = m.cfg.DefaultMode
	}

	id := uuid.New().String()
	log := m.log.With(zap.String("session", id))
	s := &Session{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		Store:     buffer.NewStore(src),
		assistant: m.cfg.Assistant,
		pens:      m.cfg.Pens,
		log:       log,
		penID:     req.PenID,
	}
	s.Hub = wshost.NewHub(s.handleMessage, log)

	ctrl, err := preview.New(s.Store, s.Hub.NewContext, preview.Options{
		Mode:      mode,
		Logger:    log,
		Metrics:   m.cfg.Metrics,
		Blobs:     m.blobs,
		Opener:    s.Hub,
		BlobGrace: m.cfg.BlobGrace,
		OnFrame:   s.Hub.SendFrame,
		OnStatus: func(st preview.Status) {
			s.Hub.Broadcast(wshost.Message{Type: wshost.TypeStatus, Status: st})
		},
	})
	if err != nil {
		s.Hub.Close()
		return nil, fmt.Errorf("starting preview: %w", err)
	}
	s.Controller = ctrl

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		s.Close()
		return nil, errors.New("session manager closed")
	}
	m.sessions[id] = s
	m.mu.Unlock()

	m.cfg.Metrics.SessionOpened()
	log.Info("session opened", zap.String("mode", string(mode)), zap.String("pen", req.PenID), zap.String("template", req.Template))
	return s, nil
}

// Get returns an open session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

// List returns every open session, oldest first.
func (m *Manager) List() []Info {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	out := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Close closes one session.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	m.cfg.Metrics.SessionClosed()
	s.log.Info("session closed")
	return s.Close()
}

// CloseAll closes every session and rejects new ones.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.closed = true
	m.mu.Unlock()

	for _, s := range sessions {
		m.cfg.Metrics.SessionClosed()
		if err := s.Close(); err != nil {
			s.log.Warn("closing session", zap.Error(err))
		}
	}
}

// simulator returns the session's simulator or an error outside responsive mode.
func simulator(s *Session) (*viewport.Simulator, error) {
	sim := s.Controller.Simulator()
	if sim == nil {
		return nil, ErrNotResponsive
	}
	return sim, nil
}

// ErrNotResponsive is returned for viewport operations in standard mode.
var ErrNotResponsive = errors.New("viewport simulation requires responsive mode")
