// Package session ties the parts of one editing session together: the
// buffer store, the preview controller, the browser hub hosting the
// sandboxed iframe and the AI collaborator.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ziadkadry99/livepen/internal/assistant"
	"github.com/ziadkadry99/livepen/internal/buffer"
	"github.com/ziadkadry99/livepen/internal/compose"
	"github.com/ziadkadry99/livepen/internal/extract"
	"github.com/ziadkadry99/livepen/internal/host/wshost"
	"github.com/ziadkadry99/livepen/internal/llm"
	"github.com/ziadkadry99/livepen/internal/pens"
	"github.com/ziadkadry99/livepen/internal/preview"
)

var (
	// ErrNothingExtracted is returned when AI output holds no usable code block.
	ErrNothingExtracted = errors.New("no html, css or js code block found")
	// ErrNothingToUndo is returned by UndoAI without a prior AI change.
	ErrNothingToUndo = errors.New("no AI change to undo")
	// ErrNoPenStore is returned by Save when persistence is disabled.
	ErrNoPenStore = errors.New("pen storage is not configured")
)

// Session is one open playground.
type Session struct {
	ID         string
	CreatedAt  time.Time
	Store      *buffer.Store
	Hub        *wshost.Hub
	Controller *preview.Controller

	assistant *assistant.Assistant
	pens      *pens.Store
	log       *zap.Logger

	mu    sync.Mutex
	penID string
	undo  *compose.Source
}

// Info is the JSON view of a session.
type Info struct {
	ID        string          `json:"id"`
	PenID     string          `json:"pen_id,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	Status    preview.Status  `json:"status"`
	Buffers   []buffer.Buffer `json:"buffers"`
	Clients   int             `json:"clients"`
	CanUndo   bool            `json:"can_undo"`
}

// Info returns a snapshot of the session.
func (s *Session) Info() Info {
	s.mu.Lock()
	penID, canUndo := s.penID, s.undo != nil
	s.mu.Unlock()
	return Info{
		ID:        s.ID,
		PenID:     penID,
		CreatedAt: s.CreatedAt,
		Status:    s.Controller.Status(),
		Buffers:   s.Store.Buffers(),
		Clients:   s.Hub.Clients(),
		CanUndo:   canUndo,
	}
}

// PenID returns the pen the session was loaded from or last saved to.
func (s *Session) PenID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.penID
}

func (s *Session) handleMessage(msg wshost.Message) {
	switch msg.Type {
	case wshost.TypeEdit:
		lang, err := buffer.ParseLanguage(msg.Language)
		if err != nil {
			s.log.Debug("ignoring edit", zap.Error(err))
			return
		}
		if _, err := s.Store.Set(lang, msg.Source); err != nil {
			s.log.Warn("applying edit", zap.Error(err))
		}
	case wshost.TypeRefresh:
		if s.Controller == nil {
			return
		}
		if err := s.Controller.Refresh(); err != nil {
			s.log.Warn("refresh", zap.Error(err))
		}
	}
}

func (s *Session) rememberUndo() {
	snap := s.Store.Snapshot()
	s.mu.Lock()
	s.undo = &snap
	s.mu.Unlock()
}

// ApplyAI routes the fenced code blocks of content into the buffers. The
// previous buffers are kept for UndoAI. Content without usable blocks leaves
// everything untouched.
func (s *Session) ApplyAI(content string) (extract.Fragments, error) {
	f := extract.Extract(content)
	if f.Empty() {
		return f, ErrNothingExtracted
	}
	s.rememberUndo()
	if _, err := s.Store.Apply(f.Updates()); err != nil {
		return f, fmt.Errorf("applying AI code: %w", err)
	}
	return f, nil
}

// UndoAI restores the buffers saved by the last AI change.
func (s *Session) UndoAI() error {
	s.mu.Lock()
	snap := s.undo
	s.undo = nil
	s.mu.Unlock()
	if snap == nil {
		return ErrNothingToUndo
	}
	s.Store.Reset(*snap)
	return nil
}

// Generate asks the assistant for code. When apply is set and the reply
// holds code blocks, they are routed into the buffers.
func (s *Session) Generate(ctx context.Context, prompt string, apply bool) (assistant.Result, *extract.Fragments, error) {
	r := s.assistant.Generate(ctx, prompt)
	return s.maybeApply(r, apply)
}

// ImageToCode asks the assistant to recreate a design image as html/css.
func (s *Session) ImageToCode(ctx context.Context, img llm.Image, apply bool) (assistant.Result, *extract.Fragments, error) {
	r := s.assistant.ImageToCode(ctx, img)
	return s.maybeApply(r, apply)
}

// GenerateStep asks for the code of one plan step.
func (s *Session) GenerateStep(ctx context.Context, plan *assistant.Plan, step int, apply bool) (assistant.Result, *extract.Fragments, error) {
	r := s.assistant.GenerateCode(ctx, plan, step)
	return s.maybeApply(r, apply)
}

func (s *Session) maybeApply(r assistant.Result, apply bool) (assistant.Result, *extract.Fragments, error) {
	if !apply || !r.OK() {
		return r, nil, nil
	}
	f, err := s.ApplyAI(r.Text())
	if err != nil {
		return r, nil, err
	}
	return r, &f, nil
}

// QuickEdit asks the assistant to modify one buffer according to
// instruction. With apply set the buffer is replaced and can be undone.
func (s *Session) QuickEdit(ctx context.Context, lang buffer.Language, instruction string, apply bool) (assistant.Result, error) {
	cur, err := s.Store.Get(lang)
	if err != nil {
		return assistant.Result{}, err
	}
	r := s.assistant.QuickEdit(ctx, lang, cur.Source, instruction)
	if !apply || !r.OK() {
		return r, nil
	}
	s.rememberUndo()
	if _, err := s.Store.Set(lang, r.Text()); err != nil {
		return r, err
	}
	return r, nil
}

// SaveRequest persists the session's buffers.
type SaveRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	UserID      string `json:"user_id"`
	// PenID overrides the pen the session is bound to; empty keeps it.
	PenID string `json:"pen_id,omitempty"`
}

// Save writes the buffers to the pen store, creating a pen the first time,
// and binds the session to it.
func (s *Session) Save(ctx context.Context, req SaveRequest) (*pens.Pen, error) {
	if s.pens == nil {
		return nil, ErrNoPenStore
	}
	id := req.PenID
	if id == "" {
		id = s.PenID()
	}
	src := s.Store.Snapshot()
	pen, err := s.pens.Save(ctx, pens.SaveRequest{
		ID:          id,
		Title:       req.Title,
		Description: req.Description,
		HTML:        src.HTML,
		CSS:         src.CSS,
		JS:          src.JS,
		UserID:      req.UserID,
	})
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.penID = pen.ID
	s.mu.Unlock()
	s.log.Info("session saved", zap.String("pen", pen.ID))
	return pen, nil
}

// Close tears the session down.
func (s *Session) Close() error {
	err := s.Controller.Close()
	s.Hub.Close()
	return err
}
