// Package buffer holds the three named source buffers of an editing session.
package buffer

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ziadkadry99/livepen/internal/compose"
)

// Language names one of the three buffers.
type Language string

const (
	HTML Language = "html"
	CSS  Language = "css"
	JS   Language = "js"
)

// Languages lists the buffers in composition order.
var Languages = []Language{HTML, CSS, JS}

// ErrUnknownLanguage is returned for a language that has no buffer.
var ErrUnknownLanguage = errors.New("unknown buffer language")

// ParseLanguage accepts the buffer names plus the "javascript" alias.
func ParseLanguage(s string) (Language, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "html":
		return HTML, nil
	case "css":
		return CSS, nil
	case "js", "javascript":
		return JS, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLanguage, s)
}

func valid(lang Language) bool {
	return lang == HTML || lang == CSS || lang == JS
}

// Buffer is one language's source. LastModified is the store's logical clock
// at the time of the last write.
type Buffer struct {
	Language     Language  `json:"language"`
	Source       string    `json:"source"`
	LastModified uint64    `json:"last_modified"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Change describes one notification. Languages holds every buffer touched by
// the mutation; Reset is set when all three were replaced at once.
type Change struct {
	Languages []Language
	Clock     uint64
	Reset     bool
}

// Store owns the html/css/js buffers. Each buffer has a single writer (its
// editor surface); readers take atomic snapshots.
type Store struct {
	mu      sync.RWMutex
	buffers map[Language]*Buffer
	clock   uint64

	subMu  sync.Mutex
	subs   map[int]func(Change)
	nextID int

	// notifyMu keeps notifications in mutation order.
	notifyMu sync.Mutex
}

// NewStore creates a store seeded with src.
func NewStore(src compose.Source) *Store {
	s := &Store{
		buffers: make(map[Language]*Buffer, len(Languages)),
		subs:    make(map[int]func(Change)),
	}
	now := time.Now().UTC()
	for _, lang := range Languages {
		s.buffers[lang] = &Buffer{Language: lang, UpdatedAt: now}
	}
	s.buffers[HTML].Source = src.HTML
	s.buffers[CSS].Source = src.CSS
	s.buffers[JS].Source = src.JS
	return s
}

// Get returns a copy of one buffer.
func (s *Store) Get(lang Language) (Buffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.buffers[lang]
	if !ok {
		return Buffer{}, fmt.Errorf("%w: %q", ErrUnknownLanguage, lang)
	}
	return *b, nil
}

// Buffers returns copies of all three buffers in composition order.
func (s *Store) Buffers() []Buffer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Buffer, 0, len(Languages))
	for _, lang := range Languages {
		out = append(out, *s.buffers[lang])
	}
	return out
}

// Snapshot returns the three sources as they are at one instant.
func (s *Store) Snapshot() compose.Source {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return compose.Source{
		HTML: s.buffers[HTML].Source,
		CSS:  s.buffers[CSS].Source,
		JS:   s.buffers[JS].Source,
	}
}

// Clock returns the logical time of the latest mutation.
func (s *Store) Clock() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clock
}

// Set replaces one buffer's source. Writing identical content is a no-op and
// reports false.
func (s *Store) Set(lang Language, source string) (bool, error) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	b, ok := s.buffers[lang]
	if !ok {
		s.mu.Unlock()
		return false, fmt.Errorf("%w: %q", ErrUnknownLanguage, lang)
	}
	if b.Source == source {
		s.mu.Unlock()
		return false, nil
	}
	s.clock++
	b.Source = source
	b.LastModified = s.clock
	b.UpdatedAt = time.Now().UTC()
	change := Change{Languages: []Language{lang}, Clock: s.clock}
	s.mu.Unlock()

	s.notify(change)
	return true, nil
}

// Apply writes several buffers as one mutation with a single notification.
// Languages whose content is unchanged are left alone.
func (s *Store) Apply(updates map[Language]string) (bool, error) {
	for lang := range updates {
		if !valid(lang) {
			return false, fmt.Errorf("%w: %q", ErrUnknownLanguage, lang)
		}
	}

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	var touched []Language
	now := time.Now().UTC()
	for _, lang := range Languages {
		src, ok := updates[lang]
		if !ok || s.buffers[lang].Source == src {
			continue
		}
		if touched == nil {
			s.clock++
		}
		b := s.buffers[lang]
		b.Source = src
		b.LastModified = s.clock
		b.UpdatedAt = now
		touched = append(touched, lang)
	}
	if len(touched) == 0 {
		s.mu.Unlock()
		return false, nil
	}
	change := Change{Languages: touched, Clock: s.clock}
	s.mu.Unlock()

	s.notify(change)
	return true, nil
}

// Reset replaces all three buffers, as on session reset or pen load.
// Subscribers are notified once even when the content is identical.
func (s *Store) Reset(src compose.Source) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	s.clock++
	now := time.Now().UTC()
	for lang, text := range map[Language]string{HTML: src.HTML, CSS: src.CSS, JS: src.JS} {
		b := s.buffers[lang]
		b.Source = text
		b.LastModified = s.clock
		b.UpdatedAt = now
	}
	change := Change{Languages: append([]Language(nil), Languages...), Clock: s.clock, Reset: true}
	s.mu.Unlock()

	s.notify(change)
}

// Subscribe registers fn for change notifications. fn runs on the mutating
// goroutine after the store lock is released. The returned func unsubscribes.
func (s *Store) Subscribe(fn func(Change)) func() {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Store) notify(c Change) {
	s.subMu.Lock()
	fns := make([]func(Change), 0, len(s.subs))
	for i := 0; i < s.nextID; i++ {
		if fn, ok := s.subs[i]; ok {
			fns = append(fns, fn)
		}
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}
