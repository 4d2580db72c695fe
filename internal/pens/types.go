// Package pens persists saved playground documents and their likes.
package pens

import (
	"errors"
	"time"

	"github.com/ziadkadry99/livepen/internal/compose"
)

// DefaultPopularLimit is the page size of the popular listing.
const DefaultPopularLimit = 12

// ErrNotFound is returned when a pen does not exist.
var ErrNotFound = errors.New("pen not found")

// Pen is a saved html/css/js triple.
type Pen struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	HTML        string    `json:"html"`
	CSS         string    `json:"css"`
	JS          string    `json:"js"`
	UserID      string    `json:"user_id"`
	ForkedFrom  *string   `json:"forked_from"`
	Likes       int       `json:"likes"`
	Views       int       `json:"views"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Source returns the pen's buffers.
func (p Pen) Source() compose.Source {
	return compose.Source{HTML: p.HTML, CSS: p.CSS, JS: p.JS}
}

// SaveRequest creates a pen when ID is empty and updates it otherwise.
type SaveRequest struct {
	ID          string `json:"id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description"`
	HTML        string `json:"html"`
	CSS         string `json:"css"`
	JS          string `json:"js"`
	UserID      string `json:"user_id"`
}

// LikeState is the outcome of toggling a like.
type LikeState struct {
	Liked bool `json:"liked"`
	Likes int  `json:"likes"`
}
