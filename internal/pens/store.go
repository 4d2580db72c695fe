package pens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ziadkadry99/livepen/internal/db"
)

const penColumns = `id, title, description, html, css, js, user_id, forked_from, likes, views, created_at, updated_at`

// Store manages persistence of pens.
type Store struct {
	db *db.DB
}

// NewStore creates a new pen store.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPen(row scanner) (*Pen, error) {
	var p Pen
	var forked sql.NullString
	if err := row.Scan(&p.ID, &p.Title, &p.Description, &p.HTML, &p.CSS, &p.JS, &p.UserID,
		&forked, &p.Likes, &p.Views, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if forked.Valid {
		p.ForkedFrom = &forked.String
	}
	return &p, nil
}

// Save inserts a new pen when req.ID is empty and otherwise updates the
// title, description and buffers of the existing one.
func (s *Store) Save(ctx context.Context, req SaveRequest) (*Pen, error) {
	if req.ID == "" {
		return s.insert(ctx, req, nil)
	}
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`UPDATE pens SET title = ?, description = ?, html = ?, css = ?, js = ?, updated_at = ? WHERE id = ?`,
		req.Title, req.Description, req.HTML, req.CSS, req.JS, now, req.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("updating pen: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, req.ID)
	}
	return s.mustGet(ctx, req.ID)
}

func (s *Store) insert(ctx context.Context, req SaveRequest, forkedFrom *string) (*Pen, error) {
	id := uuid.New().String()
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pens (id, title, description, html, css, js, user_id, forked_from, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, req.Title, req.Description, req.HTML, req.CSS, req.JS, req.UserID, forkedFrom, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting pen: %w", err)
	}
	return s.mustGet(ctx, id)
}

func (s *Store) mustGet(ctx context.Context, id string) (*Pen, error) {
	p, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return p, nil
}

// GetByID retrieves a pen by its ID. A missing pen yields nil, nil.
func (s *Store) GetByID(ctx context.Context, id string) (*Pen, error) {
	p, err := scanPen(s.db.QueryRowContext(ctx, `SELECT `+penColumns+` FROM pens WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting pen: %w", err)
	}
	return p, nil
}

// ListByUser returns the user's pens, most recently updated first.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]Pen, error) {
	return s.list(ctx, `SELECT `+penColumns+` FROM pens WHERE user_id = ? ORDER BY updated_at DESC`, userID)
}

// Popular returns the most liked pens. limit <= 0 uses DefaultPopularLimit.
func (s *Store) Popular(ctx context.Context, limit int) ([]Pen, error) {
	if limit <= 0 {
		limit = DefaultPopularLimit
	}
	return s.list(ctx, `SELECT `+penColumns+` FROM pens ORDER BY likes DESC, views DESC, created_at DESC LIMIT ?`, limit)
}

// All returns every pen, oldest first.
func (s *Store) All(ctx context.Context) ([]Pen, error) {
	return s.list(ctx, `SELECT `+penColumns+` FROM pens ORDER BY created_at ASC`)
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]Pen, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing pens: %w", err)
	}
	defer rows.Close()

	var out []Pen
	for rows.Next() {
		p, err := scanPen(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning pen: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// Fork copies a pen into a new one owned by userID.
func (s *Store) Fork(ctx context.Context, id, userID string) (*Pen, error) {
	orig, err := s.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.insert(ctx, SaveRequest{
		Title:       "Fork of " + orig.Title,
		Description: orig.Description,
		HTML:        orig.HTML,
		CSS:         orig.CSS,
		JS:          orig.JS,
		UserID:      userID,
	}, &orig.ID)
}

// Delete removes a pen and its likes.
func (s *Store) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM pens WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting pen: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// ToggleLike likes the pen for userID, or unlikes it when already liked.
// The like row and the counter change in one transaction.
func (s *Store) ToggleLike(ctx context.Context, penID, userID string) (LikeState, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return LikeState{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM pens WHERE id = ?`, penID).Scan(&exists); err != nil {
		return LikeState{}, fmt.Errorf("checking pen: %w", err)
	}
	if exists == 0 {
		return LikeState{}, fmt.Errorf("%w: %s", ErrNotFound, penID)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM likes WHERE pen_id = ? AND user_id = ?`, penID, userID)
	if err != nil {
		return LikeState{}, fmt.Errorf("removing like: %w", err)
	}
	state := LikeState{}
	if n, _ := res.RowsAffected(); n > 0 {
		_, err = tx.ExecContext(ctx, `UPDATE pens SET likes = MAX(likes - 1, 0) WHERE id = ?`, penID)
	} else {
		state.Liked = true
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO likes (id, pen_id, user_id) VALUES (?, ?, ?)`, uuid.New().String(), penID, userID); err != nil {
			return LikeState{}, fmt.Errorf("adding like: %w", err)
		}
		_, err = tx.ExecContext(ctx, `UPDATE pens SET likes = likes + 1 WHERE id = ?`, penID)
	}
	if err != nil {
		return LikeState{}, fmt.Errorf("updating like count: %w", err)
	}
	if err := tx.QueryRowContext(ctx, `SELECT likes FROM pens WHERE id = ?`, penID).Scan(&state.Likes); err != nil {
		return LikeState{}, fmt.Errorf("reading like count: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return LikeState{}, fmt.Errorf("committing like: %w", err)
	}
	return state, nil
}

// Liked reports whether userID likes the pen.
func (s *Store) Liked(ctx context.Context, penID, userID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM likes WHERE pen_id = ? AND user_id = ?`, penID, userID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking like: %w", err)
	}
	return n > 0, nil
}

// IncrementViews bumps the view counter.
func (s *Store) IncrementViews(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE pens SET views = views + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("incrementing views: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
