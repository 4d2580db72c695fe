package pens

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/livepen/internal/sourceview"
)

// RegisterRoutes mounts the pen API routes.
func RegisterRoutes(r chi.Router, store *Store) {
	r.Route("/api/pens", func(r chi.Router) {
		r.Get("/", handleList(store))
		r.Post("/", handleSave(store))
		r.Get("/popular", handlePopular(store))
		r.Get("/{id}", handleGetByID(store))
		r.Put("/{id}", handleUpdate(store))
		r.Delete("/{id}", handleDelete(store))
		r.Post("/{id}/fork", handleFork(store))
		r.Post("/{id}/like", handleLike(store))
		r.Get("/{id}/liked", handleLiked(store))
		r.Post("/{id}/views", handleViews(store))
		r.Get("/{id}/source", handleSource(store))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func handleList(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("user_id")
		if userID == "" {
			writeError(w, http.StatusBadRequest, "user_id is required")
			return
		}
		pens, err := store.ListByUser(r.Context(), userID)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		if pens == nil {
			pens = []Pen{}
		}
		writeJSON(w, http.StatusOK, pens)
	}
}

func handlePopular(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := DefaultPopularLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}
		pens, err := store.Popular(r.Context(), limit)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		if pens == nil {
			pens = []Pen{}
		}
		writeJSON(w, http.StatusOK, pens)
	}
}

func decodeSave(w http.ResponseWriter, r *http.Request) (SaveRequest, bool) {
	var req SaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return req, false
	}
	return req, true
}

func handleSave(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeSave(w, r)
		if !ok {
			return
		}
		if req.ID == "" && req.UserID == "" {
			writeError(w, http.StatusBadRequest, "user_id is required")
			return
		}
		status := http.StatusOK
		if req.ID == "" {
			status = http.StatusCreated
		}
		pen, err := store.Save(r.Context(), req)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, status, pen)
	}
}

func handleUpdate(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeSave(w, r)
		if !ok {
			return
		}
		req.ID = chi.URLParam(r, "id")
		pen, err := store.Save(r.Context(), req)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, pen)
	}
}

func handleGetByID(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pen, err := store.GetByID(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		if pen == nil {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		writeJSON(w, http.StatusOK, pen)
	}
}

func handleDelete(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeStoreError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type userRequest struct {
	UserID string `json:"user_id"`
}

func decodeUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return "", false
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return "", false
	}
	return req.UserID, true
}

func handleFork(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := decodeUser(w, r)
		if !ok {
			return
		}
		pen, err := store.Fork(r.Context(), chi.URLParam(r, "id"), userID)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, pen)
	}
}

func handleLike(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := decodeUser(w, r)
		if !ok {
			return
		}
		state, err := store.ToggleLike(r.Context(), chi.URLParam(r, "id"), userID)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, state)
	}
}

func handleLiked(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("user_id")
		if userID == "" {
			writeError(w, http.StatusBadRequest, "user_id is required")
			return
		}
		liked, err := store.Liked(r.Context(), chi.URLParam(r, "id"), userID)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"liked": liked})
	}
}

func handleViews(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.IncrementViews(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeStoreError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleSource(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pen, err := store.GetByID(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		if pen == nil {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		var buf bytes.Buffer
		err = sourceview.Render(&buf, sourceview.Page{
			Title:       pen.Title,
			Description: pen.Description,
			HTML:        pen.HTML,
			CSS:         pen.CSS,
			JS:          pen.JS,
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(buf.Bytes())
	}
}
