package session

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/livepen/internal/assistant"
	"github.com/ziadkadry99/livepen/internal/buffer"
	"github.com/ziadkadry99/livepen/internal/extract"
	"github.com/ziadkadry99/livepen/internal/host/wshost"
	"github.com/ziadkadry99/livepen/internal/llm"
	"github.com/ziadkadry99/livepen/internal/pens"
	"github.com/ziadkadry99/livepen/internal/surface"
	"github.com/ziadkadry99/livepen/internal/viewport"
)

// ExportFilename is the attachment name of exported documents.
const ExportFilename = "livepen-export.html"

// RegisterRoutes mounts the session API, the websocket endpoint, the preview
// host page and the blob documents.
func RegisterRoutes(r chi.Router, m *Manager) {
	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", handleCreate(m))
		r.Get("/", handleList(m))
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", withSession(m, handleInfo))
			r.Delete("/", handleClose(m))
			r.Put("/buffers/{lang}", withSession(m, handleSetBuffer))
			r.Post("/refresh", withSession(m, handleRefresh))
			r.Put("/mode", withSession(m, handleMode))
			r.Post("/fullscreen", withSession(m, handleFullscreen))
			r.Put("/viewport/device", withSession(m, handleDevice))
			r.Post("/viewport/rotate", withSession(m, handleRotate))
			r.Post("/viewport/scale", withSession(m, handleScale))
			r.Put("/viewport/custom", withSession(m, handleCustom))
			r.Get("/export", withSession(m, handleExport))
			r.Post("/open", withSession(m, handleOpen))
			r.Post("/save", withSession(m, handleSave))
			r.Post("/ai/insert", withSession(m, handleInsert))
			r.Post("/ai/generate", withSession(m, handleGenerate))
			r.Post("/ai/quick-edit", withSession(m, handleQuickEdit))
			r.Post("/ai/image", withSession(m, handleImage))
			r.Post("/ai/plan", withSession(m, handlePlan))
			r.Post("/ai/code", withSession(m, handleCode))
			r.Post("/ai/undo", withSession(m, handleUndo))
		})
	})

	r.Get("/ws/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		s, err := m.Get(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.Hub.ServeWS(w, r)
	})
	r.Get("/preview/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, err := m.Get(id); err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		wshost.ServePage(w, "/ws/sessions/"+id)
	})
	r.Get(BlobPrefix+"{id}", func(w http.ResponseWriter, r *http.Request) {
		doc, ok := m.Blobs().Get(chi.URLParam(r, "id"))
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Content-Security-Policy", "sandbox "+surface.SandboxPolicy)
		w.Write([]byte(doc))
	})
}

type sessionHandler func(http.ResponseWriter, *http.Request, *Session)

func withSession(m *Manager, h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := m.Get(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h(w, r, s)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func handleCreate(m *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateRequest
		if r.ContentLength != 0 && !decode(w, r, &req) {
			return
		}
		if req.Mode != "" {
			mode, err := surface.ParseMode(string(req.Mode))
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			req.Mode = mode
		}
		s, err := m.Create(r.Context(), req)
		switch {
		case errors.Is(err, pens.ErrNotFound), errors.Is(err, ErrUnknownTemplate):
			writeError(w, http.StatusNotFound, err.Error())
			return
		case err != nil:
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, s.Info())
	}
}

func handleList(m *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, m.List())
	}
}

func handleClose(m *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := m.Close(chi.URLParam(r, "id"))
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleInfo(w http.ResponseWriter, r *http.Request, s *Session) {
	writeJSON(w, http.StatusOK, s.Info())
}

func handleSetBuffer(w http.ResponseWriter, r *http.Request, s *Session) {
	lang, err := buffer.ParseLanguage(chi.URLParam(r, "lang"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var body struct {
		Source string `json:"source"`
	}
	if !decode(w, r, &body) {
		return
	}
	changed, err := s.Store.Set(lang, body.Source)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"changed": changed, "status": s.Controller.Status()})
}

func handleRefresh(w http.ResponseWriter, r *http.Request, s *Session) {
	if err := s.Controller.Refresh(); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.Controller.Status())
}

func handleMode(w http.ResponseWriter, r *http.Request, s *Session) {
	var body struct {
		Mode string `json:"mode"`
	}
	if !decode(w, r, &body) {
		return
	}
	mode, err := surface.ParseMode(body.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.Controller.SetMode(mode); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.Controller.Status())
}

func handleFullscreen(w http.ResponseWriter, r *http.Request, s *Session) {
	on := s.Controller.ToggleFullscreen()
	writeJSON(w, http.StatusOK, map[string]bool{"fullscreen": on})
}

func withSimulator(w http.ResponseWriter, s *Session, fn func(*viewport.Simulator) error) {
	sim, err := simulator(s)
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err := fn(sim); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sim.Frame())
}

func handleDevice(w http.ResponseWriter, r *http.Request, s *Session) {
	var body struct {
		Device string `json:"device"`
	}
	if !decode(w, r, &body) {
		return
	}
	withSimulator(w, s, func(sim *viewport.Simulator) error {
		d, err := viewport.ParseDevice(body.Device)
		if err != nil {
			return err
		}
		return sim.SelectDevice(d)
	})
}

func handleRotate(w http.ResponseWriter, r *http.Request, s *Session) {
	withSimulator(w, s, func(sim *viewport.Simulator) error {
		sim.Rotate()
		return nil
	})
}

func handleScale(w http.ResponseWriter, r *http.Request, s *Session) {
	var body struct {
		Delta float64 `json:"delta"`
	}
	if !decode(w, r, &body) {
		return
	}
	withSimulator(w, s, func(sim *viewport.Simulator) error {
		sim.SetScale(body.Delta)
		return nil
	})
}

func handleCustom(w http.ResponseWriter, r *http.Request, s *Session) {
	var body struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	}
	if !decode(w, r, &body) {
		return
	}
	withSimulator(w, s, func(sim *viewport.Simulator) error {
		sim.SetCustomSize(body.Width, body.Height)
		return nil
	})
}

func handleExport(w http.ResponseWriter, r *http.Request, s *Session) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+ExportFilename+`"`)
	w.Write([]byte(s.Controller.Export()))
}

func handleOpen(w http.ResponseWriter, r *http.Request, s *Session) {
	url, err := s.Controller.OpenInNewContext(r.Context())
	if errors.Is(err, wshost.ErrNoClients) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func handleSave(w http.ResponseWriter, r *http.Request, s *Session) {
	var req SaveRequest
	if !decode(w, r, &req) {
		return
	}
	pen, err := s.Save(r.Context(), req)
	switch {
	case errors.Is(err, ErrNoPenStore):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case errors.Is(err, pens.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, pen)
}

type aiResponse struct {
	assistant.Result
	Applied *extract.Fragments `json:"applied,omitempty"`
	Info    Info               `json:"session"`
}

func writeAI(w http.ResponseWriter, s *Session, r assistant.Result, applied *extract.Fragments, err error) {
	if errors.Is(err, ErrNothingExtracted) {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, aiResponse{Result: r, Applied: applied, Info: s.Info()})
}

func handleInsert(w http.ResponseWriter, r *http.Request, s *Session) {
	var body struct {
		Content string `json:"content"`
	}
	if !decode(w, r, &body) {
		return
	}
	f, err := s.ApplyAI(body.Content)
	if errors.Is(err, ErrNothingExtracted) {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"applied": f, "session": s.Info()})
}

func handleGenerate(w http.ResponseWriter, r *http.Request, s *Session) {
	var body struct {
		Prompt string `json:"prompt"`
		Apply  bool   `json:"apply"`
	}
	if !decode(w, r, &body) {
		return
	}
	res, f, err := s.Generate(r.Context(), body.Prompt, body.Apply)
	writeAI(w, s, res, f, err)
}

func handleQuickEdit(w http.ResponseWriter, r *http.Request, s *Session) {
	var body struct {
		Language    string `json:"language"`
		Instruction string `json:"instruction"`
		Apply       bool   `json:"apply"`
	}
	if !decode(w, r, &body) {
		return
	}
	lang, err := buffer.ParseLanguage(body.Language)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.QuickEdit(r.Context(), lang, body.Instruction, body.Apply)
	writeAI(w, s, res, nil, err)
}

func handleImage(w http.ResponseWriter, r *http.Request, s *Session) {
	var body struct {
		MIMEType string `json:"mime_type"`
		Data     string `json:"data"`
		Apply    bool   `json:"apply"`
	}
	if !decode(w, r, &body) {
		return
	}
	data, err := base64.StdEncoding.DecodeString(body.Data)
	if err != nil || len(data) == 0 {
		writeError(w, http.StatusBadRequest, "data must be base64 image bytes")
		return
	}
	if body.MIMEType == "" {
		body.MIMEType = http.DetectContentType(data)
	}
	res, f, err := s.ImageToCode(r.Context(), llm.Image{MIMEType: body.MIMEType, Data: data}, body.Apply)
	writeAI(w, s, res, f, err)
}

func handlePlan(w http.ResponseWriter, r *http.Request, s *Session) {
	var body struct {
		Description string `json:"description"`
	}
	if !decode(w, r, &body) {
		return
	}
	writeJSON(w, http.StatusOK, s.assistant.GeneratePlan(r.Context(), body.Description))
}

func handleCode(w http.ResponseWriter, r *http.Request, s *Session) {
	var body struct {
		Plan  *assistant.Plan `json:"plan"`
		Step  int             `json:"step"`
		Apply bool            `json:"apply"`
	}
	if !decode(w, r, &body) {
		return
	}
	res, f, err := s.GenerateStep(r.Context(), body.Plan, body.Step, body.Apply)
	writeAI(w, s, res, f, err)
}

func handleUndo(w http.ResponseWriter, r *http.Request, s *Session) {
	if err := s.UndoAI(); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.Info())
}
