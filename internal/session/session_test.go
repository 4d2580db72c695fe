package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ziadkadry99/livepen/internal/assistant"
	"github.com/ziadkadry99/livepen/internal/buffer"
	"github.com/ziadkadry99/livepen/internal/db"
	"github.com/ziadkadry99/livepen/internal/host/wshost"
	"github.com/ziadkadry99/livepen/internal/llm"
	"github.com/ziadkadry99/livepen/internal/pens"
	"github.com/ziadkadry99/livepen/internal/preview"
	"github.com/ziadkadry99/livepen/internal/starter"
	"github.com/ziadkadry99/livepen/internal/surface"
	"github.com/ziadkadry99/livepen/internal/viewport"
)

type stubProvider struct {
	mu    sync.Mutex
	reply string
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Complete(_ context.Context, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &llm.CompletionResponse{Content: s.reply}, nil
}

func newManager(t *testing.T, reply string) *Manager {
	t.Helper()
	database, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	m := NewManager(Config{
		Assistant: assistant.New(&stubProvider{reply: reply}, assistant.Options{}),
		Pens:      pens.NewStore(database),
	})
	t.Cleanup(m.CloseAll)
	return m
}

func TestCreateDefaults(t *testing.T) {
	m := newManager(t, "")
	s, err := m.Create(context.Background(), CreateRequest{})
	require.NoError(t, err)

	assert.Equal(t, starter.Default(), s.Store.Snapshot())
	assert.Equal(t, surface.Standard, s.Controller.Mode())
	assert.Nil(t, s.Controller.Simulator())

	got, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)
	assert.Len(t, m.List(), 1)
}

func TestCreateFromTemplateAndPen(t *testing.T) {
	m := newManager(t, "")
	ctx := context.Background()

	tmpl := starter.All()[0]
	s, err := m.Create(ctx, CreateRequest{Template: tmpl.ID, Mode: surface.Responsive})
	require.NoError(t, err)
	assert.Equal(t, tmpl.Source(), s.Store.Snapshot())
	assert.NotNil(t, s.Controller.Simulator())

	_, err = m.Create(ctx, CreateRequest{Template: "nope"})
	assert.ErrorIs(t, err, ErrUnknownTemplate)

	pen, err := m.cfg.Pens.Save(ctx, pens.SaveRequest{Title: "p", HTML: "<b>saved</b>", UserID: "u"})
	require.NoError(t, err)
	s, err = m.Create(ctx, CreateRequest{PenID: pen.ID})
	require.NoError(t, err)
	assert.Equal(t, "<b>saved</b>", s.Store.Snapshot().HTML)
	assert.Equal(t, pen.ID, s.PenID())

	_, err = m.Create(ctx, CreateRequest{PenID: "missing"})
	assert.ErrorIs(t, err, pens.ErrNotFound)
}

func TestApplyAIAndUndo(t *testing.T) {
	m := newManager(t, "")
	s, err := m.Create(context.Background(), CreateRequest{})
	require.NoError(t, err)
	before := s.Store.Snapshot()

	f, err := s.ApplyAI("```css\nbody { background: black; }\n```")
	require.NoError(t, err)
	require.NotNil(t, f.CSS)
	after := s.Store.Snapshot()
	assert.Equal(t, "body { background: black; }", after.CSS)
	assert.Equal(t, before.HTML, after.HTML)
	assert.Equal(t, before.JS, after.JS)
	assert.True(t, s.Info().CanUndo)

	require.NoError(t, s.UndoAI())
	assert.Equal(t, before, s.Store.Snapshot())
	assert.ErrorIs(t, s.UndoAI(), ErrNothingToUndo)
}

func TestApplyAIWithoutBlocksLeavesBuffers(t *testing.T) {
	m := newManager(t, "")
	s, err := m.Create(context.Background(), CreateRequest{})
	require.NoError(t, err)
	before := s.Store.Snapshot()

	_, err = s.ApplyAI("I could not produce anything useful.")
	assert.ErrorIs(t, err, ErrNothingExtracted)
	assert.Equal(t, before, s.Store.Snapshot())
	assert.False(t, s.Info().CanUndo)
}

func TestGenerateApply(t *testing.T) {
	m := newManager(t, "Sure:\n```html\n<h2>Generated</h2>\n```\n```js\nconsole.log(1)\n```")
	s, err := m.Create(context.Background(), CreateRequest{})
	require.NoError(t, err)

	res, f, err := s.Generate(context.Background(), "make a heading", false)
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Nil(t, f)
	assert.Equal(t, starter.Default(), s.Store.Snapshot())

	_, f, err = s.Generate(context.Background(), "make a heading", true)
	require.NoError(t, err)
	require.NotNil(t, f)
	snap := s.Store.Snapshot()
	assert.Equal(t, "<h2>Generated</h2>", snap.HTML)
	assert.Equal(t, "console.log(1)", snap.JS)
	assert.Equal(t, starter.Default().CSS, snap.CSS)
}

func TestQuickEditApply(t *testing.T) {
	m := newManager(t, "```css\nh1 { color: red; }\n```")
	s, err := m.Create(context.Background(), CreateRequest{})
	require.NoError(t, err)

	res, err := s.QuickEdit(context.Background(), buffer.CSS, "make the heading red", true)
	require.NoError(t, err)
	assert.Equal(t, "h1 { color: red; }", res.Text())
	assert.Equal(t, "h1 { color: red; }", s.Store.Snapshot().CSS)

	require.NoError(t, s.UndoAI())
	assert.Equal(t, starter.Default().CSS, s.Store.Snapshot().CSS)
}

func TestSaveBindsPen(t *testing.T) {
	m := newManager(t, "")
	ctx := context.Background()
	s, err := m.Create(ctx, CreateRequest{})
	require.NoError(t, err)

	pen, err := s.Save(ctx, SaveRequest{Title: "first", UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, pen.ID, s.PenID())

	_, err = s.Store.Set(buffer.HTML, "<p>v2</p>")
	require.NoError(t, err)
	again, err := s.Save(ctx, SaveRequest{Title: "second", UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, pen.ID, again.ID)
	assert.Equal(t, "<p>v2</p>", again.HTML)

	all, err := m.cfg.Pens.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSaveWithoutPenStore(t *testing.T) {
	m := NewManager(Config{})
	t.Cleanup(m.CloseAll)
	s, err := m.Create(context.Background(), CreateRequest{})
	require.NoError(t, err)
	_, err = s.Save(context.Background(), SaveRequest{Title: "x"})
	assert.ErrorIs(t, err, ErrNoPenStore)
}

func TestCloseAndCloseAll(t *testing.T) {
	m := NewManager(Config{})
	s, err := m.Create(context.Background(), CreateRequest{})
	require.NoError(t, err)

	require.NoError(t, m.Close(s.ID))
	assert.ErrorIs(t, m.Close(s.ID), ErrNotFound)
	_, err = m.Get(s.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = m.Create(context.Background(), CreateRequest{})
	require.NoError(t, err)
	m.CloseAll()
	assert.Empty(t, m.List())
	_, err = m.Create(context.Background(), CreateRequest{})
	assert.Error(t, err)
}

func startServer(t *testing.T, m *Manager) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	RegisterRoutes(r, m)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestRoutesLifecycle(t *testing.T) {
	m := newManager(t, "")
	srv := startServer(t, m)

	resp, info := doJSON(t, http.MethodPost, srv.URL+"/api/sessions", `{"template":"animated-card"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := info["id"].(string)
	base := srv.URL + "/api/sessions/" + id

	resp, out := doJSON(t, http.MethodPut, base+"/buffers/javascript", `{"source":"console.log('hi')"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, out["changed"])

	resp, _ = doJSON(t, http.MethodPut, base+"/buffers/python", `{"source":"x"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPut, base+"/viewport/device", `{"device":"tablet"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPut, base+"/mode", `{"mode":"responsive"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, frame := doJSON(t, http.MethodPut, base+"/viewport/device", `{"device":"tablet"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(768), frame["width"])

	resp, frame = doJSON(t, http.MethodPost, base+"/viewport/rotate", ``)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1024), frame["width"])

	resp, _ = doJSON(t, http.MethodPost, base+"/open", ``)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	exp, err := http.Get(base + "/export")
	require.NoError(t, err)
	defer exp.Body.Close()
	assert.Contains(t, exp.Header.Get("Content-Disposition"), ExportFilename)

	resp, _ = doJSON(t, http.MethodPost, base+"/ai/insert", `{"content":"no code here"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, base+"/ai/insert", "{\"content\":\"```html\\n<p>ai</p>\\n```\"}")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	s, _ := m.Get(id)
	assert.Equal(t, "<p>ai</p>", s.Store.Snapshot().HTML)

	resp, _ = doJSON(t, http.MethodPost, base+"/ai/undo", ``)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEqual(t, "<p>ai</p>", s.Store.Snapshot().HTML)

	resp, pen := doJSON(t, http.MethodPost, base+"/save", `{"title":"mine","user_id":"u"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "mine", pen["title"])

	page, err := http.Get(srv.URL + "/preview/" + id)
	require.NoError(t, err)
	page.Body.Close()
	assert.Equal(t, http.StatusOK, page.StatusCode)

	resp, _ = doJSON(t, http.MethodDelete, base, ``)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = doJSON(t, http.MethodGet, base, ``)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func readUntil(t *testing.T, conn *websocket.Conn, match func(wshost.Message) bool) wshost.Message {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		conn.SetReadDeadline(deadline)
		var msg wshost.Message
		require.NoError(t, conn.ReadJSON(&msg))
		if match(msg) {
			return msg
		}
	}
}

func TestBrowserEditRoundTrip(t *testing.T) {
	m := newManager(t, "")
	srv := startServer(t, m)
	s, err := m.Create(context.Background(), CreateRequest{})
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/sessions/" + s.ID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	first := readUntil(t, conn, func(m wshost.Message) bool { return m.Type == wshost.TypeContent })
	assert.Contains(t, first.Document, "Hello LivePen!")

	require.NoError(t, conn.WriteJSON(wshost.Message{Type: wshost.TypeEdit, Language: "html", Source: "<h1>Edited</h1>"}))
	edited := readUntil(t, conn, func(m wshost.Message) bool {
		return m.Type == wshost.TypeContent && strings.Contains(m.Document, "<h1>Edited</h1>")
	})
	assert.Equal(t, "<h1>Edited</h1>", s.Store.Snapshot().HTML)

	require.NoError(t, conn.WriteJSON(wshost.Message{Type: wshost.TypeLoaded, Context: edited.Context, Generation: edited.Generation}))
	require.Eventually(t, func() bool {
		return s.Controller.State() == preview.Idle &&
			uint64(s.Controller.Generation()) == edited.Generation
	}, 3*time.Second, 10*time.Millisecond)
}

func TestStandardModeJoinerGetsNoDeviceFrame(t *testing.T) {
	m := newManager(t, "")
	srv := startServer(t, m)
	s, err := m.Create(context.Background(), CreateRequest{Mode: surface.Responsive})
	require.NoError(t, err)
	require.NoError(t, s.Controller.Simulator().SelectDevice(viewport.Mobile))
	require.NoError(t, s.Controller.SetMode(surface.Standard))

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/sessions/" + s.ID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	first := readUntil(t, conn, func(m wshost.Message) bool { return m.Type == wshost.TypeContent })
	assert.Equal(t, string(surface.Standard), first.Mode)

	for {
		conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		var msg wshost.Message
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		require.NotEqual(t, wshost.TypeFrame, msg.Type, "unexpected frame %+v", msg.Frame)
	}
}
