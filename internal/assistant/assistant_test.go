package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ziadkadry99/livepen/internal/buffer"
	"github.com/ziadkadry99/livepen/internal/llm"
	"github.com/ziadkadry99/livepen/internal/metrics"
)

type fakeProvider struct {
	mu    sync.Mutex
	reply string
	err   error
	calls []llm.CompletionRequest
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.CompletionResponse{Content: f.reply, Model: "fake-1"}, nil
}

func (f *fakeProvider) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.calls[len(f.calls)-1].Messages
	return msgs[len(msgs)-1].Content
}

func TestNotConfigured(t *testing.T) {
	a := New(nil, Options{})
	r := a.Generate(context.Background(), "hello")
	require.NotNil(t, r.Error)
	assert.Nil(t, r.Content)
	assert.Equal(t, NotConfiguredMessage, *r.Error)

	p := a.GeneratePlan(context.Background(), "todo app")
	require.NotNil(t, p.Error)
	assert.Equal(t, NotConfiguredMessage, *p.Error)
}

func TestGenerate(t *testing.T) {
	fp := &fakeProvider{reply: "```css\np{}\n```"}
	m := metrics.New()
	a := New(fp, Options{Metrics: m})

	r := a.Generate(context.Background(), "make it blue")
	require.True(t, r.OK())
	assert.Equal(t, "```css\np{}\n```", r.Text())
	assert.Equal(t, "make it blue", fp.lastPrompt())
	assert.NoError(t, r.Err())
}

func TestProviderErrorBecomesResult(t *testing.T) {
	fp := &fakeProvider{err: errors.New("quota exceeded")}
	a := New(fp, Options{})
	r := a.Generate(context.Background(), "x")
	require.NotNil(t, r.Error)
	assert.Equal(t, "quota exceeded", *r.Error)
	assert.EqualError(t, r.Err(), "quota exceeded")
}

func TestAIRequestMetric(t *testing.T) {
	m := metrics.New()
	fp := &fakeProvider{reply: "ok"}
	a := New(fp, Options{Metrics: m})
	a.Generate(context.Background(), "x")
	fp.err = errors.New("boom")
	a.Generate(context.Background(), "x")

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	var found bool
	for _, f := range families {
		if f.GetName() == "livepen_ai_requests_total" {
			found = true
			assert.Len(t, f.GetMetric(), 2)
		}
	}
	assert.True(t, found)
}

func TestQuickEditStripsFence(t *testing.T) {
	fp := &fakeProvider{reply: "Here:\n```css\n.card { color: blue; }\n```\nDone."}
	a := New(fp, Options{})

	r := a.QuickEdit(context.Background(), buffer.CSS, ".card { color: red; }", "make it blue")
	require.True(t, r.OK())
	assert.Equal(t, ".card { color: blue; }", r.Text())

	prompt := fp.lastPrompt()
	assert.True(t, strings.HasPrefix(prompt, "I have the following css code:\n\n.card { color: red; }"))
	assert.Contains(t, prompt, "I want to: make it blue")
}

func TestQuickEditPlainReply(t *testing.T) {
	fp := &fakeProvider{reply: "body { margin: 0 }"}
	r := New(fp, Options{}).QuickEdit(context.Background(), buffer.CSS, "", "reset")
	require.True(t, r.OK())
	assert.Equal(t, "body { margin: 0 }", r.Text())

	fp.reply = "  "
	r = New(fp, Options{}).QuickEdit(context.Background(), buffer.CSS, "", "reset")
	require.NotNil(t, r.Error)
	assert.Equal(t, msgNoEdit, *r.Error)
}

func TestGeneratePlan(t *testing.T) {
	fp := &fakeProvider{reply: "Sure! Here is the plan:\n" + `{
  "title": "Todo",
  "overview": "A todo list",
  "steps": [{"id": 1, "name": "Markup", "description": "Write the list", "estimatedTime": "1h",
    "codeFiles": [{"filename": "index.html", "language": "html", "purpose": "page"}]}],
  "technologies": ["HTML", "CSS"]
}` + "\nGood luck."}
	a := New(fp, Options{})

	res := a.GeneratePlan(context.Background(), "a todo list")
	require.Nil(t, res.Error)
	require.NotNil(t, res.Plan)
	assert.Equal(t, "Todo", res.Plan.Title)
	require.Len(t, res.Plan.Steps, 1)
	assert.Equal(t, "index.html", res.Plan.Steps[0].CodeFiles[0].Filename)
	assert.Contains(t, fp.lastPrompt(), "a todo list")

	code := a.GenerateCode(context.Background(), res.Plan, 1)
	require.True(t, code.OK())
	prompt := fp.lastPrompt()
	assert.Contains(t, prompt, "Project: Todo")
	assert.Contains(t, prompt, "Technologies: HTML, CSS")
	assert.Contains(t, prompt, "Step 1: Markup")
}

func TestGeneratePlanUnparseable(t *testing.T) {
	fp := &fakeProvider{reply: "no json here"}
	res := New(fp, Options{}).GeneratePlan(context.Background(), "x")
	require.NotNil(t, res.Error)
	assert.Equal(t, "Could not parse the response as JSON", *res.Error)

	fp.reply = "{not: json}"
	res = New(fp, Options{}).GeneratePlan(context.Background(), "x")
	require.NotNil(t, res.Error)
	assert.Equal(t, "Failed to parse the AI response as JSON", *res.Error)
}

func TestGenerateCodeInvalidStep(t *testing.T) {
	fp := &fakeProvider{reply: "x"}
	a := New(fp, Options{})
	plan := &Plan{Title: "p", Steps: []Step{{ID: 1}}}

	for _, step := range []int{0, 2} {
		r := a.GenerateCode(context.Background(), plan, step)
		require.NotNil(t, r.Error)
		assert.Equal(t, "Invalid plan or step", *r.Error)
	}
	r := a.GenerateCode(context.Background(), nil, 1)
	require.NotNil(t, r.Error)
	assert.Empty(t, fp.calls)
}

func TestImageToCodeUsesVisionModel(t *testing.T) {
	fp := &fakeProvider{reply: "```html\n<p>x</p>\n```"}
	a := New(fp, Options{VisionModel: "vision-1"})
	img := llm.Image{MIMEType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}}

	r := a.ImageToCode(context.Background(), img)
	require.True(t, r.OK())
	req := fp.calls[0]
	assert.Equal(t, "vision-1", req.Model)
	require.Len(t, req.Messages[0].Images, 1)
	assert.Equal(t, "image/png", req.Messages[0].Images[0].MIMEType)
}
