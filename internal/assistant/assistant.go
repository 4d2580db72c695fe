// Package assistant is the AI collaborator: it builds prompts, calls an LLM
// provider and returns results in the {content, error} shape the editor
// consumes.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ziadkadry99/livepen/internal/buffer"
	"github.com/ziadkadry99/livepen/internal/extract"
	"github.com/ziadkadry99/livepen/internal/llm"
	"github.com/ziadkadry99/livepen/internal/logging"
	"github.com/ziadkadry99/livepen/internal/metrics"
)

// NotConfiguredMessage is returned when no provider is available.
const NotConfiguredMessage = "API key is not configured. Please add your Gemini API key to the environment variables."

const (
	msgInvalidStep  = "Invalid plan or step"
	msgNoEdit       = "Failed to generate code modifications"
	msgUnknownError = "Unknown error occurred"
)

// Result carries either generated content or an error message, never both.
type Result struct {
	Content *string `json:"content"`
	Error   *string `json:"error"`
}

// OK reports whether r holds content.
func (r Result) OK() bool { return r.Error == nil && r.Content != nil }

// Text returns the content, or "" on failure.
func (r Result) Text() string {
	if r.Content == nil {
		return ""
	}
	return *r.Content
}

// Err converts a failed result to an error.
func (r Result) Err() error {
	if r.Error == nil {
		return nil
	}
	return errors.New(*r.Error)
}

func success(content string) Result { return Result{Content: &content} }

func failure(msg string) Result { return Result{Error: &msg} }

// Options configures an Assistant.
type Options struct {
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	// VisionModel overrides the model for image requests.
	VisionModel string
}

// Assistant turns editor requests into provider completions. A nil provider
// is allowed; every call then fails with NotConfiguredMessage.
type Assistant struct {
	provider    llm.Provider
	visionModel string
	log         *zap.Logger
	metrics     *metrics.Metrics
}

// New creates an Assistant backed by provider.
func New(provider llm.Provider, opts Options) *Assistant {
	return &Assistant{
		provider:    provider,
		visionModel: opts.VisionModel,
		log:         logging.OrNop(opts.Logger),
		metrics:     opts.Metrics,
	}
}

// Configured reports whether a provider is available.
func (a *Assistant) Configured() bool { return a != nil && a.provider != nil }

func (a *Assistant) complete(ctx context.Context, req llm.CompletionRequest, op string) Result {
	if !a.Configured() {
		return failure(NotConfiguredMessage)
	}
	resp, err := a.provider.Complete(ctx, req)
	if err != nil {
		a.metrics.AIRequest("error")
		a.log.Warn("ai request failed", zap.String("op", op), zap.String("provider", a.provider.Name()), zap.Error(err))
		msg := err.Error()
		if msg == "" {
			msg = msgUnknownError
		}
		return failure(msg)
	}
	a.metrics.AIRequest("ok")
	a.log.Debug("ai request",
		zap.String("op", op),
		zap.String("model", resp.Model),
		zap.Int("input_tokens", resp.InputTokens),
		zap.Int("output_tokens", resp.OutputTokens))
	return success(resp.Content)
}

// Generate sends prompt as-is.
func (a *Assistant) Generate(ctx context.Context, prompt string) Result {
	return a.complete(ctx, llm.Prompt(prompt), "generate")
}

// GenerateCode asks for the code of the 1-based step of plan, formatted as
// separate html, css and javascript fenced blocks.
func (a *Assistant) GenerateCode(ctx context.Context, plan *Plan, step int) Result {
	if plan == nil || step < 1 || step > len(plan.Steps) {
		return failure(msgInvalidStep)
	}
	return a.complete(ctx, llm.Prompt(codePrompt(plan, plan.Steps[step-1])), "generate_code")
}

// QuickEdit asks for a modified version of code. When the reply wraps the
// code in a fenced block, only the block's contents are returned.
func (a *Assistant) QuickEdit(ctx context.Context, lang buffer.Language, code, instruction string) Result {
	prompt := fmt.Sprintf("I have the following %s code:\n\n%s\n\nI want to: %s\n\n"+
		"Please modify the code according to these instructions. Return ONLY the complete modified code without any explanations or markdown formatting.",
		lang, code, instruction)

	r := a.complete(ctx, llm.Prompt(prompt), "quick_edit")
	if !r.OK() {
		return r
	}
	content := r.Text()
	if strings.TrimSpace(content) == "" {
		return failure(msgNoEdit)
	}
	if block, ok := extract.FirstBlock(content); ok {
		return success(block)
	}
	return r
}

// ImageToCode converts a UI design image into html and css fenced blocks.
func (a *Assistant) ImageToCode(ctx context.Context, img llm.Image) Result {
	req := llm.CompletionRequest{
		Model: a.visionModel,
		Messages: []llm.Message{{
			Role: llm.RoleUser,
			Content: "Convert this UI design image to HTML and CSS code. Provide the complete code that would recreate this design as closely as possible. " +
				"Format your response with proper markdown code blocks using triple backticks and language identifiers for HTML and CSS. " +
				"Make sure to separate the HTML and CSS into different code blocks.",
			Images: []llm.Image{img},
		}},
	}
	return a.complete(ctx, req, "image_to_code")
}
