package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/ziadkadry99/livepen/internal/compose"
	"github.com/ziadkadry99/livepen/internal/extract"
	"github.com/ziadkadry99/livepen/internal/host/headless"
	"github.com/ziadkadry99/livepen/internal/starter"
)

func sourceFrom(request mcp.CallToolRequest) compose.Source {
	return compose.Source{
		HTML: request.GetString("html", ""),
		CSS:  request.GetString("css", ""),
		JS:   request.GetString("js", ""),
	}
}

// jsonResult renders v as indented JSON with markup left unescaped.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding result: %v", err)), nil
	}
	return mcp.NewToolResultText(strings.TrimRight(buf.String(), "\n")), nil
}

// handleComposeDocument returns the composed document.
func (s *Server) handleComposeDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	src := sourceFrom(request)
	if request.GetBool("standalone", false) {
		return mcp.NewToolResultText(src.Standalone()), nil
	}
	return mcp.NewToolResultText(src.Compose()), nil
}

// handleExtractCodeBlocks routes fenced blocks to buffers.
func (s *Server) handleExtractCodeBlocks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := request.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: content"), nil
	}
	f := extract.Extract(content)
	if f.Empty() {
		return mcp.NewToolResultText("No html, css or js code blocks found."), nil
	}
	return jsonResult(f)
}

// handleRenderHeadless runs the composed document and reports the outcome.
func (s *Server) handleRenderHeadless(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	src := sourceFrom(request)
	if id := request.GetString("pen_id", ""); id != "" {
		if s.pens == nil {
			return mcp.NewToolResultError("pen storage is not available"), nil
		}
		pen, err := s.pens.GetByID(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("loading pen: %v", err)), nil
		}
		if pen == nil {
			return mcp.NewToolResultError(fmt.Sprintf("pen %q not found", id)), nil
		}
		src = pen.Source()
	}

	report, err := headless.Run(ctx, src.Compose(), s.timeout)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("render failed: %v", err)), nil
	}
	s.log.Debug("headless render",
		zap.Int("console", len(report.Console)),
		zap.Int("errors", len(report.Errors)),
		zap.Duration("duration", report.Duration))
	return jsonResult(report)
}

// handleListTemplates lists the starter templates.
func (s *Server) handleListTemplates(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category := request.GetString("category", "")
	out := []starter.Template{}
	for _, t := range starter.All() {
		if category == "" || t.Category == category {
			out = append(out, t)
		}
	}
	return jsonResult(out)
}

// handleGetPen returns a saved pen.
func (s *Server) handleGetPen(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}
	pen, err := s.pens.GetByID(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("loading pen: %v", err)), nil
	}
	if pen == nil {
		return mcp.NewToolResultError(fmt.Sprintf("pen %q not found", id)), nil
	}
	return jsonResult(pen)
}
