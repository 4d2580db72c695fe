// Package extract routes fenced code blocks from AI output into the html,
// css and js buffers.
package extract

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/ziadkadry99/livepen/internal/buffer"
)

// Block is one fenced code block.
type Block struct {
	Lang string // lowercased info string language, empty when untagged
	Code string
}

// Fragments holds at most one snippet per language. A nil field means the
// corresponding buffer must be left alone.
type Fragments struct {
	HTML *string `json:"html,omitempty"`
	CSS  *string `json:"css,omitempty"`
	JS   *string `json:"js,omitempty"`
}

// Empty reports whether nothing was extracted.
func (f Fragments) Empty() bool {
	return f.HTML == nil && f.CSS == nil && f.JS == nil
}

// Updates converts f to a buffer update set.
func (f Fragments) Updates() map[buffer.Language]string {
	out := make(map[buffer.Language]string, 3)
	if f.HTML != nil {
		out[buffer.HTML] = *f.HTML
	}
	if f.CSS != nil {
		out[buffer.CSS] = *f.CSS
	}
	if f.JS != nil {
		out[buffer.JS] = *f.JS
	}
	return out
}

var md = goldmark.New()

// Blocks returns every fenced code block in content, in document order.
func Blocks(content string) []Block {
	src := []byte(content)
	doc := md.Parser().Parse(text.NewReader(src))

	var blocks []Block
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fcb, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		var buf bytes.Buffer
		lines := fcb.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(src))
		}
		blocks = append(blocks, Block{
			Lang: strings.ToLower(string(fcb.Language(src))),
			Code: strings.TrimSpace(buf.String()),
		})
		return ast.WalkSkipChildren, nil
	})
	return blocks
}

// FirstBlock returns the code of the first fenced block of any language.
func FirstBlock(content string) (string, bool) {
	blocks := Blocks(content)
	if len(blocks) == 0 {
		return "", false
	}
	return blocks[0].Code, true
}

// Extract picks the first non-empty html, css and javascript/js block. When
// none of those tags is present, the first non-empty untagged block is
// classified and routed to a single buffer. Content without fenced blocks
// yields nothing.
func Extract(content string) Fragments {
	blocks := Blocks(content)

	var f Fragments
	tagged := false
	for _, b := range blocks {
		var slot **string
		switch b.Lang {
		case "html":
			slot = &f.HTML
		case "css":
			slot = &f.CSS
		case "javascript", "js":
			slot = &f.JS
		default:
			continue
		}
		tagged = true
		// Empty fences never clear a buffer.
		if b.Code != "" && *slot == nil {
			code := b.Code
			*slot = &code
		}
	}
	if tagged {
		return f
	}

	for _, b := range blocks {
		if b.Lang != "" || b.Code == "" {
			continue
		}
		lang, code := Classify(b.Code)
		switch lang {
		case buffer.HTML:
			f.HTML = &code
		case buffer.CSS:
			f.CSS = &code
		default:
			f.JS = &code
		}
		break
	}
	return f
}

// Classify guesses the language of an untagged snippet. Full documents are
// reduced to their body content. The guess is best-effort only: markup is
// anything with angle brackets, CSS is braces without common script
// keywords, and everything else is JavaScript.
func Classify(code string) (buffer.Language, string) {
	switch {
	case strings.Contains(code, "<html") || strings.Contains(code, "<!DOCTYPE"):
		return buffer.HTML, bodyOf(code)
	case strings.Contains(code, "<") && strings.Contains(code, ">"):
		return buffer.HTML, code
	case strings.Contains(code, "{") && strings.Contains(code, "}") &&
		!strings.Contains(code, "function") &&
		!strings.Contains(code, "addEventListener") &&
		!strings.Contains(code, "console.log"):
		return buffer.CSS, code
	}
	return buffer.JS, code
}

var bodyPattern = regexp.MustCompile(`(?is)<body[^>]*>(.*?)</body>`)

// bodyOf returns the markup between the first <body> and </body> exactly as
// written, or the whole document when there is no non-empty body.
func bodyOf(document string) string {
	m := bodyPattern.FindStringSubmatch(document)
	if m == nil || strings.TrimSpace(m[1]) == "" {
		return document
	}
	return strings.TrimSpace(m[1])
}
