package extract

import (
	"testing"

	"github.com/ziadkadry99/livepen/internal/buffer"
)

func deref(p *string) string {
	if p == nil {
		return "<nil>"
	}
	return *p
}

func TestExtractTaggedBlocks(t *testing.T) {
	content := "Here you go:\n\n```html\n<div class=\"card\">Hi</div>\n```\n\n```CSS\n.card { color: red; }\n```\n\n```javascript\nconsole.log('a');\n```\n\n```js\nconsole.log('second');\n```\n"
	f := Extract(content)

	if got := deref(f.HTML); got != `<div class="card">Hi</div>` {
		t.Errorf("html = %q", got)
	}
	if got := deref(f.CSS); got != ".card { color: red; }" {
		t.Errorf("css = %q", got)
	}
	if got := deref(f.JS); got != "console.log('a');" {
		t.Errorf("first js block should win, got %q", got)
	}
}

func TestExtractPartialLeavesOthersNil(t *testing.T) {
	f := Extract("```css\nbody{margin:0}\n```\n\n```\n<p>ignored</p>\n```")
	if f.CSS == nil || *f.CSS != "body{margin:0}" {
		t.Fatalf("css = %q", deref(f.CSS))
	}
	if f.HTML != nil || f.JS != nil {
		t.Errorf("untagged block must be ignored when tagged blocks exist: %+v", f)
	}
	if got := f.Updates(); len(got) != 1 || got[buffer.CSS] != "body{margin:0}" {
		t.Errorf("unexpected updates %v", got)
	}
}

func TestExtractUntaggedFallback(t *testing.T) {
	tests := []struct {
		name    string
		content string
		lang    buffer.Language
		code    string
	}{
		{"markup", "```\n<button>Go</button>\n```", buffer.HTML, "<button>Go</button>"},
		{"css", "```\n.a { color: blue; }\n```", buffer.CSS, ".a { color: blue; }"},
		{"function braces", "```\nfunction f() { return 1 }\n```", buffer.JS, "function f() { return 1 }"},
		{"listener", "```\nwindow.addEventListener('x', () => { go() })\n```", buffer.JS, "window.addEventListener('x', () => { go() })"},
		{"plain script", "```\nlet x = 1\n```", buffer.JS, "let x = 1"},
		{"full document", "```\n<!DOCTYPE html>\n<html><head><title>t</title></head><body>\n<h1>Hello</h1>\n</body></html>\n```", buffer.HTML, "<h1>Hello</h1>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Extract(tt.content)
			var got *string
			switch tt.lang {
			case buffer.HTML:
				got = f.HTML
			case buffer.CSS:
				got = f.CSS
			case buffer.JS:
				got = f.JS
			}
			if deref(got) != tt.code {
				t.Errorf("%s = %q, want %q (all: %+v)", tt.lang, deref(got), tt.code, f)
			}
			if len(f.Updates()) != 1 {
				t.Errorf("expected exactly one buffer routed, got %v", f.Updates())
			}
		})
	}
}

func TestExtractOnlyFirstUntagged(t *testing.T) {
	f := Extract("```\n.a{b:c}\n```\n\n```\n<p>x</p>\n```")
	if f.CSS == nil || f.HTML != nil {
		t.Errorf("expected only the first untagged block to route: %+v", f)
	}
}

func TestExtractNoBlocks(t *testing.T) {
	f := Extract("Sorry, I can't help with that <b>today</b>.")
	if !f.Empty() {
		t.Errorf("expected nothing extracted, got %+v", f)
	}
	f = Extract("```python\nprint(1)\n```")
	if !f.Empty() {
		t.Errorf("foreign-language block must not be routed, got %+v", f)
	}
}

func TestFirstBlock(t *testing.T) {
	code, ok := FirstBlock("Updated:\n```css\np { color: green; }\n```\n```js\nx()\n```")
	if !ok || code != "p { color: green; }" {
		t.Errorf("FirstBlock = %q, %v", code, ok)
	}
	if _, ok := FirstBlock("no code"); ok {
		t.Error("expected no block")
	}
}

func TestClassifyFullDocumentWithoutBody(t *testing.T) {
	lang, code := Classify("<html><p>x</p></html>")
	if lang != buffer.HTML || code != "<html><p>x</p></html>" {
		t.Errorf("got %s %q", lang, code)
	}
}

func TestExtractEmptyFenceKeepsBuffer(t *testing.T) {
	f := Extract("```css\n```\n\n```html\n<p>x</p>\n```")
	if f.CSS != nil {
		t.Errorf("empty css fence must not clear the buffer, got %q", *f.CSS)
	}
	if deref(f.HTML) != "<p>x</p>" {
		t.Errorf("html = %q", deref(f.HTML))
	}

	f = Extract("```css\n```\n```css\nb{}\n```")
	if deref(f.CSS) != "b{}" {
		t.Errorf("later non-empty css block should be used, got %q", deref(f.CSS))
	}

	if f := Extract("```\n```"); !f.Empty() {
		t.Errorf("empty untagged fence routed: %+v", f)
	}
}

func TestClassifyKeepsBodyMarkupVerbatim(t *testing.T) {
	doc := "<!DOCTYPE html>\n<html><head></head><BODY class=\"x\">\n<IMG SRC=a.png><br/><input disabled>\n</BODY></html>"
	lang, code := Classify(doc)
	if lang != buffer.HTML {
		t.Fatalf("lang = %s", lang)
	}
	if want := "<IMG SRC=a.png><br/><input disabled>"; code != want {
		t.Errorf("body = %q, want %q", code, want)
	}
}
