// Package sourceview renders a read-only page showing a pen's description
// and highlighted buffers.
package sourceview

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
)

// Page is the content of one source view.
type Page struct {
	Title       string
	Description string // markdown
	HTML        string
	CSS         string
	JS          string
	// PreviewURL links back to a live preview when non-empty.
	PreviewURL string
}

// Section is one rendered buffer.
type Section struct {
	Language string
	Body     template.HTML
}

var (
	prose = goldmark.New(goldmark.WithExtensions(extension.GFM))
	code  = goldmark.New(goldmark.WithExtensions(
		highlighting.NewHighlighting(highlighting.WithStyle("github")),
	))
	sanitizer = bluemonday.UGCPolicy()
	page      = template.Must(template.New("source").Parse(pageTemplate))
)

// Description renders markdown and strips anything unsafe.
func Description(md string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := prose.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("converting description: %w", err)
	}
	return template.HTML(sanitizer.SanitizeBytes(buf.Bytes())), nil
}

// Highlight renders source as a highlighted block for lang.
func Highlight(lang, source string) (template.HTML, error) {
	fence := "```"
	for strings.Contains(source, fence) {
		fence += "`"
	}
	md := fence + lang + "\n" + source + "\n" + fence + "\n"
	var buf bytes.Buffer
	if err := code.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("highlighting %s: %w", lang, err)
	}
	return template.HTML(buf.String()), nil
}

// Render writes the complete source page for p.
func Render(w io.Writer, p Page) error {
	desc, err := Description(p.Description)
	if err != nil {
		return err
	}
	data := struct {
		Title       string
		Description template.HTML
		PreviewURL  string
		Sections    []Section
	}{Title: p.Title, Description: desc, PreviewURL: p.PreviewURL}

	for _, b := range []struct{ lang, src string }{{"html", p.HTML}, {"css", p.CSS}, {"javascript", p.JS}} {
		if strings.TrimSpace(b.src) == "" {
			continue
		}
		body, err := Highlight(b.lang, b.src)
		if err != nil {
			return err
		}
		data.Sections = append(data.Sections, Section{Language: b.lang, Body: body})
	}
	if err := page.Execute(w, data); err != nil {
		return fmt.Errorf("executing source template: %w", err)
	}
	return nil
}

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}} · source</title>
<style>
body{font-family:system-ui,sans-serif;max-width:960px;margin:2rem auto;padding:0 1rem;color:#1f2328}
h2{font-size:.85rem;text-transform:uppercase;letter-spacing:.05em;color:#57606a}
pre{padding:1rem;border-radius:6px;overflow:auto;border:1px solid #d0d7de}
.description{margin-bottom:2rem}
</style>
</head>
<body>
<h1>{{.Title}}</h1>
{{if .PreviewURL}}<p><a href="{{.PreviewURL}}">Open live preview</a></p>{{end}}
<div class="description">{{.Description}}</div>
{{range .Sections}}<section>
<h2>{{.Language}}</h2>
{{.Body}}
</section>
{{end}}</body>
</html>
`
