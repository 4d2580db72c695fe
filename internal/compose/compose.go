// Package compose assembles the three playground buffers into one executable
// markup document.
//
// Nothing here escapes or sanitizes its input. The preview exists to execute
// arbitrary user code, so the trust boundary is the iframe sandbox of the
// host that renders the document, not this package.
package compose

import "strings"

// Source is the html/css/js triple a document is composed from.
type Source struct {
	HTML string `json:"html"`
	CSS  string `json:"css"`
	JS   string `json:"js"`
}

// Compose returns Compose(s.HTML, s.CSS, s.JS).
func (s Source) Compose() string { return Compose(s.HTML, s.CSS, s.JS) }

// Standalone returns Standalone(s.HTML, s.CSS, s.JS).
func (s Source) Standalone() string { return Standalone(s.HTML, s.CSS, s.JS) }

// IsEmpty reports whether all three buffers are blank.
func (s Source) IsEmpty() bool {
	return strings.TrimSpace(s.HTML) == "" && strings.TrimSpace(s.CSS) == "" && strings.TrimSpace(s.JS) == ""
}

const (
	boundaryOpen  = "try {\n"
	boundaryClose = "\n} catch (error) {\n  console.error('Error in JS execution:', error);\n}"

	viewportMeta = `<meta name="viewport" content="width=device-width, initial-scale=1.0" />`
)

// Wrap places js inside the failure boundary used by every composed
// document. A throw inside js is caught and reported to console.error.
func Wrap(js string) string {
	return boundaryOpen + js + boundaryClose
}

// Compose returns the executable document for the given fragments: css in a
// style block, html in the body, then js in a script block behind the
// failure boundary.
func Compose(html, css, js string) string {
	var b strings.Builder
	b.Grow(len(html) + len(css) + len(js) + 256)
	writeDocument(&b, html, css, js, false)
	return b.String()
}

// Standalone is Compose with a doctype and the charset/viewport meta header,
// the form used for downloads and new top-level windows.
func Standalone(html, css, js string) string {
	var b strings.Builder
	b.Grow(len(html) + len(css) + len(js) + 384)
	b.WriteString("<!DOCTYPE html>\n")
	writeDocument(&b, html, css, js, true)
	return b.String()
}

func writeDocument(b *strings.Builder, html, css, js string, header bool) {
	b.WriteString("<html>\n<head>\n")
	if header {
		b.WriteString(`<meta charset="UTF-8" />` + "\n")
		b.WriteString(viewportMeta + "\n")
	}
	b.WriteString("<style>")
	b.WriteString(css)
	b.WriteString("</style>\n</head>\n<body>\n")
	b.WriteString(html)
	b.WriteString("\n<script>\n")
	b.WriteString(Wrap(js))
	b.WriteString("\n</script>\n</body>\n</html>\n")
}
