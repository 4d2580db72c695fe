package wshost

import (
	"bytes"
	_ "embed"
	"html/template"
	"net/http"

	"github.com/ziadkadry99/livepen/internal/surface"
)

//go:embed preview.html
var previewHTML string

var previewTmpl = template.Must(template.New("preview").Parse(previewHTML))

type pageData struct {
	Sandbox    string
	SocketPath string
}

// RenderPage returns the preview host page for a session. The iframe carries
// exactly surface.SandboxPolicy.
func RenderPage(socketPath string) ([]byte, error) {
	var buf bytes.Buffer
	err := previewTmpl.Execute(&buf, pageData{Sandbox: surface.SandboxPolicy, SocketPath: socketPath})
	return buf.Bytes(), err
}

// ServePage writes the preview host page attached to socketPath.
func ServePage(w http.ResponseWriter, socketPath string) {
	page, err := RenderPage(socketPath)
	if err != nil {
		http.Error(w, "rendering preview page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}
