package wshost

import (
	"github.com/ziadkadry99/livepen/internal/viewport"
)

// Message types exchanged with the browser.
const (
	TypeContent = "content" // server -> browser: replace iframe document
	TypeLoaded  = "loaded"  // browser -> server: iframe finished loading
	TypeEdit    = "edit"    // browser -> server: buffer edit
	TypeRefresh = "refresh" // browser -> server: manual refresh
	TypeFrame   = "frame"   // server -> browser: simulated device frame
	TypeStatus  = "status"  // server -> browser: controller status
	TypeOpen    = "open"    // server -> browser: open URL in a new tab
	TypeError   = "error"
)

// Message is the single envelope used in both directions.
type Message struct {
	Type       string          `json:"type"`
	Context    string          `json:"context,omitempty"`
	Generation uint64          `json:"generation,omitempty"`
	Mode       string          `json:"mode,omitempty"`
	Document   string          `json:"document,omitempty"`
	Sandbox    string          `json:"sandbox,omitempty"`
	Language   string          `json:"language,omitempty"`
	Source     string          `json:"source,omitempty"`
	URL        string          `json:"url,omitempty"`
	Frame      *viewport.Frame `json:"frame,omitempty"`
	Status     any             `json:"status,omitempty"`
	Error      string          `json:"error,omitempty"`
}
