// Package viewport simulates device frames around a render surface.
package viewport

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/ziadkadry99/livepen/internal/surface"
)

// Device names a profile preset.
type Device string

const (
	Mobile  Device = "mobile"
	Tablet  Device = "tablet"
	Desktop Device = "desktop"
	Custom  Device = "custom"
)

// Custom size bounds and scale limits.
const (
	MinCustomSize = 320
	MaxCustomSize = 2560

	MinScale  = 0.25
	MaxScale  = 2.0
	ScaleStep = 0.25
)

// Profile is an immutable device preset.
type Profile struct {
	Device Device `json:"device"`
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

var profiles = map[Device]Profile{
	Mobile:  {Device: Mobile, Name: "Mobile", Width: 375, Height: 667},
	Tablet:  {Device: Tablet, Name: "Tablet", Width: 768, Height: 1024},
	Desktop: {Device: Desktop, Name: "Desktop", Width: 1280, Height: 800},
	Custom:  {Device: Custom, Name: "Custom", Width: 1024, Height: 768},
}

// Profiles lists the presets in toolbar order.
func Profiles() []Profile {
	return []Profile{profiles[Mobile], profiles[Tablet], profiles[Desktop], profiles[Custom]}
}

// ParseDevice validates a device name.
func ParseDevice(s string) (Device, error) {
	d := Device(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := profiles[d]; !ok {
		return "", fmt.Errorf("unknown device %q: must be mobile, tablet, desktop or custom", s)
	}
	return d, nil
}

// Frame is the outer frame geometry hosts size the iframe container with.
type Frame struct {
	Device       Device  `json:"device"`
	Width        int     `json:"width"`
	Height       int     `json:"height"`
	Rotated      bool    `json:"rotated"`
	Scale        float64 `json:"scale"`
	ScaledWidth  float64 `json:"scaled_width"`
	ScaledHeight float64 `json:"scaled_height"`
	Fullscreen   bool    `json:"fullscreen"`
	Label        string  `json:"label"`
	ScaleLabel   string  `json:"scale_label"`
}

// Simulator tracks device, rotation, scale and fullscreen for one embedded
// surface. It never composes documents.
type Simulator struct {
	mu sync.Mutex

	surface *surface.Surface

	device       Device
	rotated      bool
	customWidth  int
	customHeight int
	scale        float64
	fullscreen   bool

	onChange func(Frame)
}

// New wraps s. The simulator takes ownership of the surface.
func New(s *surface.Surface) *Simulator {
	c := profiles[Custom]
	return &Simulator{
		surface:      s,
		device:       Desktop,
		customWidth:  c.Width,
		customHeight: c.Height,
		scale:        1,
	}
}

// Surface returns the embedded render surface.
func (v *Simulator) Surface() *surface.Surface { return v.surface }

// Render delegates to the embedded surface.
func (v *Simulator) Render(gen surface.Generation, document string) error {
	return v.surface.Render(gen, document)
}

// Destroy releases the embedded surface.
func (v *Simulator) Destroy() error {
	v.mu.Lock()
	v.onChange = nil
	v.mu.Unlock()
	return v.surface.Destroy()
}

// OnChange registers the listener called with the new frame after every
// state change.
func (v *Simulator) OnChange(fn func(Frame)) {
	v.mu.Lock()
	v.onChange = fn
	v.mu.Unlock()
}

// SelectDevice switches profile and clears rotation. Selecting custom also
// restores the default custom size.
func (v *Simulator) SelectDevice(d Device) error {
	if _, ok := profiles[d]; !ok {
		return fmt.Errorf("unknown device %q", d)
	}
	v.update(func() {
		v.device = d
		v.rotated = false
		if d == Custom {
			v.customWidth = profiles[Custom].Width
			v.customHeight = profiles[Custom].Height
		}
	})
	return nil
}

// Rotate toggles orientation. Stored custom dimensions are not modified.
func (v *Simulator) Rotate() {
	v.update(func() { v.rotated = !v.rotated })
}

// SetCustomSize stores the custom dimensions, each clamped to
// [MinCustomSize, MaxCustomSize].
func (v *Simulator) SetCustomSize(width, height int) {
	v.update(func() {
		v.customWidth = clampInt(width, MinCustomSize, MaxCustomSize)
		v.customHeight = clampInt(height, MinCustomSize, MaxCustomSize)
	})
}

// SetScale adds delta to the scale and clamps it to [MinScale, MaxScale].
func (v *Simulator) SetScale(delta float64) {
	v.update(func() {
		s := math.Round((v.scale+delta)/ScaleStep) * ScaleStep
		v.scale = math.Min(MaxScale, math.Max(MinScale, s))
	})
}

func (v *Simulator) ZoomIn()  { v.SetScale(ScaleStep) }
func (v *Simulator) ZoomOut() { v.SetScale(-ScaleStep) }

// ToggleFullscreen flips the fullscreen flag and returns the new value.
func (v *Simulator) ToggleFullscreen() bool {
	var on bool
	v.update(func() {
		v.fullscreen = !v.fullscreen
		on = v.fullscreen
	})
	return on
}

// SetFullscreen sets the fullscreen flag without notifying when unchanged.
func (v *Simulator) SetFullscreen(on bool) {
	v.mu.Lock()
	same := v.fullscreen == on
	v.mu.Unlock()
	if !same {
		v.update(func() { v.fullscreen = on })
	}
}

// Frame returns the current effective geometry.
func (v *Simulator) Frame() Frame {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.frameLocked()
}

// CustomSize returns the stored custom dimensions, unaffected by rotation.
func (v *Simulator) CustomSize() (int, int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.customWidth, v.customHeight
}

func (v *Simulator) update(mutate func()) {
	v.mu.Lock()
	mutate()
	f := v.frameLocked()
	fn := v.onChange
	v.mu.Unlock()
	if fn != nil {
		fn(f)
	}
}

func (v *Simulator) frameLocked() Frame {
	p := profiles[v.device]
	w, h := p.Width, p.Height
	if v.device == Custom {
		w, h = v.customWidth, v.customHeight
	}
	if v.rotated {
		w, h = h, w
	}
	label := fmt.Sprintf("%s - %d × %d", p.Name, w, h)
	if v.rotated {
		label += " (Rotated)"
	}
	return Frame{
		Device:       v.device,
		Width:        w,
		Height:       h,
		Rotated:      v.rotated,
		Scale:        v.scale,
		ScaledWidth:  float64(w) * v.scale,
		ScaledHeight: float64(h) * v.scale,
		Fullscreen:   v.fullscreen,
		Label:        label,
		ScaleLabel:   fmt.Sprintf("%d%%", int(math.Round(v.scale*100))),
	}
}

func clampInt(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
