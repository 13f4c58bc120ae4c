// Package render implements Component E: the per-tick WS2812 render loop.
// Animation formulas are ported from the firmware's Gradient/Pulse/Still
// functions; colors are written through tinygo.org/x/drivers/ws2812.
package render

import (
	"image/color"

	"github.com/tuffrabit/tinygo-chainhead/pkg/chain"
	"github.com/tuffrabit/tinygo-chainhead/pkg/config"
)

// Strip is the subset of ws2812.Device the render loop needs, so tests can
// substitute a fake strip instead of real hardware.
type Strip interface {
	WriteColors(cs []color.RGBA) error
}

// Loop paints one LED per chain slot every tick, per §4.E.
type Loop struct {
	Strip  Strip
	Table  *chain.Table
	Config *config.Config

	// CaptureMode mirrors the firmware's sendBtnPressesOverSerial: while
	// true, a pressed slot paints solid blue and a released slot paints
	// solid white, overriding per-slot config (used while the desktop
	// control channel is in "capture next keypress" mode, §4.E).
	CaptureMode bool

	cycle uint32
	buf   []color.RGBA
}

// New allocates a render loop for slotCount slots.
func New(strip Strip, table *chain.Table, cfg *config.Config, slotCount int) *Loop {
	return &Loop{
		Strip:  strip,
		Table:  table,
		Config: cfg,
		buf:    make([]color.RGBA, slotCount),
	}
}

// SetSlot and Show implement chain.Painter, letting pkg/chain.Enumerator
// paint enumeration progress through the same strip without pkg/chain
// importing pkg/render — pkg/render already imports pkg/chain for
// Table/ButtonState, so that direction would be a cycle.
func (l *Loop) SetSlot(slot int, r, g, b uint8) {
	if slot < 0 || slot >= len(l.buf) {
		return
	}
	l.buf[slot] = color.RGBA{R: uint8(r), G: uint8(g), B: uint8(b), A: 255}
}

func (l *Loop) Show() {
	l.Strip.WriteColors(l.buf)
}

// Tick paints every slot for the current state/config, advances the
// animation cycle counter, and pushes the frame to the strip.
func (l *Loop) Tick() {
	for slot := 0; slot < len(l.buf); slot++ {
		l.buf[slot] = l.paintSlot(slot)
	}

	l.cycle++
	l.Strip.WriteColors(l.buf)
}

func (l *Loop) paintSlot(slot int) color.RGBA {
	state := l.Table.Get(chain.BaseAssignAddr + slot)
	configured := l.Config != nil && slot < len(l.Config.Slots)

	if state == chain.Pressed {
		if configured {
			if l.CaptureMode {
				return rgba(0, 0, 255)
			}
			if press := l.Config.Slots[slot].Press; press != nil {
				return rgba(press.Color.R, press.Color.G, press.Color.B)
			}
		}
		return rgba(0, 255, 0)
	}

	if configured {
		if l.CaptureMode {
			return rgba(255, 255, 255)
		}
		if idle := l.Config.Slots[slot].Idle; idle != nil {
			return l.animate(slot, idle)
		}
	}
	return rgba(255, 0, 0)
}

func (l *Loop) animate(slot int, idle *config.IdleAnimation) color.RGBA {
	switch idle.Type {
	case config.Gradient:
		return l.gradient(slot)
	case config.Pulse:
		return l.pulse(idle)
	case config.Still:
		return rgba(idle.Color.R, idle.Color.G, idle.Color.B)
	default:
		return rgba(255, 0, 0)
	}
}

// gradient is a per-slot phase offset around a shared 256-step color wheel,
// driven by cycle>>2 so the whole chain visibly rotates together.
func (l *Loop) gradient(slot int) color.RGBA {
	n := len(l.buf)
	if n == 0 {
		n = 1
	}
	phase := uint8((uint32(slot)*256/uint32(n) + (l.cycle >> 2)) & 0xFF)
	return wheelColor(255 - phase)
}

// wheelColor maps a single byte to a point on the RGB color wheel.
func wheelColor(pos uint8) color.RGBA {
	switch {
	case pos < 85:
		return rgba(255-pos*3, 0, pos*3)
	case pos < 170:
		pos -= 85
		return rgba(0, pos*3, 255-pos*3)
	default:
		pos -= 170
		return rgba(pos*3, 255-pos*3, 0)
	}
}

// pulse fades idle.Color in and out on a triangle wave, floored at 20 so it
// never dims all the way to off (the firmware's comment: "never go 0, this
// flickers").
func (l *Loop) pulse(idle *config.IdleAnimation) color.RGBA {
	local := l.cycle >> 2

	var level uint8
	if (local % 512) < 256 {
		level = uint8(local & 0xFF)
	} else {
		level = 255 - uint8(local&0xFF)
	}
	if level < 20 {
		level = 20
	}

	r := uint32(idle.Color.R) * uint32(level) / 255
	g := uint32(idle.Color.G) * uint32(level) / 255
	b := uint32(idle.Color.B) * uint32(level) / 255

	return rgba(uint8(r), uint8(g), uint8(b))
}

func rgba(r, g, b uint8) color.RGBA {
	return color.RGBA{R: r, G: g, B: b, A: 255}
}
