// Package keyengine implements Component D, the per-tick HID key output
// engine: it turns a slot's current ButtonState and configured KeyActions
// into HID press/release/repeat events per spec.md §4.D.
package keyengine

import (
	tgk "machine/usb/hid/keyboard"

	"github.com/tuffrabit/tinygo-chainhead/pkg/chain"
	"github.com/tuffrabit/tinygo-chainhead/pkg/config"
	"github.com/tuffrabit/tinygo-chainhead/pkg/keyboard"
)

// Engine drives HID output for every configured slot from the Aggregator's
// button-state table.
type Engine struct {
	Keyboard keyboard.Keyboard
	Table    *chain.Table
	Config   *config.Config
}

// New wires an Engine to its HID sink, state table, and active config.
func New(kb keyboard.Keyboard, table *chain.Table, cfg *config.Config) *Engine {
	return &Engine{Keyboard: kb, Table: table, Config: cfg}
}

// Tick runs one main-loop pass over every slot's actions, per §4.D. now is
// the caller's monotonic millisecond clock (injected so the engine does not
// depend on a wall clock and can be driven deterministically in tests).
func (e *Engine) Tick(now uint32) {
	for s := 0; s < e.Config.SlotCount && s < len(e.Config.Slots); s++ {
		state := e.Table.Get(chain.BaseAssignAddr + s)
		actions := e.Config.Slots[s].Actions

		for i := range actions {
			a := &actions[i]
			if state == chain.Pressed {
				e.tickPressed(a, now)
			} else {
				e.tickReleased(a)
			}
		}
	}
}

// tickPressed advances one action for a slot currently reporting Pressed.
func (e *Engine) tickPressed(a *config.KeyAction, now uint32) {
	diff := now - a.LastTickMs

	switch a.PressType {
	case config.OneShot:
		if a.CooldownMs == 0 {
			e.Keyboard.Down(tgk.Keycode(a.Keycode))
			a.CooldownMs = 1 // held, do not press again until released
		}

	case config.Continuous:
		if a.CooldownMs <= 1 {
			e.Keyboard.Press(tgk.Keycode(a.Keycode))
			if a.CooldownMs == 0 {
				a.CooldownMs = config.RepeatInitialDelayMs
			} else {
				a.CooldownMs = config.RepeatIntervalMs
			}
		} else if diff >= a.CooldownMs {
			a.CooldownMs = 1
		} else {
			a.CooldownMs -= diff
		}
	}

	a.LastTickMs = now
}

// tickReleased resets one action for a slot currently reporting Released.
func (e *Engine) tickReleased(a *config.KeyAction) {
	e.Keyboard.Up(tgk.Keycode(a.Keycode))
	a.CooldownMs = 0
	a.LastTickMs = 0
}
