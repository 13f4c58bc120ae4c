// Package config defines the run-time configuration object graph for the
// macropad — per-slot key actions, press colors, and idle animations — and
// the binary wire codec used to parse a configuration frame received over
// the desktop control channel.
package config

import (
	"encoding/binary"
	"errors"
)

// Magic is the two-byte little-endian marker at the start of a
// configuration frame.
const Magic uint16 = 0x4242

// objSize is the fixed size of one object entry in a configuration frame.
const objSize = 8

// Object type codes.
const (
	ObjTypeKey           uint8 = 0x01
	ObjTypePressColor    uint8 = 0x02
	ObjTypeIdleAnimation uint8 = 0x03
)

// PressType selects one-shot or auto-repeat semantics for a KeyAction.
type PressType uint8

const (
	OneShot PressType = iota
	Continuous
)

// AnimationType selects one of the three idle animations.
type AnimationType uint8

const (
	Gradient AnimationType = iota
	Pulse
	Still
)

// Auto-repeat timing constants (milliseconds), per §4.D.
const (
	RepeatInitialDelayMs = 300
	RepeatIntervalMs     = 30
)

// RGB is an 8-bit-per-channel color.
type RGB struct {
	R, G, B uint8
}

// KeyAction is one keystroke binding for a slot. Multiple actions on a
// slot fire in the order they were appended.
type KeyAction struct {
	Keycode    uint8
	PressType  PressType
	CooldownMs uint32
	LastTickMs uint32
}

// PressColor is the solid color painted while a slot is held.
type PressColor struct {
	Color RGB
}

// IdleAnimation is the animation painted while a slot is released.
type IdleAnimation struct {
	Type  AnimationType
	Color RGB
}

// SlotConfig holds everything parsed for one slot. A nil Press or Idle
// means "not configured"; Actions is nil or empty when no key is bound.
type SlotConfig struct {
	Actions []KeyAction
	Press   *PressColor
	Idle    *IdleAnimation
}

// Config is the parsed object graph for the whole chain.
type Config struct {
	SlotCount int
	Slots     []SlotConfig
}

// Errors returned by Parse. Dropped objects (out-of-range slot, unknown
// type) are not errors — only frame-level problems are.
var (
	ErrBadMagic  = errors.New("config: bad magic")
	ErrBadLength = errors.New("config: frame length does not match obj_count")
)

// New returns an empty Config sized for slotCount slots.
func New(slotCount int) *Config {
	return &Config{
		SlotCount: slotCount,
		Slots:     make([]SlotConfig, slotCount),
	}
}

// Parse validates and decodes a configuration frame per §4.C. Objects
// naming a slot_idx >= slotCount, or carrying an unknown type, are
// dropped silently rather than rejecting the whole frame. A malformed
// frame (bad magic, or length not matching 4+8*obj_count) is rejected as
// a whole and the prior configuration is left untouched by the caller.
func Parse(raw []byte, slotCount int) (*Config, error) {
	if len(raw) < 4 {
		return nil, ErrBadLength
	}

	magic := binary.LittleEndian.Uint16(raw[0:2])
	if magic != Magic {
		return nil, ErrBadMagic
	}

	objCount := int(binary.LittleEndian.Uint16(raw[2:4]))
	if len(raw) != 4+objSize*objCount {
		return nil, ErrBadLength
	}

	cfg := New(slotCount)

	for i := 0; i < objCount; i++ {
		off := 4 + i*objSize
		obj := raw[off : off+objSize]

		typ := obj[0]
		slotIdx := int(obj[1])
		data := obj[2:8]

		if slotIdx >= slotCount {
			continue
		}

		slot := &cfg.Slots[slotIdx]

		switch typ {
		case ObjTypeKey:
			press := OneShot
			if data[1] != 0 {
				press = Continuous
			}
			slot.Actions = append(slot.Actions, KeyAction{
				Keycode:   data[0],
				PressType: press,
			})

		case ObjTypePressColor:
			slot.Press = &PressColor{Color: RGB{R: data[0], G: data[1], B: data[2]}}

		case ObjTypeIdleAnimation:
			slot.Idle = &IdleAnimation{
				Color: RGB{R: data[0], G: data[1], B: data[2]},
				Type:  AnimationType(data[3]),
			}

		default:
			// unknown object type, drop
		}
	}

	return cfg, nil
}

// Serialize re-encodes the Config into a canonical configuration frame: one
// PressColor object (if set) then one IdleAnimation object (if set) then
// one Key object per action, per slot in slot order. This is the canonical
// re-serializer referenced by §8's round-trip law; pkg/storage persists the
// raw accepted frame bytes directly, so the exact object ordering of an
// arbitrary input frame need not survive a Parse/Serialize round trip.
func (c *Config) Serialize() []byte {
	objCount := 0
	for _, s := range c.Slots {
		objCount += len(s.Actions)
		if s.Press != nil {
			objCount++
		}
		if s.Idle != nil {
			objCount++
		}
	}

	buf := make([]byte, 4+objSize*objCount)
	binary.LittleEndian.PutUint16(buf[0:2], Magic)
	binary.LittleEndian.PutUint16(buf[2:4], uint16(objCount))

	off := 4
	for slotIdx, s := range c.Slots {
		if s.Press != nil {
			obj := buf[off : off+objSize]
			obj[0] = ObjTypePressColor
			obj[1] = uint8(slotIdx)
			obj[2] = s.Press.Color.R
			obj[3] = s.Press.Color.G
			obj[4] = s.Press.Color.B
			off += objSize
		}
		if s.Idle != nil {
			obj := buf[off : off+objSize]
			obj[0] = ObjTypeIdleAnimation
			obj[1] = uint8(slotIdx)
			obj[2] = s.Idle.Color.R
			obj[3] = s.Idle.Color.G
			obj[4] = s.Idle.Color.B
			obj[5] = uint8(s.Idle.Type)
			off += objSize
		}
		for _, a := range s.Actions {
			obj := buf[off : off+objSize]
			obj[0] = ObjTypeKey
			obj[1] = uint8(slotIdx)
			obj[2] = a.Keycode
			if a.PressType == Continuous {
				obj[3] = 1
			}
			off += objSize
		}
	}

	return buf
}
