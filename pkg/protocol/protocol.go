// Package protocol implements the desktop control sub-protocol described in
// §4.E: a handshake byte followed by a 2-byte magic dispatch, used to push a
// new configuration frame, ask how many modules were enumerated, or toggle
// capture mode. It is invoked from the render loop's periodic serial poll,
// not run as its own blocking loop.
package protocol

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"machine"

	"github.com/tuffrabit/tinygo-chainhead/pkg/chain"
	"github.com/tuffrabit/tinygo-chainhead/pkg/config"
	"github.com/tuffrabit/tinygo-chainhead/pkg/storage"
)

const (
	handshakeReq = 0x42

	magicSetConfig    uint16 = 0x4141
	magicGetCount     uint16 = 0x4242
	magicEnterCapture uint16 = 0x4343
	magicExitCapture  uint16 = 0x4444

	ackOK = 0xFF

	// byteTimeout is the inter-byte read timeout of §4.E/§5: once a
	// handshake starts, each subsequent byte must arrive within this
	// window or the channel is abandoned until the next poll.
	byteTimeout = 1000 * time.Millisecond
)

// ErrTimeout is returned when a byte does not arrive within byteTimeout.
var ErrTimeout = errors.New("protocol: read timed out")

// Display is the debug console this handler mirrors traffic to. It matches
// pkg/display.Manager's surface; a nil Display (or the nodebug build's
// stub Manager) makes every call a no-op.
type Display interface {
	ShowIncomingFrame(bytesStr, parsedStr string)
	ShowOutgoingResponse(bytesStr, parsedStr string)
	ShowError(msg string)
}

// Handler owns the desktop control channel: it reads/writes over a
// USB-CDC serial port, persists accepted configuration frames, and drives
// capture mode.
type Handler struct {
	Serial    machine.Serialer
	Storage   *storage.Manager
	Table     *chain.Table
	SlotCount int

	// Display mirrors control-channel traffic as short text rows; the
	// non-contractual diagnostic surface §7 keeps off the serial bytes
	// themselves.
	Display Display

	// N is the number of enumerated modules (Component A's result),
	// reported to the desktop tool on request.
	N int

	// CaptureMode is read by pkg/render to override slot painting while
	// the desktop tool is capturing a keypress.
	CaptureMode bool

	// OnConfigured is called with the newly accepted configuration after
	// a successful set-config exchange, so the main loop can swap the
	// active Config without pkg/protocol importing the main package.
	OnConfigured func(cfg *config.Config)
}

// NewHandler wires a Handler to its serial port, persistence layer, and
// button-state table.
func NewHandler(serial machine.Serialer, store *storage.Manager, table *chain.Table, slotCount int) *Handler {
	return &Handler{
		Serial:    serial,
		Storage:   store,
		Table:     table,
		SlotCount: slotCount,
	}
}

// Poll performs one non-blocking check of the serial channel, per §4.E: if
// no byte is waiting it returns immediately; a byte other than the
// handshake request is ignored. Once a handshake begins, subsequent reads
// are allowed to block up to byteTimeout per byte.
func (h *Handler) Poll() error {
	req, err := h.Serial.ReadByte()
	if err != nil {
		return nil // nothing waiting, per §4.E's non-blocking poll
	}
	if req != handshakeReq {
		return nil
	}

	if _, err := h.Serial.Write([]byte{handshakeReq, 0x69}); err != nil {
		return err
	}

	magicBuf, err := h.readBytes(2)
	if err != nil {
		h.logErr(err)
		return err
	}
	magic := binary.LittleEndian.Uint16(magicBuf)

	switch magic {
	case magicSetConfig:
		h.log("SET", fmt.Sprintf("%04X", magic))
		return h.handleSetConfig()
	case magicGetCount:
		n := h.N
		if n > 255 {
			n = 255
		}
		h.log("GET N", fmt.Sprintf("n=%d", n))
		_, err := h.Serial.Write([]byte{byte(n)})
		return err
	case magicEnterCapture:
		h.log("CAP", "enter")
		h.enterCapture()
		return nil
	case magicExitCapture:
		h.log("CAP", "exit")
		h.CaptureMode = false
		return nil
	default:
		h.log("UNK", fmt.Sprintf("%04X", magic))
		return nil // unknown magic: channel abandoned until next poll
	}
}

func (h *Handler) log(bytesStr, parsedStr string) {
	if h.Display != nil {
		h.Display.ShowIncomingFrame(bytesStr, parsedStr)
	}
}

func (h *Handler) logErr(err error) {
	if h.Display != nil {
		h.Display.ShowError(err.Error())
	}
}

// handleSetConfig reads a 2-byte size then the framed bytes it names,
// parses and persists them, and acks 0xFF on success. A malformed frame
// aborts silently, leaving the previous configuration untouched — the same
// "abandon the channel" behavior as an unknown magic.
func (h *Handler) handleSetConfig() error {
	sizeBuf, err := h.readBytes(2)
	if err != nil {
		return err
	}
	size := binary.LittleEndian.Uint16(sizeBuf)

	raw, err := h.readBytes(int(size))
	if err != nil {
		return err
	}

	cfg, err := config.Parse(raw, h.SlotCount)
	if err != nil {
		return nil
	}

	if err := h.Storage.Save(raw); err != nil {
		return err
	}

	if h.OnConfigured != nil {
		h.OnConfigured(cfg)
	}

	if h.Display != nil {
		h.Display.ShowOutgoingResponse(fmt.Sprintf("%02X", ackOK), fmt.Sprintf("cfg[%d]", len(raw)))
	}

	_, err = h.Serial.Write([]byte{ackOK})
	return err
}

// enterCapture arms one-shot capture mode: the next slot observed in the
// Pressed state is reported and capture mode clears itself.
func (h *Handler) enterCapture() {
	h.CaptureMode = true
}

// PollCapture checks for a captured press per §4.E. It is meant to be
// called once per main-loop tick alongside the render loop, independent
// of the control channel's own 200ms poll cadence — it is a no-op unless
// capture mode is active.
//
// This is a level check against the slot's current state, not an edge
// detector: a slot already held Pressed when capture mode is entered is
// reported on the very next tick, matching the original firmware's
// unconditional per-iteration btnStates[i] == BTN_STATE_PRESSED check
// rather than requiring a fresh release-then-press.
func (h *Handler) PollCapture() error {
	if !h.CaptureMode {
		return nil
	}

	for s := 0; s < h.SlotCount; s++ {
		if h.Table.Get(chain.BaseAssignAddr+s) == chain.Pressed {
			h.CaptureMode = false
			_, err := h.Serial.Write([]byte{byte(s)})
			return err
		}
	}

	return nil
}

// readBytes reads n bytes, each allowed up to byteTimeout to arrive.
func (h *Handler) readBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	for i := range buf {
		b, err := h.readByte()
		if err != nil {
			return nil, err
		}
		buf[i] = b
	}
	return buf, nil
}

// readByte busy-polls Serial.ReadByte (TinyGo's UART/CDC read is
// non-blocking already) under a fresh byteTimeout deadline.
func (h *Handler) readByte() (byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), byteTimeout)
	defer cancel()

	for {
		b, err := h.Serial.ReadByte()
		if err == nil {
			return b, nil
		}
		select {
		case <-ctx.Done():
			return 0, ErrTimeout
		default:
			time.Sleep(time.Millisecond)
		}
	}
}
