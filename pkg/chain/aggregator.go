package chain

import (
	"context"
	"sync/atomic"

	"machine"
)

// ButtonState mirrors §3's two-value state: Released (default) or Pressed.
type ButtonState uint32

const (
	Released ButtonState = iota
	Pressed
)

// Table is the canonical per-address button-state table. Index 0 and 1
// are unused (broadcast / master addresses); slot s lives at index
// BaseAssignAddr+s. It is written only by Aggregator's event loop and
// read only by the key-output and render loops, so plain atomic
// load/store (no mutex) is enough — §5 explicitly tolerates torn reads
// on these single-value entries.
type Table struct {
	states []atomic.Uint32
}

// NewTable allocates a state table sized for addresses [0, BaseAssignAddr+n).
func NewTable(n int) *Table {
	return &Table{states: make([]atomic.Uint32, BaseAssignAddr+n)}
}

// Get returns the current state for the given I²C address. Addresses
// outside the table bounds report Released.
func (t *Table) Get(addr int) ButtonState {
	if addr < 0 || addr >= len(t.states) {
		return Released
	}
	return ButtonState(t.states[addr].Load())
}

// set writes a new state for addr. §4.B's source behavior writes
// out-of-range frames to their raw index unconditionally; per the spec's
// own implementer note ("bounds-check against the state-table length")
// this port instead drops frames addressed outside the table rather than
// growing it from the interrupt-context event path, which must not
// allocate.
func (t *Table) set(addr int, s ButtonState) {
	if addr < 0 || addr >= len(t.states) {
		return
	}
	t.states[addr].Store(uint32(s))
}

// Aggregator implements Component B: it listens on the I²C bus as a
// target at the broadcast address and applies each incoming 1-byte frame
// to a Table.
type Aggregator struct {
	I2C   *machine.I2C
	Table *Table
}

// NewAggregator wraps an I²C bus (already usable in target mode) and the
// table it will update.
func NewAggregator(i2c *machine.I2C, table *Table) *Aggregator {
	return &Aggregator{I2C: i2c, Table: table}
}

// Listen re-initializes the bus as a target at the broadcast address and
// processes frames until ctx is done. It is meant to run in its own
// goroutine — the TinyGo stand-in for a hardware I²C-receive interrupt —
// and must not block the caller or allocate per frame (the only
// allocation here is the fixed-size scratch buffer created once).
func (a *Aggregator) Listen(ctx context.Context) error {
	if err := a.I2C.Configure(machine.I2CConfig{Mode: machine.I2CModeTarget}); err != nil {
		return err
	}
	if err := a.I2C.Listen(uint16(BroadcastAddr)); err != nil {
		return err
	}

	buf := make([]byte, 1)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		evt, n, err := a.I2C.WaitForEvent(buf)
		if err != nil {
			continue
		}
		if evt != machine.I2CReceive || n < 1 {
			continue
		}

		a.Apply(buf[0])
	}
}

// Apply decodes one frame per §4.B: bit7 = state, bits6..0 = address, and
// drops the frame if it is idempotent with the current state. Exported so
// callers (and tests) can drive a Table from a raw frame without a live
// I²C bus.
func (a *Aggregator) Apply(frame byte) {
	addr := int(frame & 0x7F)
	state := ButtonState((frame >> 7) & 1)

	if a.Table.Get(addr) == state {
		return
	}
	a.Table.set(addr, state)
}
