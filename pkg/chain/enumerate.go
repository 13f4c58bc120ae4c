// Package chain implements the daisy-chain address-enumeration protocol
// (Component A) and the post-enumeration I²C state aggregator
// (Component B) described in spec.md §4.A/§4.B.
package chain

import (
	"context"
	"time"

	"machine"
)

const (
	// BaseAssignAddr is the first I²C address handed to a chain member;
	// 0 is broadcast and 1 is reserved for the head acting as master.
	BaseAssignAddr = 2

	// BroadcastAddr is the I²C address the head uses to address every
	// module at once (during enumeration) and the address it listens on
	// as a target once enumeration completes.
	BroadcastAddr = 0

	// MasterAddr is the head's own I²C address while it is bus master
	// during enumeration.
	MasterAddr = 1

	probeDelay = 100 * time.Millisecond
	maxRetries = 50
)

// Painter receives enumeration progress so the render loop can show it on
// the LED strip without pkg/chain importing pkg/render (which would be a
// cycle: render also needs pkg/chain's Table and ButtonState).
type Painter interface {
	SetSlot(slot int, r, g, b uint8)
	Show()
}

// noopPainter is used when the caller doesn't want visual progress.
type noopPainter struct{}

func (noopPainter) SetSlot(int, uint8, uint8, uint8) {}
func (noopPainter) Show()                            {}

// Enumerator runs the token-passing + I²C probe procedure of §4.A.
type Enumerator struct {
	TokenSend machine.Pin
	TokenRecv machine.Pin
	I2C       *machine.I2C
	Painter   Painter
}

// NewEnumerator wires up an Enumerator. painter may be nil, in which case
// progress is discarded.
func NewEnumerator(tokenSend, tokenRecv machine.Pin, i2c *machine.I2C, painter Painter) *Enumerator {
	if painter == nil {
		painter = noopPainter{}
	}
	return &Enumerator{
		TokenSend: tokenSend,
		TokenRecv: tokenRecv,
		I2C:       i2c,
		Painter:   painter,
	}
}

// Run executes the enumeration algorithm of §4.A and returns N, the
// number of modules that ACKed with their assigned address. It blocks
// until the token returns from the tail or the retry cap trips with at
// least one address already assigned — on a chain with no modules at
// all, it blocks forever per the spec's intended cold-boot behavior,
// unless ctx is canceled first.
func (e *Enumerator) Run(ctx context.Context) (int, error) {
	e.TokenSend.Configure(machine.PinConfig{Mode: machine.PinOutput})
	e.TokenRecv.Configure(machine.PinConfig{Mode: machine.PinInput})

	e.TokenSend.Low()
	for e.TokenRecv.Get() {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
	}

	if err := e.I2C.Configure(machine.I2CConfig{}); err != nil {
		return 0, err
	}

	nextAddr := uint8(BaseAssignAddr)
	e.TokenSend.High()

	retries := 0
	assigned := 0

	for {
		if err := ctx.Err(); err != nil {
			return assigned, err
		}

		slot := int(nextAddr) - BaseAssignAddr
		e.Painter.SetSlot(slot, 0, 0, 255)
		e.Painter.Show()

		if err := e.I2C.Tx(uint16(BroadcastAddr), []byte{nextAddr}, nil); err != nil {
			// Transmission failure is treated the same as "no ACK yet".
		}

		resp := make([]byte, 1)
		ackErr := e.I2C.Tx(uint16(nextAddr), nil, resp)

		time.Sleep(probeDelay)

		if ackErr != nil {
			retries++
			if retries > maxRetries && assigned > 0 {
				break
			}
			continue
		}

		if resp[0] != nextAddr {
			// Not our ACK; ignore and keep retrying at the same address.
			continue
		}

		assigned++
		retries = 0

		e.Painter.SetSlot(slot, 0, 255, 0)
		e.Painter.Show()

		nextAddr++

		if e.TokenRecv.Get() {
			// Token has returned from the tail: the chain is fully walked.
			break
		}
	}

	e.TokenSend.Low()

	return int(nextAddr) - BaseAssignAddr, nil
}
