// Package serial hosts the desktop control channel's poll step: a
// handshake byte followed by a magic-dispatched command (see
// pkg/protocol). It replaces the donor's echo-only serial handler's body
// while keeping its role as a small wrapper main.go drives directly,
// rather than the donor's always-blocking goroutine — the control
// channel must run on the same goroutine as the render/key-engine tick so
// that an accepted configuration is only ever applied from that one
// owner (see DESIGN.md).
package serial

import (
	"time"

	"github.com/tuffrabit/tinygo-chainhead/pkg/protocol"
)

// PollInterval is the control-channel poll cadence.
const PollInterval = 200 * time.Millisecond

// Service wraps a protocol.Handler with the tick-counting needed to poll
// it at PollInterval from a faster main-loop ticker.
type Service struct {
	Handler    *protocol.Handler
	tickPeriod time.Duration
	elapsed    time.Duration
}

// NewService wraps a protocol.Handler for periodic polling from a main
// loop ticking every tickPeriod.
func NewService(h *protocol.Handler, tickPeriod time.Duration) *Service {
	return &Service{Handler: h, tickPeriod: tickPeriod}
}

// Tick is called once per main-loop tick; it polls the control channel's
// handshake/magic-dispatch path only once every PollInterval has elapsed,
// matching the original firmware's `millis() - prevReconfigMillis >= 200`
// gate around handleSerialConfig(). Capture-mode reporting is a separate,
// ungated concern (see Handler.PollCapture, called directly from the main
// loop every tick) since the original's equivalent btnStates[] scan runs
// unconditionally on every iteration, not behind this 200ms check.
func (s *Service) Tick() {
	s.elapsed += s.tickPeriod
	if s.elapsed < PollInterval {
		return
	}
	s.elapsed = 0

	s.Handler.Poll()
}
