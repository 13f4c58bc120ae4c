package main

import (
	"context"
	"machine"
	"time"

	tgk "machine/usb/hid/keyboard"

	"tinygo.org/x/drivers/ws2812"

	"github.com/tuffrabit/tinygo-chainhead/pkg/chain"
	"github.com/tuffrabit/tinygo-chainhead/pkg/config"
	"github.com/tuffrabit/tinygo-chainhead/pkg/display"
	"github.com/tuffrabit/tinygo-chainhead/pkg/keyengine"
	"github.com/tuffrabit/tinygo-chainhead/pkg/protocol"
	"github.com/tuffrabit/tinygo-chainhead/pkg/render"
	"github.com/tuffrabit/tinygo-chainhead/pkg/storage"
	"github.com/tuffrabit/tinygo-chainhead/serial"
)

// Hardware pin assignments, per §6 and the donor's board pinout.
const (
	tokenSendPin = machine.GPIO5
	tokenRecvPin = machine.GPIO4

	chainSDA = machine.GPIO2
	chainSCL = machine.GPIO3

	ledPin     = machine.GPIO6
	maxSlots   = 128
	tickPeriod = time.Millisecond
)

// MAIN THREAD DUTIES
//
// boot -> A (enumerate) -> C (warm-load, if persisted) -> main loop. Only
// B's aggregator runs in its own goroutine per §5; the desktop control
// channel is polled from the main tick loop itself, alongside the render
// and key-engine ticks, so OnConfigured only ever swaps the active
// Config from that one owning goroutine.
func main() {
	strip := ws2812.New(ledPin)

	chainI2C := machine.I2C1
	if err := chainI2C.Configure(machine.I2CConfig{SDA: chainSDA, SCL: chainSCL}); err != nil {
		panic(err)
	}

	table := chain.NewTable(maxSlots)
	renderLoop := render.New(&strip, table, config.New(0), maxSlots)

	enumerator := chain.NewEnumerator(tokenSendPin, tokenRecvPin, chainI2C, renderLoop)
	n, err := enumerator.Run(context.Background())
	if err != nil {
		n = 0
	}

	cfg := config.New(n)
	renderLoop.Config = cfg

	store := storage.New(machine.Flash)
	if store.IsConfigured() {
		if raw, err := store.Load(); err == nil {
			if parsed, err := config.Parse(raw, n); err == nil {
				cfg = parsed
				renderLoop.Config = cfg
			}
		}
	}

	kb := tgk.New()
	engine := keyengine.New(kb, table, cfg)

	// The aggregator takes over the same I2C peripheral the enumerator used
	// as master, switching it into target mode per §4.B; the debug display
	// (when built) owns the other RP2040 I2C peripheral, I2C0.
	aggregator := chain.NewAggregator(chainI2C, table)
	go func() {
		_ = aggregator.Listen(context.Background())
	}()

	dbg := display.NewManager()

	handler := protocol.NewHandler(machine.Serial, store, table, n)
	handler.N = n
	if dbg != nil {
		handler.Display = dbg
	}
	handler.OnConfigured = func(newCfg *config.Config) {
		cfg = newCfg
		engine.Config = cfg
		renderLoop.Config = cfg
	}

	svc := serial.NewService(handler, tickPeriod)

	ticker := time.NewTicker(tickPeriod)
	defer ticker.Stop()

	var now uint32
	for range ticker.C {
		now++
		renderLoop.CaptureMode = handler.CaptureMode

		if !handler.CaptureMode {
			engine.Tick(now)
		}
		renderLoop.Tick()

		// Capture-mode reporting runs every tick, independent of the
		// control channel's own 200ms poll cadence below — a press fully
		// contained within one 200ms window must still be observed.
		handler.PollCapture()
		svc.Tick()
	}
}
