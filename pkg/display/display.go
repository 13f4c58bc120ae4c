//go:build !nodebug

// Package display provides SSD1306 OLED display support for debug output.
// It shows serial communication activity with incoming frames on the yellow
// rows (0-1) and outgoing responses on the blue rows (2-3).
//
// To build without display support (saves ~1KB RAM and flash), use:
//   tinygo build -tags=nodebug -target=pico -o firmware.uf2 .
package display

import (
	"fmt"
	"image/color"
	"machine"
	"time"

	"tinygo.org/x/drivers/ssd1306"
	"tinygo.org/x/tinyfont"
)

const (
	// I2C configuration
	i2cAddress = 0x3C
	sclPin     = machine.GPIO1
	sdaPin     = machine.GPIO0

	// Display dimensions
	screenWidth  = 128
	screenHeight = 64
	charWidth    = 8
	charHeight   = 8
	cols         = screenWidth / charWidth   // 16 columns
	rows         = screenHeight / charHeight // 8 rows

	// Row assignments
	rowInBytes   = 0 // Yellow - incoming raw bytes
	rowInParsed  = 1 // Yellow - incoming parsed
	rowOutBytes  = 2 // Blue - outgoing raw bytes
	rowOutParsed = 3 // Blue - outgoing parsed
)

// Colors for monochrome display
var (
	black = color.RGBA{0, 0, 0, 0}
	white = color.RGBA{255, 255, 255, 255}
)

// font is the bitmap font used for every row. TomThumb is tinyfont's
// smallest built-in font, which is what makes an 8px row height usable on
// a 128x64 panel.
var font = &tinyfont.TomThumb

// Manager handles the SSD1306 display for debug output.
type Manager struct {
	device *ssd1306.Device
	i2c    *machine.I2C
}

// NewManager creates and initializes the display manager.
// Returns nil if display initialization fails (non-fatal for debug).
func NewManager() *Manager {
	// Initialize I2C bus
	i2c := machine.I2C0
	if err := i2c.Configure(machine.I2CConfig{
		Frequency: 400000, // 400kHz fast mode
		SCL:       sclPin,
		SDA:       sdaPin,
	}); err != nil {
		fmt.Printf("I2C config failed: %v\n", err)
		return nil
	}

	// Small delay for bus stabilization
	time.Sleep(10 * time.Millisecond)

	// Initialize SSD1306
	dev := ssd1306.NewI2C(i2c)
	dev.Configure(ssd1306.Config{
		Address: i2cAddress,
		Width:   screenWidth,
		Height:  screenHeight,
	})

	// Clear display
	dev.ClearDisplay()

	mgr := &Manager{
		device: dev,
		i2c:    i2c,
	}

	// Show initial message
	mgr.drawString(0, 0, "ChainHead Debug")
	mgr.drawString(0, 1, "Waiting for data...")
	mgr.refresh()

	return mgr
}

// ShowIncomingFrame displays an incoming serial frame on the yellow rows.
// bytesRow shows the raw hex bytes, parsedRow shows human-readable info.
func (m *Manager) ShowIncomingFrame(bytesStr, parsedStr string) {
	m.clearRow(rowInBytes)
	m.clearRow(rowInParsed)
	m.drawString(0, rowInBytes, truncate("I:"+bytesStr, cols-1))
	m.drawString(0, rowInParsed, truncate(" "+parsedStr, cols-1))
	m.refresh()
}

// ShowOutgoingResponse displays an outgoing serial response on the blue rows.
// bytesRow shows the raw hex bytes, parsedRow shows human-readable info.
func (m *Manager) ShowOutgoingResponse(bytesStr, parsedStr string) {
	m.clearRow(rowOutBytes)
	m.clearRow(rowOutParsed)
	m.drawString(0, rowOutBytes, truncate("O:"+bytesStr, cols-1))
	m.drawString(0, rowOutParsed, truncate(" "+parsedStr, cols-1))
	m.refresh()
}

// ShowError displays an error message on the display.
func (m *Manager) ShowError(msg string) {
	m.clearRow(rowOutBytes)
	m.clearRow(rowOutParsed)
	m.drawString(0, rowOutBytes, "ERR:")
	m.drawString(0, rowOutParsed, truncate(msg, cols-1))
	m.refresh()
}

// clearRow blanks a single row's pixels on the display.
func (m *Manager) clearRow(row int) {
	if row < 0 || row >= rows {
		return
	}
	yStart := int16(row * charHeight)
	for y := yStart; y < yStart+charHeight; y++ {
		for x := int16(0); x < screenWidth; x++ {
			m.device.SetPixel(x, y, black)
		}
	}
}

// drawString draws a string at the specified column and row, using
// tinyfont rather than a hand-rolled per-character bitmap table.
func (m *Manager) drawString(col, row int, s string) {
	if row < 0 || row >= rows {
		return
	}
	x := int16(col * charWidth)
	// tinyfont draws from the text baseline, not the top-left corner, so
	// nudge down to the bottom of the character cell.
	y := int16(row*charHeight) + charHeight - 1
	tinyfont.WriteLine(m.device, font, x, y, s, white)
}

// refresh updates the display with current buffer content.
func (m *Manager) refresh() {
	m.device.Display()
}

// truncate limits a string to maxLen characters, adding ".." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 2 {
		return s[:maxLen]
	}
	return s[:maxLen-2] + ".."
}
