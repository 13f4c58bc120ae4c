// Package storage persists the raw configuration frame to non-volatile
// byte memory, laid out exactly as §3's PersistedConfig: a one-byte
// is_configured flag at offset 0, a two-byte little-endian size at offset
// 1, and the raw frame bytes starting at offset 3.
//
// Unlike a directory filesystem, this is a single fixed-offset record, so
// the backing store is addressed directly through tinyfs.BlockDevice's
// ReadAt/WriteAt rather than through a mounted filesystem (see DESIGN.md
// for why littlefs doesn't fit this shape).
package storage

import (
	"encoding/binary"
	"errors"

	"tinygo.org/x/tinyfs"
)

const (
	offsetIsConfigured = 0
	offsetSize         = 1
	offsetPayload      = 3
	headerSize         = offsetPayload
)

// Errors.
var (
	ErrNotConfigured = errors.New("storage: no configuration persisted")
	ErrNoSpace       = errors.New("storage: frame too large for backing store")
)

// Manager reads and writes the persisted configuration frame.
type Manager struct {
	dev tinyfs.BlockDevice

	// isConfigured latches to true the first time it is observed true and
	// never back to false, mirroring the donor firmware's isConfigured()
	// cache (see DESIGN.md / spec.md §9): once a configuration has been
	// accepted, a fresh Save always takes effect without a power cycle,
	// but the in-memory flag itself is only ever set, never cleared.
	isConfigured bool
	cached       bool
}

// New wraps a block device for configuration persistence. It does not
// read anything from the device; callers call Load (or IsConfigured) to
// find out whether a configuration is already present.
func New(dev tinyfs.BlockDevice) *Manager {
	return &Manager{dev: dev}
}

// IsConfigured reports whether a configuration has ever been accepted.
// The result is cached after the first true observation.
func (m *Manager) IsConfigured() bool {
	if m.cached && m.isConfigured {
		return true
	}

	flag := make([]byte, 1)
	if _, err := m.dev.ReadAt(flag, offsetIsConfigured); err != nil {
		return false
	}

	m.cached = true
	m.isConfigured = flag[0] == 1
	return m.isConfigured
}

// Load reads the persisted raw frame bytes. Returns ErrNotConfigured if
// the is_configured flag is unset.
func (m *Manager) Load() ([]byte, error) {
	if !m.IsConfigured() {
		return nil, ErrNotConfigured
	}

	sizeBuf := make([]byte, 2)
	if _, err := m.dev.ReadAt(sizeBuf, offsetSize); err != nil {
		return nil, err
	}
	size := binary.LittleEndian.Uint16(sizeBuf)

	payload := make([]byte, size)
	if size > 0 {
		if _, err := m.dev.ReadAt(payload, offsetPayload); err != nil {
			return nil, err
		}
	}

	return payload, nil
}

// Save persists raw exactly as received, preceded by is_configured=1 and
// the little-endian size, per §4.C. Flash-backed block devices generally
// require an erase before a byte can be rewritten from 0 to 1; the region
// covering the new record is erased first so arbitrary rewrites behave
// the way the original firmware's byte-addressable EEPROM did.
func (m *Manager) Save(raw []byte) error {
	total := int64(headerSize + len(raw))
	if total > m.dev.Size() {
		return ErrNoSpace
	}

	eraseSize := m.dev.EraseBlockSize()
	if eraseSize > 0 {
		blocks := (total + eraseSize - 1) / eraseSize
		if err := m.dev.EraseBlocks(0, blocks); err != nil {
			return err
		}
	}

	header := make([]byte, headerSize)
	header[offsetIsConfigured] = 1
	binary.LittleEndian.PutUint16(header[offsetSize:offsetSize+2], uint16(len(raw)))

	if _, err := m.dev.WriteAt(header, 0); err != nil {
		return err
	}
	if len(raw) > 0 {
		if _, err := m.dev.WriteAt(raw, offsetPayload); err != nil {
			return err
		}
	}

	m.cached = true
	m.isConfigured = true
	return nil
}
