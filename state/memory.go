package state

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// EEPROMSize is the capacity of the AT24C256 used on the board
const EEPROMSize = 32 * 1024

// Memory is an in-RAM Medium that behaves like an erased EEPROM. It can inject faults for tests and
// the simulator
type Memory struct {
	mu   sync.Mutex
	data []byte

	readErr    error
	writeErr   error
	dropWrites bool
}

// NewMemory returns an erased Memory of the given size
func NewMemory(size int) *Memory {
	data := make([]byte, size)
	for i := range data {
		data[i] = 0xFF
	}
	return &Memory{data: data}
}

func (m *Memory) ReadAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.readErr != nil {
		err := m.readErr
		m.readErr = nil
		return 0, err
	}
	if off < 0 || off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *Memory) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.writeErr != nil {
		err := m.writeErr
		m.writeErr = nil
		return 0, err
	}
	if off < 0 || off+int64(len(p)) > int64(len(m.data)) {
		return 0, errors.New("write out of range")
	}
	if m.dropWrites {
		return len(p), nil
	}
	return copy(m.data[off:], p), nil
}

// FailNextRead makes the next ReadAt return err
func (m *Memory) FailNextRead(err error) {
	m.mu.Lock()
	m.readErr = err
	m.mu.Unlock()
}

// FailNextWrite makes the next WriteAt return err
func (m *Memory) FailNextWrite(err error) {
	m.mu.Lock()
	m.writeErr = err
	m.mu.Unlock()
}

// DropWrites makes writes report success without changing the contents, like a write-protected chip
func (m *Memory) DropWrites(drop bool) {
	m.mu.Lock()
	m.dropWrites = drop
	m.mu.Unlock()
}

// FlipBit inverts one bit of the stored contents
func (m *Memory) FlipBit(off int64, bit uint) {
	m.mu.Lock()
	m.data[off] ^= 1 << (bit % 8)
	m.mu.Unlock()
}

// Bytes returns a copy of n bytes starting at off
func (m *Memory) Bytes(off int64, n int) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.data[off:off+int64(n)]...)
}

// OpenFile opens an EEPROM image on disk as a Medium, creating an erased image if it does not exist
func OpenFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("error opening EEPROM image: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("error reading EEPROM image: %w", err)
	}

	if info.Size() < EEPROMSize {
		erased := NewMemory(int(EEPROMSize - info.Size()))
		_, err = f.WriteAt(erased.data, info.Size())
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("error initializing EEPROM image: %w", err)
		}
	}

	return f, nil
}
