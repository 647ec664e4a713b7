package state

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/calvinmclean/pilldispenser"
)

var (
	// ErrCorrupt means the stored record cannot be trusted and must be treated as never initialized
	ErrCorrupt = errors.New("stored state is corrupt")
	// ErrVerify means a write completed but reading it back did not return the written record
	ErrVerify = errors.New("stored state failed verification")
)

// Medium is byte-addressable non-volatile storage, like an I2C EEPROM
type Medium interface {
	io.ReaderAt
	io.WriterAt
}

// StoreConfig places the record on the medium and paces writes
type StoreConfig struct {
	// Offset is the address of the record on the medium
	Offset int64
	// WriteSettle is the time the medium needs after a write before it can be read back
	WriteSettle time.Duration
	Clock       pilldispenser.Clock
	Logger      *slog.Logger
}

// Store keeps a single DeviceState record at a fixed offset. All operations hold an exclusive lock
// over the medium for their whole duration. Nothing is retried, failures are returned to the caller
type Store struct {
	mu     sync.Mutex
	medium Medium
	cfg    StoreConfig
	logger *slog.Logger
}

// NewStore creates a Store on the medium
func NewStore(medium Medium, cfg StoreConfig) *Store {
	if cfg.Clock == nil {
		cfg.Clock = pilldispenser.SystemClock
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		medium: medium,
		cfg:    cfg,
		logger: logger.With("component", "store"),
	}
}

// Load reads and validates the record. A checksum mismatch or illegal field value returns an error
// wrapping ErrCorrupt
func (s *Store) Load() (pilldispenser.DeviceState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf, err := s.read()
	if err != nil {
		return pilldispenser.DeviceState{}, err
	}

	state, err := Decode(buf)
	if err != nil {
		s.logger.Warn("stored state rejected", "error", err)
		return pilldispenser.DeviceState{}, err
	}

	s.logger.Debug("state loaded",
		"phase", state.Phase,
		"portions", state.PortionCount,
		"calibrated", state.MotorCalibrated,
		"step", state.CurrentMotorStep,
	)
	return state, nil
}

// Save writes the record, waits for the medium to settle, and reads it back. The write only counts
// as successful when the read-back bytes match what was written
func (s *Store) Save(state pilldispenser.DeviceState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.write(state)
}

// Reset persists and returns the default state
func (s *Store) Reset() (pilldispenser.DeviceState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := pilldispenser.DefaultState()
	err := s.write(state)
	if err == nil {
		s.logger.Info("state reset to defaults")
	}
	return state, err
}

// LoadOrReset loads the stored state and falls back to persisted defaults when the record is missing,
// corrupt, or unreadable. The returned bool is true when defaults were used. The error is only set
// when the defaults could not be persisted, and the returned state is still usable in that case
func (s *Store) LoadOrReset() (pilldispenser.DeviceState, bool, error) {
	state, err := s.Load()
	if err == nil {
		return state, false, nil
	}

	s.logger.Warn("using default state", "reason", err)
	state, err = s.Reset()
	return state, true, err
}

func (s *Store) read() ([]byte, error) {
	buf := make([]byte, RecordSize)
	n, err := s.medium.ReadAt(buf, s.cfg.Offset)
	if n < RecordSize {
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("error reading state: %w", err)
	}
	return buf, nil
}

func (s *Store) write(state pilldispenser.DeviceState) error {
	record, err := Encode(state)
	if err != nil {
		return fmt.Errorf("error encoding state: %w", err)
	}

	n, err := s.medium.WriteAt(record[:], s.cfg.Offset)
	if err == nil && n < RecordSize {
		err = io.ErrShortWrite
	}
	if err != nil {
		return fmt.Errorf("error writing state: %w", err)
	}

	s.cfg.Clock.Sleep(s.cfg.WriteSettle)

	readBack, err := s.read()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrVerify, err)
	}
	if !bytes.Equal(record[:], readBack) {
		s.logger.Error("state write verification failed", "written", fmt.Sprintf("% X", record), "read", fmt.Sprintf("% X", readBack))
		return ErrVerify
	}

	s.logger.Debug("state written", "phase", state.Phase, "portions", state.PortionCount, "step", state.CurrentMotorStep)
	return nil
}
