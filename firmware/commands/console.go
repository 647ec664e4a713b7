package commands

import (
	"io"
	"log/slog"

	"github.com/calvinmclean/pilldispenser/dispenser"
)

// Console connects the command set to a dispense controller
type Console struct {
	Dispenser *dispenser.Controller
	Input     io.ByteReader
	// Level is the level of the console's log handler
	Level *slog.LevelVar
}

func (c *Console) Calibrate() { c.Dispenser.RequestCalibration() }

func (c *Console) Dispense() { c.Dispenser.RequestDispense() }

func (c *Console) Reset() { c.Dispenser.RequestReset() }

func (c *Console) Status() string { return c.Dispenser.Status().String() }

func (c *Console) Verbose() bool {
	if c.Level == nil {
		return false
	}
	if c.Level.Level() == slog.LevelDebug {
		c.Level.Set(slog.LevelInfo)
		return false
	}
	c.Level.Set(slog.LevelDebug)
	return true
}

func (c *Console) ReadByte() (byte, error) {
	return c.Input.ReadByte()
}
