package commands

import (
	"errors"
	"fmt"
	"io"
	"time"
)

type Command struct {
	Flag        byte
	InputSize   uint
	Run         func(Controller, io.Writer, []byte) error
	Description string
}

// Controller is used to control a dispenser from the service console
type Controller interface {
	Calibrate()
	Dispense()
	Reset()
	Status() string
	// Verbose toggles debug logging and reports whether it is now enabled
	Verbose() bool

	// I/O
	ReadByte() (byte, error)
}

// idleDelay is how long to wait when no input is available, so other goroutines get to run
const idleDelay = 10 * time.Millisecond

var (
	CalibrateCommand = &Command{
		Flag:      'C',
		InputSize: 0,
		Run: func(c Controller, _ io.Writer, _ []byte) error {
			c.Calibrate()
			return nil
		},
		Description: "Start calibration. Only accepted while the dispenser waits for calibration.",
	}
	DispenseCommand = &Command{
		Flag:      'D',
		InputSize: 0,
		Run: func(c Controller, _ io.Writer, _ []byte) error {
			c.Dispense()
			return nil
		},
		Description: "Dispense one portion now. Only accepted while dispensing.",
	}
	StatusCommand = &Command{
		Flag:      'S',
		InputSize: 0,
		Run: func(c Controller, w io.Writer, _ []byte) error {
			_, err := fmt.Fprintf(w, "%s\r\n", c.Status())
			return err
		},
		Description: "Print the current state.",
	}
	ResetCommand = &Command{
		Flag:      'X',
		InputSize: 1,
		Run: func(c Controller, _ io.Writer, b []byte) error {
			if b[0] != 'X' {
				return errors.New("reset not confirmed, send XX")
			}
			c.Reset()
			return nil
		},
		Description: "Reset the stored state to defaults. Send 'X' twice to confirm.",
	}
	VerboseCommand = &Command{
		Flag:      'V',
		InputSize: 0,
		Run: func(c Controller, w io.Writer, _ []byte) error {
			_, err := fmt.Fprintf(w, "verbose=%t\r\n", c.Verbose())
			return err
		},
		Description: "Toggle verbose output.",
	}
	HelpCommand = &Command{
		Flag:        'H',
		InputSize:   0,
		Description: "Show all available commands and their descriptions.",
		Run: func(c Controller, w io.Writer, _ []byte) error {
			_, err := io.WriteString(w, "Available Commands:\r\n")
			if err != nil {
				return err
			}
			for _, cmd := range commands {
				_, err = fmt.Fprintf(w, "%c: %s\r\n", cmd.Flag, cmd.Description)
				if err != nil {
					return err
				}
			}
			return nil
		},
	}
)

var commands = []*Command{
	CalibrateCommand,
	DispenseCommand,
	StatusCommand,
	ResetCommand,
	VerboseCommand,
}

// Run reads commands until the input is closed. Unknown bytes, like line endings, are skipped
func Run(c Controller, w io.Writer) {
	cmdMap := map[byte]*Command{
		HelpCommand.Flag: HelpCommand,
	}

	for _, cmd := range commands {
		cmdMap[cmd.Flag] = cmd
	}

	for {
		cmdIn, err := c.ReadByte()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			time.Sleep(idleDelay)
			continue
		}

		cmd, ok := cmdMap[cmdIn]
		if !ok {
			continue
		}

		in := make([]byte, cmd.InputSize)
		for i := 0; i < int(cmd.InputSize); {
			b, err := c.ReadByte()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				time.Sleep(idleDelay)
				continue
			}

			in[i] = b
			i++
		}

		err = cmd.Run(c, w, in)
		if err != nil {
			fmt.Fprintf(w, "error: %s\r\n", err)
		}
	}
}
