// Package controller bridges a host terminal to the dispenser's serial console. Operator commands are
// translated to console bytes, device output is copied back, and EVENT lines are forwarded to the
// event log.
package controller

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/calvinmclean/pilldispenser/eventlog"
	"github.com/calvinmclean/pilldispenser/notify"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrDisconnected   = errors.New("device disconnected")
)

// words are the operator commands accepted besides raw console letters
var words = map[string]string{
	"calibrate": "C",
	"dispense":  "D",
	"status":    "S",
	"reset":     "XX",
	"verbose":   "V",
	"help":      "H",
}

const consoleLetters = "CDSXVH"

type Controller struct {
	port   io.ReadWriteCloser
	events eventLogClient
	logger *slog.Logger

	outMtx sync.Mutex
}

// NewFromEnv reads the config file named by PILL_DISPENSER_CONFIG, applies environment overrides, and
// connects
func NewFromEnv() (*Controller, error) {
	cfg, err := LoadConfig(os.Getenv("PILL_DISPENSER_CONFIG"))
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()

	return New(cfg, nil)
}

// New opens the configured serial port. An empty SerialPort picks the first USB serial port
func New(cfg Config, logger *slog.Logger) (*Controller, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var events eventLogClient = noopEventLogClient{}
	if cfg.EventLogAddr != "" {
		events = eventlog.NewClient(cfg.EventLogAddr, cfg.DeviceName)
	}

	if cfg.SerialPort == SerialPortNone {
		return NewWithPort(nil, events, logger), nil
	}

	if cfg.SerialPort == "" {
		ports, err := GetSerialPorts()
		if err != nil {
			return nil, err
		}
		cfg.SerialPort = ports[0]
	}

	baud, err := cfg.Baud()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(cfg.SerialPort, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("error opening serial port %q: %w", cfg.SerialPort, err)
	}
	logger.Info("connected", "port", cfg.SerialPort, "baud", baud)

	return NewWithPort(port, events, logger), nil
}

// NewWithPort uses an already open connection. A nil port echoes translated commands to the output
func NewWithPort(port io.ReadWriteCloser, events eventLogClient, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if events == nil {
		events = noopEventLogClient{}
	}
	return &Controller{port: port, events: events, logger: logger}
}

func (c *Controller) Close() error {
	if c.port == nil {
		return nil
	}
	return c.port.Close()
}

// Run forwards lines from in to the device and device output to out until in is closed, the device
// disconnects, or ctx is done
func (c *Controller) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	deviceErr := make(chan error, 1)
	if c.port != nil {
		go func() {
			deviceErr <- c.readDevice(ctx, out)
		}()
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-deviceErr:
			return err
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			err := c.send(line, out)
			if err != nil {
				return err
			}
		}
	}
}

func (c *Controller) send(line string, out io.Writer) error {
	cmd, err := TranslateCommand(line)
	if err != nil {
		c.writeLine(out, "error: "+err.Error())
		return nil
	}
	if cmd == "" {
		return nil
	}

	if c.port == nil {
		c.writeLine(out, "> "+cmd)
		return nil
	}

	c.logger.Debug("sending command", "command", cmd)
	_, err = c.port.Write([]byte(cmd))
	if err != nil {
		return fmt.Errorf("error writing to device: %w", err)
	}
	return nil
}

func (c *Controller) readDevice(ctx context.Context, out io.Writer) error {
	scanner := bufio.NewScanner(c.port)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		c.writeLine(out, line)

		text, ok := notify.ParseEvent(line)
		if !ok {
			continue
		}
		err := c.events.AddEvent(ctx, text, time.Now())
		if err != nil {
			c.logger.Error("error forwarding event", "event", text, "error", err)
		}
	}

	err := scanner.Err()
	if err != nil {
		return fmt.Errorf("error reading from device: %w", err)
	}
	return ErrDisconnected
}

func (c *Controller) writeLine(out io.Writer, line string) {
	c.outMtx.Lock()
	defer c.outMtx.Unlock()
	_, _ = fmt.Fprintln(out, line)
}

// TranslateCommand turns an operator line into console bytes. Words like "dispense" map to their
// letter, and lines made only of console letters are passed through in upper case
func TranslateCommand(line string) (string, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", nil
	}

	if cmd, ok := words[strings.ToLower(line)]; ok {
		return cmd, nil
	}

	upper := strings.ToUpper(line)
	for _, r := range upper {
		if !strings.ContainsRune(consoleLetters, r) {
			return "", fmt.Errorf("%w: %q", ErrUnknownCommand, line)
		}
	}
	return upper, nil
}
