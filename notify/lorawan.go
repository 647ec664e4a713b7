package notify

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/calvinmclean/pilldispenser"
)

const (
	// MaxCommandLength is the longest line the modem accepts, including the line ending
	MaxCommandLength = 128

	pollInterval = 10 * time.Millisecond
)

var (
	ErrNoResponse         = errors.New("no response from modem")
	ErrUnexpectedResponse = errors.New("unexpected response from modem")
	ErrMessageTooLong     = errors.New("message too long")
)

// LoRaWANConfig configures the OTAA join of a LoRa-E5 style AT modem
type LoRaWANConfig struct {
	AppKey string `yaml:"app_key"`
	Port   int    `yaml:"port"`

	CommandTimeout time.Duration `yaml:"command_timeout"`
	JoinTimeout    time.Duration `yaml:"join_timeout"`
	MessageTimeout time.Duration `yaml:"message_timeout"`
}

func DefaultLoRaWANConfig() LoRaWANConfig {
	return LoRaWANConfig{
		Port:           8,
		CommandTimeout: 500 * time.Millisecond,
		JoinTimeout:    10 * time.Second,
		MessageTimeout: 10 * time.Second,
	}
}

// LoRaWAN sends events as uplink messages through an AT command modem on a UART. It joins the network
// on the first Send, and a failed join or message makes the next Send join again
type LoRaWAN struct {
	rw     io.ReadWriter
	clock  pilldispenser.Clock
	cfg    LoRaWANConfig
	logger *slog.Logger

	joined bool
}

func NewLoRaWAN(rw io.ReadWriter, clock pilldispenser.Clock, cfg LoRaWANConfig, logger *slog.Logger) *LoRaWAN {
	if clock == nil {
		clock = pilldispenser.SystemClock
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LoRaWAN{
		rw:     rw,
		clock:  clock,
		cfg:    cfg,
		logger: logger.With("component", "lorawan"),
	}
}

type atStep struct {
	command string
	expect  string
	timeout time.Duration
}

func (l *LoRaWAN) handshake() []atStep {
	return []atStep{
		{"AT", "+AT: OK", l.cfg.CommandTimeout},
		{"AT+MODE=LWOTAA", "+MODE: LWOTAA", l.cfg.CommandTimeout},
		{fmt.Sprintf("AT+KEY=APPKEY,%q", l.cfg.AppKey), "+KEY:", l.cfg.CommandTimeout},
		{"AT+CLASS=A", "+CLASS: A", l.cfg.CommandTimeout},
		{fmt.Sprintf("AT+PORT=%d", l.cfg.Port), fmt.Sprintf("+PORT: %d", l.cfg.Port), l.cfg.CommandTimeout},
		{"AT+JOIN", "Network joined", l.cfg.JoinTimeout},
	}
}

// Join runs the OTAA handshake
func (l *LoRaWAN) Join() error {
	l.joined = false
	for _, step := range l.handshake() {
		err := l.exchange(step.command, step.expect, step.timeout)
		if err != nil {
			return fmt.Errorf("error joining network at %q: %w", step.command, err)
		}
	}
	l.joined = true
	l.logger.Info("joined network")
	return nil
}

// Joined reports whether the last handshake succeeded
func (l *LoRaWAN) Joined() bool {
	return l.joined
}

// Send implements Sender
func (l *LoRaWAN) Send(text string) error {
	command := fmt.Sprintf("AT+MSG=%q", text)
	if len(command)+2 > MaxCommandLength {
		return fmt.Errorf("%w: %d bytes", ErrMessageTooLong, len(text))
	}

	if !l.joined {
		err := l.Join()
		if err != nil {
			return err
		}
	}

	err := l.exchange(command, "+MSG: Done", l.cfg.MessageTimeout)
	if err != nil {
		l.joined = false
		return fmt.Errorf("error sending message: %w", err)
	}
	return nil
}

// exchange writes one command line and reads until the reply contains expect or the timeout passes
func (l *LoRaWAN) exchange(command, expect string, timeout time.Duration) error {
	l.logger.Debug("sending command", "command", command)

	_, err := io.WriteString(l.rw, command+"\r\n")
	if err != nil {
		return fmt.Errorf("error writing command: %w", err)
	}

	var reply strings.Builder
	buf := make([]byte, MaxCommandLength)
	deadline := l.clock.Now().Add(timeout)
	for {
		n, err := l.rw.Read(buf)
		if n > 0 {
			reply.Write(buf[:n])
			if strings.Contains(reply.String(), expect) {
				return nil
			}
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("error reading reply: %w", err)
		}
		if !l.clock.Now().Before(deadline) {
			break
		}
		if n == 0 {
			l.clock.Sleep(pollInterval)
		}
	}

	if reply.Len() == 0 {
		return ErrNoResponse
	}
	return fmt.Errorf("%w: %q", ErrUnexpectedResponse, strings.TrimSpace(reply.String()))
}
