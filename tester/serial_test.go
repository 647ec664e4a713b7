package main_test

import (
	"os"
	"strings"
	"testing"
	"time"

	"go.bug.st/serial"
)

// portFromEnv returns the device port, skipping the test when no device is attached
func portFromEnv(t *testing.T) string {
	t.Helper()
	port := os.Getenv("PILL_DISPENSER_SERIAL_PORT")
	if port == "" {
		t.Skip("PILL_DISPENSER_SERIAL_PORT is not set")
	}
	return port
}

// sendSerial writes in and collects output until a line starting with want arrives
func sendSerial(t *testing.T, in, want string, timeout time.Duration) []string {
	t.Helper()
	mode := &serial.Mode{
		BaudRate: 115200,
	}

	port, err := serial.Open(portFromEnv(t), mode)
	if err != nil {
		t.Fatalf("unexpected error opening serial connection: %v", err)
	}
	defer port.Close()

	_, err = port.Write([]byte(in))
	if err != nil {
		t.Fatalf("unexpected error writing serial: %v", err)
	}

	err = port.SetReadTimeout(100 * time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error setting read timeout: %v", err)
	}

	var received strings.Builder
	buf := make([]byte, 256)
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		n, err := port.Read(buf)
		if err != nil {
			t.Fatalf("unexpected error reading serial: %v", err)
		}
		received.Write(buf[:n])

		lines := strings.Split(strings.ReplaceAll(received.String(), "\r", ""), "\n")
		for _, line := range lines {
			if strings.HasPrefix(line, want) {
				return lines
			}
		}
	}

	t.Fatalf("no line starting with %q within %s, got %q", want, timeout, received.String())
	return nil
}

func TestSerial(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		timeout time.Duration
	}{
		{"Status", "S", "STATUS phase=", time.Second},
		{"Help", "H", "Available Commands:", time.Second},
		{"ResetNeedsConfirmation", "XS", "error: reset not confirmed", time.Second},
		{"Calibrate", "C", "EVENT Calibration completed.", time.Minute},
		{"Calibrated", "S", "STATUS phase=Dispensing portions=0 calibrated=true", time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sendSerial(t, tt.in, tt.want, tt.timeout)
		})
	}
}
