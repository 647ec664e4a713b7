package controller

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Run("File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		err := os.WriteFile(path, []byte("serial_port: /dev/ttyACM0\nevent_log_addr: http://localhost:8080\ndevice_name: kitchen\n"), 0o644)
		require.NoError(t, err)

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, Config{
			SerialPort:   "/dev/ttyACM0",
			BaudRate:     DefaultBaudRate,
			EventLogAddr: "http://localhost:8080",
			DeviceName:   "kitchen",
		}, cfg)
	})

	t.Run("Missing", func(t *testing.T) {
		cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
		require.NoError(t, err)
		assert.Equal(t, Config{BaudRate: DefaultBaudRate}, cfg)
	})

	t.Run("Invalid", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("serial_port: [\n"), 0o644))

		_, err := LoadConfig(path)
		assert.ErrorContains(t, err, "error parsing config")
	})
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("PILL_DISPENSER_SERIAL_PORT", SerialPortNone)
	t.Setenv("PILL_DISPENSER_BAUD_RATE", "9600")
	t.Setenv("PILL_DISPENSER_EVENT_LOG_ADDR", "")

	cfg := Config{SerialPort: "/dev/ttyACM0", BaudRate: DefaultBaudRate, EventLogAddr: "http://localhost:8080"}
	cfg.ApplyEnv()

	assert.Equal(t, SerialPortNone, cfg.SerialPort)
	assert.Equal(t, "9600", cfg.BaudRate)
	assert.Equal(t, "http://localhost:8080", cfg.EventLogAddr)

	baud, err := cfg.Baud()
	require.NoError(t, err)
	assert.Equal(t, 9600, baud)
}

func TestBaud(t *testing.T) {
	baud, err := Config{}.Baud()
	require.NoError(t, err)
	assert.Equal(t, 115200, baud)

	_, err = Config{BaudRate: "fast"}.Baud()
	assert.Error(t, err)
}

func TestNewWithoutDevice(t *testing.T) {
	c, err := New(Config{SerialPort: SerialPortNone}, nil)
	require.NoError(t, err)
	assert.Nil(t, c.port)
	assert.IsType(t, noopEventLogClient{}, c.events)
}
