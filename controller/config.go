package controller

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"go.bug.st/serial/enumerator"
	"gopkg.in/yaml.v3"
)

// SerialPortNone runs the bridge without a device, echoing commands to the output instead
const SerialPortNone = "None"

// DefaultBaudRate matches the firmware's USB console
const DefaultBaudRate = "115200"

var ErrNoUSBSerial = errors.New("no USB serial ports found")

// Config is the host bridge configuration. It is read from a YAML file and environment variables
type Config struct {
	SerialPort   string `yaml:"serial_port"`
	BaudRate     string `yaml:"baud_rate"`
	EventLogAddr string `yaml:"event_log_addr"`
	DeviceName   string `yaml:"device_name"`
}

// LoadConfig reads a YAML config file. A missing file is not an error and returns the defaults
func LoadConfig(path string) (Config, error) {
	cfg := Config{BaudRate: DefaultBaudRate}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("error reading config: %w", err)
	}

	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("error parsing config: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides fields that are set in the environment
func (c *Config) ApplyEnv() {
	if v := os.Getenv("PILL_DISPENSER_SERIAL_PORT"); v != "" {
		c.SerialPort = v
	}
	if v := os.Getenv("PILL_DISPENSER_BAUD_RATE"); v != "" {
		c.BaudRate = v
	}
	if v := os.Getenv("PILL_DISPENSER_EVENT_LOG_ADDR"); v != "" {
		c.EventLogAddr = v
	}
	if v := os.Getenv("PILL_DISPENSER_DEVICE_NAME"); v != "" {
		c.DeviceName = v
	}
}

// Baud parses BaudRate
func (c Config) Baud() (int, error) {
	if c.BaudRate == "" {
		c.BaudRate = DefaultBaudRate
	}
	baud, err := strconv.Atoi(c.BaudRate)
	if err != nil || baud <= 0 {
		return 0, fmt.Errorf("invalid baud rate %q", c.BaudRate)
	}
	return baud, nil
}

// GetSerialPorts lists USB serial ports
func GetSerialPorts() ([]string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("error listing serial ports: %w", err)
	}

	var result []string
	for _, port := range ports {
		if port.IsUSB {
			result = append(result, port.Name)
		}
	}

	if len(result) == 0 {
		return nil, ErrNoUSBSerial
	}

	return result, nil
}
