//go:build tinygo

package device

import (
	"machine"
	"time"
)

// Config has the pin assignments of the dispenser board
type Config struct {
	MotorPins [4]machine.Pin
	Optofork  machine.Pin
	Piezo     machine.Pin

	CalibrateButton machine.Pin
	DispenseButton  machine.Pin
	LEDs            []machine.Pin

	EEPROM EEPROMConfig
	LoRa   UARTConfig
}

// EEPROMConfig is the I2C bus and AT24C part that hold the device state
type EEPROMConfig struct {
	Bus       *machine.I2C
	SDA       machine.Pin
	SCL       machine.Pin
	Frequency uint32
	Address   uint16
	PageSize  uint16
	Size      uint16
}

// UARTConfig is the serial port of the LoRa modem
type UARTConfig struct {
	UART     *machine.UART
	TX       machine.Pin
	RX       machine.Pin
	BaudRate uint32
}

// PollInterval is how often the buttons are sampled
const PollInterval = time.Millisecond
