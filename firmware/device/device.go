//go:build tinygo

package device

import (
	"errors"
	"machine"
	"time"

	"tinygo.org/x/drivers/at24cx"

	"github.com/calvinmclean/pilldispenser"
	"github.com/calvinmclean/pilldispenser/dispenser"
	"github.com/calvinmclean/pilldispenser/piezo"
)

// Coils drives the ULN2003 inputs of the stepper
type Coils struct {
	pins [4]machine.Pin
}

func NewCoils(pins [4]machine.Pin) *Coils {
	for _, p := range pins {
		p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	}
	return &Coils{pins: pins}
}

func (c *Coils) Set(pattern [4]bool) {
	for i, on := range pattern {
		c.pins[i].Set(on)
	}
}

// Optofork is the index sensor. The line is pulled up and goes low while the mark blocks the light
type Optofork machine.Pin

func NewOptofork(pin machine.Pin) Optofork {
	pin.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	return Optofork(pin)
}

func (o Optofork) Detected() bool {
	return !machine.Pin(o).Get()
}

// Piezo is the vibration sensor. Every edge is reported to the Accumulator from the pin interrupt
type Piezo machine.Pin

func NewPiezo(pin machine.Pin, acc *piezo.Accumulator) (Piezo, error) {
	pin.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	err := pin.SetInterrupt(machine.PinRising|machine.PinFalling, func(p machine.Pin) {
		acc.Edge(p.Get())
	})
	if err != nil {
		return Piezo(pin), errors.New("error setting piezo interrupt: " + err.Error())
	}
	return Piezo(pin), nil
}

func (p Piezo) Level() bool {
	return machine.Pin(p).Get()
}

// LED is a status light, on when the pin is high
type LED machine.Pin

func NewLED(pin machine.Pin) LED {
	pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	pin.Low()
	return LED(pin)
}

func (l LED) Set(on bool) {
	machine.Pin(l).Set(on)
}

// NewButton debounces a push button to ground
func NewButton(pin machine.Pin, onPress func()) *dispenser.Button {
	pin.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	return dispenser.NewButton(func() bool { return !pin.Get() }, onPress, pilldispenser.SystemClock, dispenser.DefaultDebounce)
}

// PollButtons samples the buttons forever
func PollButtons(buttons ...*dispenser.Button) {
	for {
		for _, b := range buttons {
			b.Poll()
		}
		time.Sleep(PollInterval)
	}
}

// NewEEPROM configures the I2C bus and the AT24C EEPROM that holds the device state
func NewEEPROM(cfg EEPROMConfig) (*at24cx.Device, error) {
	err := cfg.Bus.Configure(machine.I2CConfig{
		SDA:       cfg.SDA,
		SCL:       cfg.SCL,
		Frequency: cfg.Frequency,
	})
	if err != nil {
		return nil, errors.New("error configuring i2c: " + err.Error())
	}

	eeprom := at24cx.New(cfg.Bus)
	eeprom.Configure(at24cx.Config{
		PageSize:      cfg.PageSize,
		EndRAMAddress: cfg.Size,
	})
	eeprom.Address = cfg.Address
	return &eeprom, nil
}

// UART is an io.ReadWriter over a hardware UART whose Read never blocks
type UART struct {
	uart *machine.UART
}

func NewUART(cfg UARTConfig) (*UART, error) {
	err := cfg.UART.Configure(machine.UARTConfig{
		BaudRate: cfg.BaudRate,
		TX:       cfg.TX,
		RX:       cfg.RX,
	})
	if err != nil {
		return nil, errors.New("error configuring uart: " + err.Error())
	}
	return &UART{uart: cfg.UART}, nil
}

func (u *UART) Read(p []byte) (int, error) {
	if u.uart.Buffered() == 0 {
		return 0, nil
	}
	return u.uart.Read(p)
}

func (u *UART) Write(p []byte) (int, error) {
	return u.uart.Write(p)
}
