package dispenser

import (
	"time"

	"github.com/calvinmclean/pilldispenser"
)

// Indicator shows the controller's state to the operator
type Indicator interface {
	// Waiting is called on every loop iteration while calibration is needed
	Waiting()
	// Armed means dispensing is possible
	Armed()
	// Busy means the wheel is moving
	Busy()
	// Error blinks an error pattern and blocks until it is done
	Error(times int)
}

// NopIndicator shows nothing
type NopIndicator struct{}

func (NopIndicator) Waiting()  {}
func (NopIndicator) Armed()    {}
func (NopIndicator) Busy()     {}
func (NopIndicator) Error(int) {}

// LED is one status light
type LED interface {
	Set(on bool)
}

const blinkPeriod = 200 * time.Millisecond

// Lights drives a row of LEDs: blinking while waiting for calibration, all on while armed, off during
// a dispense, and blinking quickly on errors
type Lights struct {
	leds  []LED
	clock pilldispenser.Clock
	on    bool
}

func NewLights(clock pilldispenser.Clock, leds ...LED) *Lights {
	if clock == nil {
		clock = pilldispenser.SystemClock
	}
	return &Lights{leds: leds, clock: clock}
}

func (l *Lights) set(on bool) {
	l.on = on
	for _, led := range l.leds {
		led.Set(on)
	}
}

func (l *Lights) Waiting() { l.set(!l.on) }

func (l *Lights) Armed() { l.set(true) }

func (l *Lights) Busy() { l.set(false) }

func (l *Lights) Error(times int) {
	for range times {
		l.set(true)
		l.clock.Sleep(blinkPeriod)
		l.set(false)
		l.clock.Sleep(blinkPeriod)
	}
}
