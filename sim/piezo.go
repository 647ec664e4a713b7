package sim

import (
	"sync"
	"time"
)

// Piezo is a vibration sensor with a pull-up: the line idles high and is pulled low briefly when a
// pill hits the plate
type Piezo struct {
	mu       sync.Mutex
	clock    *Clock
	width    time.Duration
	lowUntil time.Time

	// Edge is called for every level change, like a pin interrupt handler
	Edge func(high bool)
}

// NewPiezo creates a sensor whose impact pulses stay low for width
func NewPiezo(clock *Clock, width time.Duration) *Piezo {
	return &Piezo{clock: clock, width: width}
}

// Level is the current line level
func (p *Piezo) Level() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.clock.Now().Before(p.lowUntil)
}

// Impact produces one low pulse
func (p *Piezo) Impact() {
	p.mu.Lock()
	p.lowUntil = p.clock.Now().Add(p.width)
	edge := p.Edge
	p.mu.Unlock()

	if edge != nil {
		edge(false)
		edge(true)
	}
}

// Hopper feeds the wheel's compartments over the Piezo. Compartment k sits over the aperture at
// aperture + k*stepsPerRevolution/8, and a loaded compartment drops its pill as soon as its opening
// reaches the aperture while moving forward, a few steps before it is centered. Compartment 0 is the
// one centered over the aperture after calibration
type Hopper struct {
	mu                 sync.Mutex
	piezo              *Piezo
	stepsPerRevolution int
	spacing            int
	slack              int
	aperture           int
	full               [8]bool
	endless            bool
	stuck              int
	dropped            int
}

// NewHopper attaches a hopper to a wheel
func NewHopper(wheel *Wheel, piezo *Piezo, aperture int) *Hopper {
	h := &Hopper{
		piezo:              piezo,
		stepsPerRevolution: wheel.StepsPerRevolution(),
		spacing:            wheel.StepsPerRevolution() / 8,
		slack:              wheel.StepsPerRevolution() / 128,
		aperture:           aperture,
	}
	wheel.OnStep = h.onStep
	return h
}

// Load fills compartments 1 through n
func (h *Hopper) Load(n int) {
	h.mu.Lock()
	for k := 1; k < len(h.full); k++ {
		h.full[k] = k <= n
	}
	h.mu.Unlock()
}

// Endless refills every compartment as soon as it is empty
func (h *Hopper) Endless() {
	h.mu.Lock()
	h.endless = true
	h.mu.Unlock()
}

// Jam makes the next n drops silent, like a pill that misses the sensor
func (h *Hopper) Jam(n int) {
	h.mu.Lock()
	h.stuck = n
	h.mu.Unlock()
}

// Dropped is the number of pills that hit the sensor
func (h *Hopper) Dropped() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

// Remaining is the number of loaded compartments
func (h *Hopper) Remaining() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, full := range h.full {
		if full {
			n++
		}
	}
	return n
}

func (h *Hopper) onStep(position, direction int) {
	if direction <= 0 || h.spacing <= 0 {
		return
	}

	h.mu.Lock()
	offset := ((position-h.aperture+h.slack)%h.stepsPerRevolution + h.stepsPerRevolution) % h.stepsPerRevolution
	if offset%h.spacing != 0 {
		h.mu.Unlock()
		return
	}
	k := (offset / h.spacing) % len(h.full)
	if !h.endless {
		if !h.full[k] {
			h.mu.Unlock()
			return
		}
		h.full[k] = false
	}
	if h.stuck > 0 {
		h.stuck--
		h.mu.Unlock()
		return
	}
	h.dropped++
	h.mu.Unlock()

	h.piezo.Impact()
}
