package piezo

import "sync/atomic"

// Counts are the edge totals of one detection window
type Counts struct {
	// Pulses is the number of falling edges, each one the start of a low pulse
	Pulses int
	// Spikes is the number of level changes in either direction
	Spikes int
}

// Accumulator counts sensor edges reported from interrupt context. The control loop arms it with
// Reset at the start of a window and reads it with Freeze at the end. Edges outside a window are ignored
type Accumulator struct {
	armed  atomic.Bool
	pulses atomic.Uint32
	spikes atomic.Uint32
}

// Edge records a level change. It is safe to call from an interrupt handler
func (a *Accumulator) Edge(high bool) {
	if !a.armed.Load() {
		return
	}
	a.spikes.Add(1)
	if !high {
		a.pulses.Add(1)
	}
}

// Reset zeroes the counters and arms the accumulator
func (a *Accumulator) Reset() {
	state := disableInterrupts()
	a.pulses.Store(0)
	a.spikes.Store(0)
	a.armed.Store(true)
	restoreInterrupts(state)
}

// Freeze disarms the accumulator and returns the totals since the last Reset
func (a *Accumulator) Freeze() Counts {
	state := disableInterrupts()
	a.armed.Store(false)
	c := Counts{
		Pulses: int(a.pulses.Load()),
		Spikes: int(a.spikes.Load()),
	}
	restoreInterrupts(state)
	return c
}
