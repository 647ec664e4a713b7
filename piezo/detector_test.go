package piezo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/calvinmclean/pilldispenser"
	"github.com/calvinmclean/pilldispenser/sim"
)

func newDetector(clock *sim.Clock, piezo *sim.Piezo) (*Detector, *Accumulator) {
	acc := &Accumulator{}
	piezo.Edge = acc.Edge
	return NewDetector(acc, piezo, clock, pilldispenser.DefaultConfig(), nil), acc
}

func TestDetectImpactDuringTrigger(t *testing.T) {
	clock := sim.NewClock()
	piezo := sim.NewPiezo(clock, 5*time.Millisecond)
	d, _ := newDetector(clock, piezo)

	r := d.Observe(func() {
		clock.Advance(50 * time.Millisecond)
		piezo.Impact()
	})

	assert.True(t, r.Detected)
	assert.Equal(t, 1, r.Pulses)
	assert.Equal(t, 2, r.Spikes)
	assert.Equal(t, 5, r.LowSamples)
	assert.Equal(t, 150, r.Integrated)
}

func TestDetectNothing(t *testing.T) {
	clock := sim.NewClock()
	piezo := sim.NewPiezo(clock, 5*time.Millisecond)
	d, _ := newDetector(clock, piezo)

	start := clock.Now()
	assert.False(t, d.Detect(func() {}))

	// the window runs to completion without activity
	assert.Equal(t, pilldispenser.DefaultConfig().DetectionWindow, clock.Now().Sub(start))
}

func TestDetectWindowRunsToCompletion(t *testing.T) {
	clock := sim.NewClock()
	piezo := sim.NewPiezo(clock, 5*time.Millisecond)
	d, _ := newDetector(clock, piezo)

	start := clock.Now()
	assert.True(t, d.Detect(piezo.Impact))
	assert.Equal(t, pilldispenser.DefaultConfig().DetectionWindow, clock.Now().Sub(start))
}

func TestDetectTriggerOutlastsWindow(t *testing.T) {
	clock := sim.NewClock()
	piezo := sim.NewPiezo(clock, 5*time.Millisecond)
	d, _ := newDetector(clock, piezo)

	r := d.Observe(func() {
		clock.Advance(time.Second)
		piezo.Impact()
	})

	// no sampling time is left, but the edges were counted
	assert.True(t, r.Detected)
	assert.Equal(t, 0, r.LowSamples)
	assert.Equal(t, 1, r.Pulses)
}

type lowSensor struct{}

func (lowSensor) Level() bool { return false }

func TestDetectIntegratedLowLevel(t *testing.T) {
	clock := sim.NewClock()
	cfg := pilldispenser.DefaultConfig()
	cfg.DetectionWindow = 10 * time.Millisecond

	d := NewDetector(&Accumulator{}, lowSensor{}, clock, cfg, nil)
	r := d.Observe(nil)

	assert.True(t, r.Detected)
	assert.Equal(t, 0, r.Spikes)
	assert.Equal(t, 10, r.LowSamples)
	assert.Equal(t, 10*cfg.LowWeight, r.Integrated)
}

func TestDetectSingleSpikeBelowThreshold(t *testing.T) {
	clock := sim.NewClock()
	cfg := pilldispenser.DefaultConfig()
	cfg.PulseThreshold = 2

	acc := &Accumulator{}
	d := NewDetector(acc, sim.NewPiezo(clock, 0), clock, cfg, nil)

	// a rising edge alone is one spike and no pulse
	r := d.Observe(func() { acc.Edge(true) })
	assert.False(t, r.Detected)
	assert.Equal(t, 1, r.Spikes)
	assert.Equal(t, 0, r.Pulses)
}
