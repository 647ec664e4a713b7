// Package piezo classifies the activity of the vibration sensor under the dispense aperture into a
// single "pill dispensed" answer.
package piezo

import (
	"log/slog"
	"time"

	"github.com/calvinmclean/pilldispenser"
)

// Sensor is the polled level of the piezo line. It idles high and is pulled low on impact
type Sensor interface {
	Level() bool
}

// Result is the outcome of one detection window
type Result struct {
	Counts
	LowSamples int
	Integrated int
	Detected   bool
}

func (r Result) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("pulses", r.Pulses),
		slog.Int("spikes", r.Spikes),
		slog.Int("low_samples", r.LowSamples),
		slog.Int("integrated", r.Integrated),
		slog.Bool("detected", r.Detected),
	)
}

// Detector runs detection windows. Edges come in through the Accumulator, which the caller connects to
// the sensor's interrupt, and the level is sampled by the Detector itself
type Detector struct {
	acc    *Accumulator
	sensor Sensor
	clock  pilldispenser.Clock
	cfg    pilldispenser.Config
	logger *slog.Logger
}

func NewDetector(acc *Accumulator, sensor Sensor, clock pilldispenser.Clock, cfg pilldispenser.Config, logger *slog.Logger) *Detector {
	if clock == nil {
		clock = pilldispenser.SystemClock
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		acc:    acc,
		sensor: sensor,
		clock:  clock,
		cfg:    cfg,
		logger: logger.With("component", "piezo"),
	}
}

// Detect runs trigger inside a detection window and reports whether a pill hit the sensor
func (d *Detector) Detect(trigger func()) bool {
	return d.Observe(trigger).Detected
}

// Observe opens a window, runs trigger synchronously, and keeps sampling until DetectionWindow has
// passed since the trigger began. Edges are counted for the whole time, including a trigger that
// outlasts the window. The window never ends early
func (d *Detector) Observe(trigger func()) Result {
	start := d.clock.Now()
	d.acc.Reset()

	if trigger != nil {
		trigger()
	}

	var r Result
	for d.clock.Now().Sub(start) < d.cfg.DetectionWindow {
		if !d.sensor.Level() {
			r.LowSamples++
			r.Integrated += d.cfg.LowWeight
		}
		d.clock.Sleep(d.sampleInterval())
	}

	r.Counts = d.acc.Freeze()
	r.Detected = r.Pulses >= d.cfg.PulseThreshold ||
		r.Spikes >= d.cfg.SpikeThreshold ||
		r.Integrated >= d.cfg.IntegratedThreshold

	d.logger.Debug("detection window closed", "result", r, "duration", d.clock.Now().Sub(start))
	return r
}

func (d *Detector) sampleInterval() time.Duration {
	if d.cfg.DetectionSampleInterval <= 0 {
		return time.Millisecond
	}
	return d.cfg.DetectionSampleInterval
}
