package pilldispenser

import (
	"errors"
	"fmt"
	"time"
)

// Config has the timing and threshold constants of the dispenser. Firmware compiles the defaults in,
// the host simulator can override them from its config file
type Config struct {
	// MeasurementLaps is the number of calibration laps including the first one, which only settles
	// the mechanism and is discarded
	MeasurementLaps int `yaml:"measurement_laps"`
	// MaxLapSteps bounds a single calibration lap. A lap that does not see the index mark within
	// this many steps is unmeasured
	MaxLapSteps int `yaml:"max_lap_steps"`
	// FineAlignDivisor gives the fine alignment offset as StepsPerRevolution/FineAlignDivisor
	FineAlignDivisor int `yaml:"fine_align_divisor"`
	// StepDelay is held after every coil change
	StepDelay time.Duration `yaml:"step_delay"`

	InterDoseDelay time.Duration `yaml:"inter_dose_delay"`
	MaxPortions    int           `yaml:"max_portions"`
	LoopInterval   time.Duration `yaml:"loop_interval"`

	// WriteSettle is the wait between writing the state record and reading it back
	WriteSettle time.Duration `yaml:"write_settle"`

	DetectionWindow         time.Duration `yaml:"detection_window"`
	DetectionSampleInterval time.Duration `yaml:"detection_sample_interval"`
	PulseThreshold          int           `yaml:"pulse_threshold"`
	SpikeThreshold          int           `yaml:"spike_threshold"`
	LowWeight               int           `yaml:"low_weight"`
	IntegratedThreshold     int           `yaml:"integrated_threshold"`
}

// DefaultConfig returns the values the dispenser ships with
func DefaultConfig() Config {
	return Config{
		MeasurementLaps:  3,
		MaxLapSteps:      20000,
		FineAlignDivisor: 12,
		StepDelay:        2 * time.Millisecond,

		InterDoseDelay: 5 * time.Second,
		MaxPortions:    7,
		LoopInterval:   200 * time.Millisecond,

		WriteSettle: 10 * time.Millisecond,

		DetectionWindow:         300 * time.Millisecond,
		DetectionSampleInterval: time.Millisecond,
		PulseThreshold:          1,
		SpikeThreshold:          2,
		LowWeight:               30,
		IntegratedThreshold:     90,
	}
}

// Validate checks the lower bounds the hardware depends on
func (c Config) Validate() error {
	var errs []error
	if c.MeasurementLaps < 2 {
		errs = append(errs, fmt.Errorf("measurement_laps must be at least 2, got %d", c.MeasurementLaps))
	}
	if c.MaxLapSteps <= 0 {
		errs = append(errs, errors.New("max_lap_steps must be positive"))
	}
	if c.FineAlignDivisor <= 0 {
		errs = append(errs, errors.New("fine_align_divisor must be positive"))
	}
	if c.StepDelay < time.Millisecond {
		errs = append(errs, fmt.Errorf("step_delay must be at least 1ms, got %s", c.StepDelay))
	}
	if c.WriteSettle < 5*time.Millisecond {
		errs = append(errs, fmt.Errorf("write_settle must be at least 5ms, got %s", c.WriteSettle))
	}
	if c.MaxPortions <= 0 || c.MaxPortions >= Compartments {
		errs = append(errs, fmt.Errorf("max_portions must be between 1 and %d, got %d", Compartments-1, c.MaxPortions))
	}
	if c.InterDoseDelay <= 0 {
		errs = append(errs, errors.New("inter_dose_delay must be positive"))
	}
	if c.DetectionWindow <= 0 || c.DetectionSampleInterval <= 0 {
		errs = append(errs, errors.New("detection_window and detection_sample_interval must be positive"))
	}
	if c.PulseThreshold <= 0 || c.SpikeThreshold <= 0 || c.LowWeight <= 0 || c.IntegratedThreshold <= 0 {
		errs = append(errs, errors.New("detection thresholds and low_weight must be positive"))
	}
	return errors.Join(errs...)
}
