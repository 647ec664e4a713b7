package motor

import (
	"errors"
	"log/slog"

	"github.com/calvinmclean/pilldispenser"
	"github.com/calvinmclean/pilldispenser/state"
)

var (
	ErrNotCalibrated         = errors.New("motor is not calibrated")
	ErrDegenerateCalibration = errors.New("calibration did not measure a revolution")
	ErrIndexNotFound         = errors.New("index mark not found")
)

// IndexSensor is the optical fork that sees the index mark once per revolution
type IndexSensor interface {
	// Detected is true while the index mark is in the sensor
	Detected() bool
}

// Engine moves the dispenser wheel and keeps its logical position in line with the physical one. The
// index mark is the only absolute reference: calibration measures the revolution between two mark
// exits, and realignment seeks back to the mark exit before returning to the stored position.
//
// Every persisted change goes through the Keeper, so the Engine never holds state that the
// Keeper does not also have after a persisted operation returns
type Engine struct {
	stepper *Stepper
	sensor  IndexSensor
	keeper  *state.Keeper
	cfg     pilldispenser.Config
	logger  *slog.Logger

	calibrated         bool
	stepsPerRevolution int
	stepsPerDrop       int
	currentStep        int
}

// New creates an Engine starting from the Keeper's current state
func New(stepper *Stepper, sensor IndexSensor, keeper *state.Keeper, cfg pilldispenser.Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	s := keeper.State()
	e := &Engine{
		stepper: stepper,
		sensor:  sensor,
		keeper:  keeper,
		cfg:     cfg,
		logger:  logger.With("component", "motor"),
	}
	if s.MotorCalibrated && s.StepsPerRevolution > 0 && s.StepsPerDrop > 0 {
		e.calibrated = true
		e.stepsPerRevolution = s.StepsPerRevolution
		e.stepsPerDrop = s.StepsPerDrop
		e.currentStep = s.CurrentMotorStep % s.StepsPerRevolution
	}
	return e
}

func (e *Engine) Calibrated() bool { return e.calibrated }

func (e *Engine) StepsPerRevolution() int { return e.stepsPerRevolution }

func (e *Engine) StepsPerDrop() int { return e.stepsPerDrop }

func (e *Engine) CurrentStep() int { return e.currentStep }

// Invalidate forgets the calibration, for example when the cycle of portions is complete. It does not
// persist anything, the caller commits motor_calibrated=false with its own transition
func (e *Engine) Invalidate() {
	e.calibrated = false
}

// Commutate drives the coil pattern for step mod 8. Later rotations continue from that pattern
func (e *Engine) Commutate(step int) {
	e.stepper.Commutate(step)
}

// Rotate moves |steps| steps in the direction of the sign of steps, tracking the logical position.
// With checkpoint the move is bracketed by two commits: rotation_in_progress and the start position
// before the first step, the new position and a cleared flag after the last one
func (e *Engine) Rotate(steps int, checkpoint bool) {
	e.rotate(steps, checkpoint, nil)
}

// RotateOneDrop turns the wheel by one compartment with checkpointing. It calibrates first if needed
func (e *Engine) RotateOneDrop() error {
	return e.RotateDrop(nil)
}

// RotateDrop is RotateOneDrop with additional changes that are committed atomically with the
// post-move checkpoint
func (e *Engine) RotateDrop(finish func(*pilldispenser.DeviceState)) error {
	if !e.calibrated {
		e.logger.Warn("rotating a drop without calibration, calibrating first")
		err := e.Calibrate()
		if err != nil {
			return err
		}
	}

	e.rotate(e.stepsPerDrop, true, finish)
	return nil
}

func (e *Engine) rotate(steps int, checkpoint bool, finish func(*pilldispenser.DeviceState)) {
	if checkpoint {
		start := e.currentStep
		_ = e.keeper.Commit("rotation started", func(s *pilldispenser.DeviceState) {
			s.RotationInProgress = true
			s.StartMotorStep = start
			s.CurrentMotorStep = start
		})
	}

	direction := 1
	if steps < 0 {
		direction = -1
		steps = -steps
	}
	for range steps {
		if e.stepsPerRevolution > 0 {
			e.currentStep = (e.currentStep + direction + e.stepsPerRevolution) % e.stepsPerRevolution
		}
		e.step(direction)
	}

	if checkpoint {
		current := e.currentStep
		_ = e.keeper.Commit("rotation finished", func(s *pilldispenser.DeviceState) {
			s.CurrentMotorStep = current
			s.RotationInProgress = false
			if finish != nil {
				finish(s)
			}
		})
	}

	e.logger.Debug("rotated", "steps", steps*direction, "step", e.currentStep)
}

// step moves the wheel without touching the logical position
func (e *Engine) step(direction int) {
	if direction > 0 {
		e.stepper.StepForward()
	} else {
		e.stepper.StepBackward()
	}
}

// Calibrate measures the steps in one revolution. The first lap only brings the wheel to the mark
// and is discarded, the remaining laps are averaged. On success the wheel is fine-aligned, the
// position becomes 0, and the calibration is committed together with the switch to Dispensing.
// A degenerate measurement leaves the stored calibration untouched
func (e *Engine) Calibrate() error {
	e.logger.Info("calibrating", "laps", e.cfg.MeasurementLaps)
	_ = e.keeper.Commit("calibration started", func(s *pilldispenser.DeviceState) {
		s.CalibrationInProgress = true
	})

	total, accepted := 0, 0
	for lap := range e.cfg.MeasurementLaps {
		steps, ok := e.measureLap()
		if !ok {
			e.logger.Warn("calibration lap unmeasured", "lap", lap)
			return e.failCalibration()
		}
		e.logger.Debug("calibration lap", "lap", lap, "steps", steps)
		if lap == 0 {
			continue
		}
		total += steps
		accepted++
	}

	if accepted == 0 {
		return e.failCalibration()
	}
	stepsPerRevolution := (total + accepted/2) / accepted
	stepsPerDrop := stepsPerRevolution / pilldispenser.Compartments
	if stepsPerDrop == 0 {
		return e.failCalibration()
	}

	e.stepsPerRevolution = stepsPerRevolution
	e.stepsPerDrop = stepsPerDrop
	e.fineAlign()
	e.currentStep = 0
	e.calibrated = true

	_ = e.keeper.Commit("calibration finished", func(s *pilldispenser.DeviceState) {
		s.Phase = pilldispenser.PhaseDispensing
		s.PortionCount = 0
		s.MotorCalibrated = true
		s.StepsPerRevolution = stepsPerRevolution
		s.StepsPerDrop = stepsPerDrop
		s.CurrentMotorStep = 0
		s.StartMotorStep = 0
		s.RotationInProgress = false
		s.ContinueDispensing = false
		s.CalibrationInProgress = false
	})

	e.logger.Info("calibration complete", "steps_per_revolution", stepsPerRevolution, "steps_per_drop", stepsPerDrop)
	return nil
}

func (e *Engine) failCalibration() error {
	_ = e.keeper.Commit("calibration failed", func(s *pilldispenser.DeviceState) {
		s.CalibrationInProgress = false
	})
	return ErrDegenerateCalibration
}

// measureLap steps forward until the mark is reached and then until it is left again. It returns
// the number of steps taken, or false when the mark did not come and go within MaxLapSteps
func (e *Engine) measureLap() (int, bool) {
	steps := 0
	for !e.sensor.Detected() {
		if steps >= e.cfg.MaxLapSteps {
			return steps, false
		}
		e.step(1)
		steps++
	}
	for e.sensor.Detected() {
		if steps >= e.cfg.MaxLapSteps {
			return steps, false
		}
		e.step(1)
		steps++
	}
	return steps, true
}

// fineAlign centers the first compartment under the aperture after the wheel stopped at the mark exit
func (e *Engine) fineAlign() {
	for range e.stepsPerRevolution / e.cfg.FineAlignDivisor {
		e.step(1)
	}
}

// ResetAndRealign restores the absolute reference after a power loss. The wheel seeks back to the
// index mark, applies the fine alignment, and moves forward to the stored position. Running it twice
// in a row ends at the same place
func (e *Engine) ResetAndRealign() error {
	if !e.calibrated {
		return ErrNotCalibrated
	}

	target := e.currentStep
	e.logger.Info("realigning", "step", target)

	err := e.seekMarkExit()
	if err != nil {
		return err
	}
	e.fineAlign()
	for range target {
		e.step(1)
	}
	e.currentStep = target

	_ = e.keeper.Commit("realigned", func(s *pilldispenser.DeviceState) {
		s.CurrentMotorStep = target
		s.StartMotorStep = target
		s.RotationInProgress = false
	})
	return nil
}

// seekMarkExit leaves the wheel on the first step past the index mark, the same place a calibration
// lap ends. The backward search only gives up after more than a revolution without the mark
func (e *Engine) seekMarkExit() error {
	limit := e.stepsPerRevolution + e.stepsPerDrop
	if limit <= 0 || limit > e.cfg.MaxLapSteps {
		limit = e.cfg.MaxLapSteps
	}

	if !e.sensor.Detected() {
		steps := 0
		for !e.sensor.Detected() {
			if steps >= limit {
				e.logger.Error("index mark not found while seeking backward", "steps", steps)
				return ErrIndexNotFound
			}
			e.step(-1)
			steps++
		}
	}

	steps := 0
	for e.sensor.Detected() {
		if steps >= limit {
			return ErrIndexNotFound
		}
		e.step(1)
		steps++
	}
	return nil
}
