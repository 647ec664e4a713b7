// Package dispenser is the top-level state machine of the pill dispenser. It sequences calibration and
// dispensing, confirms each drop with the pill detector, and recovers from power loss at boot.
package dispenser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/calvinmclean/pilldispenser"
	"github.com/calvinmclean/pilldispenser/notify"
	"github.com/calvinmclean/pilldispenser/state"
)

// Events sent to the Notifier
const (
	EventCalibrationStarted   = "Calibration started."
	EventCalibrationCompleted = "Calibration completed."
	EventCalibrationFailed    = "Calibration failed."
	EventPillDetected         = "Pill detected during dispensing."
	EventPillNotDetected      = "Pill not detected during dispensing."
	EventDispenseFailed       = "Dispensing failed, calibration required."
	EventMaxPortions          = "Max portions reached."
	EventStateReset           = "Stored state was invalid and has been reset."
	EventRotationInterrupted  = "Device was turned off during rotation."
	EventDispenseResumed      = "Resuming interrupted dispense."
	EventCalibrationResumed   = "Device was turned off while calibrating."
	EventRealignFailed        = "Realignment failed, calibration required."
	EventResetRequested       = "State reset by operator."
)

const errorBlinks = 5

// Motor is the part of the motor engine the controller uses
type Motor interface {
	Calibrate() error
	RotateDrop(finish func(*pilldispenser.DeviceState)) error
	ResetAndRealign() error
	Invalidate()
}

// Detector runs a rotation inside a pill detection window
type Detector interface {
	Detect(trigger func()) bool
}

// Deps are the collaborators of a Controller
type Deps struct {
	Keeper    *state.Keeper
	Motor     Motor
	Detector  Detector
	Notifier  notify.Notifier
	Indicator Indicator
	Clock     pilldispenser.Clock
	Config    pilldispenser.Config
	Logger    *slog.Logger
}

// Controller runs the Calibration and Dispensing phases on a single loop. The persisted phase in the
// Keeper is the state of the machine, the Controller itself only remembers when it last dispensed
type Controller struct {
	keeper    *state.Keeper
	motor     Motor
	detector  Detector
	notifier  notify.Notifier
	indicator Indicator
	clock     pilldispenser.Clock
	cfg       pilldispenser.Config
	logger    *slog.Logger

	calibrate Trigger
	dispense  Trigger
	reset     Trigger

	// lastDispense is zero until the first dispense of a cycle, so the timer only runs after the
	// operator started dispensing
	lastDispense time.Time
}

func New(deps Deps) *Controller {
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}
	if deps.Indicator == nil {
		deps.Indicator = NopIndicator{}
	}
	if deps.Clock == nil {
		deps.Clock = pilldispenser.SystemClock
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	c := &Controller{
		keeper:    deps.Keeper,
		motor:     deps.Motor,
		detector:  deps.Detector,
		notifier:  deps.Notifier,
		indicator: deps.Indicator,
		clock:     deps.Clock,
		cfg:       deps.Config,
		logger:    deps.Logger.With("component", "controller"),
	}

	c.keeper.OnFailure(func(reason string, err error) {
		c.notifier.Notify(fmt.Sprintf("Failed to save state (%s): %v", reason, err))
	})
	return c
}

// RequestCalibration is the operator's "start calibration" input
func (c *Controller) RequestCalibration() { c.calibrate.Fire() }

// RequestDispense is the operator's "dispense" input
func (c *Controller) RequestDispense() { c.dispense.Fire() }

// RequestReset asks the loop to reset the stored state to defaults
func (c *Controller) RequestReset() { c.reset.Fire() }

// Boot runs power-loss recovery before the loop accepts any input. stateReset tells it that the stored
// state was missing or corrupt and defaults were loaded instead
func (c *Controller) Boot(stateReset bool) {
	s := c.keeper.State()
	c.logger.Info("booting",
		"phase", s.Phase,
		"portions", s.PortionCount,
		"calibrated", s.MotorCalibrated,
		"step", s.CurrentMotorStep,
		"rotating", s.RotationInProgress,
		"continue", s.ContinueDispensing,
		"calibrating", s.CalibrationInProgress,
	)

	if stateReset {
		c.notifier.Notify(EventStateReset)
	}
	if !s.Phase.Valid() {
		c.resetToDefaults(EventStateReset)
		return
	}
	if s.Phase == pilldispenser.PhaseDispensing && s.PortionCount > 0 {
		c.lastDispense = c.clock.Now()
	}

	switch {
	case s.CalibrationInProgress:
		c.notifier.Notify(EventCalibrationResumed)
		c.runCalibration()
	case s.Interrupted():
		c.recover(s)
	}
}

// recover realigns after an interrupted rotation and replays the interrupted dispense exactly once.
// In Dispensing the replay flag is persisted before the wheel moves, so a power loss during or right
// after the realignment still replays on the next boot
func (c *Controller) recover(s pilldispenser.DeviceState) {
	c.notifier.Notify(EventRotationInterrupted)

	dispensing := s.Phase == pilldispenser.PhaseDispensing
	if dispensing && !s.ContinueDispensing {
		_ = c.keeper.Commit("dispense interrupted", func(s *pilldispenser.DeviceState) {
			s.ContinueDispensing = true
		})
	}

	err := c.motor.ResetAndRealign()
	if err != nil {
		c.logger.Error("realignment failed", "error", err)
		c.requireCalibration("realignment failed", EventRealignFailed)
		return
	}

	if !dispensing {
		_ = c.keeper.Commit("stale dispense flag", func(s *pilldispenser.DeviceState) {
			s.ContinueDispensing = false
		})
		return
	}

	c.notifier.Notify(EventDispenseResumed)
	c.dispenseOnce()
}

// Tick is one iteration of the control loop
func (c *Controller) Tick() {
	if c.reset.Take() {
		c.resetToDefaults(EventResetRequested)
		return
	}

	s := c.keeper.State()
	switch s.Phase {
	case pilldispenser.PhaseCalibration:
		c.dispense.Take()
		if c.calibrate.Take() {
			c.runCalibration()
			return
		}
		c.indicator.Waiting()
	case pilldispenser.PhaseDispensing:
		c.calibrate.Take()
		if s.PortionCount >= c.cfg.MaxPortions {
			c.finishCycle()
			return
		}
		c.indicator.Armed()

		manual := c.dispense.Take()
		if manual || c.doseDue() {
			c.logger.Info("dispensing", "manual", manual, "portions", s.PortionCount)
			c.dispenseOnce()
		}
	default:
		c.resetToDefaults(EventStateReset)
	}
}

// Run boots the controller and loops until ctx is done
func (c *Controller) Run(ctx context.Context, stateReset bool) {
	c.Boot(stateReset)
	for ctx.Err() == nil {
		c.Tick()
		c.clock.Sleep(c.cfg.LoopInterval)
	}
}

func (c *Controller) doseDue() bool {
	return !c.lastDispense.IsZero() && c.clock.Now().Sub(c.lastDispense) >= c.cfg.InterDoseDelay
}

func (c *Controller) runCalibration() {
	c.notifier.Notify(EventCalibrationStarted)
	c.indicator.Busy()

	err := c.motor.Calibrate()
	if err != nil {
		c.logger.Error("calibration failed", "error", err)
		c.notifier.Notify(EventCalibrationFailed)
		c.indicator.Error(errorBlinks)
		return
	}

	c.lastDispense = time.Time{}
	c.notifier.Notify(EventCalibrationCompleted)
	c.indicator.Armed()
}

// dispenseOnce rotates one compartment inside a detection window. The portion is counted, and a
// pending replay cleared, in the same commit that ends the rotation
func (c *Controller) dispenseOnce() {
	c.indicator.Busy()

	var err error
	detected := c.detector.Detect(func() {
		err = c.motor.RotateDrop(func(s *pilldispenser.DeviceState) {
			s.PortionCount++
			s.ContinueDispensing = false
		})
	})
	c.lastDispense = c.clock.Now()

	if err != nil {
		c.logger.Error("dispense rotation failed", "error", err)
		c.requireCalibration("dispense failed", EventDispenseFailed)
		c.indicator.Error(errorBlinks)
		return
	}

	s := c.keeper.State()
	c.logger.Info("dispensed", "detected", detected, "portions", s.PortionCount, "step", s.CurrentMotorStep)
	if detected {
		c.notifier.Notify(EventPillDetected)
	} else {
		c.notifier.Notify(EventPillNotDetected)
		c.indicator.Error(errorBlinks)
	}

	if s.PortionCount >= c.cfg.MaxPortions {
		c.finishCycle()
	}
}

// finishCycle ends a full wheel and requires a new calibration before the next one
func (c *Controller) finishCycle() {
	c.motor.Invalidate()
	_ = c.keeper.Commit("max portions reached", func(s *pilldispenser.DeviceState) {
		s.Phase = pilldispenser.PhaseCalibration
		s.PortionCount = 0
		s.MotorCalibrated = false
		s.ContinueDispensing = false
	})
	c.lastDispense = time.Time{}
	c.notifier.Notify(EventMaxPortions)
}

// requireCalibration drops the calibration after a motor failure. The cycle starts over from the
// Calibration phase, where the operator can calibrate again
func (c *Controller) requireCalibration(reason, event string) {
	c.motor.Invalidate()
	_ = c.keeper.Commit(reason, func(s *pilldispenser.DeviceState) {
		s.Phase = pilldispenser.PhaseCalibration
		s.PortionCount = 0
		s.MotorCalibrated = false
		s.RotationInProgress = false
		s.ContinueDispensing = false
	})
	c.lastDispense = time.Time{}
	c.notifier.Notify(event)
}

func (c *Controller) resetToDefaults(event string) {
	c.logger.Warn("resetting state to defaults")
	c.motor.Invalidate()
	_ = c.keeper.Replace("reset to defaults", pilldispenser.DefaultState())
	c.lastDispense = time.Time{}
	c.notifier.Notify(event)
}

// Status is a snapshot for the service console and the host
type Status struct {
	Phase              pilldispenser.Phase
	PortionCount       int
	Calibrated         bool
	Step               int
	StepsPerRevolution int
}

func (c *Controller) Status() Status {
	s := c.keeper.State()
	return Status{
		Phase:              s.Phase,
		PortionCount:       s.PortionCount,
		Calibrated:         s.MotorCalibrated,
		Step:               s.CurrentMotorStep,
		StepsPerRevolution: s.StepsPerRevolution,
	}
}

func (s Status) String() string {
	return fmt.Sprintf("STATUS phase=%s portions=%d calibrated=%t step=%d/%d",
		s.Phase, s.PortionCount, s.Calibrated, s.Step, s.StepsPerRevolution)
}
