package pilldispenser

import "time"

// Compartments is the number of compartments on the dispenser wheel. One of them is aligned with the
// dispense aperture after calibration, so a full cycle dispenses Compartments-1 portions at most
const Compartments = 8

// Phase is the top-level mode of the dispenser. It is persisted, so the numeric values are part of
// the stored record and must not change
type Phase uint8

const (
	PhaseUnknown Phase = iota
	PhaseCalibration
	PhaseDispensing
)

func (p Phase) String() string {
	switch p {
	case PhaseCalibration:
		return "Calibration"
	case PhaseDispensing:
		return "Dispensing"
	default:
		return "Unknown"
	}
}

// Valid reports whether p is one of the two legal phases
func (p Phase) Valid() bool {
	return p == PhaseCalibration || p == PhaseDispensing
}

// DeviceState is everything the dispenser remembers across power loss
type DeviceState struct {
	Phase        Phase
	PortionCount int

	MotorCalibrated    bool
	StepsPerRevolution int
	StepsPerDrop       int

	// CurrentMotorStep is the logical position in [0, StepsPerRevolution)
	CurrentMotorStep int
	// StartMotorStep is the position a checkpointed rotation started from
	StartMotorStep int

	RotationInProgress    bool
	ContinueDispensing    bool
	CalibrationInProgress bool
}

// DefaultState is the state of a device that was never calibrated
func DefaultState() DeviceState {
	return DeviceState{Phase: PhaseCalibration}
}

// Interrupted reports whether the device lost power in the middle of a rotation or dispense cycle
func (s DeviceState) Interrupted() bool {
	return s.RotationInProgress || s.ContinueDispensing
}

// Clock abstracts time so the control loop and motor pacing can run against simulated hardware
type Clock interface {
	Now() time.Time
	Sleep(time.Duration)
}

// SystemClock is the wall clock
var SystemClock Clock = systemClock{}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }
