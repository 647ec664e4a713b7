package motor

import (
	"time"

	"github.com/calvinmclean/pilldispenser"
)

// Coils energizes the four windings of a unipolar stepper (IN1..IN4 of a ULN2003 board)
type Coils interface {
	Set(pattern [4]bool)
}

// 8-step half-step halfStepSequence
var halfStepSequence = [8][4]bool{
	{true, false, false, false},
	{true, true, false, false},
	{false, true, false, false},
	{false, true, true, false},
	{false, false, true, false},
	{false, false, true, true},
	{false, false, false, true},
	{true, false, false, true},
}

// Stepper drives Coils through the half-step sequence. It keeps its own commutation counter, which
// is never reset, so changing the logical position of the wheel never causes a jump in the coil pattern
type Stepper struct {
	coils     Coils
	clock     pilldispenser.Clock
	stepDelay time.Duration
	index     int
}

func NewStepper(coils Coils, clock pilldispenser.Clock, stepDelay time.Duration) *Stepper {
	if clock == nil {
		clock = pilldispenser.SystemClock
	}
	if stepDelay < time.Millisecond {
		stepDelay = time.Millisecond
	}
	return &Stepper{
		coils:     coils,
		clock:     clock,
		stepDelay: stepDelay,
	}
}

// Commutate applies the pattern for step mod 8 and holds it for the step delay. The commutation
// counter follows, so the next StepForward or StepBackward moves to an adjacent pattern
func (s *Stepper) Commutate(step int) {
	s.index = ((step % 8) + 8) % 8
	s.energize()
}

func (s *Stepper) StepForward() {
	s.index = (s.index + 1) % 8
	s.energize()
}

func (s *Stepper) StepBackward() {
	s.index = (s.index - 1 + 8) % 8
	s.energize()
}

func (s *Stepper) energize() {
	s.coils.Set(halfStepSequence[s.index])
	s.clock.Sleep(s.stepDelay)
}

// Move steps forward for positive steps and backward for negative steps
func (s *Stepper) Move(steps int) {
	if steps > 0 {
		for range steps {
			s.StepForward()
		}
	} else {
		for range -steps {
			s.StepBackward()
		}
	}
}
