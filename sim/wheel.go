package sim

import "sync"

// coilAngles maps an energized coil pattern (IN1..IN4) to the rotor's half-step angle
var coilAngles = map[[4]bool]int{
	{true, false, false, false}: 0,
	{true, true, false, false}:  1,
	{false, true, false, false}: 2,
	{false, true, true, false}:  3,
	{false, false, true, false}: 4,
	{false, false, true, true}:  5,
	{false, false, false, true}: 6,
	{true, false, false, true}:  7,
}

// Wheel is the dispenser wheel on a 28BYJ-48 style stepper with an optical fork watching an index
// mark. It follows the coil patterns it is given like the real rotor does: one half-step per
// adjacent pattern, nothing for the first pattern after power-up
type Wheel struct {
	mu sync.Mutex

	stepsPerRevolution int
	markStart          int
	markWidth          int

	position  int
	lastAngle int
	steps     int

	// OnStep is called after every physical step with the new position and the direction
	OnStep func(position, direction int)
}

// NewWheel creates a wheel with the mark covering [markStart, markStart+markWidth)
func NewWheel(stepsPerRevolution, markStart, markWidth int) *Wheel {
	return &Wheel{
		stepsPerRevolution: stepsPerRevolution,
		markStart:          markStart,
		markWidth:          markWidth,
		lastAngle:          -1,
	}
}

// Set implements motor.Coils
func (w *Wheel) Set(pattern [4]bool) {
	w.mu.Lock()

	angle, ok := coilAngles[pattern]
	if !ok {
		w.lastAngle = -1
		w.mu.Unlock()
		return
	}
	if w.lastAngle < 0 {
		w.lastAngle = angle
		w.mu.Unlock()
		return
	}

	direction := 0
	switch (angle - w.lastAngle + 8) % 8 {
	case 1:
		direction = 1
	case 7:
		direction = -1
	}
	w.lastAngle = angle
	if direction == 0 {
		w.mu.Unlock()
		return
	}

	w.position = (w.position + direction + w.stepsPerRevolution) % w.stepsPerRevolution
	w.steps++
	position, onStep := w.position, w.OnStep
	w.mu.Unlock()

	if onStep != nil {
		onStep(position, direction)
	}
}

// Detected implements motor.IndexSensor
func (w *Wheel) Detected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.inMark(w.position)
}

func (w *Wheel) inMark(position int) bool {
	offset := (position - w.markStart + w.stepsPerRevolution) % w.stepsPerRevolution
	return offset < w.markWidth
}

// MarkExit is the first position past the index mark in the forward direction
func (w *Wheel) MarkExit() int {
	return (w.markStart + w.markWidth) % w.stepsPerRevolution
}

// Position is the physical position in [0, StepsPerRevolution)
func (w *Wheel) Position() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.position
}

// SetPosition moves the wheel by hand
func (w *Wheel) SetPosition(position int) {
	w.mu.Lock()
	w.position = ((position % w.stepsPerRevolution) + w.stepsPerRevolution) % w.stepsPerRevolution
	w.mu.Unlock()
}

// PowerCycle de-energizes the coils. The rotor stays where it is and the next pattern only holds it
func (w *Wheel) PowerCycle() {
	w.mu.Lock()
	w.lastAngle = -1
	w.mu.Unlock()
}

// Steps is the number of physical steps taken so far
func (w *Wheel) Steps() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.steps
}

func (w *Wheel) StepsPerRevolution() int {
	return w.stepsPerRevolution
}
