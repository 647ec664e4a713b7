package motor

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinmclean/pilldispenser"
	"github.com/calvinmclean/pilldispenser/sim"
	"github.com/calvinmclean/pilldispenser/state"
)

const (
	trueStepsPerRevolution = 2048
	markStart              = 1000
	markWidth              = 40
)

type recordingPersister struct {
	store *state.Store
	saved []pilldispenser.DeviceState
}

func (r *recordingPersister) Save(s pilldispenser.DeviceState) error {
	r.saved = append(r.saved, s)
	return r.store.Save(s)
}

type rig struct {
	wheel     *sim.Wheel
	clock     *sim.Clock
	store     *state.Store
	persister *recordingPersister
	keeper    *state.Keeper
	engine    *Engine
	cfg       pilldispenser.Config
}

func newRig(t *testing.T, wheel *sim.Wheel, initial pilldispenser.DeviceState) *rig {
	t.Helper()

	clock := sim.NewClock()
	store := state.NewStore(state.NewMemory(64), state.StoreConfig{WriteSettle: pilldispenser.DefaultConfig().WriteSettle, Clock: clock})
	require.NoError(t, store.Save(initial))

	r := &rig{
		wheel:     wheel,
		clock:     clock,
		store:     store,
		persister: &recordingPersister{store: store},
		cfg:       pilldispenser.DefaultConfig(),
	}
	r.keeper = state.NewKeeper(r.persister, initial, nil)
	r.boot()
	return r
}

// boot simulates a power cycle: coils are released and a new engine starts from the persisted state
func (r *rig) boot() {
	r.wheel.PowerCycle()
	loaded, err := r.store.Load()
	if err == nil {
		r.keeper = state.NewKeeper(r.persister, loaded, nil)
	}
	r.engine = New(NewStepper(r.wheel, r.clock, r.cfg.StepDelay), r.wheel, r.keeper, r.cfg, nil)
}

func (r *rig) zero() int {
	return (r.wheel.MarkExit() + r.engine.StepsPerRevolution()/r.cfg.FineAlignDivisor) % r.wheel.StepsPerRevolution()
}

func (r *rig) expectedPosition(logical int) int {
	return (r.zero() + logical) % r.wheel.StepsPerRevolution()
}

func calibratedRig(t *testing.T) *rig {
	t.Helper()
	r := newRig(t, sim.NewWheel(trueStepsPerRevolution, markStart, markWidth), pilldispenser.DefaultState())
	require.NoError(t, r.engine.Calibrate())
	return r
}

func TestCalibrate(t *testing.T) {
	for _, steps := range []int{2048, 2050, 4096, 509} {
		t.Run(strconv.Itoa(steps), func(t *testing.T) {
			wheel := sim.NewWheel(steps, steps/3, 12)
			wheel.SetPosition(steps / 2)
			r := newRig(t, wheel, pilldispenser.DefaultState())

			require.NoError(t, r.engine.Calibrate())

			assert.InDelta(t, steps, r.engine.StepsPerRevolution(), 1)
			assert.Equal(t, r.engine.StepsPerRevolution()/8, r.engine.StepsPerDrop())
			assert.True(t, r.engine.Calibrated())
			assert.Equal(t, 0, r.engine.CurrentStep())
			assert.Equal(t, r.zero(), wheel.Position())

			loaded, err := r.store.Load()
			require.NoError(t, err)
			assert.Equal(t, pilldispenser.DeviceState{
				Phase:              pilldispenser.PhaseDispensing,
				MotorCalibrated:    true,
				StepsPerRevolution: r.engine.StepsPerRevolution(),
				StepsPerDrop:       r.engine.StepsPerDrop(),
			}, loaded)
		})
	}
}

func TestCalibrateMarksProgress(t *testing.T) {
	r := calibratedRig(t)

	require.NotEmpty(t, r.persister.saved)
	assert.True(t, r.persister.saved[0].CalibrationInProgress)
	assert.False(t, r.keeper.State().CalibrationInProgress)
}

func TestCalibrateDegenerate(t *testing.T) {
	tests := []struct {
		name  string
		wheel *sim.Wheel
	}{
		{"NoMark", sim.NewWheel(trueStepsPerRevolution, 0, 0)},
		{"AlwaysDetected", sim.NewWheel(trueStepsPerRevolution, 0, trueStepsPerRevolution)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(t, tt.wheel, pilldispenser.DefaultState())

			err := r.engine.Calibrate()
			require.ErrorIs(t, err, ErrDegenerateCalibration)
			assert.False(t, r.engine.Calibrated())

			loaded, err := r.store.Load()
			require.NoError(t, err)
			assert.Equal(t, pilldispenser.DefaultState(), loaded)
		})
	}
}

func TestRotateTracksPosition(t *testing.T) {
	r := calibratedRig(t)
	spr := r.engine.StepsPerRevolution()

	r.engine.Rotate(-1, false)
	assert.Equal(t, spr-1, r.engine.CurrentStep())
	assert.Equal(t, r.expectedPosition(spr-1), r.wheel.Position())

	r.engine.Rotate(11, false)
	assert.Equal(t, 10, r.engine.CurrentStep())
	assert.Equal(t, r.expectedPosition(10), r.wheel.Position())

	// not checkpointed, so nothing was written
	loaded, err := r.store.Load()
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.CurrentMotorStep)
}

func TestRotateOneDropCheckpoints(t *testing.T) {
	r := calibratedRig(t)
	r.engine.Rotate(5, false)
	r.persister.saved = nil

	require.NoError(t, r.engine.RotateOneDrop())
	drop := r.engine.StepsPerDrop()

	require.Len(t, r.persister.saved, 2)
	before, after := r.persister.saved[0], r.persister.saved[1]
	assert.True(t, before.RotationInProgress)
	assert.Equal(t, 5, before.StartMotorStep)
	assert.Equal(t, 5, before.CurrentMotorStep)
	assert.False(t, after.RotationInProgress)
	assert.Equal(t, 5+drop, after.CurrentMotorStep)

	assert.Equal(t, r.expectedPosition(5+drop), r.wheel.Position())
}

func TestRotateDropFinishIsAtomic(t *testing.T) {
	r := calibratedRig(t)
	r.persister.saved = nil

	require.NoError(t, r.engine.RotateDrop(func(s *pilldispenser.DeviceState) {
		s.PortionCount++
	}))

	require.Len(t, r.persister.saved, 2)
	assert.Equal(t, 0, r.persister.saved[0].PortionCount)
	assert.Equal(t, 1, r.persister.saved[1].PortionCount)
	assert.Equal(t, r.engine.StepsPerDrop(), r.persister.saved[1].CurrentMotorStep)
}

func TestRotateOneDropCalibratesFirst(t *testing.T) {
	r := newRig(t, sim.NewWheel(trueStepsPerRevolution, markStart, markWidth), pilldispenser.DefaultState())

	require.NoError(t, r.engine.RotateOneDrop())
	assert.True(t, r.engine.Calibrated())
	assert.Equal(t, r.engine.StepsPerDrop(), r.engine.CurrentStep())
}

func TestResetAndRealignIsIdempotent(t *testing.T) {
	r := calibratedRig(t)
	for range 3 {
		require.NoError(t, r.engine.RotateOneDrop())
	}
	logical := r.engine.CurrentStep()

	// power loss, and the wheel was nudged by hand
	r.boot()
	r.wheel.SetPosition(r.wheel.Position() + 37)

	require.NoError(t, r.engine.ResetAndRealign())
	first := r.wheel.Position()
	assert.Equal(t, r.expectedPosition(logical), first)
	assert.Equal(t, logical, r.engine.CurrentStep())

	require.NoError(t, r.engine.ResetAndRealign())
	assert.Equal(t, first, r.wheel.Position())
	assert.Equal(t, logical, r.engine.CurrentStep())
}

func TestResetAndRealignFromInsideMark(t *testing.T) {
	r := calibratedRig(t)
	require.NoError(t, r.engine.RotateOneDrop())

	r.boot()
	r.wheel.SetPosition(markStart + markWidth/2)

	require.NoError(t, r.engine.ResetAndRealign())
	assert.Equal(t, r.expectedPosition(r.engine.StepsPerDrop()), r.wheel.Position())
}

func TestInterruptedRotationRecovery(t *testing.T) {
	for name, physicalOffset := range map[string]int{"AtStart": 0, "MidMove": 100, "AtEnd": 256} {
		t.Run(name, func(t *testing.T) {
			r := calibratedRig(t)
			s0, s1 := 256, 512
			require.NoError(t, r.keeper.Commit("interrupted", func(s *pilldispenser.DeviceState) {
				s.RotationInProgress = true
				s.StartMotorStep = s0
				s.CurrentMotorStep = s1
			}))

			r.boot()
			r.wheel.SetPosition(r.expectedPosition(s0 + physicalOffset))

			require.NoError(t, r.engine.ResetAndRealign())
			assert.Equal(t, r.expectedPosition(s1), r.wheel.Position())

			loaded, err := r.store.Load()
			require.NoError(t, err)
			assert.False(t, loaded.RotationInProgress)
			assert.Equal(t, s1, loaded.CurrentMotorStep)
		})
	}
}

type blindSensor struct{}

func (blindSensor) Detected() bool { return false }

func TestResetAndRealignErrors(t *testing.T) {
	t.Run("NotCalibrated", func(t *testing.T) {
		r := newRig(t, sim.NewWheel(trueStepsPerRevolution, markStart, markWidth), pilldispenser.DefaultState())
		require.ErrorIs(t, r.engine.ResetAndRealign(), ErrNotCalibrated)
	})

	t.Run("IndexNotFound", func(t *testing.T) {
		r := calibratedRig(t)
		e := New(NewStepper(r.wheel, r.clock, r.cfg.StepDelay), blindSensor{}, r.keeper, r.cfg, nil)
		require.ErrorIs(t, e.ResetAndRealign(), ErrIndexNotFound)
	})
}

type recordingCoils struct {
	patterns [][4]bool
}

func (c *recordingCoils) Set(p [4]bool) {
	c.patterns = append(c.patterns, p)
}

func TestCommutate(t *testing.T) {
	coils := &recordingCoils{}
	clock := sim.NewClock()
	s := NewStepper(coils, clock, 0)
	start := clock.Now()

	s.Commutate(9)
	s.Commutate(-1)
	assert.Equal(t, [][4]bool{halfStepSequence[1], halfStepSequence[7]}, coils.patterns)

	// the step delay is never shorter than 1ms
	assert.Equal(t, 2*time.Millisecond, clock.Now().Sub(start))
}

func TestCommutateThenStep(t *testing.T) {
	coils := &recordingCoils{}
	s := NewStepper(coils, sim.NewClock(), 0)

	s.Commutate(5)
	s.StepForward()
	s.Commutate(0)
	s.StepBackward()
	assert.Equal(t, [][4]bool{
		halfStepSequence[5], halfStepSequence[6],
		halfStepSequence[0], halfStepSequence[7],
	}, coils.patterns)

	t.Run("WheelKeepsMoving", func(t *testing.T) {
		r := calibratedRig(t)
		position := r.wheel.Position()

		// half a period away from the held pattern, so the rotor does not follow
		r.engine.Commutate(r.engine.stepper.index + 4)
		require.Equal(t, position, r.wheel.Position())

		r.engine.Rotate(10, false)

		assert.Equal(t, (position+10)%trueStepsPerRevolution, r.wheel.Position())
		assert.Equal(t, 10, r.engine.CurrentStep())
	})
}

func TestStepperMove(t *testing.T) {
	coils := &recordingCoils{}
	s := NewStepper(coils, sim.NewClock(), 0)

	s.Move(3)
	s.Move(-2)
	assert.Equal(t, [][4]bool{
		halfStepSequence[1], halfStepSequence[2], halfStepSequence[3],
		halfStepSequence[2], halfStepSequence[1],
	}, coils.patterns)
}
