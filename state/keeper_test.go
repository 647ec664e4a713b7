package state

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinmclean/pilldispenser"
)

func TestKeeperCommitPersists(t *testing.T) {
	store, _, _ := newTestStore(t)
	k := NewKeeper(store, pilldispenser.DefaultState(), nil)

	err := k.Commit("count", func(s *pilldispenser.DeviceState) {
		s.PortionCount = 2
	})
	require.NoError(t, err)
	assert.Equal(t, 2, k.State().PortionCount)

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.PortionCount)
}

func TestKeeperFailureKeepsMemoryState(t *testing.T) {
	store, mem, _ := newTestStore(t)
	k := NewKeeper(store, pilldispenser.DefaultState(), nil)

	var reasons []string
	k.OnFailure(func(reason string, err error) {
		reasons = append(reasons, reason)
	})

	mem.FailNextWrite(errors.New("nack"))
	err := k.Commit("calibrated", func(s *pilldispenser.DeviceState) {
		s.MotorCalibrated = true
	})
	require.Error(t, err)
	assert.True(t, k.State().MotorCalibrated)
	assert.Equal(t, []string{"calibrated"}, reasons)

	// next commit succeeds and persists everything held in memory
	require.NoError(t, k.Commit("count", func(s *pilldispenser.DeviceState) { s.PortionCount = 1 }))
	loaded, err := store.Load()
	require.NoError(t, err)
	assert.True(t, loaded.MotorCalibrated)
	assert.Equal(t, 1, loaded.PortionCount)
}

func TestKeeperReplace(t *testing.T) {
	store, _, _ := newTestStore(t)
	k := NewKeeper(store, calibratedState(), nil)

	require.NoError(t, k.Replace("reset", pilldispenser.DefaultState()))
	assert.Equal(t, pilldispenser.DefaultState(), k.State())
}
