package ui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimerFormat(t *testing.T) {
	tm := &timer{}
	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, idleTimerText, tm.format(now))

	tm.Set(now.Add(-(2*time.Hour + 3*time.Minute + 4*time.Second)))
	assert.Equal(t, "02:03:04", tm.format(now))
}
