package dispenser

import (
	"sync/atomic"
	"time"

	"github.com/calvinmclean/pilldispenser"
)

// Trigger is a one-shot latch between an input (button, console command, interrupt) and the control
// loop. Any number of Fire calls before the next Take count as one request
type Trigger struct {
	fired atomic.Bool
}

func (t *Trigger) Fire() {
	t.fired.Store(true)
}

// Take reports whether the trigger fired since the last Take and clears it
func (t *Trigger) Take() bool {
	return t.fired.Swap(false)
}

// DefaultDebounce is how long a button level has to be stable to count
const DefaultDebounce = 2 * time.Millisecond

// Button debounces a polled input and calls onPress once per press
type Button struct {
	pressed  func() bool
	onPress  func()
	clock    pilldispenser.Clock
	debounce time.Duration

	stable    bool
	candidate bool
	since     time.Time
}

// NewButton creates a Button. pressed returns the raw level, true while the button is held down
func NewButton(pressed func() bool, onPress func(), clock pilldispenser.Clock, debounce time.Duration) *Button {
	if clock == nil {
		clock = pilldispenser.SystemClock
	}
	return &Button{
		pressed:  pressed,
		onPress:  onPress,
		clock:    clock,
		debounce: debounce,
		since:    clock.Now(),
	}
}

// Poll samples the input once. It needs to be called much more often than the debounce time
func (b *Button) Poll() {
	level := b.pressed()
	now := b.clock.Now()

	if level != b.candidate {
		b.candidate = level
		b.since = now
		return
	}
	if level == b.stable || now.Sub(b.since) < b.debounce {
		return
	}

	b.stable = level
	if level {
		b.onPress()
	}
}
