package sim

import "sync"

// LED records what the firmware shows on a status light
type LED struct {
	mu      sync.Mutex
	on      bool
	changes int
}

func (l *LED) Set(on bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.on != on {
		l.changes++
	}
	l.on = on
}

func (l *LED) On() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.on
}

// Changes counts how often the light switched
func (l *LED) Changes() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.changes
}
