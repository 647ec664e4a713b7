//go:build !tinygo

package piezo

// interruptState is a placeholder for interrupt state on regular Go
type interruptState uintptr

// disableInterrupts is a no-op on regular Go, the counters are atomic
func disableInterrupts() interruptState {
	return 0
}

func restoreInterrupts(interruptState) {}
