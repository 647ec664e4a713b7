package state

import (
	"log/slog"
	"sync"

	"github.com/calvinmclean/pilldispenser"
)

// Persister saves a DeviceState durably
type Persister interface {
	Save(pilldispenser.DeviceState) error
}

// Keeper owns the in-memory DeviceState of the running process. Every change goes through Commit,
// which applies it in memory and persists it before returning. The in-memory copy stays authoritative
// when persisting fails
type Keeper struct {
	mu        sync.Mutex
	persister Persister
	state     pilldispenser.DeviceState
	onFailure func(reason string, err error)
	logger    *slog.Logger
}

// NewKeeper starts from a state that was already loaded (or reset)
func NewKeeper(p Persister, initial pilldispenser.DeviceState, logger *slog.Logger) *Keeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Keeper{
		persister: p,
		state:     initial,
		logger:    logger.With("component", "keeper"),
	}
}

// OnFailure registers a function that is called whenever a commit could not be persisted
func (k *Keeper) OnFailure(f func(reason string, err error)) {
	k.mu.Lock()
	k.onFailure = f
	k.mu.Unlock()
}

// State returns a copy of the current state
func (k *Keeper) State() pilldispenser.DeviceState {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.state
}

// Commit applies mutate to the state and persists the result. The returned error is informational:
// the mutation has already taken effect in memory
func (k *Keeper) Commit(reason string, mutate func(*pilldispenser.DeviceState)) error {
	k.mu.Lock()
	next := k.state
	mutate(&next)
	k.state = next
	err := k.persister.Save(next)
	onFailure := k.onFailure
	k.mu.Unlock()

	if err != nil {
		k.logger.Error("state not persisted", "reason", reason, "error", err)
		if onFailure != nil {
			onFailure(reason, err)
		}
		return err
	}

	k.logger.Debug("state committed", "reason", reason)
	return nil
}

// Replace sets the whole state, for example back to defaults
func (k *Keeper) Replace(reason string, s pilldispenser.DeviceState) error {
	return k.Commit(reason, func(state *pilldispenser.DeviceState) {
		*state = s
	})
}
