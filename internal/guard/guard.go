// Package guard keeps a terminal from running two check-ins at once. A scan
// that arrives while the previous one is still in flight is dropped, not
// queued.
package guard

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// ReleaseFunc ends the critical section. It is safe to call more than once.
type ReleaseFunc func()

// TerminalGuard hands out at most one lease per terminal.
type TerminalGuard interface {
	// TryAcquire returns ok=false without blocking when the terminal is busy.
	TryAcquire(ctx context.Context, terminalID uuid.UUID) (release ReleaseFunc, ok bool, err error)
}

// Local is an in-process guard.
type Local struct {
	busy sync.Map
}

func NewLocal() *Local {
	return &Local{}
}

func (l *Local) TryAcquire(_ context.Context, terminalID uuid.UUID) (ReleaseFunc, bool, error) {
	if _, loaded := l.busy.LoadOrStore(terminalID, struct{}{}); loaded {
		return nil, false, nil
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.busy.Delete(terminalID) })
	}, true, nil
}

// Busy reports whether terminalID currently holds a lease.
func (l *Local) Busy(terminalID uuid.UUID) bool {
	_, ok := l.busy.Load(terminalID)
	return ok
}

var _ TerminalGuard = (*Local)(nil)
