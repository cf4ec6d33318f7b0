package common

import (
	"errors"
	"sync/atomic"
)

// ErrReentrantCall is returned when a guarded entry point is invoked again
// while a prior invocation on the same engine is still executing. Payment
// pushes can run arbitrary payee code before returning, so every mutator must
// hold the guard for its full duration.
var ErrReentrantCall = errors.New("reentrant call rejected")

// CallGuard is a non-reentrant lock held per externally callable mutator. It
// is not a queueing mutex: a second entry while the guard is held fails
// immediately instead of blocking, mirroring single-transaction execution.
type CallGuard struct {
	busy atomic.Bool
}

// Enter acquires the guard or fails with ErrReentrantCall.
func (g *CallGuard) Enter() error {
	if g == nil {
		return nil
	}
	if !g.busy.CompareAndSwap(false, true) {
		return ErrReentrantCall
	}
	return nil
}

// Exit releases the guard. Callers must pair every successful Enter with an
// Exit, typically via defer.
func (g *CallGuard) Exit() {
	if g == nil {
		return
	}
	g.busy.Store(false)
}
