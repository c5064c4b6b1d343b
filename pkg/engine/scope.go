package engine

import (
	"context"
	"sync"
)

// scope is one cancellable operation class. The engine holds two: one for
// full-document passes, one for range passes. Each class cancels and
// disposes its own previous scope before starting a new operation, so an
// older result of the same class can never land after a newer one.
//
// Which cache fields each class may mutate is fixed: full-class passes
// own the previous raw stream and (outside range-only mode) the decoded
// result; range-class passes own the merged range-span cache and the
// per-line range coverage set. The painted set is written by whichever
// pass applies, always under the engine lock with a version check, so
// neither class can corrupt the other's in-progress cache write.
type scope struct {
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

func newScope(parent context.Context) *scope {
	ctx, cancel := context.WithCancel(parent)
	return &scope{ctx: ctx, cancel: cancel}
}

// dispose cancels the scope. Safe to call more than once; only the first
// call has an effect.
func (s *scope) dispose() {
	if s == nil {
		return
	}
	s.once.Do(s.cancel)
}

// active reports whether the scope has not been cancelled yet.
func (s *scope) active() bool {
	return s != nil && s.ctx.Err() == nil
}
