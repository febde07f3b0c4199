package config

import (
	"context"
	"sync"
)

// FrameSizeApplier forwards a reloaded frame size index to resize, but only
// when it differs from the index last applied. A failed resize is not
// remembered, so the next reload tries again.
type FrameSizeApplier struct {
	mu      sync.Mutex
	applied int
	resize  func(ctx context.Context, index int) error
}

// NewFrameSizeApplier starts from initial, the index already in effect, or
// -1 when none was configured.
func NewFrameSizeApplier(initial int, resize func(ctx context.Context, index int) error) *FrameSizeApplier {
	return &FrameSizeApplier{applied: initial, resize: resize}
}

// Apply resizes to index unless it is unset or unchanged. It reports whether
// resize was called.
func (a *FrameSizeApplier) Apply(ctx context.Context, index int) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if index < 0 || index == a.applied {
		return false, nil
	}
	if err := a.resize(ctx, index); err != nil {
		return true, err
	}
	a.applied = index
	return true, nil
}
