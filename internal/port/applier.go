package port

import (
	"context"

	"github.com/enough/enough/internal/domain"
)

// TargetApplier applies and removes the OS-level block for one target.
// Apply and Remove are idempotent: applying an already-applied target or
// removing an absent one is a no-op success. Recovery and tamper healing
// call both repeatedly without knowing the prior state.
type TargetApplier interface {
	Apply(ctx context.Context, target domain.BlockTarget) error
	Remove(ctx context.Context, target domain.BlockTarget) error

	// IsApplied performs a live check against the OS rather than trusting
	// cached state; it is the drift signal the healing tick depends on.
	IsApplied(ctx context.Context, target domain.BlockTarget) (bool, error)
}
