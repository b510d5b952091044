package referral

import (
	"context"
	"time"
)

// Store persists referral codes and reward bookkeeping.
type Store interface {
	// RegisterCode binds a code to the account that owns it.
	// ErrCodeTaken when the code already exists.
	RegisterCode(ctx context.Context, code, referrerID string, at time.Time) error

	// ReferrerByCode resolves a code to its owning account id.
	// ErrCodeNotFound for unknown codes.
	ReferrerByCode(ctx context.Context, code string) (string, error)

	// MarkRewarded records that referredID completed signup under
	// code. Insert-if-absent: the first call for a (code, referredID)
	// pair returns true, every later call returns false.
	MarkRewarded(ctx context.Context, code, referredID string, at time.Time) (bool, error)
}
