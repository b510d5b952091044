package account

import (
	"context"
	"time"
)

// Account is porchlight's canonical user record.
//
// PasswordHash, when present, is always in the hasher's self-describing
// encoded form, never plaintext. Accounts created through an identity
// provider may have no hash at all.
type Account struct {
	ID    string
	Email string

	FirstName *string
	LastName  *string
	Phone     *string

	PasswordHash *string

	ReferralCode    *string
	ReferralCredits int

	CreatedAt   time.Time
	LastLoginAt *time.Time
}

// Fields is a partial-update set keyed by canonical field name.
// Store implementations map the canonical names to their own columns or
// attributes and reject anything outside the whitelist.
type Fields map[string]any

// updatableFields is the shared whitelist for partial updates.
// The id, email, and created_at of an account are immutable here.
var updatableFields = map[string]bool{
	"first_name":    true,
	"last_name":     true,
	"phone":         true,
	"password_hash": true,
	"referral_code": true,
	"last_login_at": true,
}

// Validate rejects empty field sets and unknown field names.
func (f Fields) Validate() error {
	if len(f) == 0 {
		return OpError{Op: "account.Update", Kind: ErrInvalidInput, Msg: "empty field set"}
	}
	for k := range f {
		if !updatableFields[k] {
			return OpError{Op: "account.Update", Kind: ErrInvalidInput, Msg: "unknown field " + k}
		}
	}
	return nil
}

// Store is the external account-store boundary.
//
// Lookups return ErrNotFound for an empty result set; transport and
// unexpected-status failures surface as UpstreamError, which callers must
// treat differently from "no record" (generic server error vs
// unauthenticated).
type Store interface {
	// GetByID returns the account with the given id.
	GetByID(ctx context.Context, id string) (Account, error)

	// GetByEmail returns the account with the given email
	// (matched case-insensitively on the normalized form).
	GetByEmail(ctx context.Context, email string) (Account, error)

	// Insert persists a new account. A duplicate id or email is ErrConflict.
	Insert(ctx context.Context, a Account) error

	// Update applies a partial update to an existing account.
	Update(ctx context.Context, id string, fields Fields) error

	// AddReferralCredit increments the referral credit balance atomically at
	// the store layer. Implementations must never read-modify-write.
	AddReferralCredit(ctx context.Context, id string, n int) error
}
