package account

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for development mode and tests.
// It honors the same error contract as the real stores, including the
// atomic-increment semantics of AddReferralCredit.
type MemoryStore struct {
	mu   sync.Mutex
	byID map[string]Account
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]Account)}
}

// GetByID implements Store.
func (s *MemoryStore) GetByID(ctx context.Context, id string) (Account, error) {
	const op = "account.GetByID"
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return Account{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "empty id"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return Account{}, OpError{Op: op, Kind: ErrNotFound}
	}
	return a, nil
}

// GetByEmail implements Store.
func (s *MemoryStore) GetByEmail(ctx context.Context, email string) (Account, error) {
	const op = "account.GetByEmail"
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	norm := NormalizeEmail(email)
	if norm == "" {
		return Account{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "empty email"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.byID {
		if NormalizeEmail(a.Email) == norm {
			return a, nil
		}
	}
	return Account{}, OpError{Op: op, Kind: ErrNotFound}
}

// Insert implements Store.
func (s *MemoryStore) Insert(ctx context.Context, a Account) error {
	const op = "account.Insert"
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(a.ID) == "" || NormalizeEmail(a.Email) == "" {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "id and email required"}
	}
	a.Email = NormalizeEmail(a.Email)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[a.ID]; ok {
		return OpError{Op: op, Kind: ErrConflict}
	}
	for _, existing := range s.byID {
		if NormalizeEmail(existing.Email) == a.Email {
			return OpError{Op: op, Kind: ErrConflict}
		}
	}
	s.byID[a.ID] = a
	return nil
}

// Update implements Store.
func (s *MemoryStore) Update(ctx context.Context, id string, fields Fields) error {
	const op = "account.Update"
	if err := ctx.Err(); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "empty id"}
	}
	if err := fields.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return OpError{Op: op, Kind: ErrNotFound}
	}

	for k, v := range fields {
		switch k {
		case "first_name":
			a.FirstName = toStrPtr(v)
		case "last_name":
			a.LastName = toStrPtr(v)
		case "phone":
			a.Phone = toStrPtr(v)
		case "password_hash":
			a.PasswordHash = toStrPtr(v)
		case "referral_code":
			a.ReferralCode = toStrPtr(v)
		case "last_login_at":
			a.LastLoginAt = toTimePtr(v)
		}
	}
	s.byID[id] = a
	return nil
}

// AddReferralCredit implements Store. The whole increment happens under one
// lock, mirroring the single-statement semantics of the real stores.
func (s *MemoryStore) AddReferralCredit(ctx context.Context, id string, n int) error {
	const op = "account.AddReferralCredit"
	if err := ctx.Err(); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if id == "" || n == 0 {
		return OpError{Op: op, Kind: ErrInvalidInput}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return OpError{Op: op, Kind: ErrNotFound}
	}
	a.ReferralCredits += n
	s.byID[id] = a
	return nil
}

func toStrPtr(v any) *string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		if t == "" {
			return nil
		}
		return &t
	case *string:
		return t
	default:
		return nil
	}
}

func toTimePtr(v any) *time.Time {
	switch t := v.(type) {
	case nil:
		return nil
	case time.Time:
		if t.IsZero() {
			return nil
		}
		return &t
	case *time.Time:
		return t
	default:
		return nil
	}
}
