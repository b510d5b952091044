package referral

import (
	"context"
	"crypto/rand"
	"errors"
	"strings"
	"time"

	"porchlight/cmd/account"
)

const (
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength   = 8

	defaultRewardCredits = 1
)

// Service issues referral codes and pays rewards on completed signups.
type Service struct {
	store    Store
	accounts account.Store
	credits  int
}

// Option configures the Service.
type Option func(*Service) error

// WithRewardCredits sets how many credits a completed referral earns.
func WithRewardCredits(n int) Option {
	return func(s *Service) error {
		if n <= 0 {
			return ErrInvalidInput
		}
		s.credits = n
		return nil
	}
}

// NewService constructs a Service with safe defaults.
func NewService(store Store, accounts account.Store, opts ...Option) (*Service, error) {
	if store == nil || accounts == nil {
		return nil, ErrInvalidInput
	}
	s := &Service{store: store, accounts: accounts, credits: defaultRewardCredits}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Register mints a fresh code for referrerID and records it. Retries
// on the unlikely code collision.
func (s *Service) Register(ctx context.Context, referrerID string, now time.Time) (string, error) {
	if s == nil || s.store == nil {
		return "", ErrInvalidInput
	}
	if strings.TrimSpace(referrerID) == "" {
		return "", ErrInvalidInput
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	for attempt := 0; attempt < 5; attempt++ {
		code, err := newCode()
		if err != nil {
			return "", err
		}
		err = s.store.RegisterCode(ctx, code, referrerID, now)
		if err == nil {
			return code, nil
		}
		if !errors.Is(err, ErrCodeTaken) {
			return "", err
		}
	}
	return "", ErrCodeTaken
}

// Complete records that referredID finished signup under code and
// credits the referrer exactly once. A repeat completion for the same
// (code, referred) pair is a no-op reporting rewarded=false. Unknown
// codes and self-referrals are rejected without crediting anyone.
func (s *Service) Complete(ctx context.Context, code, referredID string, now time.Time) (rewarded bool, err error) {
	if s == nil || s.store == nil || s.accounts == nil {
		return false, ErrInvalidInput
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	referredID = strings.TrimSpace(referredID)
	if code == "" || referredID == "" {
		return false, ErrInvalidInput
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	referrerID, err := s.store.ReferrerByCode(ctx, code)
	if err != nil {
		return false, err
	}
	if referrerID == referredID {
		return false, ErrInvalidInput
	}

	first, err := s.store.MarkRewarded(ctx, code, referredID, now)
	if err != nil {
		return false, err
	}
	if !first {
		return false, nil
	}

	if err := s.accounts.AddReferralCredit(ctx, referrerID, s.credits); err != nil {
		return false, err
	}
	return true, nil
}

func newCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, codeLength)
	for i, b := range buf {
		out[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(out), nil
}
