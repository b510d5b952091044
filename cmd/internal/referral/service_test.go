package referral

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"porchlight/cmd/account"
)

func newTestService(t *testing.T) (*Service, *account.MemoryStore) {
	t.Helper()

	accounts := account.NewMemoryStore()
	svc, err := NewService(NewMemoryStore(), accounts)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, accounts
}

func mustInsertAccount(t *testing.T, accounts *account.MemoryStore, id, email string) {
	t.Helper()

	err := accounts.Insert(context.Background(), account.Account{
		ID:        id,
		Email:     email,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("insert %s: %v", id, err)
	}
}

func TestRegister_MintsUniqueCodes(t *testing.T) {
	t.Parallel()

	svc, accounts := newTestService(t)
	mustInsertAccount(t, accounts, "referrer-1", "r1@example.com")

	ctx := context.Background()
	now := time.Now().UTC()

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		code, err := svc.Register(ctx, "referrer-1", now)
		if err != nil {
			t.Fatalf("register: %v", err)
		}
		if len(code) != codeLength {
			t.Fatalf("code %q has wrong length", code)
		}
		if seen[code] {
			t.Fatalf("duplicate code %q", code)
		}
		seen[code] = true
	}
}

func TestComplete_CreditsReferrerOnce(t *testing.T) {
	t.Parallel()

	svc, accounts := newTestService(t)
	mustInsertAccount(t, accounts, "referrer-1", "r1@example.com")
	mustInsertAccount(t, accounts, "referred-1", "new@example.com")

	ctx := context.Background()
	now := time.Now().UTC()

	code, err := svc.Register(ctx, "referrer-1", now)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	rewarded, err := svc.Complete(ctx, code, "referred-1", now)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !rewarded {
		t.Fatal("first completion did not reward")
	}

	// Replay of the same completion must not credit again.
	rewarded, err = svc.Complete(ctx, code, "referred-1", now)
	if err != nil {
		t.Fatalf("repeat complete: %v", err)
	}
	if rewarded {
		t.Fatal("repeat completion rewarded again")
	}

	got, err := accounts.GetByID(ctx, "referrer-1")
	if err != nil {
		t.Fatalf("get referrer: %v", err)
	}
	if got.ReferralCredits != 1 {
		t.Fatalf("referrer credits = %d, want 1", got.ReferralCredits)
	}
}

func TestComplete_DistinctReferredAccountsEachCredit(t *testing.T) {
	t.Parallel()

	svc, accounts := newTestService(t)
	mustInsertAccount(t, accounts, "referrer-1", "r1@example.com")

	ctx := context.Background()
	now := time.Now().UTC()

	code, err := svc.Register(ctx, "referrer-1", now)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	for _, referred := range []string{"a", "b", "c"} {
		if _, err := svc.Complete(ctx, code, referred, now); err != nil {
			t.Fatalf("complete %s: %v", referred, err)
		}
	}

	got, err := accounts.GetByID(ctx, "referrer-1")
	if err != nil {
		t.Fatalf("get referrer: %v", err)
	}
	if got.ReferralCredits != 3 {
		t.Fatalf("referrer credits = %d, want 3", got.ReferralCredits)
	}
}

func TestComplete_UnknownCode(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)

	_, err := svc.Complete(context.Background(), "NOSUCHCD", "referred-1", time.Now().UTC())
	if !IsCodeNotFound(err) {
		t.Fatalf("expected code not found, got %v", err)
	}
}

func TestComplete_SelfReferralRejected(t *testing.T) {
	t.Parallel()

	svc, accounts := newTestService(t)
	mustInsertAccount(t, accounts, "referrer-1", "r1@example.com")

	ctx := context.Background()
	now := time.Now().UTC()

	code, err := svc.Register(ctx, "referrer-1", now)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.Complete(ctx, code, "referrer-1", now); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}

	got, err := accounts.GetByID(ctx, "referrer-1")
	if err != nil {
		t.Fatalf("get referrer: %v", err)
	}
	if got.ReferralCredits != 0 {
		t.Fatalf("self referral credited: %d", got.ReferralCredits)
	}
}

func TestComplete_CodeIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	svc, accounts := newTestService(t)
	mustInsertAccount(t, accounts, "referrer-1", "r1@example.com")

	ctx := context.Background()
	now := time.Now().UTC()

	code, err := svc.Register(ctx, "referrer-1", now)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	rewarded, err := svc.Complete(ctx, "  "+strings.ToLower(code)+" ", "referred-1", now)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !rewarded {
		t.Fatal("lowercased code did not resolve")
	}
}
