package token

import (
	"strings"
	"testing"
	"time"
)

func testService(t *testing.T) *Service {
	t.Helper()
	s, err := NewService([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return s
}

func TestNewService_RequiresSecret(t *testing.T) {
	if _, err := NewService(nil); err != ErrNoSecret {
		t.Fatalf("expected ErrNoSecret, got %v", err)
	}
	if _, err := NewService([]byte{}); err != ErrNoSecret {
		t.Fatalf("expected ErrNoSecret for empty secret, got %v", err)
	}
}

func TestIssueAndVerify_RoundTrip(t *testing.T) {
	s := testService(t)
	now := time.Now().UTC()

	tok, err := s.IssueAt(Claims{ClaimSubject: "acct_123", "role": "member"}, time.Hour, now)
	if err != nil {
		t.Fatalf("IssueAt: %v", err)
	}
	if strings.Count(tok, ".") != 2 {
		t.Fatalf("expected three segments, got %q", tok)
	}

	claims, ok := s.VerifyAt(tok, now)
	if !ok {
		t.Fatalf("expected token to verify")
	}
	if claims.Subject() != "acct_123" {
		t.Fatalf("subject = %q, want acct_123", claims.Subject())
	}
	if role, _ := claims["role"].(string); role != "member" {
		t.Fatalf("role = %v, want member", claims["role"])
	}
	if _, ok := numericClaim(claims, ClaimIssuedAt); !ok {
		t.Fatalf("missing iat")
	}
	if _, ok := numericClaim(claims, ClaimExpiry); !ok {
		t.Fatalf("missing exp")
	}
}

func TestVerify_Expiry(t *testing.T) {
	s := testService(t)
	now := time.Now().UTC()

	// Negative ttl: expired the moment it was issued.
	tok, err := s.IssueAt(Claims{ClaimSubject: "acct_123"}, -time.Second, now)
	if err != nil {
		t.Fatalf("IssueAt: %v", err)
	}
	if _, ok := s.VerifyAt(tok, now); ok {
		t.Fatalf("expected already-expired token to fail")
	}

	// Zero ttl: exp == now is not strictly past, so it still verifies at the
	// same second and fails one second later.
	tok, err = s.IssueAt(Claims{ClaimSubject: "acct_123"}, 0, now)
	if err != nil {
		t.Fatalf("IssueAt: %v", err)
	}
	if _, ok := s.VerifyAt(tok, now); !ok {
		t.Fatalf("expected exp==now to verify")
	}
	if _, ok := s.VerifyAt(tok, now.Add(time.Second)); ok {
		t.Fatalf("expected token to be expired one second later")
	}
}

func TestVerify_Tampering(t *testing.T) {
	s := testService(t)
	now := time.Now().UTC()

	tok, err := s.IssueAt(Claims{ClaimSubject: "acct_123"}, time.Hour, now)
	if err != nil {
		t.Fatalf("IssueAt: %v", err)
	}
	parts := strings.Split(tok, ".")

	flip := func(seg string, i int) string {
		b := []byte(seg)
		if b[i] == 'A' {
			b[i] = 'B'
		} else {
			b[i] = 'A'
		}
		return string(b)
	}

	cases := []struct {
		name string
		tok  string
	}{
		{name: "payload flip", tok: parts[0] + "." + flip(parts[1], 0) + "." + parts[2]},
		{name: "signature flip", tok: parts[0] + "." + parts[1] + "." + flip(parts[2], 0)},
		{name: "header flip", tok: flip(parts[0], 0) + "." + parts[1] + "." + parts[2]},
		{name: "two segments", tok: parts[0] + "." + parts[1]},
		{name: "four segments", tok: tok + ".extra"},
		{name: "empty", tok: ""},
		{name: "garbage", tok: "not a token at all"},
	}

	for _, tc := range cases {
		if _, ok := s.VerifyAt(tc.tok, now); ok {
			t.Fatalf("%s: expected verification failure", tc.name)
		}
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	s := testService(t)
	other, err := NewService([]byte("another-secret-another-secret-xx"))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	now := time.Now().UTC()
	tok, err := s.IssueAt(Claims{ClaimSubject: "acct_123"}, time.Hour, now)
	if err != nil {
		t.Fatalf("IssueAt: %v", err)
	}

	if _, ok := other.VerifyAt(tok, now); ok {
		t.Fatalf("expected token signed with a different secret to fail")
	}
}

func TestTokenFormat_StableAcrossInstances(t *testing.T) {
	// Two services with the same secret must agree on every token, which is
	// what makes the format survive server restarts.
	secret := []byte("0123456789abcdef0123456789abcdef")
	a, err := NewService(secret)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	b, err := NewService(secret)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	now := time.Now().UTC()
	tok, err := a.IssueAt(Claims{ClaimSubject: "acct_123"}, time.Hour, now)
	if err != nil {
		t.Fatalf("IssueAt: %v", err)
	}
	if _, ok := b.VerifyAt(tok, now); !ok {
		t.Fatalf("expected peer instance to accept token")
	}
}
