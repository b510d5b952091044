package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"porchlight/cmd/account"
	"porchlight/cmd/security/token"
)

// Resolver maps request credentials to an account. Resolution is a
// pure read: it never mutates the store and never issues cookies.
type Resolver struct {
	tokens   *token.Service
	accounts account.Store
	now      func() time.Time
}

// Source names the credential that resolved a request to an account.
type Source string

const (
	SourceCookie        Source = "cookie"
	SourceFallbackID    Source = "fallback_id"
	SourceFallbackEmail Source = "fallback_email"
	SourceNone          Source = "none"
)

var errResolverDeps = errors.New("session: resolver requires token service and account store")

func NewResolver(tokens *token.Service, accounts account.Store) (*Resolver, error) {
	if tokens == nil || accounts == nil {
		return nil, errResolverDeps
	}
	return &Resolver{
		tokens:   tokens,
		accounts: accounts,
		now:      time.Now,
	}, nil
}

// WithClock overrides the resolver's clock. Tests use this to pin
// token expiry checks to a fixed instant.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	if r == nil || now == nil {
		return r
	}
	r.now = now
	return r
}

// Resolve identifies the account behind a request, in strict order:
// a cryptographically verified cookie token wins, then a
// caller-supplied account id, then a caller-supplied email. A nil
// account with a nil error means unauthenticated. Store failures are
// returned as errors and are never folded into "no record".
func (r *Resolver) Resolve(ctx context.Context, cookieHeader, fallbackID, fallbackEmail string) (*account.Account, error) {
	acct, _, err := r.ResolveWithSource(ctx, cookieHeader, fallbackID, fallbackEmail)
	return acct, err
}

// ResolveWithSource is Resolve plus the credential that won, for
// observability. SourceNone pairs with a nil account.
func (r *Resolver) ResolveWithSource(ctx context.Context, cookieHeader, fallbackID, fallbackEmail string) (*account.Account, Source, error) {
	if r == nil {
		return nil, SourceNone, errResolverDeps
	}

	if tok := DecodeCookie(cookieHeader); tok != "" {
		if claims, ok := r.tokens.VerifyAt(tok, r.now()); ok {
			if sub := strings.TrimSpace(claims.Subject()); sub != "" {
				acct, err := r.accounts.GetByID(ctx, sub)
				if err == nil {
					return &acct, SourceCookie, nil
				}
				if !account.IsNotFound(err) {
					return nil, SourceNone, err
				}
			}
		}
	}

	if id := strings.TrimSpace(fallbackID); id != "" {
		acct, err := r.accounts.GetByID(ctx, id)
		if err == nil {
			return &acct, SourceFallbackID, nil
		}
		if !account.IsNotFound(err) {
			return nil, SourceNone, err
		}
	}

	if email := strings.TrimSpace(fallbackEmail); email != "" {
		acct, err := r.accounts.GetByEmail(ctx, email)
		if err == nil {
			return &acct, SourceFallbackEmail, nil
		}
		if !account.IsNotFound(err) {
			return nil, SourceNone, err
		}
	}

	return nil, SourceNone, nil
}
