package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"
)

// Well-known claim keys.
const (
	ClaimSubject  = "sub"
	ClaimIssuedAt = "iat"
	ClaimExpiry   = "exp"
)

// Claims is the set of key-value facts embedded in a token payload.
type Claims map[string]any

// Subject returns the "sub" claim, or "" when absent or not a string.
func (c Claims) Subject() string {
	s, _ := c[ClaimSubject].(string)
	return s
}

// encodedHeader is the fixed first segment. It must stay byte-stable so the
// token format survives server restarts given the same secret.
var encodedHeader = base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))

// Service signs and verifies session tokens with a single server-held secret.
type Service struct {
	secret []byte
}

// NewService constructs a Service. The secret is required; an empty secret is
// a hard configuration failure, never a silent default.
func NewService(secret []byte) (*Service, error) {
	if len(secret) == 0 {
		return nil, ErrNoSecret
	}
	s := make([]byte, len(secret))
	copy(s, secret)
	return &Service{secret: s}, nil
}

// Issue signs claims into a token valid for ttl from now.
func (s *Service) Issue(claims Claims, ttl time.Duration) (string, error) {
	return s.IssueAt(claims, ttl, time.Now().UTC())
}

// IssueAt signs claims with an explicit clock. The payload is the caller's
// claims merged with "iat" = now and "exp" = now + ttl, in whole seconds.
// A zero or negative ttl produces an already-expired token.
func (s *Service) IssueAt(claims Claims, ttl time.Duration, now time.Time) (string, error) {
	payload := make(map[string]any, len(claims)+2)
	for k, v := range claims {
		payload[k] = v
	}
	iat := now.Unix()
	payload[ClaimIssuedAt] = iat
	payload[ClaimExpiry] = iat + int64(ttl/time.Second)

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	body := encodedHeader + "." + base64.RawURLEncoding.EncodeToString(raw)
	return body + "." + s.sign(body), nil
}

// Verify checks a token against the current clock.
func (s *Service) Verify(tok string) (Claims, bool) {
	return s.VerifyAt(tok, time.Now().UTC())
}

// VerifyAt checks a token at an explicit clock. It returns the parsed claims
// only when the signature matches and the token is not expired; every other
// outcome (wrong segment count, bad encoding, tampered payload or signature,
// expiry in the past) is reported as not-ok with no further detail.
func (s *Service) VerifyAt(tok string, now time.Time) (Claims, bool) {
	parts := strings.Split(tok, ".")
	if len(parts) != 3 {
		return nil, false
	}

	body := parts[0] + "." + parts[1]
	// hmac.Equal on the encoded forms: both sides are same-alphabet base64url,
	// so a constant-time byte compare is equivalent to comparing the MACs.
	if !hmac.Equal([]byte(s.sign(body)), []byte(parts[2])) {
		return nil, false
	}

	payloadRaw, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, false
	}
	var claims Claims
	if err := json.Unmarshal(payloadRaw, &claims); err != nil {
		return nil, false
	}

	// Single whole-second clock read per verification. "exp" strictly in the
	// past fails; a token expiring this very second is still accepted.
	if exp, ok := numericClaim(claims, ClaimExpiry); ok && exp < now.Unix() {
		return nil, false
	}

	return claims, true
}

func (s *Service) sign(body string) string {
	m := hmac.New(sha256.New, s.secret)
	_, _ = m.Write([]byte(body))
	return base64.RawURLEncoding.EncodeToString(m.Sum(nil))
}

func numericClaim(c Claims, key string) (int64, bool) {
	switch v := c[key].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
