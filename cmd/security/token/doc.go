// Package token issues and verifies porchlight's signed session tokens.
//
// A token is the compact three-segment form
//
//	base64url(header) "." base64url(payload) "." base64url(signature)
//
// where the signature is HMAC-SHA256 over the ASCII concatenation of the
// first two segments, keyed with a single server-held secret. The payload is
// the caller's claims merged with "iat" and "exp" (whole unix seconds).
//
// Design notes:
//   - The secret is mandatory. Constructing a Service without one fails hard;
//     there is no default secret and no degraded mode.
//   - Verify never returns an error: a malformed, tampered, or expired token
//     is reported as not-ok, indistinguishably. Callers treat not-ok as
//     "unauthenticated".
//   - There is no server-side revocation. A token stays valid until "exp";
//     rotating the secret invalidates every outstanding token and is the
//     documented revocation mechanism.
package token
