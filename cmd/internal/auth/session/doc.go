// Package session binds signed tokens to browser cookies and resolves
// incoming requests to accounts.
//
// Sessions are stateless: the cookie carries the whole session and the
// server keeps no per-session record. Expiry is enforced by token
// verification alone, so logout clears the cookie client-side and
// rotating the signing secret is the only server-side kill switch.
package session
