// Package authapi exposes the signup, login, logout, and session
// endpoints over HTTP. Handlers are stateless: every request carries
// its whole session in the cookie and every account fact is fetched
// fresh from the store.
package authapi
