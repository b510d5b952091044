// Package account is porchlight's persistence boundary for user accounts.
//
// The business records live in an external store (a hosted relational
// database, reached either through its REST interface or directly over
// Postgres). This package owns the one canonical Account record type and the
// small Store contract the auth core needs: lookup by id, lookup by email,
// insert, partial update, and an atomic referral-credit increment.
//
// The hosted store's loose field naming (first_name vs firstName) is
// collapsed onto the canonical type by a single wire adapter in this package
// and never propagates further in.
package account
