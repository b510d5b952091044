// Package referral tracks referral codes and pays out signup rewards.
//
// Rewards are idempotent: completion is recorded with an
// insert-if-absent, and only a first-time completion credits the
// referrer. The credit itself is an atomic increment at the account
// store, never a read-modify-write here.
package referral
