package account

import (
	"encoding/json"
	"time"
)

// The hosted store predates this service and its rows are loosely shaped:
// records written by the old admin tooling use camelCase keys (firstName),
// newer ones snake_case. decodeWire is the single place where both spellings
// collapse onto the canonical Account. Writes always emit snake_case.

type wireRecord map[string]json.RawMessage

func decodeWire(raw json.RawMessage) (Account, error) {
	var rec wireRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Account{}, OpError{Op: "account.decodeWire", Kind: ErrInvalidInput, Msg: "malformed record"}
	}

	var a Account
	a.ID = rec.str("id")
	a.Email = rec.str("email")
	a.FirstName = rec.strPtr("first_name", "firstName")
	a.LastName = rec.strPtr("last_name", "lastName")
	a.Phone = rec.strPtr("phone")
	a.PasswordHash = rec.strPtr("password_hash", "passwordHash")
	a.ReferralCode = rec.strPtr("referral_code", "referralCode")
	a.ReferralCredits = rec.intVal("referral_credits", "referralCredits")
	a.CreatedAt = rec.timeVal("created_at", "createdAt")
	a.LastLoginAt = rec.timePtr("last_login_at", "lastLoginAt")

	if a.ID == "" {
		return Account{}, OpError{Op: "account.decodeWire", Kind: ErrInvalidInput, Msg: "record without id"}
	}
	return a, nil
}

func encodeWire(a Account) map[string]any {
	out := map[string]any{
		"id":               a.ID,
		"email":            a.Email,
		"first_name":       a.FirstName,
		"last_name":        a.LastName,
		"phone":            a.Phone,
		"password_hash":    a.PasswordHash,
		"referral_code":    a.ReferralCode,
		"referral_credits": a.ReferralCredits,
		"created_at":       a.CreatedAt.UTC().Format(time.RFC3339),
	}
	if a.LastLoginAt != nil {
		out["last_login_at"] = a.LastLoginAt.UTC().Format(time.RFC3339)
	}
	return out
}

// str returns the first present string value among keys, or "".
func (r wireRecord) str(keys ...string) string {
	for _, k := range keys {
		raw, ok := r[k]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return ""
}

func (r wireRecord) strPtr(keys ...string) *string {
	for _, k := range keys {
		raw, ok := r[k]
		if !ok {
			continue
		}
		var s *string
		if err := json.Unmarshal(raw, &s); err == nil && s != nil && *s != "" {
			return s
		}
	}
	return nil
}

func (r wireRecord) intVal(keys ...string) int {
	for _, k := range keys {
		raw, ok := r[k]
		if !ok {
			continue
		}
		var n int
		if err := json.Unmarshal(raw, &n); err == nil {
			return n
		}
	}
	return 0
}

func (r wireRecord) timeVal(keys ...string) time.Time {
	for _, k := range keys {
		raw, ok := r[k]
		if !ok {
			continue
		}
		var ts time.Time
		if err := json.Unmarshal(raw, &ts); err == nil {
			return ts
		}
	}
	return time.Time{}
}

func (r wireRecord) timePtr(keys ...string) *time.Time {
	for _, k := range keys {
		raw, ok := r[k]
		if !ok {
			continue
		}
		var ts *time.Time
		if err := json.Unmarshal(raw, &ts); err == nil && ts != nil && !ts.IsZero() {
			return ts
		}
	}
	return nil
}
