package authapi

import (
	"time"

	"porchlight/cmd/account"
)

type signupRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	Phone        string `json:"phone,omitempty"`
	ReferralCode string `json:"referral_code,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type accountResponse struct {
	ID              string     `json:"id"`
	Email           string     `json:"email"`
	FirstName       string     `json:"first_name,omitempty"`
	LastName        string     `json:"last_name,omitempty"`
	Phone           string     `json:"phone,omitempty"`
	ReferralCode    string     `json:"referral_code,omitempty"`
	ReferralCredits int        `json:"referral_credits"`
	CreatedAt       time.Time  `json:"created_at"`
	LastLoginAt     *time.Time `json:"last_login_at,omitempty"`
}

type sessionResponse struct {
	ExpiresAt time.Time `json:"expires_at"`
}

type authResponse struct {
	Account accountResponse `json:"account"`
	Session sessionResponse `json:"session"`
}

type sessionStateResponse struct {
	Authenticated bool             `json:"authenticated"`
	Account       *accountResponse `json:"account,omitempty"`
}

func toAccountResponse(a account.Account) accountResponse {
	resp := accountResponse{
		ID:              a.ID,
		Email:           a.Email,
		ReferralCredits: a.ReferralCredits,
		CreatedAt:       a.CreatedAt,
		LastLoginAt:     a.LastLoginAt,
	}
	if a.FirstName != nil {
		resp.FirstName = *a.FirstName
	}
	if a.LastName != nil {
		resp.LastName = *a.LastName
	}
	if a.Phone != nil {
		resp.Phone = *a.Phone
	}
	if a.ReferralCode != nil {
		resp.ReferralCode = *a.ReferralCode
	}
	return resp
}
