package authapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"porchlight/cmd/account"
	"porchlight/cmd/internal/referral"
	"porchlight/cmd/security/password"
	"porchlight/cmd/security/token"
)

var testHasher = password.Params{
	MemoryKiB:   8 * 1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

type testEnv struct {
	handler  *Handler
	mux      *http.ServeMux
	accounts *account.MemoryStore
	tokens   *token.Service
	now      time.Time
}

func newTestEnv(t *testing.T, opts ...HandlerOption) *testEnv {
	t.Helper()

	accounts := account.NewMemoryStore()
	tokens, err := token.NewService([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cfg := LoadConfigFromEnv()
	cfg.SessionTTL = time.Hour

	opts = append([]HandlerOption{WithClock(func() time.Time { return now })}, opts...)
	h, err := NewHandler(nil, cfg, accounts, testHasher, tokens, opts...)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}

	mux := http.NewServeMux()
	h.Register(mux)

	return &testEnv{handler: h, mux: mux, accounts: accounts, tokens: tokens, now: now}
}

func (e *testEnv) do(t *testing.T, method, target, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) signup(t *testing.T, email, pw string) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, http.MethodPost, "/auth/signup", `{"email":"`+email+`","password":"`+pw+`"}`, nil)
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()

	for _, c := range rec.Result().Cookies() {
		if c.Name == "session" {
			return c
		}
	}
	return nil
}

func TestSignup_CreatesAccountAndSession(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/auth/signup",
		`{"email":"Ada@Example.com","password":"secret123","first_name":"Ada"}`, nil)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	c := sessionCookie(t, rec)
	if c == nil || c.Value == "" {
		t.Fatal("no session cookie set")
	}
	if c.MaxAge != 3600 || !c.HttpOnly || !c.Secure {
		t.Fatalf("unexpected cookie attributes: %+v", c)
	}

	var resp authResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Account.Email != "ada@example.com" {
		t.Fatalf("email not normalized: %q", resp.Account.Email)
	}
	if !resp.Session.ExpiresAt.Equal(env.now.Add(time.Hour)) {
		t.Fatalf("expires_at = %v", resp.Session.ExpiresAt)
	}

	stored, err := env.accounts.GetByEmail(t.Context(), "ada@example.com")
	if err != nil {
		t.Fatalf("account not stored: %v", err)
	}
	if stored.PasswordHash == nil || strings.Contains(*stored.PasswordHash, "secret123") {
		t.Fatal("password not stored as a hash")
	}
	if !testHasher.Verify(*stored.PasswordHash, "secret123") {
		t.Fatal("stored hash does not verify the password")
	}
}

func TestSignup_DuplicateEmail(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	if rec := env.signup(t, "dup@example.com", "secret123"); rec.Code != http.StatusCreated {
		t.Fatalf("first signup: %d", rec.Code)
	}
	rec := env.signup(t, "DUP@example.com", "other-password")
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestSignup_RejectsBadInput(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	cases := []struct {
		name string
		body string
	}{
		{"missing email", `{"password":"secret123"}`},
		{"not an email", `{"email":"nope","password":"secret123"}`},
		{"short password", `{"email":"a@x.com","password":"short"}`},
		{"unknown field", `{"email":"a@x.com","password":"secret123","admin":true}`},
		{"not json", `email=a@x.com`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/auth/signup", tc.body, nil)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestLogin_Success(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.signup(t, "a@x.com", "secret123")

	rec := env.do(t, http.MethodPost, "/auth/login", `{"email":"a@x.com","password":"secret123"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if c := sessionCookie(t, rec); c == nil || c.Value == "" {
		t.Fatal("no session cookie set")
	}

	stored, err := env.accounts.GetByEmail(t.Context(), "a@x.com")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if stored.LastLoginAt == nil || !stored.LastLoginAt.Equal(env.now) {
		t.Fatalf("last_login_at not recorded: %v", stored.LastLoginAt)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.signup(t, "a@x.com", "secret123")

	rec := env.do(t, http.MethodPost, "/auth/login", `{"email":"a@x.com","password":"wrong"}`, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if c := sessionCookie(t, rec); c != nil {
		t.Fatalf("cookie set on failed login: %+v", c)
	}
}

func TestLogin_UnknownEmailMatchesWrongPasswordShape(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.signup(t, "a@x.com", "secret123")

	unknown := env.do(t, http.MethodPost, "/auth/login", `{"email":"ghost@x.com","password":"secret123"}`, nil)
	wrongPw := env.do(t, http.MethodPost, "/auth/login", `{"email":"a@x.com","password":"wrong"}`, nil)

	if unknown.Code != http.StatusUnauthorized || wrongPw.Code != http.StatusUnauthorized {
		t.Fatalf("statuses = %d, %d", unknown.Code, wrongPw.Code)
	}
	if unknown.Body.String() != wrongPw.Body.String() {
		t.Fatalf("failure bodies differ:\n%s\n%s", unknown.Body.String(), wrongPw.Body.String())
	}
}

func TestLogout_ClearsCookie(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/auth/logout", "", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	c := sessionCookie(t, rec)
	if c == nil || c.MaxAge != -1 || c.Value != "" {
		t.Fatalf("expected deletion cookie, got %+v", c)
	}
}

func TestMe_WithValidCookie(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	signupRec := env.signup(t, "a@x.com", "secret123")
	c := sessionCookie(t, signupRec)
	if c == nil {
		t.Fatal("no cookie from signup")
	}

	header := http.Header{"Cookie": []string{c.Name + "=" + c.Value}}
	rec := env.do(t, http.MethodGet, "/me", "", header)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp accountResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Email != "a@x.com" {
		t.Fatalf("unexpected account: %+v", resp)
	}
}

func TestMe_ExpiredToken(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.signup(t, "a@x.com", "secret123")

	stored, err := env.accounts.GetByEmail(t.Context(), "a@x.com")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	tok, err := env.tokens.IssueAt(token.Claims{token.ClaimSubject: stored.ID}, -time.Hour, env.now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	header := http.Header{"Cookie": []string{"session=" + tok}}
	rec := env.do(t, http.MethodGet, "/me", "", header)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestSession_FallbackEmail(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.signup(t, "a@x.com", "secret123")

	rec := env.do(t, http.MethodGet, "/auth/session?email=a@x.com", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp sessionStateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Authenticated || resp.Account == nil || resp.Account.Email != "a@x.com" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestSession_Anonymous(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/auth/session", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp sessionStateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Authenticated || resp.Account != nil {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestSignup_ReferralRewardsReferrerOnce(t *testing.T) {
	t.Parallel()

	env := newTestEnvWithReferrals(t)

	// Referrer signs up first and receives a code.
	refRec := env.signup(t, "referrer@x.com", "secret123")
	if refRec.Code != http.StatusCreated {
		t.Fatalf("referrer signup: %d", refRec.Code)
	}
	var refResp authResponse
	if err := json.Unmarshal(refRec.Body.Bytes(), &refResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if refResp.Account.ReferralCode == "" {
		t.Fatal("referrer got no referral code")
	}

	body := `{"email":"new@x.com","password":"secret123","referral_code":"` + refResp.Account.ReferralCode + `"}`
	if rec := env.do(t, http.MethodPost, "/auth/signup", body, nil); rec.Code != http.StatusCreated {
		t.Fatalf("referred signup: %d, body %s", rec.Code, rec.Body.String())
	}

	referrer, err := env.accounts.GetByEmail(t.Context(), "referrer@x.com")
	if err != nil {
		t.Fatalf("lookup referrer: %v", err)
	}
	if referrer.ReferralCredits != 1 {
		t.Fatalf("referrer credits = %d, want 1", referrer.ReferralCredits)
	}
}

func newTestEnvWithReferrals(t *testing.T) *testEnv {
	t.Helper()

	accounts := account.NewMemoryStore()
	tokens, err := token.NewService([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	referrals, err := referral.NewService(referral.NewMemoryStore(), accounts)
	if err != nil {
		t.Fatalf("referral.NewService: %v", err)
	}

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cfg := LoadConfigFromEnv()
	cfg.SessionTTL = time.Hour

	h, err := NewHandler(nil, cfg, accounts, testHasher, tokens,
		WithClock(func() time.Time { return now }),
		WithReferrals(referrals),
	)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}

	mux := http.NewServeMux()
	h.Register(mux)

	return &testEnv{handler: h, mux: mux, accounts: accounts, tokens: tokens, now: now}
}
