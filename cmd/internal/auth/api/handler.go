package authapi

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"porchlight/cmd/account"
	"porchlight/cmd/internal/auth/session"
	"porchlight/cmd/internal/referral"
	"porchlight/cmd/security/password"
	"porchlight/cmd/security/token"
)

// Handler wires HTTP auth endpoints to the hasher, token service,
// resolver, and account store.
type Handler struct {
	log *slog.Logger
	cfg Config

	accounts account.Store
	hasher   password.Params
	tokens   *token.Service
	resolver *session.Resolver

	limiter   *LoginLimiter
	referrals *referral.Service
	metrics   *Metrics

	now       func() time.Time
	dummyHash string
}

// HandlerOption configures optional auth handler dependencies.
type HandlerOption func(*Handler)

// WithLoginLimiter enables Redis-backed login throttling.
func WithLoginLimiter(l *LoginLimiter) HandlerOption {
	return func(h *Handler) {
		if h == nil || l == nil {
			return
		}
		h.limiter = l
	}
}

// WithReferrals enables referral-code issuance and reward payout on signup.
func WithReferrals(svc *referral.Service) HandlerOption {
	return func(h *Handler) {
		if h == nil || svc == nil {
			return
		}
		h.referrals = svc
	}
}

// WithMetrics enables auth outcome counters.
func WithMetrics(m *Metrics) HandlerOption {
	return func(h *Handler) {
		if h == nil || m == nil {
			return
		}
		h.metrics = m
	}
}

// WithClock overrides the handler's clock, for tests.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if h == nil || now == nil {
			return
		}
		h.now = now
	}
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, cfg Config, accounts account.Store, hasher password.Params, tokens *token.Service, opts ...HandlerOption) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}

	resolver, err := session.NewResolver(tokens, accounts)
	if err != nil {
		return nil, err
	}

	h := &Handler{
		log:      log,
		cfg:      cfg,
		accounts: accounts,
		hasher:   hasher,
		tokens:   tokens,
		resolver: resolver,
		now:      time.Now,
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(h)
	}

	h.resolver.WithClock(h.now)

	// Dummy hash for timing-resistant login checks.
	if hash, err := hasher.Hash("dummy-password-for-timing-only"); err == nil {
		h.dummyHash = hash
	}

	return h, nil
}

// Register wires auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/auth/signup", h.handleSignup)
	mux.HandleFunc("/auth/login", h.handleLogin)
	mux.HandleFunc("/auth/logout", h.handleLogout)
	mux.HandleFunc("/auth/session", h.handleSession)
	mux.HandleFunc("/me", h.handleMe)
}

// ---- handlers ----

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req signupRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	email := account.NormalizeEmail(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		writeError(w, http.StatusBadRequest, "invalid_request", "a valid email is required")
		return
	}
	if len(req.Password) < h.cfg.MinPasswordLength {
		writeError(w, http.StatusBadRequest, "weak_password", "password is too short")
		return
	}

	ctx := r.Context()
	now := h.now().UTC()

	hash, err := h.hasher.Hash(req.Password)
	if err != nil {
		h.log.Error("auth.signup.hash.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	id, err := account.NewID(now)
	if err != nil {
		h.log.Error("auth.signup.new_id.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	acct := account.Account{
		ID:           id,
		Email:        email,
		FirstName:    optField(req.FirstName),
		LastName:     optField(req.LastName),
		Phone:        optField(req.Phone),
		PasswordHash: &hash,
		CreatedAt:    now,
	}

	if err := h.accounts.Insert(ctx, acct); err != nil {
		switch {
		case account.IsConflict(err):
			h.metrics.observeSignup("conflict")
			writeError(w, http.StatusConflict, "email_taken", "an account with this email already exists")
		case account.IsInvalidInput(err):
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid account fields")
		case account.IsUpstream(err):
			h.log.Error("auth.signup.insert.fail", "err", err)
			h.metrics.observeSignup("upstream_error")
			writeError(w, http.StatusBadGateway, "upstream_error", "account store unavailable")
		default:
			h.log.Error("auth.signup.insert.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	h.setupReferrals(ctx, &acct, req.ReferralCode, now)

	tok, err := h.tokens.IssueAt(token.Claims{token.ClaimSubject: acct.ID}, h.cfg.SessionTTL, now)
	if err != nil {
		h.log.Error("auth.signup.issue_token.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	session.SetOn(w, tok, int(h.cfg.SessionTTL.Seconds()))
	h.metrics.observeSignup("success")

	writeJSON(w, http.StatusCreated, authResponse{
		Account: toAccountResponse(acct),
		Session: sessionResponse{ExpiresAt: now.Add(h.cfg.SessionTTL)},
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	email := account.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	ctx := r.Context()
	now := h.now().UTC()
	ip := clientIP(r, h.cfg.TrustProxy)

	// Throttle before touching the account store.
	if blocked, retryAfter, err := h.limiter.Allow(ctx, loginIPKey(ip), h.cfg.LoginIPMax, h.cfg.LoginIPWindow); err != nil {
		h.log.Error("auth.login.throttle_ip.fail", "err", err)
		writeError(w, http.StatusServiceUnavailable, "server_busy", "please retry later")
		return
	} else if blocked {
		h.metrics.observeLogin("rate_limited")
		writeRateLimited(w, retryAfter)
		return
	}
	if blocked, retryAfter, err := h.limiter.Allow(ctx, loginIdentifierKey(email), h.cfg.LoginIdentifierMax, h.cfg.LoginIdentifierWindow); err != nil {
		h.log.Error("auth.login.throttle_identifier.fail", "err", err)
		writeError(w, http.StatusServiceUnavailable, "server_busy", "please retry later")
		return
	} else if blocked {
		h.metrics.observeLogin("rate_limited")
		writeRateLimited(w, retryAfter)
		return
	}

	acct, err := h.accounts.GetByEmail(ctx, email)
	if err != nil {
		if !account.IsNotFound(err) {
			h.log.Error("auth.login.lookup.fail", "err", err)
			h.metrics.observeLogin("upstream_error")
			writeError(w, http.StatusBadGateway, "upstream_error", "account store unavailable")
			return
		}
		// Timing resistance: run a verify even when the account is missing.
		if h.dummyHash != "" {
			_ = h.hasher.Verify(h.dummyHash, req.Password)
		}
		h.metrics.observeLogin("invalid_credentials")
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		return
	}

	if acct.PasswordHash == nil {
		if h.dummyHash != "" {
			_ = h.hasher.Verify(h.dummyHash, req.Password)
		}
		h.metrics.observeLogin("invalid_credentials")
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		return
	}
	if !h.hasher.Verify(*acct.PasswordHash, req.Password) {
		h.metrics.observeLogin("invalid_credentials")
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		return
	}

	tok, err := h.tokens.IssueAt(token.Claims{token.ClaimSubject: acct.ID}, h.cfg.SessionTTL, now)
	if err != nil {
		h.log.Error("auth.login.issue_token.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	// Last-login bookkeeping is a separate explicit write; a failure
	// here must not fail the login.
	if err := h.accounts.Update(ctx, acct.ID, account.Fields{"last_login_at": now}); err != nil {
		h.log.Warn("auth.login.last_login.fail", "err", err)
	} else {
		acct.LastLoginAt = &now
	}

	session.SetOn(w, tok, int(h.cfg.SessionTTL.Seconds()))
	h.metrics.observeLogin("success")

	writeJSON(w, http.StatusOK, authResponse{
		Account: toAccountResponse(acct),
		Session: sessionResponse{ExpiresAt: now.Add(h.cfg.SessionTTL)},
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	// Stateless sessions: clearing the cookie is the whole logout.
	session.ClearOn(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	acct, src, err := h.resolver.ResolveWithSource(r.Context(), r.Header.Get("Cookie"), q.Get("account_id"), q.Get("email"))
	if err != nil {
		h.log.Error("auth.session.resolve.fail", "err", err)
		writeError(w, http.StatusBadGateway, "upstream_error", "account store unavailable")
		return
	}
	h.metrics.observeResolution(src)

	if acct == nil {
		writeJSON(w, http.StatusOK, sessionStateResponse{Authenticated: false})
		return
	}

	resp := toAccountResponse(*acct)
	writeJSON(w, http.StatusOK, sessionStateResponse{Authenticated: true, Account: &resp})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	acct, src, err := h.resolver.ResolveWithSource(r.Context(), r.Header.Get("Cookie"), "", "")
	if err != nil {
		h.log.Error("auth.me.resolve.fail", "err", err)
		writeError(w, http.StatusBadGateway, "upstream_error", "account store unavailable")
		return
	}
	h.metrics.observeResolution(src)

	if acct == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "please sign in")
		return
	}

	writeJSON(w, http.StatusOK, toAccountResponse(*acct))
}

// setupReferrals mints the new account's own code and pays out the
// referrer's reward when a code was supplied. Referral bookkeeping is
// best-effort: failures are logged, the signup still succeeds.
func (h *Handler) setupReferrals(ctx context.Context, acct *account.Account, suppliedCode string, now time.Time) {
	if h.referrals == nil || acct == nil {
		return
	}

	code, err := h.referrals.Register(ctx, acct.ID, now)
	if err != nil {
		h.log.Warn("auth.signup.referral_code.fail", "err", err)
	} else {
		if err := h.accounts.Update(ctx, acct.ID, account.Fields{"referral_code": code}); err != nil {
			h.log.Warn("auth.signup.referral_code.persist.fail", "err", err)
		} else {
			acct.ReferralCode = &code
		}
	}

	suppliedCode = strings.TrimSpace(suppliedCode)
	if suppliedCode == "" {
		return
	}
	rewarded, err := h.referrals.Complete(ctx, suppliedCode, acct.ID, now)
	switch {
	case referral.IsCodeNotFound(err):
		h.log.Info("auth.signup.referral.unknown_code", "code", suppliedCode)
	case err != nil:
		h.log.Warn("auth.signup.referral.fail", "err", err)
	case rewarded:
		h.log.Info("auth.signup.referral.rewarded", "account_id", acct.ID)
	}
}

func optField(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func clientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip
		}
	}
	return nil
}

func parseForwardedIP(raw string) net.IP {
	if raw == "" {
		return nil
	}
	for _, p := range strings.Split(raw, ",") {
		if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
			return ip
		}
	}
	return nil
}
