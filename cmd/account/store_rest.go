package account

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultRESTTimeout = 10 * time.Second

// RESTStore talks to the hosted database's REST interface
// (PostgREST-style filtering and RPC endpoints).
//
// Error contract: an empty result set is ErrNotFound; any transport failure
// or non-2xx status is UpstreamError. The two are never conflated.
type RESTStore struct {
	base   string
	apiKey string
	table  string
	client *http.Client
}

// RESTOption configures RESTStore.
type RESTOption func(*RESTStore) error

// WithHTTPClient overrides the default HTTP client (useful for tests).
func WithHTTPClient(c *http.Client) RESTOption {
	return func(s *RESTStore) error {
		if c == nil {
			return OpError{Op: "account.NewRESTStore", Kind: ErrInvalidInput, Msg: "nil http client"}
		}
		s.client = c
		return nil
	}
}

// WithTable overrides the accounts table name (default: "accounts").
func WithTable(table string) RESTOption {
	return func(s *RESTStore) error {
		table = strings.TrimSpace(table)
		if table == "" {
			return OpError{Op: "account.NewRESTStore", Kind: ErrInvalidInput, Msg: "empty table"}
		}
		s.table = table
		return nil
	}
}

// NewRESTStore constructs a RESTStore for the given base URL and API key.
func NewRESTStore(baseURL, apiKey string, opts ...RESTOption) (*RESTStore, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, OpError{Op: "account.NewRESTStore", Kind: ErrInvalidInput, Msg: "empty base url"}
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, OpError{Op: "account.NewRESTStore", Kind: ErrInvalidInput, Msg: "bad base url"}
	}

	s := &RESTStore{
		base:   baseURL,
		apiKey: strings.TrimSpace(apiKey),
		table:  "accounts",
		client: &http.Client{Timeout: defaultRESTTimeout},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// GetByID implements Store.
func (s *RESTStore) GetByID(ctx context.Context, id string) (Account, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Account{}, OpError{Op: "account.GetByID", Kind: ErrInvalidInput, Msg: "empty id"}
	}
	return s.getOne(ctx, "account.GetByID", "id=eq."+url.QueryEscape(id))
}

// GetByEmail implements Store. The filter runs against the normalized form.
func (s *RESTStore) GetByEmail(ctx context.Context, email string) (Account, error) {
	norm := NormalizeEmail(email)
	if norm == "" {
		return Account{}, OpError{Op: "account.GetByEmail", Kind: ErrInvalidInput, Msg: "empty email"}
	}
	return s.getOne(ctx, "account.GetByEmail", "email=eq."+url.QueryEscape(norm))
}

// Insert implements Store.
func (s *RESTStore) Insert(ctx context.Context, a Account) error {
	const op = "account.Insert"
	if strings.TrimSpace(a.ID) == "" || NormalizeEmail(a.Email) == "" {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "id and email required"}
	}
	a.Email = NormalizeEmail(a.Email)

	status, _, err := s.do(ctx, http.MethodPost, s.base+"/"+s.table, encodeWire(a), map[string]string{
		"Prefer": "return=minimal",
	})
	if err != nil {
		return UpstreamError{Op: op, Err: err}
	}
	switch {
	case status == http.StatusConflict:
		return OpError{Op: op, Kind: ErrConflict}
	case status < 200 || status > 299:
		return UpstreamError{Op: op, Status: status}
	}
	return nil
}

// Update implements Store.
func (s *RESTStore) Update(ctx context.Context, id string, fields Fields) error {
	const op = "account.Update"
	id = strings.TrimSpace(id)
	if id == "" {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "empty id"}
	}
	if err := fields.Validate(); err != nil {
		return err
	}

	u := fmt.Sprintf("%s/%s?id=eq.%s", s.base, s.table, url.QueryEscape(id))
	status, body, err := s.do(ctx, http.MethodPatch, u, map[string]any(fields), map[string]string{
		"Prefer": "return=representation",
	})
	if err != nil {
		return UpstreamError{Op: op, Err: err}
	}
	if status < 200 || status > 299 {
		return UpstreamError{Op: op, Status: status}
	}

	// With return=representation a patch that matched nothing yields [].
	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return UpstreamError{Op: op, Err: err}
	}
	if len(rows) == 0 {
		return OpError{Op: op, Kind: ErrNotFound}
	}
	return nil
}

// AddReferralCredit implements Store. The increment happens inside the hosted
// database via an RPC function, so concurrent completions cannot lose updates.
func (s *RESTStore) AddReferralCredit(ctx context.Context, id string, n int) error {
	const op = "account.AddReferralCredit"
	id = strings.TrimSpace(id)
	if id == "" || n == 0 {
		return OpError{Op: op, Kind: ErrInvalidInput}
	}

	status, _, err := s.do(ctx, http.MethodPost, s.base+"/rpc/add_referral_credit", map[string]any{
		"account_id": id,
		"amount":     n,
	}, nil)
	if err != nil {
		return UpstreamError{Op: op, Err: err}
	}
	if status == http.StatusNotFound {
		return OpError{Op: op, Kind: ErrNotFound}
	}
	if status < 200 || status > 299 {
		return UpstreamError{Op: op, Status: status}
	}
	return nil
}

func (s *RESTStore) getOne(ctx context.Context, op, filter string) (Account, error) {
	u := fmt.Sprintf("%s/%s?%s&limit=1", s.base, s.table, filter)
	status, body, err := s.do(ctx, http.MethodGet, u, nil, nil)
	if err != nil {
		return Account{}, UpstreamError{Op: op, Err: err}
	}
	if status != http.StatusOK {
		return Account{}, UpstreamError{Op: op, Status: status}
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return Account{}, UpstreamError{Op: op, Err: err}
	}
	if len(rows) == 0 {
		return Account{}, OpError{Op: op, Kind: ErrNotFound}
	}

	a, err := decodeWire(rows[0])
	if err != nil {
		return Account{}, UpstreamError{Op: op, Err: err}
	}
	return a, nil
}

func (s *RESTStore) do(ctx context.Context, method, u string, payload any, extra map[string]string) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("apikey", s.apiKey)
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}
	for k, v := range extra {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, data, nil
}
