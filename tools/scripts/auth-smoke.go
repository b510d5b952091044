// Package main provides a CI-friendly smoke test for the porchlight
// auth surface.
//
// It validates, against a running server:
//   - /healthz
//   - signup -> session cookie issued
//   - /me with the cookie
//   - /auth/session fallback by email
//   - login with the same credentials
//   - wrong password rejected with no cookie
//   - logout -> cookie cleared
package main

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

func main() {
	var (
		baseURL  = flag.String("url", "http://127.0.0.1:8080", "Server base URL")
		email    = flag.String("email", "", "Signup email (default: random)")
		password = flag.String("password", "smoke-test-password", "Signup password")
		timeout  = flag.Duration("timeout", 7*time.Second, "Per-request timeout")
		verbose  = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	if _, err := url.Parse(*baseURL); err != nil {
		fatalf("invalid -url: %v", err)
	}
	addr := strings.TrimRight(*baseURL, "/")

	who := *email
	if who == "" {
		var buf [6]byte
		if _, err := rand.Read(buf[:]); err != nil {
			fatalf("rand: %v", err)
		}
		who = "smoke-" + hex.EncodeToString(buf[:]) + "@example.com"
	}

	c := &smokeClient{
		http:    &http.Client{Timeout: *timeout},
		addr:    addr,
		verbose: *verbose,
	}

	c.step("healthz", func() error {
		_, _, err := c.get("/healthz", "")
		return err
	})

	var cookie string
	c.step("signup", func() error {
		status, hdr, body, err := c.postJSON("/auth/signup", map[string]any{
			"email":    who,
			"password": *password,
		})
		if err != nil {
			return err
		}
		if status != http.StatusCreated {
			return fmt.Errorf("status %d: %s", status, body)
		}
		cookie = sessionCookie(hdr)
		if cookie == "" {
			return fmt.Errorf("no session cookie in response")
		}
		return nil
	})

	c.step("me with cookie", func() error {
		status, body, err := c.get("/me", cookie)
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			return fmt.Errorf("status %d: %s", status, body)
		}
		var acct struct {
			Email string `json:"email"`
		}
		if err := json.Unmarshal(body, &acct); err != nil {
			return err
		}
		if acct.Email != strings.ToLower(who) {
			return fmt.Errorf("unexpected account %q", acct.Email)
		}
		return nil
	})

	c.step("session fallback by email", func() error {
		status, body, err := c.get("/auth/session?email="+url.QueryEscape(who), "")
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			return fmt.Errorf("status %d: %s", status, body)
		}
		var state struct {
			Authenticated bool `json:"authenticated"`
		}
		if err := json.Unmarshal(body, &state); err != nil {
			return err
		}
		if !state.Authenticated {
			return fmt.Errorf("fallback email did not resolve: %s", body)
		}
		return nil
	})

	c.step("login", func() error {
		status, hdr, body, err := c.postJSON("/auth/login", map[string]any{
			"email":    who,
			"password": *password,
		})
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			return fmt.Errorf("status %d: %s", status, body)
		}
		if sessionCookie(hdr) == "" {
			return fmt.Errorf("no session cookie on login")
		}
		return nil
	})

	c.step("wrong password rejected", func() error {
		status, hdr, body, err := c.postJSON("/auth/login", map[string]any{
			"email":    who,
			"password": *password + "-wrong",
		})
		if err != nil {
			return err
		}
		if status != http.StatusUnauthorized {
			return fmt.Errorf("status %d: %s", status, body)
		}
		if sessionCookie(hdr) != "" {
			return fmt.Errorf("cookie issued on failed login")
		}
		return nil
	})

	c.step("logout clears cookie", func() error {
		req, err := http.NewRequest(http.MethodPost, c.addr+"/auth/logout", nil)
		if err != nil {
			return err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode != http.StatusNoContent {
			return fmt.Errorf("status %d", resp.StatusCode)
		}
		for _, sc := range resp.Cookies() {
			if sc.Name == "session" && sc.MaxAge < 0 {
				return nil
			}
		}
		return fmt.Errorf("no deletion cookie in logout response")
	})

	fmt.Println("auth smoke: all steps passed")
}

type smokeClient struct {
	http    *http.Client
	addr    string
	verbose bool
}

func (c *smokeClient) step(name string, fn func() error) {
	if c.verbose {
		fmt.Printf("-> %s\n", name)
	}
	if err := fn(); err != nil {
		fatalf("%s: %v", name, err)
	}
}

func (c *smokeClient) get(path, cookie string) (int, []byte, error) {
	req, err := http.NewRequest(http.MethodGet, c.addr+path, nil)
	if err != nil {
		return 0, nil, err
	}
	if cookie != "" {
		req.Header.Set("Cookie", "session="+cookie)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	return resp.StatusCode, body, err
}

func (c *smokeClient) postJSON(path string, payload any) (int, http.Header, []byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, nil, err
	}
	req, err := http.NewRequest(http.MethodPost, c.addr+path, bytes.NewReader(raw))
	if err != nil {
		return 0, nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	return resp.StatusCode, resp.Header, body, err
}

func sessionCookie(hdr http.Header) string {
	resp := http.Response{Header: hdr}
	for _, sc := range resp.Cookies() {
		if sc.Name == "session" && sc.Value != "" {
			return sc.Value
		}
	}
	return ""
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "auth smoke: "+format+"\n", args...)
	os.Exit(1)
}
