package oracle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/petal-labs/mcp-oracle-scm/tool"
)

var authTestNow = time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

type tokenEndpoint struct {
	mu     sync.Mutex
	forms  []url.Values
	status int
}

func (e *tokenEndpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	e.mu.Lock()
	e.forms = append(e.forms, r.PostForm)
	status := e.status
	e.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if status != 0 && status != http.StatusOK {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, `{"error":"invalid_grant"}`)
		return
	}
	_, _ = fmt.Fprintf(w, `{"access_token":"access-%d","token_type":"Bearer","refresh_token":"refresh-new","expires_in":3600}`, len(e.forms))
}

func (e *tokenEndpoint) lastForm() url.Values {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.forms) == 0 {
		return nil
	}
	return e.forms[len(e.forms)-1]
}

func newTestAuthenticator(t *testing.T, tokenURL string, store TokenStore, mutate func(*AuthConfig)) *Authenticator {
	t.Helper()
	cfg := AuthConfig{
		Environment:  "DEV1",
		ClientID:     "client-1",
		AuthURL:      "https://idcs.example/oauth2/v1/authorize",
		TokenURL:     tokenURL,
		Scope:        "urn:opc:resource:consumer::all",
		RedirectURL:  "http://127.0.0.1:3009/callback",
		ExpiryBuffer: 5 * time.Minute,
		Store:        store,
		HTTPClient:   &http.Client{Timeout: 5 * time.Second},
		OpenBrowser:  func(string) error { return errors.New("no browser in tests") },
		Prompt:       io.Discard,
		Now:          func() time.Time { return authTestNow },
	}
	if mutate != nil {
		mutate(&cfg)
	}
	auth, err := NewAuthenticator(cfg)
	if err != nil {
		t.Fatalf("NewAuthenticator() error = %v", err)
	}
	return auth
}

func TestAuthenticatorUsesValidStoredToken(t *testing.T) {
	endpoint := &tokenEndpoint{}
	ts := httptest.NewServer(endpoint)
	defer ts.Close()

	store := newMemoryTokenStore()
	_ = store.SaveToken(context.Background(), "DEV1", &oauth2.Token{AccessToken: "stored", Expiry: authTestNow.Add(time.Hour)})
	auth := newTestAuthenticator(t, ts.URL, store, nil)

	got, err := auth.AccessToken(context.Background())
	if err != nil {
		t.Fatalf("AccessToken() error = %v", err)
	}
	if got != "stored" {
		t.Fatalf("AccessToken() = %q, want stored", got)
	}
	if endpoint.lastForm() != nil {
		t.Fatal("token endpoint should not be called")
	}
}

func TestAuthenticatorRefreshesTokenInsideExpiryBuffer(t *testing.T) {
	endpoint := &tokenEndpoint{}
	ts := httptest.NewServer(endpoint)
	defer ts.Close()

	store := newMemoryTokenStore()
	_ = store.SaveToken(context.Background(), "DEV1", &oauth2.Token{
		AccessToken:  "old",
		RefreshToken: "refresh-old",
		Expiry:       authTestNow.Add(2 * time.Minute),
	})
	auth := newTestAuthenticator(t, ts.URL, store, nil)

	got, err := auth.AccessToken(context.Background())
	if err != nil {
		t.Fatalf("AccessToken() error = %v", err)
	}
	if got != "access-1" {
		t.Fatalf("AccessToken() = %q, want access-1", got)
	}
	form := endpoint.lastForm()
	if form.Get("grant_type") != "refresh_token" || form.Get("refresh_token") != "refresh-old" {
		t.Fatalf("refresh form = %v", form)
	}
	if form.Get("client_id") != "client-1" {
		t.Fatalf("client_id = %q", form.Get("client_id"))
	}

	saved, found, _ := store.LoadToken(context.Background(), "DEV1")
	if !found || saved.AccessToken != "access-1" || saved.RefreshToken != "refresh-new" {
		t.Fatalf("saved token = %+v", saved)
	}
}

func TestAuthenticatorRefreshFailureRequiresLogin(t *testing.T) {
	endpoint := &tokenEndpoint{status: http.StatusBadRequest}
	ts := httptest.NewServer(endpoint)
	defer ts.Close()

	store := newMemoryTokenStore()
	_ = store.SaveToken(context.Background(), "DEV1", &oauth2.Token{
		AccessToken:  "old",
		RefreshToken: "revoked",
		Expiry:       authTestNow.Add(-time.Hour),
	})
	auth := newTestAuthenticator(t, ts.URL, store, nil)

	_, err := auth.AccessToken(context.Background())
	if tool.ToolErrorCode(err) != tool.ToolErrorCodeAuthRequired {
		t.Fatalf("error = %v, want AUTH_REQUIRED", err)
	}
	if _, found, _ := store.LoadToken(context.Background(), "DEV1"); found {
		t.Fatal("stored token should be cleared after refresh failure")
	}
}

func TestAuthenticatorNoTokenNonInteractive(t *testing.T) {
	auth := newTestAuthenticator(t, "https://idcs.example/token", newMemoryTokenStore(), nil)
	_, err := auth.Token(context.Background())
	if tool.ToolErrorCode(err) != tool.ToolErrorCodeAuthRequired {
		t.Fatalf("error = %v, want AUTH_REQUIRED", err)
	}
}

func TestAuthenticatorInvalidateForcesRefresh(t *testing.T) {
	endpoint := &tokenEndpoint{}
	ts := httptest.NewServer(endpoint)
	defer ts.Close()

	store := newMemoryTokenStore()
	_ = store.SaveToken(context.Background(), "DEV1", &oauth2.Token{
		AccessToken:  "good",
		RefreshToken: "refresh-old",
		Expiry:       authTestNow.Add(time.Hour),
	})
	auth := newTestAuthenticator(t, ts.URL, store, nil)

	if got, _ := auth.AccessToken(context.Background()); got != "good" {
		t.Fatalf("first AccessToken() = %q", got)
	}
	auth.Invalidate(context.Background())
	got, err := auth.AccessToken(context.Background())
	if err != nil {
		t.Fatalf("AccessToken() error = %v", err)
	}
	if got != "access-1" {
		t.Fatalf("AccessToken() after Invalidate = %q, want access-1", got)
	}
}

func TestAuthenticatorStatusAndLogout(t *testing.T) {
	store := newMemoryTokenStore()
	_ = store.SaveToken(context.Background(), "DEV1", &oauth2.Token{
		AccessToken:  "good",
		RefreshToken: "r",
		Expiry:       authTestNow.Add(time.Hour),
	})
	auth := newTestAuthenticator(t, "https://idcs.example/token", store, nil)

	status, err := auth.Status(context.Background())
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if !status.Authenticated || !status.HasRefreshToken || status.Environment != "DEV1" {
		t.Fatalf("status = %+v", status)
	}

	if err := auth.Logout(context.Background()); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	status, err = auth.Status(context.Background())
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if status.Authenticated {
		t.Fatalf("status after logout = %+v", status)
	}
}

func TestNewAuthenticatorRequiresFields(t *testing.T) {
	_, err := NewAuthenticator(AuthConfig{Store: newMemoryTokenStore()})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "auth url, client id, redirect url, token url") {
		t.Fatalf("error = %v", err)
	}
	if _, err := NewAuthenticator(AuthConfig{ClientID: "c", AuthURL: "a", TokenURL: "t", RedirectURL: "r"}); err == nil {
		t.Fatal("expected error for missing store")
	}
}

func freeRedirectURL(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	return "http://" + addr + "/callback"
}

func TestAuthenticatorInteractiveLogin(t *testing.T) {
	endpoint := &tokenEndpoint{}
	ts := httptest.NewServer(endpoint)
	defer ts.Close()

	store := newMemoryTokenStore()
	redirect := freeRedirectURL(t)
	var opened string
	auth := newTestAuthenticator(t, ts.URL, store, func(cfg *AuthConfig) {
		cfg.RedirectURL = redirect
		cfg.Interactive = true
		cfg.LoginTimeout = 5 * time.Second
		cfg.OpenBrowser = func(authURL string) error {
			opened = authURL
			u, err := url.Parse(authURL)
			if err != nil {
				return err
			}
			q := u.Query()
			resp, err := http.Get(redirect + "?code=the-code&state=" + url.QueryEscape(q.Get("state")))
			if err != nil {
				return err
			}
			body, _ := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			if string(body) != callbackSuccessBody {
				return fmt.Errorf("callback body = %q", body)
			}
			return nil
		}
	})

	tok, err := auth.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if tok.AccessToken != "access-1" {
		t.Fatalf("AccessToken = %q", tok.AccessToken)
	}

	u, err := url.Parse(opened)
	if err != nil {
		t.Fatalf("parse opened url: %v", err)
	}
	q := u.Query()
	if q.Get("code_challenge_method") != "S256" || q.Get("code_challenge") == "" {
		t.Fatalf("auth url missing PKCE challenge: %s", opened)
	}
	if q.Get("response_type") != "code" || q.Get("client_id") != "client-1" || q.Get("redirect_uri") != redirect {
		t.Fatalf("auth url = %s", opened)
	}

	form := endpoint.lastForm()
	if form.Get("grant_type") != "authorization_code" || form.Get("code") != "the-code" {
		t.Fatalf("exchange form = %v", form)
	}
	if len(form.Get("code_verifier")) != codeVerifierLength {
		t.Fatalf("code_verifier length = %d", len(form.Get("code_verifier")))
	}
	if _, found, _ := store.LoadToken(context.Background(), "DEV1"); !found {
		t.Fatal("login token should be stored")
	}
}

func TestNewCodeVerifierCharset(t *testing.T) {
	v, err := newCodeVerifier()
	if err != nil {
		t.Fatalf("newCodeVerifier() error = %v", err)
	}
	if len(v) != codeVerifierLength {
		t.Fatalf("len = %d", len(v))
	}
	for _, r := range v {
		if !strings.ContainsRune(codeVerifierCharset, r) {
			t.Fatalf("unexpected rune %q", r)
		}
	}
}
