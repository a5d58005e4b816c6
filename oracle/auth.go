package oracle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/petal-labs/mcp-oracle-scm/tool"
)

// TokenStore persists OAuth tokens per Oracle environment.
type TokenStore interface {
	LoadToken(ctx context.Context, environment string) (*oauth2.Token, bool, error)
	SaveToken(ctx context.Context, environment string, token *oauth2.Token) error
	DeleteToken(ctx context.Context, environment string) error
}

// AuthConfig configures an Authenticator.
type AuthConfig struct {
	// Environment keys the stored token, e.g. "DEV1".
	Environment  string
	ClientID     string
	AuthURL      string
	TokenURL     string
	Scope        string
	RedirectURL  string
	LoginTimeout time.Duration
	// ExpiryBuffer treats tokens expiring within this window as expired.
	ExpiryBuffer time.Duration
	// Interactive allows Token to start a browser login when nothing else works.
	Interactive bool

	Store      TokenStore
	HTTPClient *http.Client
	Logger     *slog.Logger
	// OpenBrowser defaults to the platform URL opener.
	OpenBrowser func(url string) error
	// Prompt receives the login URL; defaults to os.Stderr.
	Prompt io.Writer
	Now    func() time.Time
}

// TokenStatus summarizes the token an Authenticator would use.
type TokenStatus struct {
	Environment     string    `json:"environment"`
	Authenticated   bool      `json:"authenticated"`
	Expiry          time.Time `json:"expiry,omitempty"`
	HasRefreshToken bool      `json:"has_refresh_token"`
}

// Authenticator obtains Oracle access tokens using the OAuth authorization
// code flow with PKCE. Tokens are looked up memory first, then the store,
// then refreshed, then obtained interactively.
type Authenticator struct {
	cfg    AuthConfig
	oauth  *oauth2.Config
	logger *slog.Logger

	mu    sync.Mutex
	token *oauth2.Token
}

// NewAuthenticator validates cfg and returns an Authenticator.
func NewAuthenticator(cfg AuthConfig) (*Authenticator, error) {
	var missing []string
	for name, value := range map[string]string{
		"client id":    cfg.ClientID,
		"auth url":     cfg.AuthURL,
		"token url":    cfg.TokenURL,
		"redirect url": cfg.RedirectURL,
	} {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return nil, fmt.Errorf("oracle auth: missing %s", strings.Join(missing, ", "))
	}
	if cfg.Store == nil {
		return nil, errors.New("oracle auth: token store is required")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = HTTPClient(60 * time.Second)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.OpenBrowser == nil {
		cfg.OpenBrowser = openBrowser
	}
	if cfg.Prompt == nil {
		cfg.Prompt = os.Stderr
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.LoginTimeout <= 0 {
		cfg.LoginTimeout = 5 * time.Minute
	}

	var scopes []string
	if s := strings.TrimSpace(cfg.Scope); s != "" {
		scopes = []string{s}
	}
	return &Authenticator{
		cfg: cfg,
		oauth: &oauth2.Config{
			ClientID: cfg.ClientID,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
			RedirectURL: cfg.RedirectURL,
			Scopes:      scopes,
		},
		logger: cfg.Logger.With("environment", cfg.Environment),
	}, nil
}

// AccessToken returns a valid bearer token.
func (a *Authenticator) AccessToken(ctx context.Context) (string, error) {
	tok, err := a.Token(ctx)
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// Token returns a valid token, refreshing or logging in as needed.
func (a *Authenticator) Token(ctx context.Context) (*oauth2.Token, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.valid(a.token) {
		return a.token, nil
	}

	stored, found, err := a.cfg.Store.LoadToken(ctx, a.cfg.Environment)
	if err != nil {
		a.logger.Warn("load stored token failed", "error", err)
	}
	if found && a.valid(stored) {
		a.logger.Debug("using stored token")
		a.token = stored
		return stored, nil
	}

	refreshToken := ""
	if found && stored != nil {
		refreshToken = stored.RefreshToken
	}
	if refreshToken == "" && a.token != nil {
		refreshToken = a.token.RefreshToken
	}
	if refreshToken != "" {
		tok, err := a.refresh(ctx, refreshToken)
		if err == nil {
			return tok, nil
		}
		a.logger.Warn("token refresh failed, clearing stored tokens", "error", err)
		a.token = nil
		if delErr := a.cfg.Store.DeleteToken(ctx, a.cfg.Environment); delErr != nil {
			a.logger.Warn("clear stored token failed", "error", delErr)
		}
	}

	if !a.cfg.Interactive {
		return nil, tool.NewToolError(tool.ToolErrorCodeAuthRequired,
			"no valid Oracle token; run `mcp-oracle-scm auth login`", false, nil)
	}
	return a.login(ctx)
}

// Login always runs the interactive browser flow and stores the result.
func (a *Authenticator) Login(ctx context.Context) (*oauth2.Token, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.login(ctx)
}

// Logout forgets the token in memory and in the store.
func (a *Authenticator) Logout(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.token = nil
	if err := a.cfg.Store.DeleteToken(ctx, a.cfg.Environment); err != nil {
		return fmt.Errorf("oracle auth: clear stored token: %w", err)
	}
	return nil
}

// Invalidate marks the current access token expired so the next Token call
// refreshes it.
func (a *Authenticator) Invalidate(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.token == nil {
		return
	}
	expired := *a.token
	expired.Expiry = a.cfg.Now().Add(-time.Second)
	a.token = &expired
	if err := a.cfg.Store.SaveToken(ctx, a.cfg.Environment, &expired); err != nil {
		a.logger.Warn("persist invalidated token failed", "error", err)
	}
}

// Status reports the stored token state without refreshing or logging in.
func (a *Authenticator) Status(ctx context.Context) (TokenStatus, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	status := TokenStatus{Environment: a.cfg.Environment}
	tok := a.token
	if tok == nil {
		stored, found, err := a.cfg.Store.LoadToken(ctx, a.cfg.Environment)
		if err != nil {
			return status, fmt.Errorf("oracle auth: load stored token: %w", err)
		}
		if found {
			tok = stored
		}
	}
	if tok == nil {
		return status, nil
	}
	status.Authenticated = a.valid(tok)
	status.Expiry = tok.Expiry
	status.HasRefreshToken = tok.RefreshToken != ""
	return status, nil
}

func (a *Authenticator) valid(tok *oauth2.Token) bool {
	if tok == nil || tok.AccessToken == "" {
		return false
	}
	if tok.Expiry.IsZero() {
		return true
	}
	return a.cfg.Now().Add(a.cfg.ExpiryBuffer).Before(tok.Expiry)
}

func (a *Authenticator) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, a.cfg.HTTPClient)
}

func (a *Authenticator) refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	a.logger.Info("refreshing oracle token")
	src := a.oauth.TokenSource(a.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("oracle auth: refresh token: %w", err)
	}
	a.remember(ctx, tok)
	return tok, nil
}

func (a *Authenticator) login(ctx context.Context) (*oauth2.Token, error) {
	verifier, err := newCodeVerifier()
	if err != nil {
		return nil, err
	}
	state := uuid.NewString()

	callback, err := startCallbackServer(a.cfg.RedirectURL, state)
	if err != nil {
		return nil, tool.NewToolError(tool.ToolErrorCodeAuthRequired, "start OAuth callback listener", false, err)
	}
	defer callback.Close()

	authURL := a.oauth.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
	a.logger.Info("starting interactive oracle login")
	_, _ = fmt.Fprintf(a.cfg.Prompt, "Sign in to Oracle (%s) in your browser:\n%s\n", a.cfg.Environment, authURL)
	if err := a.cfg.OpenBrowser(authURL); err != nil {
		a.logger.Warn("open browser failed", "error", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, a.cfg.LoginTimeout)
	defer cancel()
	code, err := callback.Wait(waitCtx)
	if err != nil {
		return nil, tool.NewToolError(tool.ToolErrorCodeAuthRequired, "oracle login did not complete", false, err)
	}

	tok, err := a.oauth.Exchange(a.clientContext(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, tool.NewToolError(tool.ToolErrorCodeAuthRequired, "exchange authorization code", false, err)
	}
	a.remember(ctx, tok)
	a.logger.Info("oracle login succeeded", "expiry", tok.Expiry)
	return tok, nil
}

func (a *Authenticator) remember(ctx context.Context, tok *oauth2.Token) {
	a.token = tok
	if err := a.cfg.Store.SaveToken(ctx, a.cfg.Environment, tok); err != nil {
		a.logger.Warn("persist token failed", "error", err)
	}
}
