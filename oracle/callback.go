package oracle

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	callbackSuccessBody = "Authorization successful! You can close this window."
	callbackNoCodeBody  = "Authorization failed! No code received."
)

type callbackResult struct {
	code string
	err  error
}

// callbackServer receives the OAuth redirect on the loopback redirect URL.
type callbackServer struct {
	srv    *http.Server
	ln     net.Listener
	state  string
	result chan callbackResult
}

func startCallbackServer(redirectURL, state string) (*callbackServer, error) {
	u, err := url.Parse(redirectURL)
	if err != nil {
		return nil, fmt.Errorf("parse redirect url: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("redirect url %q has no host", redirectURL)
	}
	path := u.Path
	if path == "" {
		path = "/"
	}

	ln, err := net.Listen("tcp", u.Host)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", u.Host, err)
	}

	cb := &callbackServer{
		ln:     ln,
		state:  state,
		result: make(chan callbackResult, 1),
	}
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Get(path, cb.handleCallback)
	cb.srv = &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		_ = cb.srv.Serve(ln)
	}()
	return cb, nil
}

// Addr returns the listening address.
func (c *callbackServer) Addr() string {
	return c.ln.Addr().String()
}

func (c *callbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if oauthErr := query.Get("error"); oauthErr != "" {
		desc := query.Get("error_description")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = fmt.Fprintf(w, "Authorization failed! %s %s", oauthErr, desc)
		c.deliver(callbackResult{err: fmt.Errorf("authorization denied: %s %s", oauthErr, desc)})
		return
	}
	if c.state != "" && query.Get("state") != c.state {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("Authorization failed! State mismatch."))
		return
	}
	code := query.Get("code")
	if code == "" {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(callbackNoCodeBody))
		return
	}
	_, _ = w.Write([]byte(callbackSuccessBody))
	c.deliver(callbackResult{code: code})
}

func (c *callbackServer) deliver(res callbackResult) {
	select {
	case c.result <- res:
	default:
	}
}

// Wait blocks until the redirect delivers a code or ctx ends.
func (c *callbackServer) Wait(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", errors.New("timed out waiting for authorization callback")
		}
		return "", ctx.Err()
	case res := <-c.result:
		return res.code, res.err
	}
}

// Close shuts the listener down.
func (c *callbackServer) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return c.srv.Shutdown(ctx)
}
