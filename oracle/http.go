package oracle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/petal-labs/mcp-oracle-scm/tool"
)

const maxErrorBodyBytes = 2048

// TokenProvider supplies bearer tokens for Oracle requests.
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
	// Invalidate forgets the current access token after Oracle rejected it.
	Invalidate(ctx context.Context)
}

type httpClientPool struct {
	mu      sync.Mutex
	clients map[time.Duration]*http.Client
}

var sharedHTTPClientPool = &httpClientPool{
	clients: map[time.Duration]*http.Client{},
}

// HTTPClient returns a shared client with the given overall request timeout.
func HTTPClient(timeout time.Duration) *http.Client {
	return sharedHTTPClientPool.client(timeout)
}

func (p *httpClientPool) client(timeout time.Duration) *http.Client {
	p.mu.Lock()
	defer p.mu.Unlock()

	if existing, ok := p.clients[timeout]; ok {
		return existing
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 60 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	client := &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
	p.clients[timeout] = client
	return client
}

// requester sends authenticated requests with retry, re-authentication on
// 401, and upstream observations.
type requester struct {
	client *http.Client
	tokens TokenProvider
	retry  RetryPolicy
	logger *slog.Logger
	// classify turns a non-2xx response into an error. Nil means statusError.
	classify func(operation string, status int, body []byte) *tool.ToolError
}

type httpResult struct {
	status int
	header http.Header
	body   []byte
}

type requestBuilder func(ctx context.Context) (*http.Request, error)

func (r *requester) do(ctx context.Context, operation string, build requestBuilder) (httpResult, error) {
	started := time.Now()
	reauthenticated := false
	var lastStatus int

	result, attempts, err := withRetry(ctx, r.retry, operation, func(ctx context.Context, attempt int) (httpResult, error) {
		for {
			res, err := r.once(ctx, operation, build)
			lastStatus = res.status
			if err != nil {
				return httpResult{}, err
			}
			if res.status == http.StatusUnauthorized && !reauthenticated {
				reauthenticated = true
				r.logger.Warn("oracle rejected token, re-authenticating", "operation", operation)
				r.tokens.Invalidate(ctx)
				continue
			}
			if res.status < 200 || res.status > 299 {
				if r.classify != nil {
					return httpResult{}, r.classify(operation, res.status, res.body)
				}
				return httpResult{}, statusError(operation, res.status, res.body)
			}
			return res, nil
		}
	})

	observation := tool.UpstreamObservation{
		Operation:  operation,
		Attempts:   attempts,
		StatusCode: lastStatus,
		DurationMS: time.Since(started).Milliseconds(),
		Success:    err == nil,
		ErrorCode:  tool.ToolErrorCode(err),
	}
	tool.ActiveObserver().ObserveUpstream(observation)
	if err != nil {
		r.logger.Error("oracle request failed", "operation", operation, "attempts", attempts, "error", err)
		return httpResult{}, err
	}
	r.logger.Debug("oracle request succeeded", "operation", operation, "status", result.status, "duration", time.Since(started))
	return result, nil
}

func (r *requester) once(ctx context.Context, operation string, build requestBuilder) (httpResult, error) {
	token, err := r.tokens.AccessToken(ctx)
	if err != nil {
		return httpResult{}, err
	}
	req, err := build(ctx)
	if err != nil {
		return httpResult{}, tool.NewToolError(tool.ToolErrorCodeInvocationFailed, fmt.Sprintf("%s: build request", operation), false, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := r.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return httpResult{}, ctxErr
		}
		retryable := false
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			retryable = true
		}
		return httpResult{}, tool.NewToolError(tool.ToolErrorCodeTransportFailure, fmt.Sprintf("%s: %v", operation, err), retryable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return httpResult{}, tool.NewToolError(tool.ToolErrorCodeTransportFailure, fmt.Sprintf("%s: read response", operation), true, err)
	}
	return httpResult{status: resp.StatusCode, header: resp.Header, body: body}, nil
}

func statusError(operation string, status int, body []byte) *tool.ToolError {
	retryable := status == http.StatusTooManyRequests || status >= 500
	code := tool.ToolErrorCodeUpstreamFailure
	if status == http.StatusUnauthorized {
		code = tool.ToolErrorCodeAuthRequired
	}
	msg := fmt.Sprintf("%s request failed with status %d: %s", operation, status, truncate(body, maxErrorBodyBytes))
	return tool.WithDetails(tool.NewToolError(code, msg, retryable, nil), map[string]any{"status_code": status})
}

func truncate(body []byte, limit int) string {
	if len(body) <= limit {
		return string(body)
	}
	return string(body[:limit]) + "..."
}
