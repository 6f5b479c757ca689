// Package apiclient is the single HTTP client every component uses to reach
// the tournament backend.  It owns the base URL, bearer token injection,
// request/response logging, outbound rate limiting and the 401 policy:
// refresh the access token once, retry the request once, and clear the
// session when either step fails.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const refreshPath = "/accounts/token/refresh/"

// maxBody bounds how much of a backend response is read into memory.
const maxBody = 8 << 20

// Tokens is the client's view of a session.  Implementations must treat an
// empty token as "not logged in".
type Tokens interface {
	AccessToken(ctx context.Context) (string, error)
	RefreshToken(ctx context.Context) (string, error)
	// UpdateTokens stores a refreshed access token.  An empty refresh keeps
	// the current refresh token.
	UpdateTokens(ctx context.Context, access, refresh string) error
	// Clear destroys the session.
	Clear(ctx context.Context) error
}

// Options configure a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	RPS        float64 // <= 0 disables outbound rate limiting
	Burst      int
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client talks JSON to the backend.  The zero value is not usable; build one
// with New and derive per-session clients with WithTokens.
type Client struct {
	base    string
	http    *http.Client
	limiter *rate.Limiter
	log     *zap.Logger
	tokens  Tokens
}

func New(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	var lim *rate.Limiter
	if opts.RPS > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(opts.RPS), burst)
	}
	return &Client{
		base:    strings.TrimRight(opts.BaseURL, "/"),
		http:    hc,
		limiter: lim,
		log:     log.Named("apiclient"),
	}
}

// WithTokens returns a client bound to one session.  The HTTP transport and
// the rate limiter are shared with the parent.
func (c *Client) WithTokens(t Tokens) *Client {
	cp := *c
	cp.tokens = t
	return &cp
}

func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, nil, body, out)
}

func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPut, path, nil, body, out)
}

// Do sends one request.  body is JSON-encoded when non-nil and out receives
// the decoded JSON response when non-nil.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		payload = b
	}
	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	access, err := c.accessToken(ctx)
	if err != nil {
		return err
	}
	status, respBody, err := c.send(ctx, method, target, payload, access)
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized && c.tokens != nil && access != "" {
		fresh, rerr := c.refresh(ctx)
		if rerr != nil {
			c.forceLogout(ctx, "refresh failed", rerr)
			return &Error{Kind: KindUnauthenticated, Status: http.StatusUnauthorized,
				Message: "session expired, please log in again", Err: errors.Join(ErrSessionExpired, rerr)}
		}
		status, respBody, err = c.send(ctx, method, target, payload, fresh)
		if err != nil {
			return err
		}
		if status == http.StatusUnauthorized {
			c.forceLogout(ctx, "unauthorized after refresh", nil)
			return &Error{Kind: KindUnauthenticated, Status: status, Payload: respBody,
				Message: "session expired, please log in again", Err: ErrSessionExpired}
		}
	}

	if status < 200 || status >= 300 {
		return &Error{Kind: classify(status), Status: status, Message: messageFrom(respBody, status), Payload: respBody}
	}
	if out != nil && len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return &Error{Kind: KindServer, Status: status, Message: "malformed response", Payload: respBody, Err: err}
		}
	}
	return nil
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	if c.tokens == nil {
		return "", nil
	}
	tok, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return "", fmt.Errorf("load access token: %w", err)
	}
	return tok, nil
}

func (c *Client) send(ctx context.Context, method, target string, payload []byte, access string) (int, []byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, nil, &Error{Kind: KindNetwork, Message: "request cancelled", Err: err}
		}
	}
	var rdr io.Reader
	if payload != nil {
		rdr = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rdr)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("backend request failed", zap.String("method", method), zap.String("url", target),
			zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return 0, nil, &Error{Kind: KindNetwork, Message: "could not reach the server", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return 0, nil, &Error{Kind: KindNetwork, Status: resp.StatusCode, Message: "response interrupted", Err: err}
	}
	c.log.Debug("backend request", zap.String("method", method), zap.String("url", target),
		zap.Int("status", resp.StatusCode), zap.Int("bytes", len(body)), zap.Duration("elapsed", time.Since(start)))
	return resp.StatusCode, body, nil
}

type refreshReq struct {
	Refresh string `json:"refresh"`
}

type refreshResp struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// refresh exchanges the session's refresh token for a new access token.
func (c *Client) refresh(ctx context.Context) (string, error) {
	rt, err := c.tokens.RefreshToken(ctx)
	if err != nil {
		return "", fmt.Errorf("load refresh token: %w", err)
	}
	if rt == "" {
		return "", errors.New("no refresh token")
	}
	payload, _ := json.Marshal(refreshReq{Refresh: rt})
	status, body, err := c.send(ctx, http.MethodPost, c.base+refreshPath, payload, "")
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", &Error{Kind: classify(status), Status: status, Message: messageFrom(body, status), Payload: body}
	}
	var out refreshResp
	if err := json.Unmarshal(body, &out); err != nil || out.Access == "" {
		return "", &Error{Kind: KindServer, Status: status, Message: "refresh response without access token", Payload: body, Err: err}
	}
	if err := c.tokens.UpdateTokens(ctx, out.Access, out.Refresh); err != nil {
		return "", fmt.Errorf("store refreshed token: %w", err)
	}
	c.log.Debug("access token refreshed")
	return out.Access, nil
}

func (c *Client) forceLogout(ctx context.Context, reason string, cause error) {
	c.log.Info("forcing logout", zap.String("reason", reason), zap.Error(cause))
	if err := c.tokens.Clear(ctx); err != nil {
		c.log.Warn("clear session failed", zap.Error(err))
	}
}
