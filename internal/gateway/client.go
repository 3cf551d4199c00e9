// Package gateway issues requests to the storefront backend and normalises
// its responses. Typed gateways per resource sit on top of Client.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/pkg/logger"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// AuthContext supplies the bearer credential for a request. A false second
// value means the request is sent anonymously.
type AuthContext interface {
	Token() (string, bool)
}

// Anonymous never has a credential.
type Anonymous struct{}

func (Anonymous) Token() (string, bool) { return "", false }

type Config struct {
	BaseURL string
	Timeout time.Duration

	// Breaker settings. Zero values take the defaults below.
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// Client is safe for concurrent use and is shared by every workspace.
type Client struct {
	base    *url.URL
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*response]
	log     *logger.Logger
}

type response struct {
	status      int
	contentType string
	body        []byte
}

func New(cfg Config, log *logger.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid backend url: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}

	c := &Client{
		base: base,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		log: log.Named("gateway"),
	}

	failures := cfg.BreakerFailures
	c.breaker = gobreaker.NewCircuitBreaker[*response](gobreaker.Settings{
		Name:        base.Host,
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn(context.Background(), "backend circuit breaker state changed",
				zap.String("backend", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: breakerSuccess,
	})
	return c, nil
}

// breakerSuccess counts only transport failures and 5xx responses against
// the backend. Cancelled callers and business errors do not trip it.
func breakerSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode < http.StatusInternalServerError
	}
	return false
}

func (c *Client) Get(ctx context.Context, auth AuthContext, path string, query url.Values, out any) error {
	return c.do(ctx, auth, http.MethodGet, path, query, nil, "", out)
}

func (c *Client) Post(ctx context.Context, auth AuthContext, path string, body, out any) error {
	return c.doJSON(ctx, auth, http.MethodPost, path, body, out)
}

func (c *Client) Put(ctx context.Context, auth AuthContext, path string, body, out any) error {
	return c.doJSON(ctx, auth, http.MethodPut, path, body, out)
}

func (c *Client) Patch(ctx context.Context, auth AuthContext, path string, body, out any) error {
	return c.doJSON(ctx, auth, http.MethodPatch, path, body, out)
}

func (c *Client) Delete(ctx context.Context, auth AuthContext, path string, out any) error {
	return c.do(ctx, auth, http.MethodDelete, path, nil, nil, "", out)
}

// PostForm sends an application/x-www-form-urlencoded body.
func (c *Client) PostForm(ctx context.Context, auth AuthContext, path string, form url.Values, out any) error {
	return c.do(ctx, auth, http.MethodPost, path, nil, []byte(form.Encode()), "application/x-www-form-urlencoded", out)
}

func (c *Client) doJSON(ctx context.Context, auth AuthContext, method, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", method, path, err)
	}
	return c.do(ctx, auth, method, path, nil, payload, "application/json", out)
}

// do issues the request. On a 2xx response out is filled only when the body
// is non-empty JSON; anything else leaves out untouched and returns nil.
func (c *Client) do(ctx context.Context, auth AuthContext, method, path string, query url.Values, body []byte, contentType string, out any) error {
	u := c.resolve(path, query)

	res, err := c.breaker.Execute(func() (*response, error) {
		return c.roundTrip(ctx, auth, method, u, body, contentType)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s %s: %w", method, u, ErrBackendUnavailable)
	}
	if err != nil {
		var he *HTTPError
		if errors.As(err, &he) {
			c.log.Debug(ctx, "backend returned error",
				zap.String("method", method),
				zap.String("url", he.URL),
				zap.Int("status", he.StatusCode),
				zap.String("code", string(he.Code)),
			)
		}
		return err
	}

	if out == nil || !isJSON(res.contentType) || len(bytes.TrimSpace(res.body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(res.body, out); err != nil {
		c.log.Warn(ctx, "backend sent unparseable json",
			zap.String("method", method),
			zap.String("url", u),
			zap.Error(err),
		)
		return nil
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, auth AuthContext, method, u string, body []byte, contentType string) (*response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if auth != nil {
		if token, ok := auth.Token(); ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	if id := logger.RequestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, u, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s %s: %w", method, u, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newHTTPError(resp, raw)
	}
	return &response{
		status:      resp.StatusCode,
		contentType: resp.Header.Get("Content-Type"),
		body:        raw,
	}, nil
}

func (c *Client) resolve(path string, query url.Values) string {
	u := *c.base
	u.Path = c.base.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func isJSON(contentType string) bool {
	if contentType == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.Contains(contentType, "application/json")
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}
