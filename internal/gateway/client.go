package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	apperrors "github.com/rafflewave/lottosync/pkg/errors"
	"github.com/rafflewave/lottosync/pkg/metrics"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultRetryMax     = 3
	defaultRetryWaitMin = 500 * time.Millisecond
	defaultRetryWaitMax = 8 * time.Second
	idempotencyHeader   = "Idempotency-Key"
)

// TokenSource supplies the bearer token for outbound calls. Session and
// refresh mechanics live behind this boundary.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Config captures connection parameters for the upstream lottery API.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	RetryMax  int
	UserAgent string
}

// Client wraps the upstream REST service. Every failure is normalized into
// the pkg/errors taxonomy before leaving this package; callers never branch
// on raw transport details.
type Client struct {
	baseURL   string
	http      *http.Client
	tokens    TokenSource
	userAgent string
	log       *zap.Logger
}

// NewClient constructs a gateway client with bounded retries for transient
// failures. 4xx responses, including 429, are never retried: they are
// authoritative semantic answers.
func NewClient(cfg Config, tokens TokenSource, log *zap.Logger) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("gateway: base url is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.RetryMax
	if retryClient.RetryMax <= 0 {
		retryClient.RetryMax = defaultRetryMax
	}
	retryClient.RetryWaitMin = defaultRetryWaitMin
	retryClient.RetryWaitMax = defaultRetryWaitMax
	retryClient.Logger = nil
	retryClient.CheckRetry = retryPolicy

	httpClient := retryClient.StandardClient()
	httpClient.Timeout = cfg.Timeout
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = defaultTimeout
	}

	return &Client{
		baseURL:   baseURL,
		http:      httpClient,
		tokens:    tokens,
		userAgent: strings.TrimSpace(cfg.UserAgent),
		log:       log,
	}, nil
}

// retryPolicy retries connection errors and 5xx (except 501). 429 is left to
// the caller so rate limiting can be surfaced with its metadata.
func retryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	if resp == nil {
		return true, nil
	}
	if resp.StatusCode >= http.StatusInternalServerError && resp.StatusCode != http.StatusNotImplemented {
		return true, nil
	}
	return false, nil
}

// callOptions carries per-request extras.
type callOptions struct {
	idempotencyKey string
	query          url.Values
}

type callOption func(*callOptions)

func withIdempotencyKey(key string) callOption {
	return func(o *callOptions) { o.idempotencyKey = key }
}

func withQuery(query url.Values) callOption {
	return func(o *callOptions) { o.query = query }
}

// apiError mirrors the upstream error envelope.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// do issues one request and decodes a 2xx JSON body into out (when non-nil).
func (c *Client) do(ctx context.Context, operation, method, path string, body any, out any, opts ...callOption) error {
	options := callOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	endpoint := c.baseURL + path
	if len(options.query) > 0 {
		endpoint += "?" + options.query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return apperrors.Wrap(err, "encode request body")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return apperrors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if options.idempotencyKey != "" {
		req.Header.Set(idempotencyHeader, options.idempotencyKey)
	}
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return apperrors.ErrUnauthorized.WithInternal(err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.GatewayLatency.WithLabelValues(operation, "error").Observe(time.Since(started).Seconds())
		if ctx.Err() != nil {
			return apperrors.ErrTransient.WithInternal(ctx.Err())
		}
		return apperrors.ErrTransient.WithInternal(err)
	}
	defer resp.Body.Close()

	metrics.GatewayLatency.WithLabelValues(operation, strconv.Itoa(resp.StatusCode)).Observe(time.Since(started).Seconds())

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return apperrors.ErrTransient.WithInternal(fmt.Errorf("decode %s response: %w", operation, err))
		}
		return nil
	}

	return c.normalizeFailure(operation, resp)
}

// normalizeFailure maps a non-2xx response into the error taxonomy.
func (c *Client) normalizeFailure(operation string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var envelope apiError
	_ = json.Unmarshal(raw, &envelope)
	message := envelope.Message
	if message == "" {
		message = envelope.Error
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return rateLimitFromHeaders(resp)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return apperrors.ErrTransient.WithInternal(
			fmt.Errorf("%s: upstream %d: %s", operation, resp.StatusCode, message))
	}

	if dup := semanticDuplicate(envelope.Code, message); dup != nil {
		return dup
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return apperrors.ErrNotFound.WithInternal(fmt.Errorf("%s: %s", operation, message))
	case http.StatusUnauthorized, http.StatusForbidden:
		return apperrors.ErrUnauthorized.WithInternal(fmt.Errorf("%s: %s", operation, message))
	}

	code := envelope.Code
	if code == "" {
		code = apperrors.ErrBadRequest.Code
	}
	if message == "" {
		message = apperrors.ErrBadRequest.Message
	}
	return apperrors.New(code, message, resp.StatusCode)
}

// semanticDuplicate recognizes "already in the desired state" answers. The
// machine-readable code is authoritative; the prose match is a compatibility
// shim for backends that still answer with bare text.
func semanticDuplicate(code, message string) *apperrors.AppError {
	switch code {
	case apperrors.ErrAlreadyFavorite.Code:
		return apperrors.ErrAlreadyFavorite
	case apperrors.ErrNotFavorite.Code:
		return apperrors.ErrNotFavorite
	}

	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "already a favorite"), strings.Contains(lower, "already in favorites"):
		return apperrors.ErrAlreadyFavorite
	case strings.Contains(lower, "not a favorite"), strings.Contains(lower, "not in favorites"):
		return apperrors.ErrNotFavorite
	}
	return nil
}

func rateLimitFromHeaders(resp *http.Response) error {
	rl := &apperrors.RateLimitError{}
	rl.Limit, _ = strconv.Atoi(resp.Header.Get("X-RateLimit-Limit"))
	rl.Remaining, _ = strconv.Atoi(resp.Header.Get("X-RateLimit-Remaining"))

	if reset := resp.Header.Get("X-RateLimit-Reset"); reset != "" {
		if epoch, err := strconv.ParseInt(reset, 10, 64); err == nil {
			rl.Reset = time.Unix(epoch, 0)
		}
	}
	if rl.Reset.IsZero() {
		if after := resp.Header.Get("Retry-After"); after != "" {
			if seconds, err := strconv.Atoi(after); err == nil {
				rl.Reset = time.Now().Add(time.Duration(seconds) * time.Second)
			}
		}
	}
	return rl
}
