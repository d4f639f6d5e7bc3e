// Package provider talks to the payment provider's REST API: form-encoded
// requests, JSON responses and a bearer secret key.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/pkg/circuitbreaker"
	"github.com/fjod/storefront/pkg/logger"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://api.stripe.com"

	maxResponseBytes = 8 << 20
)

type Config struct {
	BaseURL       string                  `mapstructure:"base_url"`
	SecretKey     string                  `mapstructure:"secret_key"`
	Timeout       time.Duration           `mapstructure:"timeout"`
	MaxRetries    uint                    `mapstructure:"max_retries"`
	RetryInterval time.Duration           `mapstructure:"retry_interval"`
	MaxElapsed    time.Duration           `mapstructure:"max_elapsed"`
	PageSize      int                     `mapstructure:"page_size"`
	Breaker       circuitbreaker.Settings `mapstructure:"breaker"`
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.RetryInterval == 0 {
		c.RetryInterval = 500 * time.Millisecond
	}
	if c.MaxElapsed == 0 {
		c.MaxElapsed = 20 * time.Second
	}
	if c.PageSize <= 0 || c.PageSize > 100 {
		c.PageSize = 100
	}
	return c
}

type Client struct {
	http    *http.Client
	cfg     Config
	breaker *gobreaker.CircuitBreaker[[]byte]
	log     *zap.Logger
}

func New(cfg Config, log *zap.Logger) (*Client, error) {
	if cfg.SecretKey == "" {
		return nil, ErrMissingKey
	}
	if log == nil {
		log = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	c := &Client{
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		cfg: cfg,
		log: log.Named("provider"),
	}
	c.breaker = circuitbreaker.New[[]byte]("payment-provider", cfg.Breaker, countsAsSuccess, c.log)
	return c, nil
}

// countsAsSuccess keeps request-level rejections and caller cancellations
// from tripping the breaker.
func countsAsSuccess(err error) bool {
	return err == nil ||
		errors.Is(err, domain.ErrProviderRejected) ||
		errors.Is(err, context.Canceled)
}

// call performs one logical request. Transient failures are retried with
// exponential backoff inside a single breaker execution.
func (c *Client) call(ctx context.Context, method, path string, form url.Values, idempotencyKey string, out any) error {
	log := logger.For(ctx, c.log)
	body, err := c.breaker.Execute(func() ([]byte, error) {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = c.cfg.RetryInterval
		return backoff.Retry(ctx, func() ([]byte, error) {
			return c.attempt(ctx, method, path, form, idempotencyKey)
		},
			backoff.WithBackOff(b),
			backoff.WithMaxTries(c.cfg.MaxRetries+1),
			backoff.WithMaxElapsedTime(c.cfg.MaxElapsed),
			backoff.WithNotify(func(err error, next time.Duration) {
				log.Warn("provider request failed, retrying",
					zap.String("method", method),
					zap.String("path", path),
					zap.Duration("backoff", next),
					zap.Error(err))
			}),
		)
	})
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) attempt(ctx context.Context, method, path string, form url.Values, idempotencyKey string) ([]byte, error) {
	target := strings.TrimSuffix(c.cfg.BaseURL, "/") + path
	var reqBody io.Reader
	if method == http.MethodGet {
		if len(form) > 0 {
			target += "?" + form.Encode()
		}
	} else {
		reqBody = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.SecretKey)
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return data, nil
	}

	apiErr := decodeAPIError(resp, data)
	if retryable(resp.StatusCode) {
		return nil, apiErr
	}
	return nil, backoff.Permanent(apiErr)
}

func decodeAPIError(resp *http.Response, data []byte) *APIError {
	var envelope struct {
		Error *APIError `json:"error"`
	}
	apiErr := &APIError{}
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Error != nil {
		apiErr = envelope.Error
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	apiErr.StatusCode = resp.StatusCode
	apiErr.RequestID = resp.Header.Get("Request-Id")
	return apiErr
}

type page[T any] struct {
	Data    []T  `json:"data"`
	HasMore bool `json:"has_more"`
}

// listAll follows starting_after cursors until the provider reports no more
// pages.
func listAll[T any](ctx context.Context, c *Client, path string, params url.Values, id func(T) string) ([]T, error) {
	params.Set("limit", fmt.Sprint(c.cfg.PageSize))
	var all []T
	for {
		var p page[T]
		if err := c.call(ctx, http.MethodGet, path, params, "", &p); err != nil {
			return nil, err
		}
		all = append(all, p.Data...)
		if !p.HasMore || len(p.Data) == 0 {
			return all, nil
		}
		params.Set("starting_after", id(p.Data[len(p.Data)-1]))
	}
}
