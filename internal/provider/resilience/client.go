package resilience

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// Client errors.
var (
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// UpstreamError is a retryable upstream status (5xx or 429).
type UpstreamError struct {
	StatusCode int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// ClientConfig holds configuration for the resilient HTTP client.
type ClientConfig struct {
	// Name identifies the upstream provider.
	Name string

	// Timeout bounds each individual attempt (default: 10 seconds).
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt. Zero
	// disables retries; a negative value selects the default of 2.
	MaxRetries int

	// InitialInterval and MaxInterval shape the exponential backoff
	// (defaults: 200ms, 2s).
	InitialInterval time.Duration
	MaxInterval     time.Duration

	// Breaker overrides DefaultBreakerConfig(Name).
	Breaker *BreakerConfig

	// Transport is the underlying round tripper (default:
	// http.DefaultTransport).
	Transport http.RoundTripper

	// Registry receives success and failure reports when set.
	Registry *Registry

	Logger zerolog.Logger
}

// DefaultClientConfig returns the defaults for a named provider.
func DefaultClientConfig(name string) ClientConfig {
	breaker := DefaultBreakerConfig(name)
	return ClientConfig{
		Name:            name,
		Timeout:         10 * time.Second,
		MaxRetries:      2,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Breaker:         &breaker,
	}
}

// Client executes HTTP requests through a circuit breaker with bounded
// exponential-backoff retries.
type Client struct {
	name       string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	cfg        ClientConfig
	registry   *Registry
	logger     zerolog.Logger
}

// NewClient creates a new resilient client and registers it with
// cfg.Registry when set.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 2
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 200 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 2 * time.Second
	}

	breakerCfg := DefaultBreakerConfig(cfg.Name)
	if cfg.Breaker != nil {
		breakerCfg = *cfg.Breaker
	}
	breakerCfg.Logger = cfg.Logger

	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	c := &Client{
		name:       cfg.Name,
		httpClient: &http.Client{Timeout: cfg.Timeout, Transport: transport},
		breaker:    newBreaker[*http.Response](breakerCfg), //nolint:bodyclose // type param, not response
		cfg:        cfg,
		registry:   cfg.Registry,
		logger:     cfg.Logger,
	}
	if c.registry != nil {
		c.registry.Register(c)
	}
	return c
}

// Name returns the provider name.
func (c *Client) Name() string {
	return c.name
}

// State returns the current breaker state.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

// Counts returns the current breaker counts.
func (c *Client) Counts() gobreaker.Counts {
	return c.breaker.Counts()
}

// Do executes req. Network errors, 429 and 5xx responses are retried; other
// statuses are returned to the caller as-is. When retries are exhausted on
// an upstream status the error is an *UpstreamError. A cancelled request
// context stops retrying immediately.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.InitialInterval
	bo.MaxInterval = c.cfg.MaxInterval
	bo.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(c.cfg.MaxRetries)), ctx)

	var resp *http.Response
	operation := func() error {
		r, err := c.breaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // returned to caller
			r, err := c.httpClient.Do(req.Clone(ctx))
			if err != nil {
				return nil, err
			}
			if r.StatusCode >= http.StatusInternalServerError || r.StatusCode == http.StatusTooManyRequests {
				drain(r)
				return nil, &UpstreamError{StatusCode: r.StatusCode}
			}
			return r, nil
		})

		switch {
		case err == nil:
			resp = r
			return nil
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return backoff.Permanent(fmt.Errorf("%s: %w", c.name, ErrCircuitOpen))
		case ctx.Err() != nil:
			return backoff.Permanent(ctx.Err())
		default:
			return err
		}
	}

	notify := func(err error, wait time.Duration) {
		c.logger.Debug().
			Err(err).
			Str("provider", c.name).
			Dur("retry_in", wait).
			Msg("retrying provider request")
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		if ctx.Err() != nil {
			// Cancellation is not a provider failure.
			return nil, ctx.Err()
		}
		c.record(err)
		return nil, err
	}

	c.record(nil)
	return resp, nil
}

func (c *Client) record(err error) {
	if c.registry == nil {
		return
	}
	if err != nil {
		c.registry.RecordFailure(c.name, err)
		return
	}
	c.registry.RecordSuccess(c.name)
}

// drain discards and closes a response body so the connection can be reused.
func drain(r *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(r.Body, 64<<10)) //nolint:errcheck // best effort
	_ = r.Body.Close()
}
