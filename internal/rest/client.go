package rest

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/divyansshhh/jupyterlab/internal/infrastructure/logging"
	"github.com/divyansshhh/jupyterlab/internal/infrastructure/monitoring"
	"github.com/divyansshhh/jupyterlab/internal/infrastructure/resilience"
	"github.com/divyansshhh/jupyterlab/internal/shared/types"
)

const sessionsPath = "/api/sessions"

// Config configures a session service client.
type Config struct {
	BaseURL        string
	Token          string
	Timeout        time.Duration
	RetryMax       int
	RetryWaitMin   time.Duration
	RetryWaitMax   time.Duration
	RateLimitRPS   float64
	DisableBreaker bool
}

// Client performs HTTP calls against the session service and
// normalizes responses into canonical session records.
type Client struct {
	resty   *resty.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
	log     *logging.Logger
	metrics *monitoring.Metrics
	base    string
}

// New creates a session service client with retry, rate limiting, and
// circuit breaker protection.
func New(cfg Config, log *logging.Logger, metrics *monitoring.Metrics) *Client {
	if log == nil {
		log = logging.NewNop()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.RetryMax
	retryClient.RetryWaitMin = cfg.RetryWaitMin
	retryClient.RetryWaitMax = cfg.RetryWaitMax
	retryClient.Logger = nil // Disable logging

	restyClient := resty.New()
	restyClient.
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", "jupyterlab-go/1.0")

	if cfg.Token != "" {
		restyClient.SetHeader("Authorization", "token "+cfg.Token)
	}
	restyClient.SetTransport(retryClient.HTTPClient.Transport)

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), int(cfg.RateLimitRPS))
	}

	var breaker *resilience.Breaker
	if !cfg.DisableBreaker {
		breaker = resilience.New("sessions", resilience.Settings{
			MaxRequests: 3,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts resilience.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		})
	}

	return &Client{
		resty:   restyClient,
		limiter: limiter,
		breaker: breaker,
		log:     log.Component("rest"),
		metrics: metrics,
		base:    cfg.BaseURL,
	}
}

// Endpoint returns the base URL identifying this service instance.
func (c *Client) Endpoint() string {
	return c.base
}

// List fetches all running sessions.
func (c *Client) List(ctx context.Context) ([]types.SessionRecord, error) {
	resp, err := c.do(ctx, "list", func(r *resty.Request) (*resty.Response, error) {
		return r.Get(sessionsPath)
	})
	if err != nil {
		return nil, err
	}

	var wire []wireSession
	if err := sonic.Unmarshal(resp.Body(), &wire); err != nil {
		return nil, &types.ValidationError{Field: "sessions", Reason: "is not a JSON array"}
	}

	records := make([]types.SessionRecord, 0, len(wire))
	for _, w := range wire {
		rec, err := normalize(w)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// Get fetches a single session by id. A 404 surfaces as ErrNotFound.
func (c *Client) Get(ctx context.Context, id string) (types.SessionRecord, error) {
	resp, err := c.do(ctx, "get", func(r *resty.Request) (*resty.Response, error) {
		return r.Get(sessionsPath + "/" + url.PathEscape(id))
	})
	if err != nil {
		if types.IsNotFound(err) {
			return types.SessionRecord{}, fmt.Errorf("session %s: %w", id, types.ErrNotFound)
		}
		return types.SessionRecord{}, err
	}

	return decodeRecord(resp.Body())
}

// Create starts a new session server-side and returns its record.
func (c *Client) Create(ctx context.Context, opts types.CreateOptions) (types.SessionRecord, error) {
	body := wireSession{
		Path: opts.Path,
		Type: opts.Type,
		Name: opts.Name,
	}
	if opts.KernelName != "" || opts.KernelID != "" {
		body.Kernel = &wireKernel{ID: opts.KernelID, Name: opts.KernelName}
	}

	resp, err := c.do(ctx, "create", func(r *resty.Request) (*resty.Response, error) {
		return r.SetHeader("Content-Type", "application/json").
			SetBody(body).
			Post(sessionsPath)
	})
	if err != nil {
		return types.SessionRecord{}, err
	}

	return decodeRecord(resp.Body())
}

// Patch applies a partial update to a session and returns the echoed
// authoritative record.
func (c *Client) Patch(ctx context.Context, id string, body types.PatchBody) (types.SessionRecord, error) {
	resp, err := c.do(ctx, "patch", func(r *resty.Request) (*resty.Response, error) {
		return r.SetHeader("Content-Type", "application/json").
			SetBody(body).
			Patch(sessionsPath + "/" + url.PathEscape(id))
	})
	if err != nil {
		return types.SessionRecord{}, err
	}

	return decodeRecord(resp.Body())
}

// Delete requests server-side deletion of a session. A 404 is tolerated
// as "already gone"; a 410 means the kernel was deleted out from under
// a session record that still exists, which is a hard error. The 404
// is accepted inside the protected call so already-gone deletes never
// count as breaker failures.
func (c *Client) Delete(ctx context.Context, id string) error {
	resp, err := c.do(ctx, "delete", func(r *resty.Request) (*resty.Response, error) {
		return r.Delete(sessionsPath + "/" + url.PathEscape(id))
	}, 404)
	if err != nil {
		var te *types.TransportError
		if errors.As(err, &te) && te.StatusCode == 410 {
			return fmt.Errorf("session %s: kernel was deleted but the session record remains: %w", id, err)
		}
		return err
	}

	if resp.StatusCode() == 404 {
		c.log.Warn("session already deleted", zap.String("id", id))
	}
	return nil
}

// do runs one request through the rate limiter and circuit breaker,
// converting any non-2xx response into a TransportError. Tolerated
// status codes pass through as successful responses and are invisible
// to the breaker and the error counters.
func (c *Client) do(ctx context.Context, op string, fn func(*resty.Request) (*resty.Response, error), tolerate ...int) (*resty.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	c.metrics.ObserveCall(op)

	var resp *resty.Response
	attempt := func() error {
		req := c.resty.R().
			SetContext(ctx).
			SetHeader("X-Request-Id", uuid.NewString())

		var err error
		resp, err = fn(req)
		if err != nil {
			return &types.TransportError{Op: op, URL: c.base, Err: err}
		}
		if resp.IsError() {
			for _, code := range tolerate {
				if resp.StatusCode() == code {
					return nil
				}
			}
			return &types.TransportError{
				Op:         op,
				URL:        resp.Request.URL,
				StatusCode: resp.StatusCode(),
				Body:       truncate(resp.String(), 256),
			}
		}
		return nil
	}

	var err error
	if c.breaker != nil {
		err = c.breaker.Do(attempt)
	} else {
		err = attempt()
	}
	if err != nil {
		c.metrics.ObserveCallError(op)
		c.log.Debug("session service call failed", zap.String("op", op), zap.Error(err))
		return nil, err
	}
	return resp, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
