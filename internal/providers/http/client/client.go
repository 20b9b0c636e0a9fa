package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/tabshell/internal/infrastructure/resilience"
)

// UserAgent is sent with every outbound request.
const UserAgent = "tabshell/1.0 (+https://github.com/GriffinCanCode/tabshell)"

// Options configures a Client.
type Options struct {
	Name         string
	BaseURL      string
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// RateLimit is requests per second; zero means unlimited
	RateLimit float64
	Breaker   resilience.Settings
}

// DefaultOptions returns options suited to a third-party upstream.
func DefaultOptions(name string) Options {
	return Options{
		Name:         name,
		Timeout:      30 * time.Second,
		RetryMax:     2,
		RetryWaitMin: 100 * time.Millisecond,
		RetryWaitMax: 2 * time.Second,
		Breaker: resilience.Settings{
			MaxRequests: 2,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts resilience.Counts) bool {
				return counts.ConsecutiveFailures >= 10 ||
					(counts.Requests >= 20 && float64(counts.TotalFailures)/float64(counts.Requests) > 0.7)
			},
		},
	}
}

// Client wraps resty with rate limiting and a circuit breaker.
type Client struct {
	Resty   *resty.Client
	Limiter *rate.Limiter
	Breaker *resilience.Breaker

	mu sync.RWMutex
}

// StatusError is returned for non-2xx/3xx responses.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.Code)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// New creates a client from opts.
func New(opts Options) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.RetryMax
	retryClient.RetryWaitMin = opts.RetryWaitMin
	retryClient.RetryWaitMax = opts.RetryWaitMax
	retryClient.Logger = nil
	// Hand the final response back instead of a "giving up" error
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	r := resty.NewWithClient(retryClient.StandardClient()).
		SetHeader("User-Agent", UserAgent)
	if opts.Timeout > 0 {
		r.SetTimeout(opts.Timeout)
	}
	if opts.BaseURL != "" {
		r.SetBaseURL(opts.BaseURL)
	}

	settings := opts.Breaker
	if settings.IsSuccessful == nil {
		settings.IsSuccessful = countsAsSuccess
	}

	c := &Client{
		Resty:   r,
		Limiter: rate.NewLimiter(rate.Inf, 0),
		Breaker: resilience.New(opts.Name, settings),
	}
	c.SetRateLimit(opts.RateLimit)
	return c
}

// countsAsSuccess keeps client-side mistakes and caller cancellation from
// tripping the breaker.
func countsAsSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	code := StatusCode(err)
	return code >= 400 && code < 500 && code != http.StatusTooManyRequests
}

// SetRateLimit configures rate limiting (requests per second)
func (c *Client) SetRateLimit(rps float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rps <= 0 {
		c.Limiter = rate.NewLimiter(rate.Inf, 0)
	} else {
		c.Limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
	}
}

// SetTimeout configures the per-request timeout
func (c *Client) SetTimeout(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Resty.SetTimeout(d)
}

// Request waits for the rate limiter and returns a request bound to ctx.
func (c *Client) Request(ctx context.Context) (*resty.Request, error) {
	c.mu.RLock()
	limiter := c.Limiter
	c.mu.RUnlock()

	if err := limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	return c.Resty.R().SetContext(ctx), nil
}

// Do sends the request built by fn through the breaker. Responses outside
// 2xx/3xx come back as *StatusError alongside the response.
func (c *Client) Do(ctx context.Context, fn func(r *resty.Request) (*resty.Response, error)) (*resty.Response, error) {
	req, err := c.Request(ctx)
	if err != nil {
		return nil, err
	}

	var resp *resty.Response
	err = c.Breaker.Execute(ctx, func(context.Context) error {
		var err error
		resp, err = fn(req)
		if err != nil {
			return err
		}
		if resp.IsError() {
			return &StatusError{
				Method: resp.Request.Method,
				URL:    resp.Request.URL,
				Code:   resp.StatusCode(),
				Body:   resp.String(),
			}
		}
		return nil
	})
	return resp, err
}

// BreakerState returns the current circuit breaker state
func (c *Client) BreakerState() resilience.State {
	return c.Breaker.State()
}
