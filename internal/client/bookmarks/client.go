// Package bookmarks is the shell's client for the bookmark API.
package bookmarks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/tabshell/internal/domain/bookmark"
	"github.com/GriffinCanCode/tabshell/internal/infrastructure/logging"
	"github.com/GriffinCanCode/tabshell/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/tabshell/internal/providers/http/client"
)

// ErrUnavailable wraps every transient failure: transport errors, timeouts,
// an open breaker and 5xx responses.
var ErrUnavailable = errors.New("bookmark api unavailable")

// Options configures the client.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	RetryMax  int
	RateLimit float64
}

// DefaultOptions targets a local API.
func DefaultOptions() Options {
	return Options{
		BaseURL:  "http://localhost:4000",
		Timeout:  1500 * time.Millisecond,
		RetryMax: 1,
	}
}

// Client implements bookmark.Remote over HTTP.
type Client struct {
	http   *client.Client
	logger *zap.Logger
}

type errorBody struct {
	Error string `json:"error"`
}

// New creates a client for the API at opts.BaseURL.
func New(opts Options, logger *zap.Logger) *Client {
	co := client.DefaultOptions("bookmark-api")
	co.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	co.Timeout = opts.Timeout
	co.RetryMax = opts.RetryMax
	co.RetryWaitMax = 250 * time.Millisecond
	co.RateLimit = opts.RateLimit
	co.Breaker.ReadyToTrip = func(counts resilience.Counts) bool {
		return counts.ConsecutiveFailures >= 3
	}
	co.Breaker.Timeout = 10 * time.Second

	c := client.New(co)
	c.Resty.
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal).
		SetHeader("Accept", "application/json")

	return &Client{http: c, logger: logging.OrNop(logger)}
}

// List fetches every bookmark.
func (c *Client) List(ctx context.Context) ([]bookmark.Bookmark, error) {
	var out []bookmark.Bookmark
	_, err := c.http.Do(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.SetResult(&out).Get("/bookmarks")
	})
	if err != nil {
		return nil, c.classify("list", err)
	}
	if out == nil {
		out = []bookmark.Bookmark{}
	}
	return out, nil
}

// Create adds url. The server answers 200 with the existing record when it
// already has the URL.
func (c *Client) Create(ctx context.Context, url string) (bookmark.Bookmark, error) {
	var out bookmark.Bookmark
	_, err := c.http.Do(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.SetBody(map[string]string{"url": url}).SetResult(&out).Post("/bookmarks")
	})
	if err != nil {
		return bookmark.Bookmark{}, c.classify("create", err)
	}
	return out, nil
}

// Delete removes id; bookmark.ErrNotFound when the server does not know it.
func (c *Client) Delete(ctx context.Context, id string) error {
	_, err := c.http.Do(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.SetPathParam("id", id).Delete("/bookmarks/{id}")
	})
	if err != nil {
		return c.classify("delete", err)
	}
	return nil
}

// Import uploads items in one request.
func (c *Client) Import(ctx context.Context, items []bookmark.ImportItem) (bookmark.ImportResult, error) {
	var out bookmark.ImportResult
	_, err := c.http.Do(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.SetBody(items).SetResult(&out).Post("/bookmarks/import")
	})
	if err != nil {
		return bookmark.ImportResult{}, c.classify("import", err)
	}
	return out, nil
}

// Breaker exposes the circuit state for status output.
func (c *Client) Breaker() resilience.State {
	return c.http.BreakerState()
}

// classify maps a transport or status error onto the domain errors.
func (c *Client) classify(op string, err error) error {
	var se *client.StatusError
	if errors.As(err, &se) {
		switch {
		case se.Code == http.StatusNotFound:
			return bookmark.ErrNotFound
		case se.Code == http.StatusBadRequest:
			return fmt.Errorf("%w: %s", bookmark.ErrInvalidURL, serverMessage(se.Body))
		case se.Code >= 400 && se.Code < 500 && se.Code != http.StatusTooManyRequests:
			return fmt.Errorf("bookmark api %s: %s", op, serverMessage(se.Body))
		}
	}
	c.logger.Debug("Bookmark API call failed", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}

func serverMessage(body string) string {
	var eb errorBody
	if err := sonic.UnmarshalString(body, &eb); err == nil && eb.Error != "" {
		return eb.Error
	}
	return strings.TrimSpace(body)
}
