// Package wbapi talks to the marketplace seller statistics API.
//
// The package is split into three layers:
//   - Client: a single request with bounded retries (401 is terminal, 429 and
//     transient failures wait and retry)
//   - FetchAll: pagination on top of a page function, offset/limit or page-number
//   - API: typed endpoints (sales funnel, region sales, finance report) that decode provider
//     payloads into explicit structs
package wbapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"wb-seller-stats/helpers"
)

const (
	DefaultAttempts = 3
	DefaultTimeout  = 5 * time.Second
	DefaultWait     = 5 * time.Second
)

// Sleeper pauses for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// ClientConfig holds retry and pacing parameters of the request client
type ClientConfig struct {
	Attempts int           // total attempts per request
	Timeout  time.Duration // per-attempt timeout
	Wait     time.Duration // pause after a 429 or transient failure
	RPM      int           // optional requests-per-minute cap, 0 disables it
}

// Client issues provider requests with bounded retries.
// One Client is built per process and shared by every component that calls the provider.
type Client struct {
	http     *resty.Client
	attempts int
	timeout  time.Duration
	wait     time.Duration
	limiter  *rate.Limiter
	sleep    Sleeper
	log      logrus.FieldLogger
}

// Request is one provider call
type Request struct {
	Method  string
	URL     string
	Token   string
	Body    interface{}
	Timeout time.Duration // overrides ClientConfig.Timeout when set

	// Attempts and Wait override the client's retry policy when set
	Attempts int
	Wait     time.Duration
}

// NewClient creates a new request client
func NewClient(cfg ClientConfig, log logrus.FieldLogger) *Client {
	if cfg.Attempts <= 0 {
		cfg.Attempts = DefaultAttempts
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Wait <= 0 {
		cfg.Wait = DefaultWait
	}

	c := &Client{
		http:     resty.New(),
		attempts: cfg.Attempts,
		timeout:  cfg.Timeout,
		wait:     cfg.Wait,
		sleep:    helpers.SleepContext,
		log:      log,
	}
	if cfg.RPM > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(float64(cfg.RPM)/60.0), 1)
	}
	return c
}

// SetSleeper replaces the wait function (tests count waits instead of sleeping)
func (c *Client) SetSleeper(s Sleeper) {
	c.sleep = s
}

// Get issues a GET request
func (c *Client) Get(ctx context.Context, url, token string) (json.RawMessage, error) {
	return c.Send(ctx, Request{Method: http.MethodGet, URL: url, Token: token})
}

// Post issues a POST request with a JSON body
func (c *Client) Post(ctx context.Context, url, token string, body interface{}) (json.RawMessage, error) {
	return c.Send(ctx, Request{Method: http.MethodPost, URL: url, Token: token, Body: body})
}

// Send executes req with retries and returns the raw JSON body.
//
// A 401 returns immediately with an error matching ErrUnauthorized.
// A 429, any other non-2xx status, a transport error or an invalid JSON body
// is logged and retried after the configured wait. When all attempts fail an
// *ExhaustedError is returned.
func (c *Client) Send(ctx context.Context, req Request) (json.RawMessage, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	attempts := req.Attempts
	if attempts <= 0 {
		attempts = c.attempts
	}
	wait := req.Wait
	if wait <= 0 {
		wait = c.wait
	}

	var lastErr error
	lastStatus := 0

	for attempt := 1; attempt <= attempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		status, body, err := c.do(ctx, method, req, timeout)
		entry := c.log.WithFields(logrus.Fields{
			"url":     req.URL,
			"status":  status,
			"attempt": attempt,
		})

		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			entry.WithError(err).Error("provider request failed")
			lastErr = err
		case status == http.StatusUnauthorized:
			entry.Error("provider rejected token")
			return nil, &StatusError{URL: req.URL, Status: status, Body: truncate(string(body), 200)}
		case status == http.StatusTooManyRequests:
			entry.Warn("provider rate limit hit")
			lastErr = &StatusError{URL: req.URL, Status: status, Body: truncate(string(body), 200)}
		case status < 200 || status > 299:
			entry.WithField("body", truncate(string(body), 200)).Error("provider returned error status")
			lastErr = &StatusError{URL: req.URL, Status: status, Body: truncate(string(body), 200)}
		case !json.Valid(body):
			entry.Error("provider returned invalid JSON")
			lastErr = fmt.Errorf("invalid JSON body from %s", req.URL)
		default:
			return json.RawMessage(body), nil
		}
		if status != 0 {
			lastStatus = status
		}

		if attempt < attempts {
			if err := c.sleep(ctx, wait); err != nil {
				return nil, err
			}
		}
	}

	exhausted := &ExhaustedError{URL: req.URL, Attempts: attempts, LastStatus: lastStatus, Err: lastErr}
	c.log.WithFields(logrus.Fields{"url": req.URL, "status": lastStatus}).Error("provider request exhausted all attempts")
	return nil, exhausted
}

// do performs one attempt bounded by timeout
func (c *Client) do(ctx context.Context, method string, req Request, timeout time.Duration) (int, []byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	r := c.http.R().
		SetContext(attemptCtx).
		SetHeader("Accept", "application/json")
	if req.Token != "" {
		r.SetHeader("Authorization", req.Token)
	}
	if req.Body != nil {
		r.SetHeader("Content-Type", "application/json").SetBody(req.Body)
	}

	resp, err := r.Execute(method, req.URL)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode(), resp.Body(), nil
}
