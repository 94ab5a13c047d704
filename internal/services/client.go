package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/wdx/internal/shared"
	"golang.org/x/time/rate"
)

const (
	defaultRateLimit  = 5.0
	defaultRetryLimit = 3
	defaultBackoff    = time.Second
)

// Doer abstracts *http.Client for testing.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client wraps an HTTP client with a shared rate limiter and a bounded retry
// loop for transient failures.
//
// The limiter is a global rate budget: every concurrent pipeline worker
// shares the same Client, so fan-out never exceeds the configured requests
// per second. Retries honor Retry-After on 429 and fall back to exponential
// backoff otherwise; exhausting the budget escalates the transient failure to
// shared.ErrRetryExhausted.
type Client struct {
	http    Doer
	limiter *rate.Limiter
	retries int
	sleep   func(context.Context, time.Duration) error
}

// NewClient creates a rate-limited client. rps <= 0 and retries < 0 get
// defaults.
func NewClient(httpClient Doer, rps float64, retries int) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if rps <= 0 {
		rps = defaultRateLimit
	}
	if retries < 0 {
		retries = defaultRetryLimit
	}

	return &Client{
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		retries: retries,
		sleep:   sleepContext,
	}
}

// SetHTTPClient swaps the underlying transport, keeping limiter state. Called
// after authentication installs the OAuth transport.
func (c *Client) SetHTTPClient(httpClient Doer) {
	if httpClient != nil {
		c.http = httpClient
	}
}

// Do executes the request, retrying transient failures within the budget.
//
// The request must carry a context and, when it has a body, a GetBody func so
// retries can replay it (http.NewRequestWithContext sets GetBody for the
// common body types).
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	var lastErr error

	for attempt := 0; attempt <= c.retries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		attemptReq, err := cloneRequest(ctx, req)
		if err != nil {
			return nil, err
		}

		resp, err := c.http.Do(attemptReq)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !IsTransient(err) {
				return nil, fmt.Errorf("request failed: %w", err)
			}
			lastErr = err
			if attempt == c.retries {
				break
			}
			if waitErr := c.backoff(ctx, attempt, 0); waitErr != nil {
				return nil, waitErr
			}
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		statusErr := newStatusError(resp, readBody(resp))
		if !statusErr.Transient() {
			return nil, statusErr
		}

		lastErr = statusErr
		if attempt == c.retries {
			break
		}
		if waitErr := c.backoff(ctx, attempt, statusErr.RetryAfter); waitErr != nil {
			return nil, waitErr
		}
	}

	return nil, fmt.Errorf("%w after %d attempts: %v", shared.ErrRetryExhausted, c.retries+1, lastErr)
}

// backoff suspends the caller for the server-requested duration, or an
// exponential fallback when none was given.
func (c *Client) backoff(ctx context.Context, attempt int, retryAfter time.Duration) error {
	wait := retryAfter
	if wait <= 0 {
		wait = defaultBackoff << attempt
	}
	return c.sleep(ctx, wait)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// cloneRequest produces a fresh request for each attempt, replaying the body
// via GetBody when present.
func cloneRequest(ctx context.Context, req *http.Request) (*http.Request, error) {
	clone := req.Clone(ctx)
	if req.Body == nil || req.GetBody == nil {
		return clone, nil
	}

	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("failed to replay request body: %w", err)
	}
	clone.Body = body
	return clone, nil
}

func readBody(resp *http.Response) string {
	defer resp.Body.Close()
	buf := make([]byte, 1024)
	n, err := resp.Body.Read(buf)
	if n == 0 && err != nil {
		return ""
	}
	return string(buf[:n])
}

// RetriesExhausted reports whether the error is a transient failure that
// outlived the retry budget.
func RetriesExhausted(err error) bool {
	return errors.Is(err, shared.ErrRetryExhausted)
}
