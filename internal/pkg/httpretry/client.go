// Package httpretry wraps outbound gateway calls with bounded retries and
// jittered backoff. Dispatch slots are paced in seconds, so the backoff
// stays tight: a dead gateway instance must be ruled out fast enough for
// the sender to fail over to the next one inside the item's slot.
package httpretry

import (
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/safegreen/outreach-engine/internal/pkg/logger"
)

const (
	defaultTimeout   = 15 * time.Second
	defaultRetries   = 2
	defaultBaseDelay = 300 * time.Millisecond
	defaultMaxDelay  = 3 * time.Second
	minDelay         = 100 * time.Millisecond
)

// HTTPDoer executes one HTTP request. Both *http.Client and *RetryClient
// satisfy it, so retry layers stack and tests substitute fakes.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RetryClient re-issues requests that hit throttling, server errors, or
// transport failures. Client errors and context cancellation never retry.
type RetryClient struct {
	inner     HTTPDoer
	retries   int
	baseDelay time.Duration
	maxDelay  time.Duration
}

// NewRetryClient wraps client with the dispatch backoff defaults. A nil
// client gets an http.Client bounded by the gateway attempt timeout.
// retries counts re-attempts after the first request.
func NewRetryClient(client HTTPDoer, retries int) *RetryClient {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	if retries <= 0 {
		retries = defaultRetries
	}
	return &RetryClient{
		inner:     client,
		retries:   retries,
		baseDelay: defaultBaseDelay,
		maxDelay:  defaultMaxDelay,
	}
}

// NewRetryClientWithDelays overrides the backoff bounds for callers whose
// slot budget differs from the dispatch default.
func NewRetryClientWithDelays(client HTTPDoer, retries int, baseDelay, maxDelay time.Duration) *RetryClient {
	rc := NewRetryClient(client, retries)
	if baseDelay > 0 {
		rc.baseDelay = baseDelay
	}
	if maxDelay > 0 {
		rc.maxDelay = maxDelay
	}
	return rc
}

// Do issues the request, retrying 429 and 5xx responses and transport
// errors. The last attempt's response comes back as-is so the sender can
// read the body and make its own failover decision.
func (rc *RetryClient) Do(req *http.Request) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= rc.retries; attempt++ {
		if attempt > 0 {
			if err := rewind(req); err != nil {
				return nil, err
			}
			delay := rc.backoff(attempt)
			logger.Warn("gateway call retrying",
				"host", req.URL.Host, "attempt", attempt, "max", rc.retries, "delay", delay.String())

			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-req.Context().Done():
				timer.Stop()
				if lastErr != nil {
					return nil, lastErr
				}
				return nil, req.Context().Err()
			}
		}

		resp, err := rc.inner.Do(req)
		if err != nil {
			if req.Context().Err() != nil {
				return nil, err
			}
			lastErr = err
			continue
		}
		if !retryableStatus(resp.StatusCode) || attempt == rc.retries {
			return resp, nil
		}

		// Drain so the transport can reuse the connection.
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		lastErr = fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	return nil, lastErr
}

// rewind restores the request body for a re-attempt.
func rewind(req *http.Request) error {
	if req.GetBody == nil {
		return nil
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Errorf("rewind request body: %w", err)
	}
	req.Body = body
	return nil
}

// backoff doubles the base delay per attempt, caps it at maxDelay, and
// applies equal jitter so concurrent runs retrying the same instance do
// not land in lockstep.
func (rc *RetryClient) backoff(attempt int) time.Duration {
	d := rc.baseDelay << (attempt - 1)
	if d <= 0 || d > rc.maxDelay {
		d = rc.maxDelay
	}
	jittered := d/2 + time.Duration(rand.Int63n(int64(d/2)+1))
	if jittered < minDelay {
		jittered = minDelay
	}
	return jittered
}

// retryableStatus reports whether another attempt can help: gateway-side
// throttling or a server failure. Anything in the 4xx family besides 429
// will fail the same way again.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
