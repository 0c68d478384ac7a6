package workspace

import (
	"bytes"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	defaultMaxRetries   = 5
	baseBackoff         = 500 * time.Millisecond
	maxBackoff          = 8 * time.Second
	maxRateLimitBackoff = 30 * time.Second
	jitterFraction      = 0.20
)

// classify maps a raw HTTP response (or transport error) to the error
// taxonomy in errors.go (spec §4.1, "Error taxonomy").
func classify(op string, resp *http.Response, body []byte, transportErr error) *Error {
	if transportErr != nil {
		return &Error{Kind: KindTransient, Op: op, Message: transportErr.Error(), Cause: transportErr}
	}

	status := resp.StatusCode
	bodyStr := string(body)

	switch {
	case status == http.StatusTooManyRequests:
		return &Error{
			Kind:       KindRateLimited,
			Op:         op,
			StatusCode: status,
			RetryAfter: retryAfterSeconds(resp),
			Message:    "rate limited",
		}
	case status == http.StatusNotFound || strings.Contains(bodyStr, "object_not_found"):
		return &Error{Kind: KindNotFound, Op: op, StatusCode: status, Message: "not found"}
	case status == http.StatusConflict || strings.Contains(bodyStr, "conflict_error"):
		return &Error{Kind: KindConflictRetryable, Op: op, StatusCode: status, Message: "conflict"}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &Error{Kind: KindAuthFailure, Op: op, StatusCode: status, Message: "unauthorized"}
	case status == http.StatusBadRequest:
		return &Error{Kind: KindValidation, Op: op, StatusCode: status, Message: bodyPreview(bodyStr)}
	case status == http.StatusRequestTimeout || status == http.StatusTooEarly || status >= 500:
		return &Error{Kind: KindTransient, Op: op, StatusCode: status, Message: bodyPreview(bodyStr)}
	case status >= 400:
		return &Error{Kind: KindPermanent, Op: op, StatusCode: status, Message: bodyPreview(bodyStr)}
	default:
		return nil
	}
}

func bodyPreview(body string) string {
	const max = 300
	if len(body) <= max {
		return body
	}
	return body[:max] + "..."
}

func retryAfterSeconds(resp *http.Response) float64 {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 1
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return secs
	}
	if at, err := http.ParseTime(v); err == nil {
		d := time.Until(at)
		if d > 0 {
			return d.Seconds()
		}
	}
	return 1
}

// nextBackoff doubles the previous backoff, capped, then applies ±20%
// jitter (spec §4.1, "Retry policy").
func nextBackoff(prev time.Duration) time.Duration {
	next := prev * 2
	if next > maxBackoff {
		next = maxBackoff
	}
	return jitter(next)
}

func jitter(d time.Duration) time.Duration {
	delta := float64(d) * jitterFraction
	offset := (rand.Float64()*2 - 1) * delta
	return d + time.Duration(offset)
}

// rateLimitDelay caps the workspace's retry-after hint (spec §4.1,
// "Pacing"; RateLimited retries honor retry-after, capped at 30s, and do
// not consume a retry attempt).
func rateLimitDelay(seconds float64) time.Duration {
	d := time.Duration(seconds * float64(time.Second))
	if d > maxRateLimitBackoff {
		return maxRateLimitBackoff
	}
	if d <= 0 {
		return time.Second
	}
	return d
}

// cloneBody returns a fresh reader over body bytes for request retries.
func cloneBody(body []byte) *bytes.Reader {
	return bytes.NewReader(body)
}
