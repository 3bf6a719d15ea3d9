package hosting

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Kind is the machine-checkable failure class of a hosting call.
//
// The publishing core matches on Kind only; all message-pattern sniffing of
// the remote API lives here, at the adapter boundary.
type Kind int

const (
	// KindFatal is anything the job should not retry.
	KindFatal Kind = iota
	// KindQuota means a daily/account usage cap was hit (long cooldown).
	KindQuota
	// KindTooManyRequests is an explicit HTTP 429 (short fixed cooldown).
	KindTooManyRequests
	// KindRateLimited is a non-429 throttling signal (exponential backoff).
	KindRateLimited
	// KindTransient covers network hiccups and 5xx responses (exponential backoff).
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindQuota:
		return "quota"
	case KindTooManyRequests:
		return "too_many_requests"
	case KindRateLimited:
		return "rate_limited"
	case KindTransient:
		return "transient"
	default:
		return "fatal"
	}
}

// APIError is a structured error from the hosting service.
type APIError struct {
	StatusCode int
	Reason     string // structured reason from the error body, e.g. "rateLimitExceeded"
	Message    string
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("hosting: %s (http=%d reason=%s)", e.Message, e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("hosting: %s (http=%d)", e.Message, e.StatusCode)
}

// Kind classifies the error for retry policy.
func (e *APIError) Kind() Kind {
	reason := strings.TrimSpace(e.Reason)
	msg := strings.ToLower(e.Message)

	switch reason {
	case "quotaExceeded", "dailyLimitExceeded":
		return KindQuota
	case "rateLimitExceeded", "userRateLimitExceeded":
		if e.StatusCode == 429 {
			return KindTooManyRequests
		}
		return KindRateLimited
	}

	// Message patterns as a fallback for services that omit structured reasons.
	switch {
	case strings.Contains(msg, "daily limit exceeded"), strings.Contains(msg, "quotaexceeded"):
		return KindQuota
	case e.StatusCode == 429, strings.Contains(msg, "too many requests"):
		return KindTooManyRequests
	case strings.Contains(msg, "user rate limit exceeded"), strings.Contains(msg, "ratelimitexceeded"):
		return KindRateLimited
	}

	if e.StatusCode >= 500 {
		return KindTransient
	}
	return KindFatal
}

// KindOf classifies any error returned by a Client call.
// Network-level failures count as transient; context cancellation is fatal
// (the caller is shutting down, retrying would fight the operator).
func KindOf(err error) Kind {
	if err == nil {
		return KindFatal
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindFatal
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindTransient
	}
	return KindFatal
}
