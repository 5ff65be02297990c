// Package envelope implements the Error Envelope (spec §4.1): deadline-bounded
// calls, bounded retry with backoff, and a catch-and-fallback wrapper that
// dead-letters unrecoverable failures instead of propagating them.
package envelope

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Kind classifies an Error Envelope failure (spec §4.1).
type Kind string

const (
	KindTimeout     Kind = "TIMEOUT"
	KindUpstreamLLM Kind = "UPSTREAM_LLM"
	KindStore       Kind = "STORE"
)

// Error wraps an underlying error with a Kind and the operation that
// produced it, so callers and the dead-letter writer can classify failures
// without string-matching.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with a Kind and an operation label.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the Kind of err if it is (or wraps) an *Error, and ok=false
// otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsQuotaError detects whether an upstream LLM response indicates quota
// exhaustion or rate limiting, so the Tier Orchestrator can distinguish a
// transient throttle from a hard failure.
func IsQuotaError(statusCode int, responseBody string) bool {
	if statusCode == http.StatusTooManyRequests {
		return true
	}

	lowerBody := strings.ToLower(responseBody)
	quotaPatterns := []string{
		"quota exceeded",
		"rate limit",
		"too many requests",
		"request limit",
		"tokens per minute",
		"requests per minute",
		"daily limit",
		"insufficient_quota",
		"billing",
		"rate_limit_exceeded",
		"quota_exceeded",
	}

	for _, pattern := range quotaPatterns {
		if strings.Contains(lowerBody, pattern) {
			return true
		}
	}

	return false
}

// ParseCooldownDuration estimates how long the upstream LLM provider needs
// before it should be retried, based on the shape of its error response.
func ParseCooldownDuration(statusCode int, responseBody string) time.Duration {
	lowerBody := strings.ToLower(responseBody)

	if strings.Contains(lowerBody, "daily limit") ||
		strings.Contains(lowerBody, "billing") ||
		strings.Contains(lowerBody, "insufficient_quota") {
		return 24 * time.Hour
	}

	if statusCode == http.StatusTooManyRequests ||
		strings.Contains(lowerBody, "tokens per minute") ||
		strings.Contains(lowerBody, "requests per minute") {
		return 5 * time.Minute
	}

	return 1 * time.Hour
}

// IsRetryable reports whether an Error Envelope failure is worth a second
// attempt: timeouts and upstream-LLM errors are, store errors generally are
// not (a second attempt against an already-failing store rarely helps within
// the same request).
func IsRetryable(err error) bool {
	kind, ok := KindOf(err)
	if !ok {
		return true
	}
	return kind == KindTimeout || kind == KindUpstreamLLM
}
