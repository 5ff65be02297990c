package envelope

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestIsQuotaError(t *testing.T) {
	cases := []struct {
		status int
		body   string
		want   bool
	}{
		{429, "", true},
		{200, "Rate limit exceeded, try later", true},
		{200, "insufficient_quota", true},
		{200, "everything is fine", false},
	}
	for _, c := range cases {
		if got := IsQuotaError(c.status, c.body); got != c.want {
			t.Errorf("IsQuotaError(%d, %q) = %v, want %v", c.status, c.body, got, c.want)
		}
	}
}

func TestParseCooldownDuration(t *testing.T) {
	if got := ParseCooldownDuration(200, "daily limit reached"); got != 24*time.Hour {
		t.Errorf("daily limit cooldown = %v, want 24h", got)
	}
	if got := ParseCooldownDuration(429, ""); got != 5*time.Minute {
		t.Errorf("429 cooldown = %v, want 5m", got)
	}
	if got := ParseCooldownDuration(200, "unexpected error"); got != time.Hour {
		t.Errorf("default cooldown = %v, want 1h", got)
	}
}

func TestRetrySucceedsAfterTransientFailure(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), "test-op", func(ctx context.Context) error {
		attempts++
		if attempts < 2 {
			return New(KindUpstreamLLM, "test-op", errors.New("transient"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Retry returned error: %v", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestRetryStopsOnNonRetryableError(t *testing.T) {
	attempts := 0
	storeErr := New(KindStore, "test-op", errors.New("duplicate key"))
	err := Retry(context.Background(), "test-op", func(ctx context.Context) error {
		attempts++
		return storeErr
	})
	if !errors.Is(err, storeErr) && err.Error() != storeErr.Error() {
		t.Errorf("Retry error = %v, want %v", err, storeErr)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (store errors are not retryable)", attempts)
	}
}

func TestSafeCallerFallsBackOnError(t *testing.T) {
	dl := NewDeadLetterWriter(filepath.Join(t.TempDir(), "dead-letter.jsonl"))
	caller := NewSafeCaller(dl)

	fallbackRan := false
	err := caller.Call(context.Background(), "test-op",
		func(ctx context.Context) error { return errors.New("upstream down") },
		func(ctx context.Context) error { fallbackRan = true; return nil },
	)
	if err != nil {
		t.Fatalf("Call returned error: %v", err)
	}
	if !fallbackRan {
		t.Error("fallback did not run")
	}
}

func TestSafeCallerDebugModeReThrowsInsteadOfFallingBack(t *testing.T) {
	dl := NewDeadLetterWriter(filepath.Join(t.TempDir(), "dead-letter.jsonl"))
	caller := NewSafeCallerDebug(dl, true)

	upstreamErr := errors.New("upstream down")
	fallbackRan := false
	err := caller.Call(context.Background(), "test-op",
		func(ctx context.Context) error { return upstreamErr },
		func(ctx context.Context) error { fallbackRan = true; return nil },
	)
	if err == nil {
		t.Fatal("expected debug mode to re-throw the error")
	}
	if fallbackRan {
		t.Error("fallback should not run in debug mode")
	}
}

func TestSafeCallerNonDebugModeStillFallsBack(t *testing.T) {
	dl := NewDeadLetterWriter(filepath.Join(t.TempDir(), "dead-letter.jsonl"))
	caller := NewSafeCallerDebug(dl, false)

	fallbackRan := false
	err := caller.Call(context.Background(), "test-op",
		func(ctx context.Context) error { return errors.New("upstream down") },
		func(ctx context.Context) error { fallbackRan = true; return nil },
	)
	if err != nil {
		t.Fatalf("Call returned error: %v", err)
	}
	if !fallbackRan {
		t.Error("fallback did not run")
	}
}

func TestSafeCallerRecoversPanic(t *testing.T) {
	dl := NewDeadLetterWriter(filepath.Join(t.TempDir(), "dead-letter.jsonl"))
	caller := NewSafeCaller(dl)

	err := caller.Call(context.Background(), "test-op",
		func(ctx context.Context) error { panic("boom") },
		func(ctx context.Context) error { return nil },
	)
	if err != nil {
		t.Fatalf("Call returned error after recovered panic: %v", err)
	}
}

func TestDeadLetterWriterRotatesAtMaxSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dead-letter.jsonl")
	dl := NewDeadLetterWriter(path)
	dl.maxBytes = 64 // force rotation almost immediately

	if err := dl.Write("op1", errors.New("first failure, padded to exceed the tiny test threshold")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := dl.Write("op2", errors.New("second failure")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	matches, globErr := filepath.Glob(path + ".*")
	if globErr != nil {
		t.Fatalf("Glob: %v", globErr)
	}
	if len(matches) == 0 {
		t.Error("expected a rotated dead-letter file, found none")
	}
}
