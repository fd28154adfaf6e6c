package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/rhuss/strom/pkg/api"
	"github.com/rhuss/strom/pkg/observability"
)

func fastPolicy(retries int) Policy {
	return Policy{
		MaxRetries:      retries,
		InitialInterval: time.Millisecond,
		Multiplier:      2,
		MaxInterval:     5 * time.Millisecond,
	}
}

func counterValue(t *testing.T, c *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := c.WithLabelValues(labels...).Write(m); err != nil {
		t.Fatalf("reading counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"transport", api.NewTransportError("connection refused", nil), true},
		{"timeout", api.NewTimeoutError("deadline exceeded"), true},
		{"rate limit", api.NewRateLimitError("slow down"), true},
		{"server", api.NewServerError(503, "unavailable"), true},
		{"cancelled", api.NewCancelledError("cancelled"), false},
		{"protocol", api.NewProtocolError("bad frame"), false},
		{"invalid", api.NewInvalidRequestError("model", "unknown"), false},
		{"auth", api.NewAuthenticationError(401, "bad key"), false},
		{"wrapped", errors.Join(errors.New("round 2"), api.NewServerError(500, "boom")), true},
		{"plain", errors.New("plain"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Retryable(tt.err); got != tt.want {
				t.Errorf("Retryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	if p.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", p.MaxRetries)
	}
	if p.InitialInterval != 100*time.Millisecond {
		t.Errorf("InitialInterval = %v, want 100ms", p.InitialInterval)
	}
	if p.Multiplier != 2 {
		t.Errorf("Multiplier = %v, want 2", p.Multiplier)
	}
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	ctx := observability.WithProvider(context.Background(), "retry-test")
	before := counterValue(t, observability.RetryAttemptsTotal, "retry-test")

	calls := 0
	err := fastPolicy(3).Do(ctx, func(context.Context) error {
		calls++
		if calls < 3 {
			return api.NewServerError(502, "bad gateway")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if got := counterValue(t, observability.RetryAttemptsTotal, "retry-test") - before; got != 2 {
		t.Errorf("retry counter grew by %v, want 2", got)
	}
}

func TestDoGivesUpAfterBudget(t *testing.T) {
	calls := 0
	err := fastPolicy(2).Do(context.Background(), func(context.Context) error {
		calls++
		return api.NewTransportError("connection reset", nil)
	})
	if !api.IsKind(err, api.ErrorKindTransport) {
		t.Fatalf("err = %v, want transport error", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3 (first attempt plus 2 retries)", calls)
	}
}

func TestDoStopsOnFinalError(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), func(context.Context) error {
		calls++
		return api.NewAuthenticationError(401, "invalid key")
	})
	if !api.IsKind(err, api.ErrorKindAuthentication) {
		t.Fatalf("err = %v, want authentication error", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDoStopUnwraps(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), func(context.Context) error {
		calls++
		return Stop(api.NewServerError(500, "already streamed"))
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.Status != 500 {
		t.Errorf("err = %v, want the stopped server error", err)
	}
}

func TestDoZeroPolicyRunsOnce(t *testing.T) {
	calls := 0
	err := Policy{}.Do(context.Background(), func(context.Context) error {
		calls++
		return Stop(api.NewServerError(500, "boom"))
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if !api.IsKind(err, api.ErrorKindServer) {
		t.Errorf("err = %v, want server error", err)
	}
}

func TestDoHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	p := Policy{MaxRetries: 5, InitialInterval: time.Hour, Multiplier: 2}

	done := make(chan error, 1)
	go func() {
		done <- p.Do(ctx, func(context.Context) error {
			calls++
			return api.NewServerError(503, "unavailable")
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected an error after cancellation")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not return after cancellation")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestStopNil(t *testing.T) {
	if Stop(nil) != nil {
		t.Error("Stop(nil) should be nil")
	}
}
