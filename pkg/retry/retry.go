// Package retry re-runs failed provider rounds with exponential backoff.
// The dispatch engine never retries on its own; callers opt in by wrapping
// a round in Policy.Do.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/rhuss/strom/pkg/api"
	"github.com/rhuss/strom/pkg/observability"
)

// Policy describes how often and how fast a failed operation is retried.
// The zero value never retries.
type Policy struct {
	// MaxRetries is the number of attempts after the first one.
	MaxRetries int `yaml:"max_retries" json:"max_retries"`

	// InitialInterval is the wait before the first retry.
	InitialInterval time.Duration `yaml:"initial_interval" json:"initial_interval"`

	// Multiplier grows the interval after each retry.
	Multiplier float64 `yaml:"multiplier" json:"multiplier"`

	// MaxInterval caps a single wait. Zero means 30s.
	MaxInterval time.Duration `yaml:"max_interval" json:"max_interval"`

	// Retryable decides whether an error is worth another attempt. Nil
	// uses Retryable.
	Retryable func(error) bool `yaml:"-" json:"-"`
}

// DefaultPolicy retries three times, starting at 100ms and doubling.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		Multiplier:      2,
	}
}

// Retryable reports whether err is a transient provider failure:
// transport errors, timeouts of a single attempt, rate limits and 5xx
// responses. Cancellation, invalid requests, authentication and
// protocol errors are final.
func Retryable(err error) bool {
	switch api.KindOf(err) {
	case api.ErrorKindTransport, api.ErrorKindTimeout, api.ErrorKindRateLimit, api.ErrorKindServer:
		return true
	default:
		return false
	}
}

// Stop marks err as final so Do returns it without retrying.
func Stop(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// Do runs op until it succeeds, returns a non-retryable error, the retry
// budget is spent, or ctx is done. The last error is returned. Retries
// are counted per provider label found in ctx.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	if p.MaxRetries <= 0 {
		err := op(ctx)
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return perm.Err
		}
		return err
	}

	retryable := p.Retryable
	if retryable == nil {
		retryable = Retryable
	}

	attempt := 0
	operation := func() error {
		attempt++
		err := op(ctx)
		if err == nil || isStopped(err) {
			return err
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		provider := observability.ProviderFrom(ctx)
		observability.RetryAttemptsTotal.WithLabelValues(provider).Inc()
		slog.Debug("retrying provider round",
			"provider", provider,
			"attempt", attempt,
			"wait", wait,
			"error", err.Error(),
		)
	}

	return backoff.RetryNotify(operation, p.backOff(ctx), notify)
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	if b.InitialInterval <= 0 {
		b.InitialInterval = 100 * time.Millisecond
	}
	b.Multiplier = p.Multiplier
	if b.Multiplier < 1 {
		b.Multiplier = 2
	}
	b.MaxInterval = p.MaxInterval
	if b.MaxInterval <= 0 {
		b.MaxInterval = 30 * time.Second
	}
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.MaxRetries)), ctx)
}

func isStopped(err error) bool {
	var perm *backoff.PermanentError
	return errors.As(err, &perm)
}
