package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"raffle/internal/config"
	apperrors "raffle/pkg/errors"
)

// Policy bounds an exponential backoff. MaxAttempts counts the first call;
// a zero MaxElapsedTime means only MaxAttempts limits the loop.
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	MaxElapsedTime  time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Multiplier:      2.0,
		MaxElapsedTime:  30 * time.Second,
	}
}

// FromConfig overlays the non-zero settings of cfg on DefaultPolicy.
func FromConfig(cfg config.RetryConfig) Policy {
	p := DefaultPolicy()
	if cfg.MaxAttempts > 0 {
		p.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.InitialInterval > 0 {
		p.InitialInterval = cfg.InitialInterval
	}
	if cfg.MaxInterval > 0 {
		p.MaxInterval = cfg.MaxInterval
	}
	if cfg.Multiplier > 0 {
		p.Multiplier = cfg.Multiplier
	}
	if cfg.MaxElapsedTime > 0 {
		p.MaxElapsedTime = cfg.MaxElapsedTime
	}
	return p
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.InitialInterval
	exp.MaxInterval = p.MaxInterval
	exp.Multiplier = p.Multiplier
	exp.MaxElapsedTime = p.MaxElapsedTime

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(attempts-1)), ctx)
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }
func (e *permanentError) IsFatal() bool { return true }

// Permanent marks err so Do returns it without another attempt.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err, or anything it wraps, is marked fatal.
func IsPermanent(err error) bool {
	var fatal apperrors.FatalError
	return errors.As(err, &fatal) && fatal.IsFatal()
}

// Notify is called after a failed attempt that will be retried.
type Notify func(attempt int, err error, next time.Duration)

// Do calls fn until it succeeds, returns a permanent error, the policy is
// exhausted or ctx is done. The last error is returned.
func Do(ctx context.Context, p Policy, fn func() error, notify Notify) error {
	attempt := 0
	op := func() error {
		attempt++
		err := fn()
		if err != nil && IsPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	var onRetry backoff.Notify
	if notify != nil {
		onRetry = func(err error, next time.Duration) {
			notify(attempt, err, next)
		}
	}
	return backoff.RetryNotify(op, p.backOff(ctx), onRetry)
}
