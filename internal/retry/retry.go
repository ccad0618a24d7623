// Package retry runs network operations under a bounded exponential backoff
// policy. Only errors classified as transient by services.IsTransient are
// retried; permanent failures and context cancellation return immediately.
package retry

import (
	"context"
	"log/slog"
	"time"

	"mintline/internal/config"
	"mintline/internal/logging"
	"mintline/internal/services"
)

// Policy bounds the number of attempts and the delay between them.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	// Logger receives one warning per retried attempt. Optional.
	Logger *slog.Logger
	// Sleep overrides the wait between attempts in tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// PolicyFromConfig builds a Policy from the [retry] config section.
func PolicyFromConfig(cfg config.Retry, logger *slog.Logger) Policy {
	return Policy{
		MaxAttempts:    cfg.MaxAttempts,
		InitialBackoff: time.Duration(cfg.InitialBackoffMillis) * time.Millisecond,
		MaxBackoff:     time.Duration(cfg.MaxBackoffMillis) * time.Millisecond,
		Multiplier:     cfg.Multiplier,
		Logger:         logger,
	}
}

// Once returns a policy that never retries.
func Once() Policy {
	return Policy{MaxAttempts: 1}
}

// Do invokes op until it succeeds, returns a non-transient error, or the
// attempt budget is spent. The last error is returned unchanged.
func Do(ctx context.Context, policy Policy, label string, op func(ctx context.Context) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	attempts := policy.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	sleep := policy.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	delay := policy.InitialBackoff
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if !services.IsTransient(lastErr) || attempt == attempts {
			break
		}
		if policy.Logger != nil {
			policy.Logger.Warn("transient failure; retrying",
				logging.String("operation", label),
				logging.Int("attempt", attempt),
				logging.Int("max_attempts", attempts),
				logging.Duration("backoff", delay),
				logging.Error(lastErr),
				logging.String(logging.FieldEventType, "retry_scheduled"),
				logging.String(logging.FieldErrorHint, "check RPC and storage endpoint health"),
			)
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
		delay = policy.next(delay)
	}
	return lastErr
}

func (p Policy) next(delay time.Duration) time.Duration {
	multiplier := p.Multiplier
	if multiplier < 1 {
		multiplier = 2
	}
	next := time.Duration(float64(delay) * multiplier)
	if next <= 0 {
		next = delay
	}
	if p.MaxBackoff > 0 && next > p.MaxBackoff {
		return p.MaxBackoff
	}
	return next
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
