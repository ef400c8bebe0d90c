// Package retry runs an operation under a bounded exponential-backoff policy.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Outcome classifies a single attempt.
type Outcome int

const (
	// Success stops the loop and returns nil.
	Success Outcome = iota
	// Retryable schedules another attempt if the policy allows one.
	Retryable
	// Fatal stops the loop and returns the attempt's error.
	Fatal
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Retryable:
		return "retryable"
	case Fatal:
		return "fatal"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Policy describes the backoff schedule. The delay before retry n (1-based)
// is Base * Factor^(n-1), capped at Max.
type Policy struct {
	Retries int           // retries after the first attempt
	Base    time.Duration // delay before the first retry
	Factor  float64
	Max     time.Duration // per-delay cap

	// AttemptTimeout bounds each attempt when positive.
	AttemptTimeout time.Duration

	// Sleep waits for d or until ctx is done. Nil means a timer-based wait.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry is called before each backoff wait.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Default is the dispatch policy: 3 retries, 1s base, doubling, 5s cap.
func Default() Policy {
	return Policy{Retries: 3, Base: time.Second, Factor: 2, Max: 5 * time.Second}
}

// Delay returns the wait before retry n (n >= 1).
func (p Policy) Delay(n int) time.Duration {
	d := float64(p.Base)
	for i := 1; i < n; i++ {
		d *= p.Factor
		if p.Max > 0 && d >= float64(p.Max) {
			return p.Max
		}
	}
	if p.Max > 0 && time.Duration(d) > p.Max {
		return p.Max
	}
	return time.Duration(d)
}

// Do calls op until it reports Success or Fatal, the retries are exhausted,
// or ctx is done. It returns the number of attempts made and the last error.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context, attempt int) (Outcome, error)) (int, error) {
	sleep := p.Sleep
	if sleep == nil {
		sleep = wait
	}
	var lastErr error
	for attempt := 1; ; attempt++ {
		outcome, err := p.attempt(ctx, attempt, op)
		switch outcome {
		case Success:
			return attempt, nil
		case Fatal:
			return attempt, err
		}
		lastErr = err
		if attempt > p.Retries {
			return attempt, fmt.Errorf("gave up after %d attempts: %w", attempt, lastErr)
		}
		delay := p.Delay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, lastErr)
		}
		if err := sleep(ctx, delay); err != nil {
			return attempt, fmt.Errorf("%w (last error: %v)", err, lastErr)
		}
	}
}

func (p Policy) attempt(ctx context.Context, n int, op func(context.Context, int) (Outcome, error)) (Outcome, error) {
	if p.AttemptTimeout <= 0 {
		return op(ctx, n)
	}
	actx, cancel := context.WithTimeout(ctx, p.AttemptTimeout)
	defer cancel()
	return op(actx, n)
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
