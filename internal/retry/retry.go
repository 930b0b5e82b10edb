package retry

import (
	"context"
	"errors"
	"time"
)

// Result tells Poll what to do after an attempt.
type Result int

const (
	// Retry schedules another attempt if the budget allows.
	Retry Result = iota
	// Done ends polling successfully.
	Done
	// Abort ends polling with the attempt's error.
	Abort
)

var ErrExhausted = errors.New("attempts exhausted")

// Policy is a fixed-delay, bounded-attempt retry policy.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration

	// Sleep waits between attempts; defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

func Default() Policy {
	return Policy{MaxAttempts: 5, Delay: 15 * time.Second}
}

// Outcome describes how polling ended.
type Outcome struct {
	Attempts int
	Done     bool
	Err      error
}

// Poll calls fn until it reports Done or Abort or the attempt budget is spent.
// Errors returned alongside Retry are kept as the last error and do not stop
// polling. There is no delay after the final attempt.
func (p Policy) Poll(ctx context.Context, fn func(ctx context.Context, attempt int) (Result, error)) Outcome {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = wait
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := fn(ctx, attempt)
		switch result {
		case Done:
			return Outcome{Attempts: attempt, Done: true}
		case Abort:
			return Outcome{Attempts: attempt, Err: err}
		}
		lastErr = err

		if attempt == maxAttempts {
			break
		}
		if err := sleep(ctx, p.Delay); err != nil {
			return Outcome{Attempts: attempt, Err: err}
		}
	}
	if lastErr == nil {
		lastErr = ErrExhausted
	}
	return Outcome{Attempts: maxAttempts, Err: lastErr}
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
