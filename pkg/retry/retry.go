package retry

import (
	"context"
	"fmt"
	"time"
)

var ErrExhausted = fmt.Errorf("retry bound exceeded")

// Attempt performs one round and reports whether the goal is reached.
// A returned error fails the round but does not stop the loop.
type Attempt func(ctx context.Context, round int) (done bool, err error)

type Options struct {
	MaxRounds int
	// Backoff is slept between two rounds.
	Backoff time.Duration
	// OnFailure observes errors returned by failed rounds.
	OnFailure func(round int, err error)
}

// Bounded runs attempt until it reports done, at most MaxRounds times.
// It returns the number of rounds executed; ErrExhausted wraps the last round error, if any.
func Bounded(ctx context.Context, opts Options, attempt Attempt) (int, error) {
	if opts.MaxRounds <= 0 {
		return 0, fmt.Errorf("invalid max rounds %d", opts.MaxRounds)
	}

	var lastErr error
	for round := 1; round <= opts.MaxRounds; round++ {
		if round > 1 && opts.Backoff > 0 {
			select {
			case <-ctx.Done():
				return round - 1, ctx.Err()
			case <-time.After(opts.Backoff):
			}
		}

		if err := ctx.Err(); err != nil {
			return round - 1, err
		}

		done, err := attempt(ctx, round)
		if err != nil {
			lastErr = err
			if opts.OnFailure != nil {
				opts.OnFailure(round, err)
			}
			continue
		}

		if done {
			return round, nil
		}
	}

	if lastErr != nil {
		return opts.MaxRounds, fmt.Errorf("%w after %d rounds: %w", ErrExhausted, opts.MaxRounds, lastErr)
	}

	return opts.MaxRounds, fmt.Errorf("%w after %d rounds", ErrExhausted, opts.MaxRounds)
}
