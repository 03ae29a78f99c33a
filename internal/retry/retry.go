// Package retry wraps github.com/cenkalti/backoff/v4 with the
// exponential-backoff-plus-jitter and token-budget-doubling behavior the
// cluster titling pipeline and remote model/embedding signals need around
// an external collaborator call (spec.md §4.F, §6, §7).
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Transient marks an error as retryable (rate limit, timeout, connection
// reset). Errors that don't implement this are treated as permanent and
// abort the retry loop immediately.
type Transient interface {
	error
	Transient() bool
}

// TransientError is the concrete TransientRemoteError from spec.md §7.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string   { return "transient remote error: " + e.Err.Error() }
func (e *TransientError) Unwrap() error   { return e.Err }
func (e *TransientError) Transient() bool { return true }

// Budget bounds a retry loop by attempt count, not wall time, per spec.md §5
// ("a retry budget (counted attempts, not wall time)").
type Budget struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
}

// DefaultBudget mirrors the teacher's conservative external-call defaults.
func DefaultBudget() Budget {
	return Budget{MaxAttempts: 5, InitialWait: 500 * time.Millisecond, MaxWait: 30 * time.Second}
}

func (b Budget) newBackoff() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = b.InitialWait
	eb.MaxInterval = b.MaxWait
	eb.RandomizationFactor = 0.5 // jitter
	return backoff.WithMaxRetries(eb, uint64(b.MaxAttempts))
}

// Do runs fn until it succeeds, a non-transient error is returned, or the
// budget is exhausted. It does not itself grow any token budget — see
// DoWithBudgetDoubling for that behavior.
func Do(ctx context.Context, budget Budget, fn func(ctx context.Context) error) error {
	return backoff.Retry(func() error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		var t Transient
		if errors.As(err, &t) && t.Transient() {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(budget.newBackoff(), ctx))
}

// TokenBudget tracks a doubling max-token ceiling, per spec.md §4.F:
// "doubles the max-token budget on 'incomplete output' up to a ceiling".
type TokenBudget struct {
	current int
	ceiling int
}

func NewTokenBudget(initial, ceiling int) *TokenBudget {
	return &TokenBudget{current: initial, ceiling: ceiling}
}

// Current returns the token budget to use for the next attempt.
func (t *TokenBudget) Current() int { return t.current }

// Double grows the budget up to the ceiling. Returns false if already at
// the ceiling (caller should give up growing and treat as exhausted).
func (t *TokenBudget) Double() bool {
	if t.current >= t.ceiling {
		return false
	}
	t.current *= 2
	if t.current > t.ceiling {
		t.current = t.ceiling
	}
	return true
}

// ErrIncompleteOutput signals the callee truncated its output because the
// token budget was too small; the caller should grow TokenBudget and retry.
var ErrIncompleteOutput = errors.New("incomplete output")

// RunWithSentinel retries fn (which receives the current token budget),
// doubling the budget on ErrIncompleteOutput, and on transient errors via
// Do's backoff. On exhaustion (budget ceiling reached, or retry budget
// exhausted), it returns sentinel instead of propagating the error, per
// spec.md's "writes a sentinel string (FAILED_TO_TITLE)" rule.
func RunWithSentinel(ctx context.Context, budget Budget, tokens *TokenBudget, sentinel string, fn func(ctx context.Context, maxTokens int) (string, error)) string {
	for {
		var result string
		err := Do(ctx, budget, func(ctx context.Context) error {
			r, err := fn(ctx, tokens.Current())
			if err != nil {
				return err
			}
			result = r
			return nil
		})
		if err == nil {
			return result
		}
		if errors.Is(err, ErrIncompleteOutput) {
			if tokens.Double() {
				continue
			}
		}
		return sentinel
	}
}
