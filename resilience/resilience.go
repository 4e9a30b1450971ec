/*
Package resilience wraps store operations with classification, credential
refresh, and bounded retry.

PURPOSE:
  The only layer that inspects raw store errors and remaps them into the
  ledger taxonomy, and the only layer where retries happen. Everything
  above it sees taxonomy errors only.

BEHAVIOR:
  Execute:      run the operation once; on an auth-expiry error, refresh
                credentials and retry exactly once. Structural errors
                (validation, not-found, conflict) surface immediately.
  ExecuteRetry: additionally retry transient errors with exponential
                backoff across a bounded number of attempts. Structural
                errors are still never retried.

CLASSIFICATION:
  Errors already in the taxonomy pass through untouched. Raw driver or
  network errors are remapped: busy/locked/timeout/connection failures
  become ErrServiceUnavailable, everything else becomes an InternalError
  wrapping the cause.

SEE ALSO:
  - ledger/errors.go: The taxonomy and its classification helpers
*/
package resilience

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/thelarryrutledge/nvlp-app-sub004/ledger"
)

// Refresher renews lapsed credentials. Implementations talk to the
// hosting platform's token endpoint; tests inject fakes.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// NoopRefresher satisfies Refresher for stores that carry no credentials
// (the embedded SQLite and in-memory stores).
type NoopRefresher struct{}

func (NoopRefresher) Refresh(context.Context) error { return nil }

// Options bound the retry loop.
type Options struct {
	MaxAttempts int           // total attempts for ExecuteRetry, including the first
	BaseDelay   time.Duration // delay before the second attempt, doubled each retry
}

func DefaultOptions() Options {
	return Options{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond}
}

// Wrapper applies the resilience policy around store operations.
type Wrapper struct {
	refresher Refresher
	opts      Options
	log       zerolog.Logger
}

func New(r Refresher, opts Options, log zerolog.Logger) *Wrapper {
	if r == nil {
		r = NoopRefresher{}
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 100 * time.Millisecond
	}
	return &Wrapper{refresher: r, opts: opts, log: log}
}

// Execute runs op, classifying its error. An auth-expiry failure gets
// one credential refresh and a single retry; everything else surfaces
// after classification.
func (w *Wrapper) Execute(ctx context.Context, name string, op func(context.Context) error) error {
	err := op(ctx)
	if err == nil {
		return nil
	}
	err = Classify(name, err)

	if !ledger.IsAuthExpiry(err) {
		return err
	}

	w.log.Debug().Str("op", name).Msg("credentials expired, refreshing")
	if refreshErr := w.refresher.Refresh(ctx); refreshErr != nil {
		return Classify(name+" (refresh)", refreshErr)
	}
	if err := op(ctx); err != nil {
		return Classify(name, err)
	}
	return nil
}

// ExecuteRetry behaves like Execute and additionally retries transient
// failures with exponential backoff. Structural errors abort the loop
// immediately; ctx cancellation is honored between attempts.
func (w *Wrapper) ExecuteRetry(ctx context.Context, name string, op func(context.Context) error) error {
	delay := w.opts.BaseDelay

	var err error
	for attempt := 1; attempt <= w.opts.MaxAttempts; attempt++ {
		err = w.Execute(ctx, name, op)
		if err == nil {
			return nil
		}
		if !ledger.IsTransient(err) {
			return err
		}
		if attempt == w.opts.MaxAttempts {
			break
		}

		w.log.Warn().Str("op", name).Int("attempt", attempt).Dur("backoff", delay).
			Err(err).Msg("transient store failure, backing off")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}

// ExecuteValue is Execute for operations that return a value.
func ExecuteValue[T any](ctx context.Context, w *Wrapper, name string, op func(context.Context) (T, error)) (T, error) {
	var out T
	err := w.Execute(ctx, name, func(ctx context.Context) error {
		var opErr error
		out, opErr = op(ctx)
		return opErr
	})
	return out, err
}

// =============================================================================
// CLASSIFICATION
// =============================================================================

// Classify remaps a raw store error into the taxonomy. Errors that are
// already taxonomy members pass through unchanged.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if inTaxonomy(err) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if looksTransient(err) {
		return fmt.Errorf("%s: %w: %v", op, ledger.ErrServiceUnavailable, err)
	}
	return &ledger.InternalError{Op: op, Err: err}
}

func inTaxonomy(err error) bool {
	return ledger.IsStructural(err) ||
		ledger.IsAuthExpiry(err) ||
		ledger.IsTransient(err) ||
		errors.Is(err, ledger.ErrInternal)
}

// looksTransient matches the failure modes a retry can plausibly fix:
// SQLite busy/locked, network timeouts, refused or reset connections.
func looksTransient(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"database is locked",
		"database table is locked",
		"busy",
		"timeout",
		"timed out",
		"connection refused",
		"connection reset",
		"broken pipe",
		"temporarily unavailable",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
