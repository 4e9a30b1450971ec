package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thelarryrutledge/nvlp-app-sub004/ledger"
	"github.com/thelarryrutledge/nvlp-app-sub004/resilience"
)

type fakeRefresher struct {
	calls int
	err   error
}

func (f *fakeRefresher) Refresh(context.Context) error {
	f.calls++
	return f.err
}

func newWrapper(r resilience.Refresher) *resilience.Wrapper {
	return resilience.New(r, resilience.Options{MaxAttempts: 3, BaseDelay: time.Millisecond}, zerolog.Nop())
}

func TestExecute_Success(t *testing.T) {
	w := newWrapper(nil)
	calls := 0
	err := w.Execute(context.Background(), "op", func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestExecute_StructuralErrorNotRetried(t *testing.T) {
	refresher := &fakeRefresher{}
	w := newWrapper(refresher)

	notFound := &ledger.NotFoundError{Kind: "envelope", ID: uuid.New()}
	calls := 0
	err := w.Execute(context.Background(), "op", func(context.Context) error {
		calls++
		return notFound
	})

	require.ErrorIs(t, err, ledger.ErrNotFound)
	assert.Equal(t, 1, calls)
	assert.Zero(t, refresher.calls)
}

func TestExecute_SessionExpiredTriggersOneRefreshAndRetry(t *testing.T) {
	refresher := &fakeRefresher{}
	w := newWrapper(refresher)

	calls := 0
	err := w.Execute(context.Background(), "op", func(context.Context) error {
		calls++
		if calls == 1 {
			return ledger.ErrSessionExpired
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, refresher.calls)
}

func TestExecute_RefreshRetriedOnlyOnce(t *testing.T) {
	refresher := &fakeRefresher{}
	w := newWrapper(refresher)

	calls := 0
	err := w.Execute(context.Background(), "op", func(context.Context) error {
		calls++
		return ledger.ErrSessionExpired
	})

	require.ErrorIs(t, err, ledger.ErrSessionExpired)
	assert.Equal(t, 2, calls, "one refresh, one retry, then surface")
	assert.Equal(t, 1, refresher.calls)
}

func TestExecute_FailedRefreshSurfaces(t *testing.T) {
	refresher := &fakeRefresher{err: errors.New("token endpoint down: connection refused")}
	w := newWrapper(refresher)

	err := w.Execute(context.Background(), "op", func(context.Context) error {
		return ledger.ErrSessionExpired
	})

	require.Error(t, err)
	assert.True(t, ledger.IsTransient(err))
}

func TestExecuteRetry_TransientRetriedWithBound(t *testing.T) {
	w := newWrapper(nil)

	calls := 0
	err := w.ExecuteRetry(context.Background(), "op", func(context.Context) error {
		calls++
		return ledger.ErrServiceUnavailable
	})

	require.ErrorIs(t, err, ledger.ErrServiceUnavailable)
	assert.Equal(t, 3, calls, "MaxAttempts bounds the loop")
}

func TestExecuteRetry_RecoversAfterTransientFailure(t *testing.T) {
	w := newWrapper(nil)

	calls := 0
	err := w.ExecuteRetry(context.Background(), "op", func(context.Context) error {
		calls++
		if calls < 3 {
			return ledger.ErrServiceUnavailable
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestExecuteRetry_ValidationNeverRetried(t *testing.T) {
	w := newWrapper(nil)

	calls := 0
	err := w.ExecuteRetry(context.Background(), "op", func(context.Context) error {
		calls++
		return &ledger.ValidationError{Field: "amount", Reason: "must be greater than zero"}
	})

	require.ErrorIs(t, err, ledger.ErrValidation)
	assert.Equal(t, 1, calls)
}

func TestExecuteRetry_HonorsContextCancellation(t *testing.T) {
	w := resilience.New(nil, resilience.Options{MaxAttempts: 10, BaseDelay: time.Hour}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := w.ExecuteRetry(ctx, "op", func(context.Context) error {
		return ledger.ErrServiceUnavailable
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		in   error
		want func(error) bool
	}{
		{"taxonomy passes through", ledger.ErrNotFound, ledger.IsNotFound},
		{"sqlite busy is transient", errors.New("database is locked"), ledger.IsTransient},
		{"network timeout is transient", errors.New("dial tcp: i/o timeout"), ledger.IsTransient},
		{"unknown is internal", errors.New("disk says no"), func(err error) bool {
			return errors.Is(err, ledger.ErrInternal)
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := resilience.Classify("op", tc.in)
			assert.True(t, tc.want(got), "got %v", got)
		})
	}
}

func TestExecuteValue(t *testing.T) {
	w := newWrapper(nil)

	got, err := resilience.ExecuteValue(context.Background(), w, "op", func(context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)

	_, err = resilience.ExecuteValue(context.Background(), w, "op", func(context.Context) (int, error) {
		return 0, errors.New("database is locked")
	})
	assert.True(t, ledger.IsTransient(err))
}
