package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/JakeFAU/page-watcher/internal/watch"
)

type scriptedFetcher struct {
	errs  []error
	calls int
}

func (s *scriptedFetcher) Fetch(_ context.Context, url string) (watch.Page, error) {
	idx := s.calls
	s.calls++
	if idx < len(s.errs) && s.errs[idx] != nil {
		return watch.Page{}, s.errs[idx]
	}
	return watch.Page{URL: url, StatusCode: 200, Body: []byte("ok")}, nil
}

type recordingSleeper struct {
	waits []time.Duration
}

func (r *recordingSleeper) Sleep(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

func TestFetchSucceedsFirstTry(t *testing.T) {
	t.Parallel()

	next := &scriptedFetcher{}
	sleeper := &recordingSleeper{}
	f := New(next, Config{Attempts: 3, Sleep: sleeper.Sleep}, zaptest.NewLogger(t))

	page, err := f.Fetch(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, page.Attempts)
	assert.Equal(t, 1, next.calls)
	assert.Empty(t, sleeper.waits)
}

func TestFetchRecoversAfterFailures(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection reset")
	next := &scriptedFetcher{errs: []error{boom, boom}}
	sleeper := &recordingSleeper{}
	f := New(next, Config{Attempts: 3, Sleep: sleeper.Sleep}, zaptest.NewLogger(t))

	page, err := f.Fetch(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, 3, page.Attempts)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeper.waits)
}

func TestFetchExhaustsAttempts(t *testing.T) {
	t.Parallel()

	boom := errors.New("timeout")
	next := &scriptedFetcher{errs: []error{boom, boom, boom}}
	sleeper := &recordingSleeper{}
	f := New(next, Config{Attempts: 3, Sleep: sleeper.Sleep}, zaptest.NewLogger(t))

	_, err := f.Fetch(context.Background(), "https://example.com")
	require.Error(t, err)

	var netErr *watch.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, 3, netErr.Attempts)
	assert.Equal(t, "https://example.com", netErr.URL)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, next.calls)
	// No wait after the last failure.
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeper.waits)
}

func TestFetchStopsOnCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	next := &scriptedFetcher{errs: []error{context.Canceled}}
	sleeper := &recordingSleeper{}
	f := New(next, Config{Attempts: 3, Sleep: sleeper.Sleep}, nil)

	_, err := f.Fetch(ctx, "https://example.com")
	require.ErrorIs(t, err, context.Canceled)
	var netErr *watch.NetworkError
	assert.False(t, errors.As(err, &netErr))
	assert.Equal(t, 1, next.calls)
	assert.Empty(t, sleeper.waits)
}

func TestFetchSleepInterrupted(t *testing.T) {
	t.Parallel()

	next := &scriptedFetcher{errs: []error{errors.New("boom")}}
	f := New(next, Config{
		Attempts: 3,
		Sleep: func(context.Context, time.Duration) error {
			return context.Canceled
		},
	}, nil)

	_, err := f.Fetch(context.Background(), "https://example.com")
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, next.calls)
}

func TestBackoffDoubles(t *testing.T) {
	t.Parallel()

	f := New(&scriptedFetcher{}, Config{BaseDelay: 100 * time.Millisecond}, nil)
	assert.Equal(t, 100*time.Millisecond, f.Backoff(0))
	assert.Equal(t, 200*time.Millisecond, f.Backoff(1))
	assert.Equal(t, 400*time.Millisecond, f.Backoff(2))
}

func TestDefaults(t *testing.T) {
	t.Parallel()

	f := New(&scriptedFetcher{}, Config{}, nil)
	assert.Equal(t, DefaultAttempts, f.cfg.Attempts)
	assert.Equal(t, DefaultBaseDelay, f.cfg.BaseDelay)
	assert.NotNil(t, f.cfg.Sleep)
}

func TestSleepContext(t *testing.T) {
	t.Parallel()

	require.NoError(t, SleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, SleepContext(ctx, time.Hour), context.Canceled)
}
