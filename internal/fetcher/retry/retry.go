// Package retry wraps a watch.Fetcher with bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/page-watcher/internal/watch"
)

const (
	// DefaultAttempts is the number of fetch attempts per check.
	DefaultAttempts = 3
	// DefaultBaseDelay is the wait after the first failure; each later wait doubles.
	DefaultBaseDelay = time.Second
)

// Sleeper pauses for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Config tunes the retry loop.
type Config struct {
	Attempts  int
	BaseDelay time.Duration
	Sleep     Sleeper
}

// Fetcher retries transient fetch failures.
type Fetcher struct {
	next   watch.Fetcher
	cfg    Config
	logger *zap.Logger
}

var _ watch.Fetcher = (*Fetcher)(nil)

// New wraps next. Zero config values fall back to the defaults.
func New(next watch.Fetcher, cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.Attempts <= 0 {
		cfg.Attempts = DefaultAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.Sleep == nil {
		cfg.Sleep = SleepContext
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{next: next, cfg: cfg, logger: logger}
}

// Fetch tries up to Attempts times, waiting Backoff(i) after the i-th failure.
// No wait follows the final failure. Exhaustion yields *watch.NetworkError.
func (f *Fetcher) Fetch(ctx context.Context, url string) (watch.Page, error) {
	var lastErr error
	for attempt := 0; attempt < f.cfg.Attempts; attempt++ {
		f.logger.Info("fetching page",
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", f.cfg.Attempts),
		)
		page, err := f.next.Fetch(ctx, url)
		if err == nil {
			page.Attempts = attempt + 1
			f.logger.Info("page fetched",
				zap.Int("status", page.StatusCode),
				zap.Int("bytes", len(page.Body)),
				zap.Duration("duration", page.Duration),
			)
			return page, nil
		}
		if !Retryable(ctx, err) {
			return watch.Page{}, fmt.Errorf("fetch interrupted: %w", err)
		}
		lastErr = err
		if attempt == f.cfg.Attempts-1 {
			break
		}
		wait := f.Backoff(attempt)
		f.logger.Warn("fetch attempt failed",
			zap.Int("attempt", attempt+1),
			zap.Duration("retry_in", wait),
			zap.Error(err),
		)
		if err := f.cfg.Sleep(ctx, wait); err != nil {
			return watch.Page{}, fmt.Errorf("retry wait interrupted: %w", err)
		}
	}

	f.logger.Error("all fetch attempts failed",
		zap.Int("attempts", f.cfg.Attempts),
		zap.Error(lastErr),
	)
	return watch.Page{}, &watch.NetworkError{URL: url, Attempts: f.cfg.Attempts, Err: lastErr}
}

// Backoff returns BaseDelay * 2^attempt for a zero-based attempt index.
func (f *Fetcher) Backoff(attempt int) time.Duration {
	return f.cfg.BaseDelay << attempt
}

// Retryable reports whether err should trigger another attempt. Cancellation
// of the caller's context never does.
func Retryable(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if ctx.Err() != nil {
		return false
	}
	return !errors.Is(err, context.Canceled)
}

// SleepContext waits for d unless ctx finishes first.
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
