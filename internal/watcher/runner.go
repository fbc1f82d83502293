// Package watcher runs one check of the monitored page: load state, fetch,
// extract, classify, notify, persist.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/page-watcher/internal/history"
	"github.com/JakeFAU/page-watcher/internal/logging"
	"github.com/JakeFAU/page-watcher/internal/metrics"
	"github.com/JakeFAU/page-watcher/internal/notify"
	"github.com/JakeFAU/page-watcher/internal/watch"
)

const finishTimeout = 10 * time.Second

// Notifier delivers an alert on every channel and reports per-channel results.
type Notifier interface {
	Notify(ctx context.Context, msg notify.Message) []notify.Result
}

// IDGenerator issues run identifiers.
type IDGenerator interface {
	MustRunID() string
}

// Deps are the collaborators of a Runner. Recorder, IDs and Logger are optional.
type Deps struct {
	Fetcher   watch.Fetcher
	Extractor watch.Extractor
	Store     watch.StateStore
	Notifier  Notifier
	Recorder  watch.Recorder
	Clock     watch.Clock
	IDs       IDGenerator
	Logger    *zap.Logger
}

// Config describes the target and where run metrics go.
type Config struct {
	URL     string
	Metrics metrics.FlushConfig
}

// Report summarizes one invocation.
type Report struct {
	RunID       string
	Outcome     watch.Outcome
	Fingerprint string
	Extraction  watch.ExtractionResult
	Deliveries  []notify.Result
	Attempts    int
	// Err carries the fetch failure for network_failure outcomes.
	Err error
}

// Runner executes checks.
type Runner struct {
	cfg  Config
	deps Deps
}

// New validates deps and builds a Runner.
func New(cfg Config, deps Deps) (*Runner, error) {
	if cfg.URL == "" {
		return nil, errors.New("watcher: url is required")
	}
	if deps.Store == nil || deps.Notifier == nil || deps.Clock == nil {
		return nil, errors.New("watcher: store, notifier and clock are required")
	}
	if deps.Recorder == nil {
		deps.Recorder = history.Nop{}
	}
	if deps.IDs == nil {
		deps.IDs = staticID("")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Runner{cfg: cfg, deps: deps}, nil
}

// Run performs one check. A nil error means the run finished normally, which
// includes network_failure: the fetch is retried on the next scheduled run and
// the stored state is left untouched. A non-nil error is either an
// interruption (errors.Is context.Canceled) or a fatal failure.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	if r.deps.Fetcher == nil || r.deps.Extractor == nil {
		return Report{}, errors.New("watcher: fetcher and extractor are required for checks")
	}
	report := Report{RunID: r.deps.IDs.MustRunID()}
	logger := logging.ForRun(r.deps.Logger, report.RunID, r.cfg.URL)
	runMetrics := metrics.NewRun(r.cfg.URL)

	report, err := r.check(ctx, logger, runMetrics, report)
	if err != nil {
		report.Outcome = classifyError(ctx, err)
		if report.Outcome == watch.OutcomeInterrupted {
			logger.Warn("run interrupted", zap.Error(err))
		}
	}
	at := r.deps.Clock.Now()
	runMetrics.ObserveOutcome(report.Outcome, at)
	r.finish(ctx, logger, runMetrics, report, err, at)
	return report, err
}

func (r *Runner) check(ctx context.Context, logger *zap.Logger, m *metrics.Run, report Report) (Report, error) {
	prev, err := r.deps.Store.Load(ctx)
	if err != nil {
		return report, fmt.Errorf("load state: %w", err)
	}

	page, err := r.deps.Fetcher.Fetch(ctx, r.cfg.URL)
	if err != nil {
		var netErr *watch.NetworkError
		if errors.As(err, &netErr) && ctx.Err() == nil {
			report.Outcome = watch.OutcomeNetworkFailure
			report.Attempts = netErr.Attempts
			report.Err = err
			m.ObserveFetchFailure(netErr.Attempts)
			logger.Error("network error, will retry on next run", zap.Error(err))
			return report, nil
		}
		return report, fmt.Errorf("fetch page: %w", err)
	}
	report.Attempts = page.Attempts
	m.ObserveFetch(page)

	result, err := r.deps.Extractor.Extract(page.Body)
	if err != nil {
		return report, fmt.Errorf("extract signal: %w", err)
	}
	report.Extraction = result
	logger.Info("signal extracted",
		zap.String("method", string(result.Metadata.Method)),
		zap.String("summary", result.Summary),
	)

	outcome, fingerprint := watch.Classify(prev.LastHash, result.Signal)
	report.Outcome = outcome
	report.Fingerprint = fingerprint
	now := r.deps.Clock.Now()

	switch outcome {
	case watch.OutcomeBaseline:
		logger.Info("baseline established", zap.String("fingerprint", fingerprint))
	case watch.OutcomeUnchanged:
		logger.Info("no change detected", zap.String("fingerprint", fingerprint))
	case watch.OutcomeChanged:
		logger.Warn("change detected",
			zap.Stringp("previous", prev.LastHash),
			zap.String("fingerprint", fingerprint),
		)
		msg := notify.Compose(notify.Event{
			URL:             r.cfg.URL,
			CheckedAt:       now,
			Method:          result.Metadata.Method,
			MatchedKeywords: result.Metadata.MatchedKeywords,
			Summary:         result.Summary,
			RunID:           report.RunID,
		})
		report.Deliveries = r.deps.Notifier.Notify(ctx, msg)
		for _, d := range report.Deliveries {
			m.ObserveNotification(d.Channel, string(d.Status))
		}
		// The previous fingerprint stays stored so the next run alerts again.
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("notify: %w", err)
		}
	}

	next := watch.State{
		LastHash:    &fingerprint,
		LastMatch:   &result.Summary,
		LastChecked: &now,
	}
	if err := r.deps.Store.Save(ctx, next); err != nil {
		return report, fmt.Errorf("save state: %w", err)
	}
	return report, nil
}

// ForceTest sends synthetic content to every channel without fetching or
// touching state. Delivery failures are reported, never returned.
func (r *Runner) ForceTest(ctx context.Context) Report {
	report := Report{RunID: r.deps.IDs.MustRunID(), Outcome: watch.OutcomeForcedTest}
	logger := logging.ForRun(r.deps.Logger, report.RunID, r.cfg.URL)
	logger.Info("sending test notification")

	msg := notify.Compose(notify.TestEvent(r.cfg.URL, r.deps.Clock.Now()))
	msg.Event.RunID = report.RunID
	report.Deliveries = r.deps.Notifier.Notify(ctx, msg)
	return report
}

// finish writes the history row and flushes metrics. Both are best effort and
// still run after an interruption.
func (r *Runner) finish(ctx context.Context, logger *zap.Logger, m *metrics.Run, report Report, runErr error, at time.Time) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	defer cancel()

	record := watch.RunRecord{
		RunID:       report.RunID,
		URL:         r.cfg.URL,
		Outcome:     report.Outcome,
		Fingerprint: report.Fingerprint,
		Summary:     report.Extraction.Summary,
		CheckedAt:   at,
		Attempts:    report.Attempts,
		Deliveries:  notify.Deliveries(report.Deliveries),
	}
	switch {
	case runErr != nil:
		record.ErrorText = runErr.Error()
	case report.Err != nil:
		record.ErrorText = report.Err.Error()
	}
	if err := r.deps.Recorder.Record(ctx, record); err != nil {
		logger.Warn("failed to record run history", zap.Error(err))
	}

	if r.cfg.Metrics.Enabled() {
		if err := m.Flush(ctx, r.cfg.Metrics); err != nil {
			logger.Warn("failed to flush metrics", zap.Error(err))
		}
	}
}

func classifyError(ctx context.Context, err error) watch.Outcome {
	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return watch.OutcomeInterrupted
	}
	return watch.OutcomeFatal
}

type staticID string

func (s staticID) MustRunID() string { return string(s) }
