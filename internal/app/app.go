// Package app initializes and holds the services of one watcher invocation,
// acting as a dependency injection container.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/page-watcher/internal/clock/system"
	"github.com/JakeFAU/page-watcher/internal/config"
	"github.com/JakeFAU/page-watcher/internal/extract"
	collyfetcher "github.com/JakeFAU/page-watcher/internal/fetcher/colly"
	"github.com/JakeFAU/page-watcher/internal/fetcher/headless"
	"github.com/JakeFAU/page-watcher/internal/fetcher/retry"
	"github.com/JakeFAU/page-watcher/internal/history"
	"github.com/JakeFAU/page-watcher/internal/history/postgres"
	"github.com/JakeFAU/page-watcher/internal/id/uuid"
	"github.com/JakeFAU/page-watcher/internal/metrics"
	"github.com/JakeFAU/page-watcher/internal/notify"
	"github.com/JakeFAU/page-watcher/internal/state"
	"github.com/JakeFAU/page-watcher/internal/watch"
	"github.com/JakeFAU/page-watcher/internal/watcher"
)

// App holds the services built from one Config. It is created once per
// process and closed by the CLI after the command finishes.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	store    *state.Store
	runner   *watcher.Runner
	notifier *notify.Notifier

	closers []func() error
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Store exposes the state store.
func (a *App) Store() *state.Store {
	return a.store
}

// Runner exposes the run orchestrator.
func (a *App) Runner() *watcher.Runner {
	return a.runner
}

// New builds every service needed by a check. The configuration must already
// be validated. History is best effort: a database that cannot be reached is
// logged and skipped.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}
	logger.Debug("initializing services",
		zap.String("method", cfg.Method()),
		zap.String("state", cfg.State.Location),
		zap.Bool("headless", cfg.Fetch.Headless),
	)

	store, err := state.Open(ctx, cfg.State.Location, logger.Named("state"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize state store: %w", err)
	}
	a.store = store
	a.closers = append(a.closers, store.Close)

	ext, err := extract.New(extract.Config{
		Selector:      cfg.Watch.Selector,
		Keywords:      cfg.Watch.Keywords,
		KeywordSignal: cfg.Watch.SignalMode == config.SignalModeKeywords,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}

	a.notifier = a.buildNotifier()
	runner, err := watcher.New(watcher.Config{
		URL: cfg.Watch.URL,
		Metrics: metrics.FlushConfig{
			PushgatewayURL: cfg.Metrics.PushgatewayURL,
			Job:            cfg.Metrics.Job,
			Textfile:       cfg.Metrics.Textfile,
		},
	}, watcher.Deps{
		Fetcher:   a.buildFetcher(),
		Extractor: ext,
		Store:     store,
		Notifier:  a.notifier,
		Recorder:  a.buildRecorder(ctx),
		Clock:     system.New(),
		IDs:       uuid.NewGenerator(),
		Logger:    logger.Named("watcher"),
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize watcher: %w", err)
	}
	a.runner = runner
	return a, nil
}

// NewStoreOnly opens just the state store, for commands that inspect state.
func NewStoreOnly(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	store, err := state.Open(ctx, cfg.State.Location, logger.Named("state"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize state store: %w", err)
	}
	return &App{cfg: cfg, logger: logger, store: store, closers: []func() error{store.Close}}, nil
}

func (a *App) buildFetcher() watch.Fetcher {
	var base watch.Fetcher
	if a.cfg.Fetch.Headless {
		hf := headless.NewChromedp(headless.Config{
			UserAgent:         a.cfg.Fetch.UserAgent,
			NavigationTimeout: a.cfg.Fetch.Timeout,
		})
		a.closers = append(a.closers, hf.Close)
		base = hf
	} else {
		base = collyfetcher.New(collyfetcher.Config{
			UserAgent:     a.cfg.Fetch.UserAgent,
			RespectRobots: a.cfg.Fetch.RespectRobots,
			Timeout:       a.cfg.Fetch.Timeout,
		})
	}
	return retry.New(base, retry.Config{Attempts: a.cfg.Fetch.Retries}, a.logger.Named("fetcher"))
}

func (a *App) buildNotifier() *notify.Notifier {
	n := a.cfg.Notify
	email := notify.NewEmail(notify.EmailConfig{
		Host:     n.Email.Host,
		Port:     n.Email.Port,
		User:     n.Email.User,
		Password: n.Email.Password,
		To:       n.Email.To,
		From:     n.Email.From,
		Timeout:  n.Email.Timeout,
	})
	whatsapp := notify.NewWhatsApp(notify.WhatsAppConfig{
		AccountSID: n.WhatsApp.AccountSID,
		AuthToken:  n.WhatsApp.AuthToken,
		From:       n.WhatsApp.From,
		To:         n.WhatsApp.To,
		APIBase:    n.WhatsApp.APIBase,
		Timeout:    n.WhatsApp.Timeout,
	}, nil)
	pubsub := notify.NewPubSub(notify.PubSubConfig{
		ProjectID: n.PubSub.ProjectID,
		Topic:     n.PubSub.Topic,
	})
	a.closers = append(a.closers, pubsub.Close)
	return notify.New(a.logger.Named("notify"), email, whatsapp, pubsub)
}

func (a *App) buildRecorder(ctx context.Context) watch.Recorder {
	if a.cfg.History.DSN == "" {
		return history.Nop{}
	}
	rec, err := postgres.New(ctx, postgres.Config{DSN: a.cfg.History.DSN, Table: a.cfg.History.Table})
	if err != nil {
		a.logger.Warn("run history disabled", zap.Error(err))
		return history.Nop{}
	}
	if err := rec.EnsureSchema(ctx); err != nil {
		a.logger.Warn("run history disabled", zap.Error(err))
		rec.Close()
		return history.Nop{}
	}
	a.closers = append(a.closers, func() error { rec.Close(); return nil })
	return rec
}

// Close releases every service in reverse creation order and flushes the logger.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("error closing service", zap.Error(err))
		}
	}
	a.closers = nil
	// Sync on stderr commonly fails with EINVAL; nothing useful can be done.
	_ = a.logger.Sync()
}
