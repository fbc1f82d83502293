// Package notify delivers change alerts over every configured channel.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/page-watcher/internal/watch"
)

// Status is the per-channel delivery outcome.
type Status string

// Delivery statuses.
const (
	StatusSent          Status = "sent"
	StatusFailed        Status = "failed"
	StatusNotConfigured Status = "not_configured"
)

// Channel is one delivery mechanism.
type Channel interface {
	Name() string
	// Configured reports whether every required credential is present.
	Configured() bool
	Send(ctx context.Context, msg Message) error
}

// Result reports what happened on one channel.
type Result struct {
	Channel string
	Status  Status
	Err     error
}

// Notifier fans a message out to its channels.
type Notifier struct {
	channels []Channel
	logger   *zap.Logger
}

// New creates a Notifier over channels, attempted in the given order.
func New(logger *zap.Logger, channels ...Channel) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{channels: channels, logger: logger}
}

// Notify attempts every channel independently; a failure on one never stops
// the others. It never returns an error: outcomes are reported per channel.
func (n *Notifier) Notify(ctx context.Context, msg Message) []Result {
	results := make([]Result, 0, len(n.channels))
	for _, ch := range n.channels {
		res := Result{Channel: ch.Name()}
		switch {
		case !ch.Configured():
			res.Status = StatusNotConfigured
			n.logger.Info("notification channel not configured", zap.String("channel", ch.Name()))
		default:
			if err := ch.Send(ctx, msg); err != nil {
				res.Status = StatusFailed
				res.Err = err
				n.logger.Error("notification failed", zap.String("channel", ch.Name()), zap.Error(err))
			} else {
				res.Status = StatusSent
				n.logger.Info("notification sent", zap.String("channel", ch.Name()))
			}
		}
		results = append(results, res)
	}
	if !AnySent(results) {
		n.logger.Warn("no notifications were sent, check channel configuration")
	}
	return results
}

// AnySent reports whether at least one channel delivered.
func AnySent(results []Result) bool {
	for _, r := range results {
		if r.Status == StatusSent {
			return true
		}
	}
	return false
}

// Deliveries converts results into history rows.
func Deliveries(results []Result) []watch.Delivery {
	out := make([]watch.Delivery, 0, len(results))
	for _, r := range results {
		d := watch.Delivery{Channel: r.Channel, Status: string(r.Status)}
		if r.Err != nil {
			d.Error = r.Err.Error()
		}
		out = append(out, d)
	}
	return out
}
