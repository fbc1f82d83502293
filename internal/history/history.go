// Package history records one row per watcher run.
package history

import (
	"context"

	"github.com/JakeFAU/page-watcher/internal/watch"
)

// Nop discards records. It is used when no history database is configured.
type Nop struct{}

var _ watch.Recorder = Nop{}

// Record implements watch.Recorder.
func (Nop) Record(context.Context, watch.RunRecord) error { return nil }
