package watch

import (
	"context"
	"time"
)

// Fetcher retrieves the raw content of a page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// Extractor reduces raw HTML to a comparable signal.
type Extractor interface {
	Extract(html []byte) (ExtractionResult, error)
}

// StateStore loads and persists the watch state.
type StateStore interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, state State) error
}

// Recorder appends run history rows.
type Recorder interface {
	Record(ctx context.Context, record RunRecord) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
