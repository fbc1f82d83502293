package watch

import (
	"time"
)

// Outcome classifies a single watcher invocation.
type Outcome string

// Run outcomes. They drive both notification and the process exit status.
const (
	OutcomeBaseline       Outcome = "baseline"
	OutcomeUnchanged      Outcome = "unchanged"
	OutcomeChanged        Outcome = "changed"
	OutcomeNetworkFailure Outcome = "network_failure"
	OutcomeConfigError    Outcome = "config_error"
	OutcomeFatal          Outcome = "fatal"
	OutcomeInterrupted    Outcome = "interrupted"
	OutcomeForcedTest     Outcome = "forced_test"
)

// Method names the extraction strategy that produced a result.
type Method string

// Extraction methods recorded in metadata.
const (
	MethodSelector Method = "selector"
	MethodKeywords Method = "keywords"
	MethodTest     Method = "test"
)

// State is the durable record kept between runs for one target.
// LastHash is nil until the first successful run and is never cleared afterwards.
type State struct {
	LastHash    *string    `json:"last_hash"`
	LastMatch   *string    `json:"last_match"`
	LastChecked *time.Time `json:"last_checked"`
}

// HasBaseline reports whether a fingerprint has ever been stored.
func (s State) HasBaseline() bool {
	return s.LastHash != nil
}

// Metadata carries structured facts about an extraction. It feeds notification
// content only and never participates in change detection.
type Metadata struct {
	Method          Method   `json:"method"`
	Selector        string   `json:"selector,omitempty"`
	Found           bool     `json:"found"`
	Length          int      `json:"length,omitempty"`
	TotalKeywords   int      `json:"total_keywords,omitempty"`
	MatchedKeywords []string `json:"matched_keywords,omitempty"`
	PageLength      int      `json:"page_length,omitempty"`
}

// ExtractionResult is produced once per run from the fetched page.
type ExtractionResult struct {
	// Signal is the exact string whose fingerprint is compared across runs.
	Signal   string
	Summary  string
	Metadata Metadata
}

// Page is the body and transport facts returned by a Fetcher.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Body       []byte
	Duration   time.Duration
	Attempts   int
}

// Delivery summarizes the result of one notification channel for history rows.
type Delivery struct {
	Channel string `json:"channel"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

// RunRecord is one row of run history.
type RunRecord struct {
	RunID       string
	URL         string
	Outcome     Outcome
	Fingerprint string
	Summary     string
	CheckedAt   time.Time
	Attempts    int
	ErrorText   string
	Deliveries  []Delivery
}
