package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/JakeFAU/page-watcher/internal/watch"
)

// Subject is used by every channel that has a subject line.
const Subject = "Page Watcher Alert: Change Detected!"

// TestKeyword marks the synthetic content of a forced test notification.
const TestKeyword = "TEST"

// Event is the structured description of a detected change.
type Event struct {
	URL             string       `json:"url"`
	CheckedAt       time.Time    `json:"checked_at"`
	Method          watch.Method `json:"method"`
	MatchedKeywords []string     `json:"matched_keywords"`
	Summary         string       `json:"summary,omitempty"`
	RunID           string       `json:"run_id,omitempty"`
}

// Message is the rendered alert handed to channels.
type Message struct {
	Subject string
	Body    string
	Event   Event
}

// Compose renders the human-readable alert for ev.
func Compose(ev Event) Message {
	ev.CheckedAt = ev.CheckedAt.UTC()
	matched := "N/A"
	if len(ev.MatchedKeywords) > 0 {
		matched = strings.Join(ev.MatchedKeywords, ", ")
	}
	method := string(ev.Method)
	if method == "" {
		method = "unknown"
	}

	var b strings.Builder
	b.WriteString("The monitored page has changed!\n\n")
	fmt.Fprintf(&b, "URL: %s\n", ev.URL)
	fmt.Fprintf(&b, "Time (UTC): %s\n", ev.CheckedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Matched keywords: %s\n", matched)
	fmt.Fprintf(&b, "Detection method: %s\n\n", method)
	b.WriteString("The page content has been modified.\n\n")
	fmt.Fprintf(&b, "Check the page now: %s\n", ev.URL)

	return Message{Subject: Subject, Body: b.String(), Event: ev}
}

// TestEvent builds the synthetic event sent in forced-test mode.
func TestEvent(url string, at time.Time) Event {
	return Event{
		URL:             url,
		CheckedAt:       at,
		Method:          watch.MethodTest,
		MatchedKeywords: []string{TestKeyword},
	}
}
