package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/page-watcher/internal/watch"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Example.com/path", "example.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"just host", "example.com", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"ip address", "192.168.1.1", "192.168.1.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestRunObservations(t *testing.T) {
	t.Parallel()

	run := NewRun("https://Shop.Example.com/deals")
	assert.Equal(t, "shop.example.com", run.Site())

	at := time.Unix(1700000000, 0)
	run.ObserveFetch(watch.Page{Attempts: 2, Duration: 1500 * time.Millisecond, Body: []byte("12345")})
	run.ObserveOutcome(watch.OutcomeUnchanged, at)

	assert.Equal(t, 2.0, testutil.ToFloat64(run.fetchAttempts))
	assert.Equal(t, 1.5, testutil.ToFloat64(run.fetchDuration))
	assert.Equal(t, 5.0, testutil.ToFloat64(run.pageBytes))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(run.lastRun))
	assert.Equal(t, 1.0, testutil.ToFloat64(run.outcome.WithLabelValues("unchanged")))

	count, err := testutil.GatherAndCount(run.Registry(), "pagewatch_last_change_timestamp_seconds")
	require.NoError(t, err)
	assert.Equal(t, 0, count, "no change gauge until a change happens")

	run.ObserveOutcome(watch.OutcomeChanged, at.Add(time.Minute))
	run.ObserveOutcome(watch.OutcomeChanged, at.Add(2*time.Minute))
	assert.Equal(t, 1700000120.0, testutil.ToFloat64(run.lastChange))
	assert.Equal(t, 1, testutil.CollectAndCount(run.outcome), "outcome is reset on every observation")

	run.ObserveNotification("email", "sent")
	run.ObserveNotification("whatsapp", "failed")
	assert.Equal(t, 2, testutil.CollectAndCount(run.notifications))
}

func TestFlushTextfile(t *testing.T) {
	t.Parallel()

	run := NewRun("https://example.com")
	run.ObserveFetchFailure(3)
	run.ObserveOutcome(watch.OutcomeNetworkFailure, time.Unix(10, 0))

	path := filepath.Join(t.TempDir(), "pagewatch.prom")
	require.NoError(t, run.Flush(context.Background(), FlushConfig{Textfile: path}))

	// #nosec G304 -- test reads from the controlled temp directory.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `pagewatch_last_run_outcome{outcome="network_failure"} 1`)
	assert.Contains(t, text, "pagewatch_fetch_attempts 3")
}

func TestFlushPushgateway(t *testing.T) {
	t.Parallel()

	var (
		method string
		path   string
		body   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		path = r.URL.Path
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	run := NewRun("https://example.com")
	run.ObserveOutcome(watch.OutcomeChanged, time.Unix(10, 0))
	require.NoError(t, run.Flush(context.Background(), FlushConfig{PushgatewayURL: srv.URL}))

	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, "/metrics/job/pagewatch/site/example.com", path)
	assert.True(t, strings.Contains(body, "pagewatch_last_change_timestamp_seconds"))
}

func TestFlushReportsErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	run := NewRun("https://example.com")
	err := run.Flush(context.Background(), FlushConfig{
		PushgatewayURL: srv.URL,
		Textfile:       filepath.Join(t.TempDir(), "missing-dir", "x.prom"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "push metrics")
	assert.Contains(t, err.Error(), "write metrics textfile")
}

func TestFlushConfigEnabled(t *testing.T) {
	t.Parallel()

	assert.False(t, FlushConfig{}.Enabled())
	assert.True(t, FlushConfig{Textfile: "x"}.Enabled())
	assert.True(t, FlushConfig{PushgatewayURL: "http://pg"}.Enabled())
	assert.NoError(t, NewRun("https://example.com").Flush(context.Background(), FlushConfig{}))
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://example.com", "https://google.com", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		sanitized := SanitizeSite(orig)
		if sanitized == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
