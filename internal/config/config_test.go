package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWithFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
watch:
  url: https://shop.example.com/deals
  keywords: ["Sale", "Clearance"]
  signal_mode: keywords
fetch:
  user_agent: test-agent
  timeout: 5s
  retries: 4
  respect_robots: true
state:
  location: gs://bucket/state.json
notify:
  email:
    host: smtp.example.com
    port: 2525
    user: bot@example.com
    password: secret
    to: ops@example.com
  whatsapp:
    account_sid: AC123
    auth_token: token
    from: "+15550001"
    to: "+15550002"
  pubsub:
    project_id: proj
    topic: changes
history:
  dsn: postgres://localhost/watch
metrics:
  textfile: /tmp/pagewatch.prom
logging:
  development: true
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "https://shop.example.com/deals", cfg.Watch.URL)
	assert.Equal(t, []string{"Sale", "Clearance"}, cfg.Watch.Keywords)
	assert.Equal(t, SignalModeKeywords, cfg.Watch.SignalMode)
	assert.Equal(t, "test-agent", cfg.Fetch.UserAgent)
	assert.Equal(t, 5*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, 4, cfg.Fetch.Retries)
	assert.True(t, cfg.Fetch.RespectRobots)
	assert.Equal(t, "gs://bucket/state.json", cfg.State.Location)
	assert.Equal(t, 2525, cfg.Notify.Email.Port)
	assert.Equal(t, "bot@example.com", cfg.Notify.Email.From, "sender defaults to the SMTP user")
	assert.Equal(t, "AC123", cfg.Notify.WhatsApp.AccountSID)
	assert.Equal(t, "changes", cfg.Notify.PubSub.Topic)
	assert.Equal(t, "watch_runs", cfg.History.Table)
	assert.Equal(t, "/tmp/pagewatch.prom", cfg.Metrics.Textfile)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, "Keywords", cfg.Method())
}

func TestLoadLegacyEnvironment(t *testing.T) {
	t.Setenv("WATCH_URL", " https://example.com/page ")
	t.Setenv("WATCH_SELECTOR", "#price")
	t.Setenv("WATCH_KEYWORDS", "Sale, Promo ,,Sale")
	t.Setenv("FORCE_NOTIFY", "true")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_PORT", "465")
	t.Setenv("SMTP_USER", "user@example.com")
	t.Setenv("SMTP_PASS", "pw")
	t.Setenv("EMAIL_TO", "me@example.com")
	t.Setenv("EMAIL_FROM", "alerts@example.com")
	t.Setenv("TWILIO_ACCOUNT_SID", "AC1")
	t.Setenv("STATE_PATH", "custom/state.json")

	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "https://example.com/page", cfg.Watch.URL)
	assert.Equal(t, "#price", cfg.Watch.Selector)
	assert.Equal(t, []string{"Sale", "Promo"}, cfg.Watch.Keywords)
	assert.True(t, cfg.Watch.ForceNotify)
	assert.Equal(t, 465, cfg.Notify.Email.Port)
	assert.Equal(t, "alerts@example.com", cfg.Notify.Email.From)
	assert.Equal(t, "AC1", cfg.Notify.WhatsApp.AccountSID)
	assert.Equal(t, "custom/state.json", cfg.State.Location)
	assert.Equal(t, "CSS selector", cfg.Method())
}

func TestLoadPrefixedEnvironment(t *testing.T) {
	t.Setenv("PAGEWATCH_WATCH_URL", "https://example.com")
	t.Setenv("PAGEWATCH_WATCH_KEYWORDS", "restock")
	t.Setenv("PAGEWATCH_FETCH_RETRIES", "5")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", cfg.Watch.URL)
	assert.Equal(t, []string{"restock"}, cfg.Watch.Keywords)
	assert.Equal(t, 5, cfg.Fetch.Retries)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultUserAgent, cfg.Fetch.UserAgent)
	assert.Equal(t, 30*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, 3, cfg.Fetch.Retries)
	assert.Equal(t, "state/page_state.json", cfg.State.Location)
	assert.Equal(t, 587, cfg.Notify.Email.Port)
	assert.Equal(t, "https://api.twilio.com", cfg.Notify.WhatsApp.APIBase)
	assert.Equal(t, SignalModePage, cfg.Watch.SignalMode)
	assert.False(t, cfg.Watch.ForceNotify)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalid))
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Watch: WatchConfig{URL: "https://example.com", Keywords: []string{"sale"}, SignalMode: SignalModePage},
		Fetch: FetchConfig{Timeout: time.Second, Retries: 3},
		State: StateConfig{Location: "state.json"},
	}
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{name: "missing url", mutate: func(c *Config) { c.Watch.URL = "" }, want: "watch.url"},
		{name: "relative url", mutate: func(c *Config) { c.Watch.URL = "/deals" }, want: "absolute"},
		{name: "unsupported scheme", mutate: func(c *Config) { c.Watch.URL = "ftp://example.com" }, want: "absolute"},
		{name: "no strategy", mutate: func(c *Config) { c.Watch.Keywords = nil }, want: "watch.selector"},
		{name: "bad selector", mutate: func(c *Config) { c.Watch.Selector = "div[" }, want: "watch.selector"},
		{name: "bad signal mode", mutate: func(c *Config) { c.Watch.SignalMode = "diff" }, want: "watch.signal_mode"},
		{name: "zero retries", mutate: func(c *Config) { c.Fetch.Retries = 0 }, want: "fetch.retries"},
		{name: "zero timeout", mutate: func(c *Config) { c.Fetch.Timeout = 0 }, want: "fetch.timeout"},
		{name: "no state location", mutate: func(c *Config) { c.State.Location = "" }, want: "state.location"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := base
			c.Watch.Keywords = append([]string(nil), base.Watch.Keywords...)
			tt.mutate(&c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestNormalizeKeywords(t *testing.T) {
	t.Parallel()

	got := normalizeKeywords([]string{" a ", "b,c", "", "a", " , "})
	assert.Equal(t, []string{"a", "b", "c", "a"}, got, "duplicates are kept so the monitored count matches the input")
}
