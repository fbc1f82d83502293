// Package config loads and validates page watcher configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"
	"github.com/spf13/viper"
)

// ErrInvalid marks configuration problems. The CLI maps it to a distinct exit status.
var ErrInvalid = errors.New("invalid configuration")

// Signal modes for the keyword strategy.
const (
	SignalModePage     = "page"
	SignalModeKeywords = "keywords"
)

// DefaultUserAgent identifies the watcher to the monitored site.
const DefaultUserAgent = "Mozilla/5.0 (compatible; PageWatcher/1.0; +https://github.com/JakeFAU/page-watcher)"

// Config captures all knobs for one watcher invocation.
type Config struct {
	Watch   WatchConfig   `mapstructure:"watch"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	State   StateConfig   `mapstructure:"state"`
	Notify  NotifyConfig  `mapstructure:"notify"`
	History HistoryConfig `mapstructure:"history"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// WatchConfig describes the monitored target and extraction strategy.
type WatchConfig struct {
	URL         string   `mapstructure:"url"`
	Selector    string   `mapstructure:"selector"`
	Keywords    []string `mapstructure:"keywords"`
	ForceNotify bool     `mapstructure:"force_notify"`
	SignalMode  string   `mapstructure:"signal_mode"`
}

// FetchConfig controls page retrieval.
type FetchConfig struct {
	UserAgent     string        `mapstructure:"user_agent"`
	Timeout       time.Duration `mapstructure:"timeout"`
	Retries       int           `mapstructure:"retries"`
	RespectRobots bool          `mapstructure:"respect_robots"`
	Headless      bool          `mapstructure:"headless"`
}

// StateConfig points at the persisted watch state. Location is a file path,
// gs://bucket/object, s3://bucket/key or "memory".
type StateConfig struct {
	Location string `mapstructure:"location"`
}

// NotifyConfig groups the notification channels.
type NotifyConfig struct {
	Email    EmailConfig    `mapstructure:"email"`
	WhatsApp WhatsAppConfig `mapstructure:"whatsapp"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
}

// EmailConfig holds SMTP submission settings.
type EmailConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	To       string        `mapstructure:"to"`
	From     string        `mapstructure:"from"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// WhatsAppConfig holds Twilio messaging credentials.
type WhatsAppConfig struct {
	AccountSID string        `mapstructure:"account_sid"`
	AuthToken  string        `mapstructure:"auth_token"`
	From       string        `mapstructure:"from"`
	To         string        `mapstructure:"to"`
	APIBase    string        `mapstructure:"api_base"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// PubSubConfig enables change events on a Pub/Sub topic.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// HistoryConfig enables the Postgres run history.
type HistoryConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

// MetricsConfig controls where run metrics are flushed.
type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Textfile       string `mapstructure:"textfile"`
	Job            string `mapstructure:"job"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// envAliases binds each key to the plain variable names used by existing
// deployments, in addition to the PAGEWATCH_ prefixed form.
var envAliases = map[string][]string{
	"watch.url":                   {"WATCH_URL"},
	"watch.selector":              {"WATCH_SELECTOR"},
	"watch.keywords":              {"WATCH_KEYWORDS"},
	"watch.force_notify":          {"FORCE_NOTIFY"},
	"watch.signal_mode":           {"WATCH_SIGNAL_MODE"},
	"fetch.user_agent":            {"WATCH_USER_AGENT"},
	"fetch.timeout":               {"FETCH_TIMEOUT"},
	"fetch.retries":               {"FETCH_RETRIES"},
	"fetch.respect_robots":        {"FETCH_RESPECT_ROBOTS"},
	"fetch.headless":              {"FETCH_HEADLESS"},
	"state.location":              {"STATE_PATH"},
	"notify.email.host":           {"SMTP_HOST"},
	"notify.email.port":           {"SMTP_PORT"},
	"notify.email.user":           {"SMTP_USER"},
	"notify.email.password":       {"SMTP_PASS"},
	"notify.email.to":             {"EMAIL_TO"},
	"notify.email.from":           {"EMAIL_FROM"},
	"notify.email.timeout":        {"SMTP_TIMEOUT"},
	"notify.whatsapp.account_sid": {"TWILIO_ACCOUNT_SID"},
	"notify.whatsapp.auth_token":  {"TWILIO_AUTH_TOKEN"},
	"notify.whatsapp.from":        {"WHATSAPP_FROM"},
	"notify.whatsapp.to":          {"WHATSAPP_TO"},
	"notify.whatsapp.api_base":    {"TWILIO_API_BASE"},
	"notify.whatsapp.timeout":     {"TWILIO_TIMEOUT"},
	"notify.pubsub.project_id":    {"PUBSUB_PROJECT_ID"},
	"notify.pubsub.topic":         {"PUBSUB_TOPIC"},
	"history.dsn":                 {"HISTORY_DSN"},
	"history.table":               {"HISTORY_TABLE"},
	"metrics.pushgateway_url":     {"METRICS_PUSHGATEWAY_URL"},
	"metrics.textfile":            {"METRICS_TEXTFILE"},
	"metrics.job":                 {"METRICS_JOB"},
	"logging.development":         {"LOG_DEVELOPMENT"},
}

// Load builds a Config from an optional file plus the environment. It does not
// validate; callers decide which commands need a complete watch target.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PAGEWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindEnv(v); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("%w: read config: %v", ErrInvalid, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: unmarshal config: %v", ErrInvalid, err)
	}
	cfg.normalize()
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("watch.signal_mode", SignalModePage)
	v.SetDefault("watch.force_notify", false)
	v.SetDefault("fetch.user_agent", DefaultUserAgent)
	v.SetDefault("fetch.timeout", "30s")
	v.SetDefault("fetch.retries", 3)
	v.SetDefault("fetch.respect_robots", false)
	v.SetDefault("fetch.headless", false)
	v.SetDefault("state.location", "state/page_state.json")
	v.SetDefault("notify.email.port", 587)
	v.SetDefault("notify.email.timeout", "30s")
	v.SetDefault("notify.whatsapp.api_base", "https://api.twilio.com")
	v.SetDefault("notify.whatsapp.timeout", "30s")
	v.SetDefault("history.table", "watch_runs")
	v.SetDefault("metrics.job", "pagewatch")
	v.SetDefault("logging.development", false)
}

func bindEnv(v *viper.Viper) error {
	for key, aliases := range envAliases {
		names := append([]string{key, "PAGEWATCH_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, aliases...)
		if err := v.BindEnv(names...); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

func (c *Config) normalize() {
	c.Watch.URL = strings.TrimSpace(c.Watch.URL)
	c.Watch.Selector = strings.TrimSpace(c.Watch.Selector)
	c.Watch.Keywords = normalizeKeywords(c.Watch.Keywords)
	c.Watch.SignalMode = strings.ToLower(strings.TrimSpace(c.Watch.SignalMode))
	if c.Notify.Email.From == "" {
		c.Notify.Email.From = c.Notify.Email.User
	}
}

// Validate enforces the settings a watch run cannot proceed without.
func (c Config) Validate() error {
	if c.Watch.URL == "" {
		return fmt.Errorf("%w: watch.url (WATCH_URL) must be set", ErrInvalid)
	}
	u, err := url.Parse(c.Watch.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: watch.url must be an absolute http(s) URL, got %q", ErrInvalid, c.Watch.URL)
	}
	if c.Watch.Selector == "" && len(c.Watch.Keywords) == 0 {
		return fmt.Errorf("%w: watch.selector (WATCH_SELECTOR) or watch.keywords (WATCH_KEYWORDS) must be set", ErrInvalid)
	}
	if c.Watch.Selector != "" {
		if _, err := cascadia.Compile(c.Watch.Selector); err != nil {
			return fmt.Errorf("%w: watch.selector %q: %v", ErrInvalid, c.Watch.Selector, err)
		}
	}
	switch c.Watch.SignalMode {
	case SignalModePage, SignalModeKeywords:
	default:
		return fmt.Errorf("%w: watch.signal_mode must be %q or %q, got %q",
			ErrInvalid, SignalModePage, SignalModeKeywords, c.Watch.SignalMode)
	}
	if c.Fetch.Retries <= 0 {
		return fmt.Errorf("%w: fetch.retries must be > 0", ErrInvalid)
	}
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("%w: fetch.timeout must be > 0", ErrInvalid)
	}
	if c.State.Location == "" {
		return fmt.Errorf("%w: state.location must be set", ErrInvalid)
	}
	return nil
}

// Method returns a human label for the configured extraction strategy.
func (c Config) Method() string {
	if c.Watch.Selector != "" {
		return "CSS selector"
	}
	return "Keywords"
}

func normalizeKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	for _, raw := range in {
		for _, kw := range strings.Split(raw, ",") {
			if kw = strings.TrimSpace(kw); kw != "" {
				out = append(out, kw)
			}
		}
	}
	return out
}
