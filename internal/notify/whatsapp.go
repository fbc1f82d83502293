package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// DefaultTwilioAPIBase is the public Twilio REST endpoint.
const DefaultTwilioAPIBase = "https://api.twilio.com"

const whatsappScheme = "whatsapp:"

// WhatsAppConfig holds Twilio messaging credentials.
type WhatsAppConfig struct {
	AccountSID string
	AuthToken  string
	From       string
	To         string
	APIBase    string
	Timeout    time.Duration
}

// WhatsApp sends alerts through the Twilio Messages API.
type WhatsApp struct {
	cfg    WhatsAppConfig
	client *http.Client
}

var _ Channel = (*WhatsApp)(nil)

// NewWhatsApp creates the WhatsApp channel. A nil client gets one with the
// configured timeout.
func NewWhatsApp(cfg WhatsAppConfig, client *http.Client) *WhatsApp {
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultTwilioAPIBase
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultSendTimeout
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &WhatsApp{cfg: cfg, client: client}
}

// Name implements Channel.
func (w *WhatsApp) Name() string { return "whatsapp" }

// Configured implements Channel.
func (w *WhatsApp) Configured() bool {
	return w.cfg.AccountSID != "" && w.cfg.AuthToken != "" && w.cfg.From != "" && w.cfg.To != ""
}

// Send posts one message. Any non-2xx response is a delivery failure.
func (w *WhatsApp) Send(ctx context.Context, msg Message) error {
	form := url.Values{}
	form.Set("From", whatsappAddress(w.cfg.From))
	form.Set("To", whatsappAddress(w.cfg.To))
	form.Set("Body", msg.Subject+"\n\n"+msg.Body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint(), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build twilio request: %w", err)
	}
	req.SetBasicAuth(w.cfg.AccountSID, w.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("twilio request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &TwilioError{
			StatusCode: resp.StatusCode,
			Code:       gjson.GetBytes(body, "code").Int(),
			Message:    gjson.GetBytes(body, "message").String(),
		}
	}
	return nil
}

func (w *WhatsApp) endpoint() string {
	return fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json",
		strings.TrimRight(w.cfg.APIBase, "/"), url.PathEscape(w.cfg.AccountSID))
}

// TwilioError is a rejected Messages API call.
type TwilioError struct {
	StatusCode int
	Code       int64
	Message    string
}

func (e *TwilioError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("twilio returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("twilio returned status %d (code %d): %s", e.StatusCode, e.Code, e.Message)
}

// whatsappAddress adds the channel scheme Twilio needs to route via WhatsApp.
func whatsappAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if strings.HasPrefix(strings.ToLower(addr), whatsappScheme) {
		return addr
	}
	return whatsappScheme + addr
}
