package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"

	"github.com/JakeFAU/page-watcher/internal/watch"
)

// Event attribute values published with each message.
const (
	EventPageChanged      = "page_changed"
	EventTestNotification = "test_notification"
)

// PubSubConfig selects the topic that receives change events.
type PubSubConfig struct {
	ProjectID string
	Topic     string
	// ClientOptions are passed to pubsub.NewClient, e.g. to target an emulator.
	ClientOptions []option.ClientOption
}

// PubSub publishes change events as JSON. The client is created on first
// send so credential problems surface as delivery failures.
type PubSub struct {
	cfg PubSubConfig

	mu     sync.Mutex
	client *pubsub.Client
	topic  *pubsub.Topic
}

var _ Channel = (*PubSub)(nil)

type changeEvent struct {
	Event
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewPubSub creates the Pub/Sub channel.
func NewPubSub(cfg PubSubConfig) *PubSub {
	return &PubSub{cfg: cfg}
}

// Name implements Channel.
func (p *PubSub) Name() string { return "pubsub" }

// Configured implements Channel.
func (p *PubSub) Configured() bool {
	return p.cfg.ProjectID != "" && p.cfg.Topic != ""
}

// Send publishes msg and waits for the server to acknowledge it.
func (p *PubSub) Send(ctx context.Context, msg Message) error {
	topic, err := p.ensureTopic(ctx)
	if err != nil {
		return err
	}
	data, err := json.Marshal(changeEvent{Event: msg.Event, Subject: msg.Subject, Body: msg.Body})
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}

	event := EventPageChanged
	if msg.Event.Method == watch.MethodTest {
		event = EventTestNotification
	}
	result := topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"event":  event,
			"method": string(msg.Event.Method),
		},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

func (p *PubSub) ensureTopic(ctx context.Context) (*pubsub.Topic, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.topic != nil {
		return p.topic, nil
	}
	client, err := pubsub.NewClient(ctx, p.cfg.ProjectID, p.cfg.ClientOptions...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	p.client = client
	p.topic = client.Topic(p.cfg.Topic)
	return p.topic, nil
}

// Close flushes pending publishes and releases the client.
func (p *PubSub) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client == nil {
		return nil
	}
	p.topic.Stop()
	err := p.client.Close()
	p.client, p.topic = nil, nil
	if err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}
