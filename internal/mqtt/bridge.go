// Package mqtt mirrors controller events onto an MQTT broker and accepts
// playback commands from it.
//
// Topics are rooted at <prefix>/<deviceID>:
//
//	<root>/events/<type>   retained=false, every hub event as JSON
//	<root>/commands        inbound commands, see CommandMessage
//	<root>/responses       one reply per inbound command
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/ekran/internal/events"
)

const subscriberID = "mqtt"

type Config struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	DeviceID    string
	// QoS for every publish and the command subscription.
	QoS byte
	// CommandTimeout bounds how long an inbound command waits for the
	// orchestrator.
	CommandTimeout time.Duration
}

func (c Config) root() string {
	return fmt.Sprintf("%s/%s", c.TopicPrefix, c.DeviceID)
}

func (c Config) EventTopic(t events.Type) string {
	return fmt.Sprintf("%s/events/%s", c.root(), t)
}

func (c Config) CommandTopic() string  { return c.root() + "/commands" }
func (c Config) ResponseTopic() string { return c.root() + "/responses" }

// Stats counts publishes per topic.
type Stats struct {
	Published map[string]uint64
	Errors    uint64
	Connected bool
}

// Bridge owns one broker connection.
type Bridge struct {
	cfg    Config
	client paho.Client
	ctrl   Controller

	mu        sync.RWMutex
	published map[string]uint64
	errors    uint64
	connected bool
}

// NewBridge wraps an already configured client. ctrl may be nil, in which
// case inbound commands are not subscribed.
func NewBridge(cfg Config, client paho.Client, ctrl Controller) *Bridge {
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = 30 * time.Second
	}
	return &Bridge{cfg: cfg, client: client, ctrl: ctrl, published: make(map[string]uint64)}
}

// Dial connects to cfg.Broker with automatic reconnection.
func Dial(cfg Config, ctrl Controller) (*Bridge, error) {
	b := NewBridge(cfg, nil, ctrl)

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(c paho.Client) {
		b.setConnected(true)
		log.Info().Str("broker", cfg.Broker).Str("client_id", cfg.ClientID).Msg("connected to MQTT broker")
		// subscriptions do not survive a clean reconnect
		if err := b.subscribe(); err != nil {
			log.Error().Err(err).Msg("failed to subscribe to command topic")
		}
	}
	opts.OnConnectionLost = func(c paho.Client, err error) {
		b.setConnected(false)
		log.Warn().Err(err).Str("broker", cfg.Broker).Msg("MQTT connection lost, reconnecting")
	}

	b.client = paho.NewClient(opts)
	if err := awaitConnect(b.client.Connect(), cfg.Broker, connectWait); err != nil {
		return nil, err
	}
	return b, nil
}

// connectWait bounds how long startup waits for the broker before leaving
// the connection to the retry loop.
const connectWait = 5 * time.Second

// awaitConnect waits up to wait for the first connection. A broker that is
// not up yet is not an error: the client keeps retrying in the background
// and events published meanwhile are counted as failed. Only a connect
// attempt that completes with an error fails.
func awaitConnect(token paho.Token, broker string, wait time.Duration) error {
	if !token.WaitTimeout(wait) {
		log.Warn().Str("broker", broker).Dur("waited", wait).Msg("MQTT broker not reachable yet, retrying in background")
		return nil
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}
	return nil
}

// Run forwards hub events to the broker until ctx is cancelled, then
// disconnects.
func (b *Bridge) Run(ctx context.Context, hub *events.Hub) error {
	ch := make(chan events.Event, 64)
	if err := hub.Subscribe(subscriberID, ch); err != nil {
		return err
	}
	defer hub.Unsubscribe(subscriberID)

	for {
		select {
		case <-ctx.Done():
			b.client.Disconnect(250)
			log.Info().Msg("MQTT bridge stopped")
			return nil
		case ev := <-ch:
			if err := b.PublishEvent(ev); err != nil {
				log.Warn().Err(err).Str("event", string(ev.Type)).Msg("failed to publish event to MQTT")
			}
		}
	}
}

// PublishEvent sends ev to its event topic.
func (b *Bridge) PublishEvent(ev events.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return b.publish(b.cfg.EventTopic(ev.Type), payload)
}

func (b *Bridge) publish(topic string, payload []byte) error {
	token := b.client.Publish(topic, b.cfg.QoS, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		b.countError()
		return fmt.Errorf("publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		b.countError()
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	b.mu.Lock()
	b.published[topic]++
	b.mu.Unlock()
	return nil
}

func (b *Bridge) subscribe() error {
	if b.ctrl == nil {
		return nil
	}
	topic := b.cfg.CommandTopic()
	token := b.client.Subscribe(topic, b.cfg.QoS, func(_ paho.Client, msg paho.Message) {
		// the paho router must not block
		go b.handleCommand(msg.Payload())
	})
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return err
	}
	log.Info().Str("topic", topic).Msg("listening for MQTT commands")
	return nil
}

func (b *Bridge) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := Stats{Published: make(map[string]uint64, len(b.published)), Errors: b.errors, Connected: b.connected}
	for k, v := range b.published {
		out.Published[k] = v
	}
	return out
}

func (b *Bridge) setConnected(v bool) {
	b.mu.Lock()
	b.connected = v
	b.mu.Unlock()
}

func (b *Bridge) countError() {
	b.mu.Lock()
	b.errors++
	b.mu.Unlock()
}
