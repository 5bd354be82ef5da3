package device

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	paho "github.com/eclipse/paho.mqtt.golang"
)

const mqttPublishTimeout = 5 * time.Second

// MQTTConfig configures the broker connection of an MQTTNavigator.
type MQTTConfig struct {
	Broker   string // host:port or a full URL such as ssl://host:8883
	ClientID string
	Username string
	Password string
	Topic    string
}

// linkMessage is the payload published for each deep-link.
type linkMessage struct {
	URL    string `json:"url"`
	SentAt int64  `json:"sentAt"`
}

// MQTTNavigator publishes deep-links to a paired handset listening on a topic.
type MQTTNavigator struct {
	client  paho.Client
	topic   string
	timeout time.Duration
}

// NewMQTTNavigator creates the navigator and connects in the background;
// links published before the connection is up are reported as errors.
func NewMQTTNavigator(cfg MQTTConfig) *MQTTNavigator {
	log.Printf("[MQTT] Connecting to broker: %s", cfg.Broker)

	opts := paho.NewClientOptions().
		AddBroker(brokerURL(cfg.Broker)).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetCleanSession(true).
		SetMaxReconnectInterval(10 * time.Second)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}

	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		log.Printf("[MQTT] Connection lost: %v", err)
	})
	opts.SetOnConnectHandler(func(paho.Client) {
		log.Printf("[MQTT] Connected to broker")
	})

	client := paho.NewClient(opts)
	client.Connect()

	return &MQTTNavigator{client: client, topic: cfg.Topic, timeout: mqttPublishTimeout}
}

// Navigate publishes link to the device topic.
func (n *MQTTNavigator) Navigate(ctx context.Context, link string) error {
	if !n.client.IsConnectionOpen() {
		return fmt.Errorf("mqtt client not connected")
	}

	payload, err := sonic.Marshal(linkMessage{URL: link, SentAt: time.Now().UnixMilli()})
	if err != nil {
		return fmt.Errorf("encode link: %w", err)
	}

	token := n.client.Publish(n.topic, 1, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(n.timeout):
		return fmt.Errorf("mqtt publish to %s timed out", n.topic)
	}
	if err := token.Error(); err != nil {
		log.Printf("[MQTT] Failed to publish to topic %s: %v", n.topic, err)
		return err
	}
	return nil
}

func brokerURL(broker string) string {
	if strings.Contains(broker, "://") {
		return broker
	}
	return "tcp://" + broker
}

// Close disconnects from the broker.
func (n *MQTTNavigator) Close() {
	n.client.Disconnect(250)
}
