package intake

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTClient is the slice of the paho client the intake uses; tests inject
// a fake through the client factory.
type MQTTClient interface {
	Connect() mqtt.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnected() bool
}

// DefaultMQTTClient wraps the real paho client.
type DefaultMQTTClient struct {
	client mqtt.Client
}

func (d *DefaultMQTTClient) Connect() mqtt.Token     { return d.client.Connect() }
func (d *DefaultMQTTClient) Disconnect(quiesce uint) { d.client.Disconnect(quiesce) }
func (d *DefaultMQTTClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	return d.client.Publish(topic, qos, retained, payload)
}
func (d *DefaultMQTTClient) IsConnected() bool { return d.client.IsConnected() }

// MQTTConfig holds broker settings for the MQTT intake.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Topic    string
	Username string
	Password string
	Timeout  time.Duration
}

// MQTTIntake publishes each delivery as JSON to a configured topic with
// QoS 1 (at-least-once, matching the relay contract).
type MQTTIntake struct {
	cfg           MQTTConfig
	logger        *slog.Logger
	client        MQTTClient
	clientFactory func(opts *mqtt.ClientOptions) MQTTClient
}

// NewMQTT creates an MQTT intake adapter.
func NewMQTT(cfg MQTTConfig, logger *slog.Logger) *MQTTIntake {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ClientID == "" {
		cfg.ClientID = fmt.Sprintf("pigeonhole-%d", time.Now().Unix())
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &MQTTIntake{
		cfg:    cfg,
		logger: logger.With("component", "intake", "kind", "mqtt"),
		clientFactory: func(opts *mqtt.ClientOptions) MQTTClient {
			return &DefaultMQTTClient{client: mqtt.NewClient(opts)}
		},
	}
}

// NewMQTTWithClient creates an MQTT intake with a custom client factory
// (for testing).
func NewMQTTWithClient(cfg MQTTConfig, logger *slog.Logger, factory func(*mqtt.ClientOptions) MQTTClient) *MQTTIntake {
	i := NewMQTT(cfg, logger)
	i.clientFactory = factory
	return i
}

func (i *MQTTIntake) connect() error {
	if i.client != nil && i.client.IsConnected() {
		return nil
	}

	opts := mqtt.NewClientOptions().
		AddBroker(i.cfg.Broker).
		SetClientID(i.cfg.ClientID).
		SetConnectTimeout(i.cfg.Timeout).
		SetAutoReconnect(true)
	if i.cfg.Username != "" {
		opts.SetUsername(i.cfg.Username)
		opts.SetPassword(i.cfg.Password)
	}

	i.client = i.clientFactory(opts)
	token := i.client.Connect()
	if !token.WaitTimeout(i.cfg.Timeout) {
		return fmt.Errorf("connect to %s: timeout", i.cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to %s: %w", i.cfg.Broker, err)
	}

	i.logger.Info("connected to broker", "broker", i.cfg.Broker, "topic", i.cfg.Topic)
	return nil
}

// Deliver publishes the pair. Broker failures are retryable: the question
// stays resolved and the next tick publishes again under the same id.
func (i *MQTTIntake) Deliver(ctx context.Context, d Delivery) error {
	if err := i.connect(); err != nil {
		return fmt.Errorf("%w: %v", ErrRetryLater, err)
	}

	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal delivery: %w", err)
	}

	token := i.client.Publish(i.cfg.Topic, 1, false, payload)
	if !token.WaitTimeout(i.cfg.Timeout) {
		return fmt.Errorf("%w: publish timeout", ErrRetryLater)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: publish: %v", ErrRetryLater, err)
	}

	i.logger.Debug("pair published", "id", d.ID, "topic", i.cfg.Topic)
	return nil
}

// Close disconnects from the broker.
func (i *MQTTIntake) Close() {
	if i.client != nil && i.client.IsConnected() {
		i.client.Disconnect(250)
	}
}
