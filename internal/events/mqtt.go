package events

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/tphakala/trailcam-go/internal/conf"
	"github.com/tphakala/trailcam-go/internal/datastore/v2/entities"
	"github.com/tphakala/trailcam-go/internal/errors"
	"github.com/tphakala/trailcam-go/internal/logger"
)

// Config holds the configuration for the MQTT publisher.
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	QoS      byte
	Retain   bool

	ConnectTimeout    time.Duration
	PublishTimeout    time.Duration
	DisconnectTimeout time.Duration
}

// ConfigFromSettings maps settings onto Config with default timeouts.
func ConfigFromSettings(settings *conf.Settings) Config {
	return Config{
		Broker:            settings.MQTT.Broker,
		ClientID:          settings.Main.Name,
		Username:          settings.MQTT.Username,
		Password:          settings.MQTT.Password,
		Topic:             settings.MQTT.Topic,
		QoS:               settings.MQTT.QoS,
		Retain:            settings.MQTT.Retain,
		ConnectTimeout:    30 * time.Second,
		PublishTimeout:    10 * time.Second,
		DisconnectTimeout: 250 * time.Millisecond,
	}
}

// Observer receives publish outcomes, typically for metrics.
type Observer interface {
	ObservePublish(success bool, size int, duration time.Duration)
	SetConnected(connected bool)
}

// MQTTPublisher publishes events to a broker. Safe for concurrent use.
type MQTTPublisher struct {
	config   Config
	log      logger.Logger
	observer Observer

	mu        sync.Mutex
	client    mqtt.Client
	newClient func(*mqtt.ClientOptions) mqtt.Client
}

// MQTTOption configures an MQTTPublisher.
type MQTTOption func(*MQTTPublisher)

// WithPublishObserver reports publish outcomes to o.
func WithPublishObserver(o Observer) MQTTOption {
	return func(p *MQTTPublisher) { p.observer = o }
}

// withClientFactory replaces the paho client constructor.
func withClientFactory(f func(*mqtt.ClientOptions) mqtt.Client) MQTTOption {
	return func(p *MQTTPublisher) { p.newClient = f }
}

// NewMQTTPublisher creates a publisher; call Connect before publishing.
func NewMQTTPublisher(cfg Config, log logger.Logger, opts ...MQTTOption) *MQTTPublisher {
	p := &MQTTPublisher{
		config:    cfg,
		log:       log,
		newClient: mqtt.NewClient,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Connect resolves the broker host and connects. paho reconnects on its own
// after a lost connection.
func (p *MQTTPublisher) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	u, err := url.Parse(p.config.Broker)
	if err != nil {
		return mqttError(errors.CategoryConfiguration, "parse_broker", fmt.Errorf("invalid broker URL: %w", err))
	}

	host := u.Hostname()
	if net.ParseIP(host) == nil {
		if _, err := net.DefaultResolver.LookupHost(ctx, host); err != nil {
			return mqttError(errors.CategoryMQTTConnection, "resolve_broker",
				fmt.Errorf("failed to resolve hostname %s: %w", host, err))
		}
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(p.config.Broker)
	opts.SetClientID(p.config.ClientID)
	opts.SetUsername(p.config.Username)
	opts.SetPassword(p.config.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(p.config.ConnectTimeout)
	opts.SetOnConnectHandler(p.onConnect)
	opts.SetConnectionLostHandler(p.onConnectionLost)

	p.client = p.newClient(opts)

	token := p.client.Connect()
	if !waitToken(ctx, token, p.config.ConnectTimeout) {
		return mqttError(errors.CategoryMQTTConnection, "connect", fmt.Errorf("connection timeout"))
	}
	if err := token.Error(); err != nil {
		return mqttError(errors.CategoryMQTTConnection, "connect", fmt.Errorf("connection error: %w", err))
	}
	return nil
}

// Name identifies the publisher as an event bus consumer.
func (p *MQTTPublisher) Name() string {
	return "mqtt"
}

// PublishPrediction publishes a PredictionCreated event to the configured topic.
func (p *MQTTPublisher) PublishPrediction(ctx context.Context, img *entities.ImageMeta, rec *entities.PredictionRecord) error {
	return p.Consume(ctx, NewPredictionCreated(img, rec))
}

// Consume publishes ev to the configured topic.
func (p *MQTTPublisher) Consume(ctx context.Context, ev PredictionCreated) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return mqttError(errors.CategoryMQTTPublish, "marshal", err)
	}

	p.mu.Lock()
	client := p.client
	p.mu.Unlock()

	if client == nil || !client.IsConnected() {
		p.observe(false, len(payload), 0)
		return mqttError(errors.CategoryMQTTPublish, "publish", fmt.Errorf("not connected to MQTT broker"))
	}

	start := time.Now()
	token := client.Publish(p.config.Topic, p.config.QoS, p.config.Retain, payload)
	if !waitToken(ctx, token, p.config.PublishTimeout) {
		p.observe(false, len(payload), time.Since(start))
		return mqttError(errors.CategoryMQTTPublish, "publish", fmt.Errorf("publish timeout"))
	}
	if err := token.Error(); err != nil {
		p.observe(false, len(payload), time.Since(start))
		return mqttError(errors.CategoryMQTTPublish, "publish", err)
	}

	p.observe(true, len(payload), time.Since(start))
	p.log.Debug("prediction event published",
		logger.String("topic", p.config.Topic),
		logger.Uint64("prediction_id", uint64(ev.PredictionID)),
		logger.Int("size", len(payload)))
	return nil
}

// IsConnected reports whether the broker connection is up.
func (p *MQTTPublisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.client != nil && p.client.IsConnected()
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(uint(p.config.DisconnectTimeout.Milliseconds())) //nolint:gosec // small positive duration
		if p.observer != nil {
			p.observer.SetConnected(false)
		}
	}
}

func (p *MQTTPublisher) onConnect(mqtt.Client) {
	p.log.Info("connected to MQTT broker", logger.String("broker", p.config.Broker))
	if p.observer != nil {
		p.observer.SetConnected(true)
	}
}

func (p *MQTTPublisher) onConnectionLost(_ mqtt.Client, err error) {
	p.log.Warn("connection to MQTT broker lost",
		logger.String("broker", p.config.Broker),
		logger.Error(err))
	if p.observer != nil {
		p.observer.SetConnected(false)
	}
}

func (p *MQTTPublisher) observe(success bool, size int, d time.Duration) {
	if p.observer != nil {
		p.observer.ObservePublish(success, size, d)
	}
}

// waitToken waits for token, the timeout or ctx, whichever comes first.
func waitToken(ctx context.Context, token mqtt.Token, timeout time.Duration) bool {
	if timeout <= 0 {
		select {
		case <-token.Done():
			return true
		case <-ctx.Done():
			return false
		}
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

func mqttError(category errors.ErrorCategory, operation string, err error) error {
	return errors.New(err).
		Component("events").
		Category(category).
		Context("operation", operation).
		Build()
}

var _ Publisher = (*MQTTPublisher)(nil)
