package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nexus-edge/zte-mqtt-bridge/internal/domain"
)

// ClientConfig contains MQTT client configuration
type ClientConfig struct {
	BrokerURL      string
	ClientID       string
	Username       string
	Password       string
	QoS            byte
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
}

// MessageHandler is called for each received MQTT message
type MessageHandler func(topic string, payload []byte, receivedAt time.Time)

// Client wraps the paho client for the bridge. Automatic reconnection is
// off: the connection supervisor owns the reconnect cycle and watches the
// Disconnected channel instead.
type Client struct {
	config ClientConfig
	client paho.Client
	logger zerolog.Logger

	handler     MessageHandler
	handlerMu   sync.RWMutex
	isConnected atomic.Bool

	mu           sync.Mutex
	disconnected chan struct{}
	lost         bool

	messagesReceived atomic.Uint64
	messagesSent     atomic.Uint64
}

// NewClient creates a new MQTT client. A missing client ID gets a random
// suffix so parallel bridge instances do not evict each other's sessions.
func NewClient(config ClientConfig, logger zerolog.Logger) *Client {
	if config.ClientID == "" {
		config.ClientID = "zte-bridge-" + uuid.NewString()[:8]
	}
	if config.KeepAlive <= 0 {
		config.KeepAlive = 30 * time.Second
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = 30 * time.Second
	}

	c := &Client{
		config:       config,
		logger:       logger.With().Str("component", "mqtt-client").Logger(),
		disconnected: make(chan struct{}),
	}

	opts := paho.NewClientOptions().
		AddBroker(config.BrokerURL).
		SetClientID(config.ClientID).
		SetKeepAlive(config.KeepAlive).
		SetCleanSession(true).
		SetAutoReconnect(false).
		SetConnectionLostHandler(c.onConnectionLost).
		SetOnConnectHandler(c.onConnect).
		SetDefaultPublishHandler(c.onMessage)

	if config.Username != "" {
		opts.SetUsername(config.Username)
	}
	if config.Password != "" {
		opts.SetPassword(config.Password)
	}

	c.client = paho.NewClient(opts)

	return c
}

// SetHandler sets the message handler callback
func (c *Client) SetHandler(handler MessageHandler) {
	c.handlerMu.Lock()
	c.handler = handler
	c.handlerMu.Unlock()
}

// Connect establishes connection to the MQTT broker
func (c *Client) Connect(ctx context.Context) error {
	c.logger.Info().
		Str("broker", c.config.BrokerURL).
		Str("client_id", c.config.ClientID).
		Msg("Connecting to MQTT broker")

	c.mu.Lock()
	c.disconnected = make(chan struct{})
	c.lost = false
	c.mu.Unlock()

	token := c.client.Connect()
	if !token.WaitTimeout(c.config.ConnectTimeout) {
		return fmt.Errorf("connection timeout")
	}
	if token.Error() != nil {
		return fmt.Errorf("connection failed: %w", token.Error())
	}

	return nil
}

// Subscribe subscribes to a topic filter. Messages arrive through the
// default publish handler, so the handler set with SetHandler sees them all.
func (c *Client) Subscribe(filter string) error {
	token := c.client.Subscribe(filter, c.config.QoS, nil)
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("subscribe timeout")
	}
	if token.Error() != nil {
		return fmt.Errorf("subscribe failed: %w", token.Error())
	}

	c.logger.Info().
		Str("filter", filter).
		Msg("Subscribed to topic filter")

	return nil
}

// Publish sends one envelope to the broker.
func (c *Client) Publish(ctx context.Context, envelope domain.PublishEnvelope) error {
	if !c.IsConnected() {
		return domain.ErrNotConnected
	}

	token := c.client.Publish(envelope.Topic, envelope.QoS, envelope.Retain, envelope.Payload)
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("publish timeout")
	}
	if token.Error() != nil {
		return fmt.Errorf("publish failed: %w", token.Error())
	}

	c.messagesSent.Add(1)
	return nil
}

// Disconnect cleanly disconnects from the broker
func (c *Client) Disconnect() {
	c.client.Disconnect(5000)
	c.isConnected.Store(false)
	c.signalDisconnect()
	c.logger.Info().Msg("Disconnected from MQTT broker")
}

// IsConnected returns current connection status
func (c *Client) IsConnected() bool {
	return c.isConnected.Load() && c.client.IsConnected()
}

// Disconnected returns a channel that closes when the current connection
// ends, whether lost or deliberately shut down.
func (c *Client) Disconnected() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnected
}

// Stats returns client statistics
func (c *Client) Stats() map[string]interface{} {
	return map[string]interface{}{
		"connected":         c.IsConnected(),
		"broker":            c.config.BrokerURL,
		"client_id":         c.config.ClientID,
		"messages_received": c.messagesReceived.Load(),
		"messages_sent":     c.messagesSent.Load(),
	}
}

func (c *Client) signalDisconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.lost {
		c.lost = true
		close(c.disconnected)
	}
}

// onConnect is called when connection is established
func (c *Client) onConnect(client paho.Client) {
	c.isConnected.Store(true)
	c.logger.Info().Msg("Connected to MQTT broker")
}

// onConnectionLost is called when connection is lost
func (c *Client) onConnectionLost(client paho.Client, err error) {
	c.isConnected.Store(false)
	c.logger.Warn().Err(err).Msg("Connection lost to MQTT broker")
	c.signalDisconnect()
}

// onMessage handles incoming MQTT messages
func (c *Client) onMessage(client paho.Client, msg paho.Message) {
	receivedAt := time.Now()
	c.messagesReceived.Add(1)

	c.handlerMu.RLock()
	handler := c.handler
	c.handlerMu.RUnlock()

	if handler != nil {
		handler(msg.Topic(), msg.Payload(), receivedAt)
	}
}
