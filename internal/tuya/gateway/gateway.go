// Package gateway reaches Tuya devices through an MQTT bridge. The bridge
// owns the local Tuya sessions; this side publishes connection details,
// status requests and data point writes, and listens for status reports.
//
// Topics, relative to the configured prefix:
//
//	<id>/config      connection details, published on connect
//	<id>/status/get  request a status report
//	<id>/status      status reports, {"dps":{...}}
//	<id>/set         data point writes, {"dps":{...}}
package gateway

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scheerer/homelights/internal/device"
	"github.com/scheerer/homelights/internal/logging"
	"github.com/scheerer/homelights/internal/tuya"
)

var logger = logging.New("gateway")

const (
	DefaultTopicPrefix = "tuya"
	qos                = 1
	unsubscribeTimeout = 2 * time.Second
)

type Config struct {
	Broker      string
	TopicPrefix string
	ClientID    string
	Username    string
	Password    string
}

// Gateway shares one MQTT connection between every device client.
type Gateway struct {
	prefix string
	client mqtt.Client

	connectMu sync.Mutex
}

// New configures a paho client for the bridge. Nothing is dialed until a
// device connects.
func New(config Config) *Gateway {
	clientID := config.ClientID
	if clientID == "" {
		clientID = "homelights-" + uuid.NewString()
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID(clientID)
	opts.SetUsername(config.Username)
	opts.SetPassword(config.Password)
	opts.SetKeepAlive(10 * time.Second)
	opts.SetPingTimeout(5 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(time.Minute)
	opts.SetOrderMatters(false)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.With(zap.Error(err)).Warn("MQTT connection lost, reconnecting")
	})
	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.With(zap.String("broker", config.Broker)).Info("MQTT connected")
	})

	return NewWithClient(config.TopicPrefix, mqtt.NewClient(opts))
}

// NewWithClient wraps an existing paho client.
func NewWithClient(prefix string, client mqtt.Client) *Gateway {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return &Gateway{prefix: prefix, client: client}
}

func (g *Gateway) topic(id string, parts ...string) string {
	return strings.Join(append([]string{g.prefix, id}, parts...), "/")
}

// Client returns an unconnected device client. It satisfies
// tuya.ClientFactory.
func (g *Gateway) Client(spec device.Spec) tuya.Client {
	return &deviceClient{
		gateway: g,
		id:      spec.ID,
		reports: make(chan tuya.Payload, 1),
	}
}

func (g *Gateway) ensureConnected(ctx context.Context) error {
	g.connectMu.Lock()
	defer g.connectMu.Unlock()

	if g.client.IsConnected() {
		return nil
	}
	if err := wait(ctx, g.client.Connect()); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	return nil
}

func (g *Gateway) publish(ctx context.Context, topic string, payload []byte) error {
	if !g.client.IsConnected() {
		return fmt.Errorf("publish %s: %w", topic, ErrNotConnected)
	}
	if err := wait(ctx, g.client.Publish(topic, qos, false, payload)); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (g *Gateway) Close() {
	if g.client.IsConnected() {
		g.client.Disconnect(250)
	}
}

func wait(ctx context.Context, t mqtt.Token) error {
	select {
	case <-t.Done():
		return t.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
