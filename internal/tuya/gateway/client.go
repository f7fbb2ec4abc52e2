package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/scheerer/homelights/internal/device"
	"github.com/scheerer/homelights/internal/tuya"
)

type connectMessage struct {
	ID      string `json:"id"`
	Address string `json:"address"`
	Key     string `json:"key"`
	Version string `json:"version"`
}

type setMessage struct {
	DPS map[string]any `json:"dps"`
}

// deviceClient is one device's view of the gateway.
type deviceClient struct {
	gateway *Gateway
	id      string

	// reports keeps only the newest status report.
	reports chan tuya.Payload
}

func (c *deviceClient) Connect(ctx context.Context, spec device.Spec) error {
	if c.id == "" {
		return fmt.Errorf("%s: %w", spec.Name, ErrNoDeviceID)
	}
	if err := c.gateway.ensureConnected(ctx); err != nil {
		return err
	}

	statusTopic := c.gateway.topic(c.id, "status")
	if err := wait(ctx, c.gateway.client.Subscribe(statusTopic, qos, c.onStatus)); err != nil {
		return fmt.Errorf("subscribe %s: %w", statusTopic, err)
	}

	body, err := json.Marshal(connectMessage{
		ID:      spec.ID,
		Address: spec.Address,
		Key:     spec.AuthKey,
		Version: spec.ProtocolVersion,
	})
	if err != nil {
		return err
	}
	return c.gateway.publish(ctx, c.gateway.topic(c.id, "config"), body)
}

func (c *deviceClient) onStatus(_ mqtt.Client, msg mqtt.Message) {
	var p tuya.Payload
	if err := json.Unmarshal(msg.Payload(), &p); err != nil {
		logger.With(zap.String("topic", msg.Topic()), zap.Error(err)).Warn("Ignoring malformed status report")
		return
	}
	for {
		select {
		case c.reports <- p:
			return
		default:
		}
		select {
		case <-c.reports:
		default:
		}
	}
}

// Status asks the bridge for a report and waits for the next one.
func (c *deviceClient) Status(ctx context.Context) (tuya.Payload, error) {
	select {
	case <-c.reports:
	default:
	}
	if err := c.gateway.publish(ctx, c.gateway.topic(c.id, "status", "get"), []byte("{}")); err != nil {
		return tuya.Payload{}, err
	}
	select {
	case p := <-c.reports:
		return p, nil
	case <-ctx.Done():
		return tuya.Payload{}, fmt.Errorf("status %s: %w", c.id, ctx.Err())
	}
}

func (c *deviceClient) SetValues(ctx context.Context, dps map[string]any) error {
	body, err := json.Marshal(setMessage{DPS: dps})
	if err != nil {
		return err
	}
	return c.gateway.publish(ctx, c.gateway.topic(c.id, "set"), body)
}

// Close drops the status subscription. The shared connection stays up.
func (c *deviceClient) Close() error {
	if !c.gateway.client.IsConnected() {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), unsubscribeTimeout)
	defer cancel()

	topic := c.gateway.topic(c.id, "status")
	if err := wait(ctx, c.gateway.client.Unsubscribe(topic)); err != nil {
		logger.With(zap.String("topic", topic), zap.Error(err)).Warn("Failed to unsubscribe")
		return fmt.Errorf("unsubscribe %s: %w", topic, err)
	}
	return nil
}
