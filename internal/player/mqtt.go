package player

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const publishTimeout = 5 * time.Second

type MQTTOptions struct {
	BrokerURL string
	ClientID  string
	Topic     string
}

// MQTTController publishes commands as JSON to a single topic that the
// player daemon subscribes to.
type MQTTController struct {
	client mqtt.Client
	topic  string
	logger *slog.Logger
}

func NewMQTTController(opts MQTTOptions, logger *slog.Logger) (*MQTTController, error) {
	logger = logger.With("component", "mqtt_player")

	co := mqtt.NewClientOptions()
	co.AddBroker(opts.BrokerURL)
	co.SetClientID(opts.ClientID)
	co.SetAutoReconnect(true)
	co.SetConnectTimeout(publishTimeout)
	co.OnConnect = func(mqtt.Client) {
		logger.Info("connected to broker", "broker", opts.BrokerURL)
	}
	co.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn("broker connection lost", "error", err)
	}

	client := mqtt.NewClient(co)
	token := client.Connect()
	if !token.WaitTimeout(publishTimeout) {
		return nil, fmt.Errorf("connect to broker %s: timed out", opts.BrokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return &MQTTController{client: client, topic: opts.Topic, logger: logger}, nil
}

func (c *MQTTController) Send(ctx context.Context, cmd Command) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("encode command: %w", err)
	}

	token := c.client.Publish(c.topic, 1, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", c.topic, err)
	}

	c.logger.DebugContext(ctx, "command published", "topic", c.topic, "type", cmd.Type, "schedule_id", cmd.ScheduleID)
	return nil
}

func (c *MQTTController) Close() {
	c.client.Disconnect(250)
}
