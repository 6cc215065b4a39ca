package relay

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// MQTTPath relays events through one MQTT broker. Delivery is live-only: the
// broker keeps no per-room history, so Backlog returns nothing and joiners rely
// on a redis path (or future traffic) for older events.
type MQTTPath struct {
	client  mqtt.Client
	broker  string
	logger  *zap.Logger
	timeout time.Duration
}

// NewMQTTPath connects to one broker with auto-reconnect. A broker that is
// down at startup is not fatal; paho keeps retrying in the background.
func NewMQTTPath(broker, clientID string, timeout time.Duration, logger *zap.Logger) *MQTTPath {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(timeout)
	opts.SetCleanSession(true)

	client := mqtt.NewClient(opts)
	// ConnectRetry means this token may still be pending when it times out;
	// the path simply reports unreachable until the retry succeeds.
	token := client.Connect()
	token.WaitTimeout(timeout)

	return &MQTTPath{
		client:  client,
		broker:  broker,
		logger:  logger.With(zap.String("relay", "mqtt:"+broker)),
		timeout: timeout,
	}
}

// Name identifies this path.
func (p *MQTTPath) Name() string {
	return "mqtt:" + p.broker
}

// Healthy reports whether the broker connection is up.
func (p *MQTTPath) Healthy(ctx context.Context) bool {
	return p.client.IsConnected()
}

func roomTopic(room string) string { return "gatelog/rooms/" + room }

// Subscribe delivers room payloads to h at QoS 1.
func (p *MQTTPath) Subscribe(ctx context.Context, room string, h Handler) error {
	token := p.client.Subscribe(roomTopic(room), 1, func(_ mqtt.Client, msg mqtt.Message) {
		h(msg.Payload())
	})
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("subscribe %s: timeout", room)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", room, err)
	}
	return nil
}

// Backlog is empty for MQTT; the broker holds no room history.
func (p *MQTTPath) Backlog(ctx context.Context, room string) ([][]byte, error) {
	return nil, nil
}

// Publish broadcasts one payload at QoS 1 within the bounded timeout.
func (p *MQTTPath) Publish(ctx context.Context, room, id string, payload []byte) error {
	token := p.client.Publish(roomTopic(room), 1, false, payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("publish %s: timeout", room)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", room, err)
	}
	return nil
}

// Unsubscribe stops delivery for room.
func (p *MQTTPath) Unsubscribe(ctx context.Context, room string) error {
	token := p.client.Unsubscribe(roomTopic(room))
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("unsubscribe %s: timeout", room)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", room, err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *MQTTPath) Close() {
	p.client.Disconnect(250)
}
