// Package mirror republishes telemetry envelopes to an MQTT broker so other
// tools can follow the robot without holding a WebSocket open. Each
// envelope goes to <prefix>/<type> at QoS 0. Publishing never blocks the
// caller: envelopes queue on a buffered channel and overflow is dropped.
package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/large-farva/cybot-control/internal/telemetry"
)

var ErrNotConnected = errors.New("mqtt not connected")

// Publisher is the slice of an MQTT client the mirror needs.
type Publisher interface {
	Publish(topic string, payload []byte) error
	Close()
}

// Options configures the MQTT connection.
type Options struct {
	Broker   string
	Port     int
	ClientID string
}

// Mirror drains queued envelopes into a Publisher.
type Mirror struct {
	pub     Publisher
	prefix  string
	queue   chan telemetry.Envelope
	log     *slog.Logger
	dropped atomic.Int64
	sent    atomic.Int64
}

// New wraps pub. Call Run to start publishing.
func New(pub Publisher, prefix string, buffer int, log *slog.Logger) *Mirror {
	if buffer <= 0 {
		buffer = 256
	}
	if prefix == "" {
		prefix = "cybot"
	}
	if log == nil {
		log = slog.Default()
	}
	return &Mirror{
		pub:    pub,
		prefix: prefix,
		queue:  make(chan telemetry.Envelope, buffer),
		log:    log.With("component", "mirror"),
	}
}

// Topic returns the topic an envelope of type t is published on.
func (m *Mirror) Topic(t telemetry.EventType) string {
	return m.prefix + "/" + string(t)
}

// Publish queues ev. When the queue is full the envelope is dropped.
func (m *Mirror) Publish(ev telemetry.Envelope) {
	select {
	case m.queue <- ev:
	default:
		m.dropped.Add(1)
	}
}

// Dropped is the number of envelopes discarded because the queue was full.
func (m *Mirror) Dropped() int64 { return m.dropped.Load() }

// Sent is the number of envelopes handed to the broker.
func (m *Mirror) Sent() int64 { return m.sent.Load() }

// Run publishes queued envelopes until ctx is cancelled, then closes the
// publisher.
func (m *Mirror) Run(ctx context.Context) {
	defer m.pub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-m.queue:
			b, err := json.Marshal(ev)
			if err != nil {
				m.log.Error("marshal envelope", "type", ev.EventType(), "err", err)
				continue
			}
			if err := m.pub.Publish(m.Topic(ev.EventType()), b); err != nil {
				m.dropped.Add(1)
				m.log.Debug("publish failed", "type", ev.EventType(), "err", err)
				continue
			}
			m.sent.Add(1)
		}
	}
}

// mqttPublisher adapts a paho client.
type mqttPublisher struct {
	client mqtt.Client
}

// DialMQTT creates a paho client that connects in the background and keeps
// retrying. Publishes made while it is down fail with ErrNotConnected.
func DialMQTT(opts Options, log *slog.Logger) Publisher {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "mirror")
	broker := fmt.Sprintf("tcp://%s:%d", opts.Broker, opts.Port)
	co := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(func(mqtt.Client) {
			log.Info("connected to broker", "broker", broker)
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warn("broker connection lost", "broker", broker, "err", err)
		})

	client := mqtt.NewClient(co)
	// With connect retry enabled the token only completes once connected.
	client.Connect()
	return &mqttPublisher{client: client}
}

func (p *mqttPublisher) Publish(topic string, payload []byte) error {
	if !p.client.IsConnected() {
		return ErrNotConnected
	}
	token := p.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		return fmt.Errorf("publish %s: timed out", topic)
	}
	return token.Error()
}

func (p *mqttPublisher) Close() {
	p.client.Disconnect(250)
}
