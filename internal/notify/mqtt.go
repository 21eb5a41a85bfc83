package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/kozaktomas/traceon/internal/config"
	"github.com/kozaktomas/traceon/internal/constants"
)

// ErrNotConnected is returned when publishing while the broker is unreachable.
var ErrNotConnected = errors.New("MQTT client is not connected")

// MQTTPublisher sends sightings to an MQTT topic with QoS 1, not retained.
type MQTTPublisher struct {
	client  mqtt.Client
	topic   string
	timeout time.Duration
}

// NewMQTTPublisher configures a paho client for cfg. Call Connect before publishing.
func NewMQTTPublisher(cfg config.MQTTConfig) *MQTTPublisher {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(1 * time.Minute)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.WithError(err).Error("MQTT connection lost")
	})
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.WithField("broker", cfg.Broker).Info("Connected to MQTT broker")
	})

	return newMQTTPublisher(mqtt.NewClient(opts), cfg.Topic)
}

func newMQTTPublisher(client mqtt.Client, topic string) *MQTTPublisher {
	if topic == "" {
		topic = constants.DefaultMQTTTopic
	}
	return &MQTTPublisher{
		client:  client,
		topic:   topic,
		timeout: constants.MQTTPublishTimeout,
	}
}

// Connect connects to the broker.
func (p *MQTTPublisher) Connect() error {
	token := p.client.Connect()
	if !token.WaitTimeout(p.timeout) {
		return errors.New("timed out connecting to MQTT broker")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connecting to MQTT broker: %w", err)
	}
	return nil
}

// NotifyMatch publishes s as JSON and waits for the broker to acknowledge it.
func (p *MQTTPublisher) NotifyMatch(ctx context.Context, s Sighting) error {
	if !p.client.IsConnected() {
		return ErrNotConnected
	}

	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling sighting: %w", err)
	}

	token := p.client.Publish(p.topic, 1, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("publishing sighting: %w", ctx.Err())
	case <-time.After(p.timeout):
		return errors.New("timed out publishing sighting")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing sighting: %w", err)
	}

	log.WithFields(log.Fields{
		"topic":    p.topic,
		"check_id": s.CheckID,
		"label":    s.Label,
	}).Debug("Published sighting")
	return nil
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	if p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
