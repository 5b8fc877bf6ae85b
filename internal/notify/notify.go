// Package notify publishes work-order lifecycle events.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/repair-desk/internal/models"
)

// Event types.
const (
	EventCreated    = "created"
	EventEdited     = "edited"
	EventProgressed = "progressed"
	EventAttached   = "attached"
	EventDeleted    = "deleted"
)

// Event describes an accepted change to a work order.
type Event struct {
	Type     string        `json:"type"`
	WorkCode string        `json:"work_code"`
	Store    string        `json:"store,omitempty"`
	Status   models.Status `json:"status,omitempty"`
	Role     models.Role   `json:"role"`
	At       time.Time     `json:"at"`
}

// Publisher delivers events to interested parties.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// mqttPublisher is the part of mqtt.Client the publisher needs.
type mqttPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTPublisher sends events as JSON to <topic>/<store>/<type>.
type MQTTPublisher struct {
	client  mqttPublisher
	topic   string
	timeout time.Duration
}

// NewMQTTPublisher wraps an already connected client.
func NewMQTTPublisher(client mqttPublisher, topic string) *MQTTPublisher {
	return &MQTTPublisher{client: client, topic: topic, timeout: 5 * time.Second}
}

// ConnectMQTT connects to broker and returns a publisher on topic.
func ConnectMQTT(broker, clientID, topic string) (*MQTTPublisher, mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second)
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.WithError(err).Warn("mqtt connection lost")
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, nil, fmt.Errorf("mqtt connect to %s timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, nil, fmt.Errorf("mqtt connect: %w", err)
	}
	return NewMQTTPublisher(client, topic), client, nil
}

// Topic returns the topic an event is published on.
func (p *MQTTPublisher) Topic(e Event) string {
	store := e.Store
	if store == "" {
		store = "_"
	}
	return fmt.Sprintf("%s/%s/%s", p.topic, store, e.Type)
}

func (p *MQTTPublisher) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	token := p.client.Publish(p.Topic(e), 1, false, payload)

	timeout := p.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < timeout {
			timeout = d
		}
	}
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("mqtt publish %s timed out", e.WorkCode)
	}
	return token.Error()
}
