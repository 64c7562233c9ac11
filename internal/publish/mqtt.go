// Package publish forwards navigation readouts and arrival events to an
// MQTT broker, e.g. for a wrist display or a base-station logger.
package publish

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/shaunagostinho/field-compass/internal/nav"
)

// Config holds MQTT publisher settings.
type Config struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Broker   string `yaml:"broker" json:"broker"`
	ClientID string `yaml:"client_id" json:"clientId"`
	Topic    string `yaml:"topic" json:"topic"` // prefix; "/readout" and "/arrived" are appended
}

// Publisher receives engine output. Implementations must not block.
type Publisher interface {
	PublishReadout(r nav.Readout)
	PublishArrival(a nav.Arrival)
	Close()
}

// Nop discards everything.
type Nop struct{}

func (Nop) PublishReadout(nav.Readout) {}
func (Nop) PublishArrival(nav.Arrival) {}
func (Nop) Close()                     {}

// MQTTPublisher publishes JSON payloads to <topic>/readout (QoS 0, retained)
// and <topic>/arrived (QoS 1).
type MQTTPublisher struct {
	client mqtt.Client
	topic  string
}

// Connect dials the broker and returns a ready publisher.
func Connect(cfg Config) (*MQTTPublisher, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("mqtt: broker is required")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "field-compass"
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(5 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt: connect %s: %w", cfg.Broker, token.Error())
	}
	log.Printf("[mqtt] connected to %s", cfg.Broker)
	return NewMQTT(client, cfg.Topic), nil
}

// NewMQTT wraps an already connected client.
func NewMQTT(client mqtt.Client, topic string) *MQTTPublisher {
	if topic == "" {
		topic = "fieldcompass"
	}
	return &MQTTPublisher{client: client, topic: topic}
}

func (p *MQTTPublisher) PublishReadout(r nav.Readout) {
	p.publish(p.topic+"/readout", 0, true, r)
}

func (p *MQTTPublisher) PublishArrival(a nav.Arrival) {
	p.publish(p.topic+"/arrived", 1, false, a)
}

func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}

func (p *MQTTPublisher) publish(topic string, qos byte, retained bool, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Printf("[mqtt] marshal %s: %v", topic, err)
		return
	}
	token := p.client.Publish(topic, qos, retained, payload)
	go func() {
		if token.WaitTimeout(2*time.Second) && token.Error() != nil {
			log.Printf("[mqtt] publish %s: %v", topic, token.Error())
		}
	}()
}
