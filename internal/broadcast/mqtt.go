package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

// MQTTOptions configures DialMQTT.
type MQTTOptions struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         byte
	Timeout     time.Duration
}

// MQTTPublisher publishes each message to <prefix>/<topic>, where topic is
// events, records or control.
type MQTTPublisher struct {
	client  mqtt.Client
	prefix  string
	qos     byte
	timeout time.Duration
	logger  *logrus.Logger
}

func NewMQTTPublisher(client mqtt.Client, prefix string, qos byte, timeout time.Duration, logger *logrus.Logger) *MQTTPublisher {
	if logger == nil {
		logger = logrus.New()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &MQTTPublisher{client: client, prefix: prefix, qos: qos, timeout: timeout, logger: logger}
}

// DialMQTT connects to the broker and returns a publisher over the connection.
func DialMQTT(opts MQTTOptions, logger *logrus.Logger) (*MQTTPublisher, error) {
	co := mqtt.NewClientOptions()
	co.AddBroker(opts.Broker)
	co.SetClientID(opts.ClientID)
	if opts.Username != "" {
		co.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		co.SetPassword(opts.Password)
	}
	co.SetAutoReconnect(true)
	co.SetCleanSession(true)

	client := mqtt.NewClient(co)
	p := NewMQTTPublisher(client, opts.TopicPrefix, opts.QoS, opts.Timeout, logger)

	token := client.Connect()
	if !token.WaitTimeout(p.timeout) {
		return nil, fmt.Errorf("mqtt connect to %s: timed out after %s", opts.Broker, p.timeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", opts.Broker, err)
	}
	p.logger.WithField("broker", opts.Broker).Info("Connected to MQTT broker")
	return p, nil
}

// Topic returns the full topic a message of kind k is published to.
func (p *MQTTPublisher) Topic(k Kind) string {
	if p.prefix == "" {
		return k.Topic()
	}
	return p.prefix + "/" + k.Topic()
}

func (p *MQTTPublisher) Publish(_ context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	topic := p.Topic(msg.Kind)
	token := p.client.Publish(topic, p.qos, false, payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("mqtt publish to %s: timed out after %s", topic, p.timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish to %s: %w", topic, err)
	}
	return nil
}

// Close disconnects from the broker, waiting briefly for in-flight work.
func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(250)
	return nil
}
