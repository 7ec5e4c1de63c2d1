package bus

import (
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/kanromiku/Industrial-Internet/config"
	"github.com/kanromiku/Industrial-Internet/logger"
)

// MQTTPublisher publishes records to an MQTT broker. The routing key
// prefix maps onto the topic tree with dots replaced by slashes, so
// iot.data becomes iot/data/<device_id>.
type MQTTPublisher struct {
	client mqtt.Client
	broker string
	prefix string
}

// NewMQTTPublisher connects to the MQTT broker. Reconnection on broker
// loss is handled by the client's auto-reconnect.
func NewMQTTPublisher(cfg config.BusConfig) (*MQTTPublisher, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("MQTT broker address cannot be empty")
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.URL)

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = fmt.Sprintf("industrial-internet-%d", time.Now().Unix())
	}
	opts.SetClientID(clientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Error("MQTT connection lost: %v", err)
	})
	opts.SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		logger.Info("trying to reconnect to MQTT broker...")
	})

	client := mqtt.NewClient(opts)

	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection to MQTT broker timed out")
	}
	if err := token.Error(); err != nil {
		return nil, err
	}

	logger.Info("connected to MQTT broker: %s", cfg.URL)
	return &MQTTPublisher{
		client: client,
		broker: cfg.URL,
		prefix: cfg.RoutingKey,
	}, nil
}

// Publish implements Publisher
func (p *MQTTPublisher) Publish(deviceID string, body []byte) error {
	token := p.client.Publish(Topic(p.prefix, deviceID), 0, false, body)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish to MQTT broker timed out")
	}
	return token.Error()
}

// Close disconnects from the broker
func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(250)
	logger.Info("disconnected from MQTT broker")
	return nil
}

// Topic maps a routing key prefix and device id onto an MQTT topic
func Topic(prefix, deviceID string) string {
	if prefix == "" {
		return deviceID
	}
	return strings.ReplaceAll(prefix, ".", "/") + "/" + deviceID
}
