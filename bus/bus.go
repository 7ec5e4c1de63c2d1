package bus

import (
	"fmt"

	"github.com/kanromiku/Industrial-Internet/config"
)

// Publisher re-emits normalized records onto a message bus, keyed by
// device identity. Publish failures are the caller's to log; they must
// never affect the storage path.
type Publisher interface {
	// Publish sends one message body routed by device id
	Publish(deviceID string, body []byte) error
	// Close releases the bus connection
	Close() error
}

// BusType identifies a supported bus backend
type BusType string

const (
	// RabbitMQ topic-exchange backend
	RabbitMQ BusType = "rabbitmq"
	// MQTT broker backend
	MQTT BusType = "mqtt"
)

// NewPublisher creates a publisher for the configured bus type
func NewPublisher(cfg config.BusConfig) (Publisher, error) {
	switch BusType(cfg.Type) {
	case RabbitMQ:
		return NewRabbitMQPublisher(cfg)
	case MQTT:
		return NewMQTTPublisher(cfg)
	default:
		return nil, fmt.Errorf("unsupported bus type: %s", cfg.Type)
	}
}
