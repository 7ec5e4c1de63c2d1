package bus

import (
	"context"
	"errors"
	"fmt"
	"io"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/kanromiku/Industrial-Internet/config"
	"github.com/kanromiku/Industrial-Internet/logger"
)

// RabbitMQPublisher publishes records to a durable topic exchange with
// routing keys of the form <prefix>.<device_id>.
type RabbitMQPublisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	prefix   string
}

// NewRabbitMQPublisher connects to the broker and declares the exchange
func NewRabbitMQPublisher(cfg config.BusConfig) (*RabbitMQPublisher, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %v", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open RabbitMQ channel: %v", err)
	}

	if err := channel.ExchangeDeclare(cfg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %v", cfg.Exchange, err)
	}

	logger.Info("connected to RabbitMQ: %s, exchange: %s", cfg.URL, cfg.Exchange)
	return &RabbitMQPublisher{
		conn:     conn,
		channel:  channel,
		exchange: cfg.Exchange,
		prefix:   cfg.RoutingKey,
	}, nil
}

// Publish implements Publisher
func (p *RabbitMQPublisher) Publish(deviceID string, body []byte) error {
	return p.channel.PublishWithContext(
		context.Background(),
		p.exchange,
		RoutingKey(p.prefix, deviceID),
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		})
}

// Close closes the channel and the connection. Both are always closed;
// a channel close error must not leave the connection open.
func (p *RabbitMQPublisher) Close() error {
	return closeAll(p.channel, p.conn)
}

// closeAll closes every closer in order and joins their errors
func closeAll(closers ...io.Closer) error {
	var errs []error
	for _, c := range closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RoutingKey composes the topic routing key for a device
func RoutingKey(prefix, deviceID string) string {
	if prefix == "" {
		return deviceID
	}
	return fmt.Sprintf("%s.%s", prefix, deviceID)
}
