package remotesync

import (
	"context"
	"fmt"
	"log"

	"backend-groupride/internal/ride"
	"backend-groupride/internal/shared/clock"

	amqp "github.com/rabbitmq/amqp091-go"
)

const routingKey = "ride.completed"

// Publisher is the slice of *amqp.Channel the uploader needs.
type Publisher interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPUploader publishes rides to a topic exchange.
type AMQPUploader struct {
	pub      Publisher
	exchange string
	deviceID string
	clock    clock.Clock
}

func NewAMQPUploader(pub Publisher, exchange, deviceID string, clk clock.Clock) (*AMQPUploader, error) {
	if clk == nil {
		clk = clock.Real{}
	}
	if err := pub.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}
	return &AMQPUploader{pub: pub, exchange: exchange, deviceID: deviceID, clock: clk}, nil
}

func (u *AMQPUploader) UploadRecord(ctx context.Context, rec ride.Record) error {
	body, err := encodeMessage(u.deviceID, rec, u.clock.Now())
	if err != nil {
		return err
	}

	if err := u.pub.PublishWithContext(
		ctx,
		u.exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    rec.ID,
			Timestamp:    u.clock.Now(),
			Body:         body,
		},
	); err != nil {
		return fmt.Errorf("failed to publish ride %s: %w", rec.ID, err)
	}
	return nil
}

// Connection owns the broker connection and channel behind an AMQPUploader.
type Connection struct {
	Conn    *amqp.Connection
	Channel *amqp.Channel
}

func Dial(url string) (*Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	return &Connection{Conn: conn, Channel: ch}, nil
}

func (c *Connection) Close() error {
	if c.Channel != nil {
		if err := c.Channel.Close(); err != nil {
			log.Printf("failed to close amqp channel: %v", err)
		}
	}
	if c.Conn != nil {
		return c.Conn.Close()
	}
	return nil
}
