package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/streadway/amqp"

	"storefront/pkg/events"
)

// channel is the subset of *amqp.Channel the client uses.
type channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// consumerChannel is the subset of *amqp.Channel the consumer uses.
type consumerChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// Client holds the RabbitMQ connection. Publishing and consuming use
// separate channels so deliveries and acks never share the publish lock.
type Client struct {
	conn     *amqp.Connection
	channel  channel
	consumer consumerChannel
	exchange string
	log      *slog.Logger
	mu       sync.Mutex // guards channel; amqp channels are not safe for concurrent publishing
}

// Config holds RabbitMQ connection details.
type Config struct {
	URL      string
	Exchange string // topic exchange events are routed through
	Logger   *slog.Logger
}

// NewClient connects to RabbitMQ and declares the durable topic exchange.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Exchange == "" {
		cfg.Exchange = "order"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		cfg.Exchange, // name
		"topic",      // kind
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", cfg.Exchange, err)
	}

	consumeCh, err := conn.Channel()
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to open consumer channel: %w", err)
	}

	cfg.Logger.Info("RabbitMQ client connected", "exchange", cfg.Exchange)

	return &Client{
		conn:     conn,
		channel:  ch,
		consumer: consumeCh,
		exchange: cfg.Exchange,
		log:      cfg.Logger,
	}, nil
}

// Close closes both channels and the RabbitMQ connection.
func (c *Client) Close() error {
	var errs []error
	if c.consumer != nil {
		if err := c.consumer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close consumer channel: %w", err))
		}
	}
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Publish sends env to the exchange using its event type as routing key.
func (c *Client) Publish(ctx context.Context, env events.Envelope) error {
	if c.channel == nil {
		return fmt.Errorf("RabbitMQ channel is not available")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", env.EventType, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	err = c.channel.Publish(
		c.exchange,    // exchange
		env.EventType, // routing key
		false,         // mandatory
		false,         // immediate
		amqp.Publishing{
			ContentType:   "application/json",
			MessageId:     env.EventID,
			CorrelationId: env.CorrelationID,
			Type:          env.EventType,
			Body:          body,
			DeliveryMode:  amqp.Persistent,
			Timestamp:     env.OccurredAt,
		})
	if err != nil {
		return fmt.Errorf("failed to publish %s event: %w", env.EventType, err)
	}

	c.log.Debug("published event", "event_type", env.EventType, "event_id", env.EventID)
	return nil
}

// ConsumeOrderEvents binds a durable queue to every order event and hands
// each decoded envelope to handler. Messages the handler fails on are
// requeued; messages that cannot be decoded are dropped.
func (c *Client) ConsumeOrderEvents(queueName string, handler func(events.Envelope) error) error {
	if c.consumer == nil {
		return fmt.Errorf("RabbitMQ channel is not available for consumption")
	}

	queue, err := c.consumer.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", queueName, err)
	}
	if err := c.consumer.QueueBind(queue.Name, "order.*", c.exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s: %w", queueName, err)
	}

	msgs, err := c.consumer.Consume(
		queue.Name, // queue
		"",         // consumer tag
		false,      // auto-ack
		false,      // exclusive
		false,      // no-local
		false,      // no-wait
		nil,        // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	go func() {
		for msg := range msgs {
			c.handleDelivery(msg, handler)
		}
	}()

	return nil
}

func (c *Client) handleDelivery(msg amqp.Delivery, handler func(events.Envelope) error) {
	var env events.Envelope
	if err := json.Unmarshal(msg.Body, &env); err != nil {
		c.log.Warn("dropping undecodable message", "delivery_tag", msg.DeliveryTag, "error", err)
		if err := msg.Nack(false, false); err != nil {
			c.log.Error("nack failed", "delivery_tag", msg.DeliveryTag, "error", err)
		}
		return
	}

	if err := handler(env); err != nil {
		c.log.Error("error processing message", "event_type", env.EventType, "event_id", env.EventID, "error", err)
		if err := msg.Nack(false, true); err != nil {
			c.log.Error("nack failed", "delivery_tag", msg.DeliveryTag, "error", err)
		}
		return
	}
	if err := msg.Ack(false); err != nil {
		c.log.Error("ack failed", "delivery_tag", msg.DeliveryTag, "error", err)
	}
}
