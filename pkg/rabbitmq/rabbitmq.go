package rabbitmq

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/streadway/amqp"
	"go.uber.org/zap"
)

// ImportQueue receives an ImportEvent after every successful import.
const ImportQueue = "book_import_queue"

// EventBooksImported is the ImportEvent.Event value.
const EventBooksImported = "books.imported"

// ImportEvent describes a finished import. A nil UserID means the master list.
type ImportEvent struct {
	Event    string    `json:"event"`
	UserID   *string   `json:"user_id"`
	Imported int       `json:"imported"`
	Source   string    `json:"source"`
	At       time.Time `json:"at"`
}

// Client holds the RabbitMQ connection and channel.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	mu      sync.Mutex // guards channel.Publish
	logger  *zap.Logger
}

// Config holds RabbitMQ connection details.
type Config struct {
	URL string
}

// NewClient connects to RabbitMQ, opens a channel and declares ImportQueue.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := declareImportQueue(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	logger = logger.Named("rabbitmq")
	logger.Info("RabbitMQ client connected", zap.String("queue", ImportQueue))

	return &Client{
		conn:    conn,
		channel: ch,
		logger:  logger,
	}, nil
}

func declareImportQueue(ch *amqp.Channel) error {
	_, err := ch.QueueDeclare(
		ImportQueue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare %s: %w", ImportQueue, err)
	}
	return nil
}

// Close closes the RabbitMQ connection and channel.
func (c *Client) Close() error {
	var errs []error
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
	if len(errs) > 0 {
		return fmt.Errorf("multiple errors occurred during RabbitMQ client close: %v", errs)
	}
	return nil
}

// Publish sends a persistent JSON message.
func (c *Client) Publish(exchange, routingKey string, body []byte) error {
	if c.channel == nil {
		return fmt.Errorf("RabbitMQ channel is not available")
	}

	c.mu.Lock()
	err := c.channel.Publish(
		exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		})
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	c.logger.Debug("Published message", zap.String("routingKey", routingKey), zap.Int("bytes", len(body)))
	return nil
}

// PublishImportEvent marshals event and sends it to ImportQueue.
func (c *Client) PublishImportEvent(event ImportEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal import event: %w", err)
	}
	return c.Publish("", ImportQueue, body)
}

// ConsumeImportEvents starts a goroutine that passes every delivery on
// ImportQueue to handler. Handled messages are acked; failed ones are nacked
// without requeue so a poison message cannot loop.
func (c *Client) ConsumeImportEvents(handler func(msg amqp.Delivery) error) error {
	if c.channel == nil {
		return fmt.Errorf("RabbitMQ channel is not available for consumption")
	}
	if err := declareImportQueue(c.channel); err != nil {
		return err
	}

	msgs, err := c.channel.Consume(
		ImportQueue,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("Waiting for import events")

	go func() {
		for msg := range msgs {
			if err := handler(msg); err != nil {
				c.logger.Warn("Error processing message", zap.Uint64("deliveryTag", msg.DeliveryTag), zap.Error(err))
				if nackErr := msg.Nack(false, false); nackErr != nil {
					c.logger.Error("Error nacking message", zap.Uint64("deliveryTag", msg.DeliveryTag), zap.Error(nackErr))
				}
				continue
			}
			if ackErr := msg.Ack(false); ackErr != nil {
				c.logger.Error("Error acking message", zap.Uint64("deliveryTag", msg.DeliveryTag), zap.Error(ackErr))
			}
		}
	}()

	return nil
}

// DecodeImportEvent parses a message body published by PublishImportEvent.
func DecodeImportEvent(body []byte) (ImportEvent, error) {
	var event ImportEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return event, fmt.Errorf("failed to decode import event: %w", err)
	}
	if event.Event != EventBooksImported {
		return event, fmt.Errorf("unexpected event %q", event.Event)
	}
	return event, nil
}

// ImportEventLogger returns a handler that records each import event in logger.
func ImportEventLogger(logger *zap.Logger) func(msg amqp.Delivery) error {
	return func(msg amqp.Delivery) error {
		event, err := DecodeImportEvent(msg.Body)
		if err != nil {
			return err
		}
		owner := "master"
		if event.UserID != nil {
			owner = *event.UserID
		}
		logger.Info("Books imported",
			zap.String("owner", owner),
			zap.Int("imported", event.Imported),
			zap.String("source", event.Source),
			zap.Time("at", event.At),
		)
		return nil
	}
}
