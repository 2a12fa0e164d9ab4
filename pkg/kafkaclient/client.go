// Package kafkaclient carries discovery records between the two binaries:
// the discover command publishes each accepted record to a topic, and the
// download command can consume the topic instead of reading a JSON file.
package kafkaclient

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"streetscan/internal/models"
)

// KafkaReader is the subset of the kafka-go reader used by the consumer.
// It exists so unit tests can inject a mock.
type KafkaReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes panorama records to a topic, one message per record,
// keyed by panoid so replays of the same record land in the same partition.
type Publisher struct {
	writer *kafka.Writer
}

func NewPublisher(broker, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(broker),
			Topic:    topic,
			Balancer: &kafka.Hash{},
		},
	}
}

// PublishRecord sends one discovery record.
func (p *Publisher) PublishRecord(ctx context.Context, rec models.Panorama) error {
	value, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(rec.PanoID),
		Value: value,
	})
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// Consumer manages the Kafka read loop and exposes messages on a channel.
// It is designed to be thread-safe.
type Consumer struct {
	reader KafkaReader
	// a channel to signal a graceful shutdown.
	doneChan chan struct{}
	// a wait group to ensure the read loop has exited before Close.
	wg sync.WaitGroup
	// the messages handed to consumers of Messages().
	messageChan chan kafka.Message
}

// NewConsumer creates a consumer for the record topic. Auto-commit is
// disabled; offsets are committed explicitly after a record is processed.
func NewConsumer(broker, topic, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        []string{broker},
		Topic:          topic,
		GroupID:        groupID,
		CommitInterval: 0,
		MinBytes:       10e3,
		MaxBytes:       10e6,
	})
	return &Consumer{
		reader:      reader,
		doneChan:    make(chan struct{}),
		messageChan: make(chan kafka.Message),
	}
}

func (c *Consumer) Messages() <-chan kafka.Message {
	return c.messageChan
}

// CommitOffset acknowledges a processed message.
func (c *Consumer) CommitOffset(ctx context.Context, msg kafka.Message) error {
	return c.reader.CommitMessages(ctx, msg)
}

// StartConsuming begins the read loop in a separate goroutine. The message
// channel is closed when the loop stops.
func (c *Consumer) StartConsuming(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(c.messageChan)

		for {
			select {
			case <-ctx.Done():
				return
			case <-c.doneChan:
				return
			default:
				msg, err := c.reader.ReadMessage(ctx)
				if err != nil {
					if err.Error() == "kafka: reader closed" || ctx.Err() != nil {
						return
					}
					log.Printf("Error reading message: %v", err)
					// Backoff to avoid a tight error loop.
					time.Sleep(1 * time.Second)
					continue
				}

				select {
				case c.messageChan <- msg:
				case <-ctx.Done():
					return
				case <-c.doneChan:
					return
				}
			}
		}
	}()
}

// Stop gracefully shuts down the consumer.
func (c *Consumer) Stop() {
	close(c.doneChan)
	c.wg.Wait()
	if err := c.reader.Close(); err != nil {
		log.Printf("Failed to close Kafka reader: %v", err)
	}
}
