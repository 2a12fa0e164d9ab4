// Package feed streams panorama records out of a message source, letting
// the download command consume a live discovery run instead of a finished
// JSON file.
package feed

import (
	"context"
	"encoding/json"
	"log"

	"github.com/segmentio/kafka-go"
)

// MessageIterator is the contract for consuming messages from a topic.
// The kafkaclient consumer satisfies it; tests provide their own.
type MessageIterator interface {
	// Messages returns a receive-only channel of messages. The channel is
	// closed by the implementation when the consumer is stopped or the
	// underlying source is exhausted.
	Messages() <-chan kafka.Message

	// CommitOffset acknowledges that a message has been processed.
	// Implementations may make this a no-op under auto-commit.
	CommitOffset(ctx context.Context, msg kafka.Message) error
}

// Iterator decodes each incoming message as a value of type T and yields
// it on a channel, committing the offset after a successful decode and
// hand-off. Messages that fail to decode are logged and skipped.
type Iterator[T any] struct {
	msgIterator MessageIterator
}

// NewIterator constructs an Iterator over the provided message source. The
// iterator does not manage the source's lifecycle; callers start and stop
// their consumer around it.
func NewIterator[T any](msgIterator MessageIterator) *Iterator[T] {
	return &Iterator[T]{msgIterator: msgIterator}
}

// Items starts a goroutine that decodes and yields records until the
// underlying message channel closes. The returned channel is closed when
// the source is exhausted or ctx is cancelled.
func (it *Iterator[T]) Items(ctx context.Context) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)

		for msg := range it.msgIterator.Messages() {
			var item T
			if err := json.Unmarshal(msg.Value, &item); err != nil {
				log.Printf("Error unmarshalling JSON: %v", err)
				continue
			}

			select {
			case out <- item:
			case <-ctx.Done():
				return
			}

			if err := it.msgIterator.CommitOffset(ctx, msg); err != nil {
				log.Printf("Failed to commit offset: %v", err)
			}
		}
	}()
	return out
}
