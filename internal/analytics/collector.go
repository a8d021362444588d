package analytics

import (
	"context"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/stopmark/pkg/kafka"
)

// maxBatch caps the events sent in one Kafka write.
const maxBatch = 100

// Publisher writes events. *kafka.Producer implements it.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Collector buffers events and publishes them from a single goroutine so
// that Track never blocks a request. Events already queued when the
// goroutine wakes are sent together in one batch.
type Collector struct {
	producer Publisher
	eventCh  chan any
	logger   *slog.Logger
	done     chan struct{}
}

func NewCollector(producer Publisher, bufferSize int) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	return &Collector{
		producer: producer,
		eventCh:  make(chan any, bufferSize),
		logger:   slog.Default().With("component", "analytics-collector"),
		done:     make(chan struct{}),
	}
}

func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					return
				}
				c.publish(ctx, c.fill(event))
			case <-ctx.Done():
				c.drainRemaining()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started", "buffer_size", cap(c.eventCh))
}

// Track queues event, dropping it when the buffer is full.
func (c *Collector) Track(event any) {
	select {
	case c.eventCh <- event:
	default:
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

// Close stops accepting events and waits for the queue to drain.
func (c *Collector) Close() {
	close(c.eventCh)
	<-c.done
}

// fill returns first plus whatever else is queued, up to maxBatch events.
func (c *Collector) fill(first any) []kafka.Event {
	batch := []kafka.Event{toEvent(first)}
	for len(batch) < maxBatch {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return batch
			}
			batch = append(batch, toEvent(event))
		default:
			return batch
		}
	}
	return batch
}

func (c *Collector) publish(ctx context.Context, batch []kafka.Event) {
	if err := c.producer.PublishBatch(ctx, batch); err != nil {
		c.logger.Error("failed to publish analytics events", "count", len(batch), "error", err)
	}
}

func (c *Collector) drainRemaining() {
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return
			}
			c.publish(context.Background(), c.fill(event))
		default:
			return
		}
	}
}

func toEvent(event any) kafka.Event {
	return kafka.Event{Key: eventKey(event), Value: event}
}

// eventKey partitions search events by query so that one query's events
// stay ordered.
func eventKey(event any) string {
	switch e := event.(type) {
	case SearchEvent:
		return "search:" + e.Query
	case IndexEvent:
		return "index:" + e.DocumentID
	default:
		return "analytics"
	}
}
