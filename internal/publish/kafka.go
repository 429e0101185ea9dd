package publish

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/related-posts/internal/post"
	"github.com/Adithya-Monish-Kumar-K/related-posts/pkg/kafka"
)

// EventPublisher is satisfied by *kafka.Producer.
type EventPublisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// KafkaSink emits one message per result, keyed by post id.
type KafkaSink struct {
	results EventPublisher
}

func NewKafkaSink(results EventPublisher) *KafkaSink {
	return &KafkaSink{results: results}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Write(ctx context.Context, _ string, batch []post.RankedResult) error {
	events := make([]kafka.Event, len(batch))
	for i := range batch {
		events[i] = kafka.Event{Key: batch[i].ID, Value: &batch[i]}
	}
	return s.results.PublishBatch(ctx, events)
}

func (s *KafkaSink) Finish(context.Context, string, int) error { return nil }

// KafkaAnnouncer publishes RunComplete events keyed by run id.
type KafkaAnnouncer struct {
	complete EventPublisher
}

func NewKafkaAnnouncer(complete EventPublisher) *KafkaAnnouncer {
	return &KafkaAnnouncer{complete: complete}
}

func (a *KafkaAnnouncer) Announce(ctx context.Context, done post.RunComplete) error {
	return a.complete.PublishBatch(ctx, []kafka.Event{{Key: done.RunID, Value: done}})
}
