package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"

	"teamchat-core/server/internal/config"
	"teamchat-core/server/internal/database"
	"teamchat-core/server/internal/metrics"
	"teamchat-core/server/internal/resilience"
)

// maxOutboxAttempts bounds retries before an outbox entry is dead-lettered
// instead of retried forever.
const maxOutboxAttempts = 10

// Broker publishes outbox entries to the durable cross-process topic.
// Grounded on kafka-go's documented Writer API (no pack call site was
// available to read); wrapped in a circuit breaker.
type Broker struct {
	writer  *kafka.Writer
	breaker *gobreaker.CircuitBreaker
	enabled bool
}

func NewBroker(cfg *config.BrokerConfig, cbCfg *config.CircuitBreakerConfig) *Broker {
	if !cfg.Enabled {
		return &Broker{enabled: false}
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}

	breaker := resilience.NewBreaker("event-broker", cbCfg)

	return &Broker{writer: writer, breaker: breaker, enabled: true}
}

// BreakerState reports the current circuit breaker state for the event
// broker; a disabled broker always reports closed.
func (b *Broker) BreakerState() gobreaker.State {
	if !b.enabled {
		return gobreaker.StateClosed
	}
	return b.breaker.State()
}

// Publish sends one outbox entry's payload to its topic, retrying with
// capped exponential backoff (100ms-5s, 5 attempts) inside the circuit
// breaker call.
func (b *Broker) Publish(ctx context.Context, topic, key string, payload []byte) error {
	if !b.enabled {
		return nil
	}

	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = 100 * time.Millisecond
	retry.MaxInterval = 5 * time.Second
	policy := backoff.WithMaxRetries(retry, 4)

	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, backoff.Retry(func() error {
			return b.writer.WriteMessages(ctx, kafka.Message{
				Topic: topic,
				Key:   []byte(key),
				Value: payload,
			})
		}, backoff.WithContext(policy, ctx))
	})

	return err
}

func (b *Broker) Close() error {
	if !b.enabled {
		return nil
	}
	return b.writer.Close()
}

// DrainOutbox is the body of the outbox-drain worker: pull unpublished
// rows, publish each, and leave failures for the next tick. An entry that
// fails maxOutboxAttempts times is dead-lettered instead of retried
// forever, so a permanently broken payload doesn't spin the drain loop.
func DrainOutbox(ctx context.Context, db *database.DB, broker *Broker, batchSize int) {
	entries, err := db.FetchUnpublished(ctx, batchSize)
	if err != nil {
		slog.Error("outbox drain: fetch failed", "error", err)
		return
	}
	metrics.OutboxBacklog.Set(float64(len(entries)))

	for _, entry := range entries {
		if err := broker.Publish(ctx, entry.Topic, entry.Key, entry.Payload); err != nil {
			if entry.Attempts+1 >= maxOutboxAttempts {
				slog.Error("outbox drain: exhausted retries, dead-lettering",
					"outbox_id", entry.ID, "topic", entry.Topic, "attempts", entry.Attempts+1, "error", err)
				if dlErr := db.MarkOutboxDeadLettered(ctx, entry.ID); dlErr != nil {
					slog.Error("outbox drain: dead-letter mark failed", "outbox_id", entry.ID, "error", dlErr)
				}
				metrics.OutboxDeadLettered.Inc()
				continue
			}
			slog.Warn("outbox drain: publish failed, will retry next tick",
				"outbox_id", entry.ID, "topic", entry.Topic, "attempts", entry.Attempts, "error", err)
			_ = db.IncrementOutboxAttempts(ctx, entry.ID)
			continue
		}
		if err := db.MarkOutboxPublished(ctx, entry.ID); err != nil {
			slog.Error("outbox drain: mark published failed", "outbox_id", entry.ID, "error", err)
		}
	}
}
