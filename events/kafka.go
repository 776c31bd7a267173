package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	k "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/cppla/threadline/metrics"
	"github.com/cppla/threadline/services"
)

// KafkaPublisher writes reaction events to a Kafka topic, keyed by post so
// that events for one post stay ordered within a partition.
type KafkaPublisher struct {
	w *k.Writer
}

// NewKafkaPublisher creates a writer for topic. A synchronous writer returns
// delivery errors from PublishReaction. An async one returns at once, and its
// delivery errors are logged and counted from the writer's completion hook.
func NewKafkaPublisher(brokers []string, topic string, async bool, log *zap.SugaredLogger) *KafkaPublisher {
	w := &k.Writer{
		Addr:         k.TCP(brokers...),
		Topic:        topic,
		Balancer:     &k.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: k.RequireOne,
		Async:        async,
	}
	if async {
		w.Completion = deliveryReport(log, metrics.EventPublishFailures)
	}
	return &KafkaPublisher{w: w}
}

func deliveryReport(log *zap.SugaredLogger, failures prometheus.Counter) func([]k.Message, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return func(msgs []k.Message, err error) {
		if err == nil {
			return
		}
		failures.Add(float64(len(msgs)))
		log.Warnw("kafka delivery failed", "messages", len(msgs), "error", err)
	}
}

// Close flushes pending messages and closes the writer.
func (p *KafkaPublisher) Close() error { return p.w.Close() }

// PublishReaction implements services.EventPublisher.
func (p *KafkaPublisher) PublishReaction(ctx context.Context, event services.ReactionEvent) error {
	msg, err := Message(event)
	if err != nil {
		return err
	}
	return p.w.WriteMessages(ctx, msg)
}

// Message encodes event as a Kafka message.
func Message(event services.ReactionEvent) (k.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return k.Message{}, err
	}
	return k.Message{
		Key:   []byte(strconv.FormatUint(uint64(event.PostID), 10)),
		Value: value,
		Time:  event.OccurredAt,
	}, nil
}
