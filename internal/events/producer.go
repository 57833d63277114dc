package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// Publisher delivers job transitions to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, evts ...JobStateChanged) error
}

type messageWriter interface {
	WriteMessages(context.Context, ...kafka.Message) error
	Close() error
}

// KafkaPublisher encodes transitions as JSON and writes them to one topic keyed by job id,
// so every transition of one job lands on the same partition in order.
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaPublisher connects a publisher for topic. The writer dials lazily on the first
// publish and waits for every in-sync replica to acknowledge.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return newKafkaPublisher(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		Compression:            kafka.Snappy,
		AllowAutoTopicCreation: true,
	})
}

func newKafkaPublisher(writer messageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

// Close flushes pending messages and releases the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Publish writes evts as one batch.
func (p *KafkaPublisher) Publish(ctx context.Context, evts ...JobStateChanged) error {
	if len(evts) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(evts))
	for _, evt := range evts {
		body, err := json.Marshal(evt)
		if err != nil {
			return err
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(evt.JobID),
			Value: body,
			Time:  time.Now().UTC(),
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(TypeJobStateChanged)},
				{Key: "tenant_id", Value: []byte(evt.TenantID)},
			},
		})
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

// LogPublisher writes transitions to a logger. It stands in for Kafka when no brokers are configured.
type LogPublisher struct {
	Logger *log.Logger
}

// Publish logs each event.
func (p LogPublisher) Publish(_ context.Context, evts ...JobStateChanged) error {
	logger := p.Logger
	if logger == nil {
		logger = log.Default()
	}
	for _, evt := range evts {
		logger.Printf("job %s (%s %s): %s -> %s", evt.JobID, evt.Kind, evt.TargetID, evt.PreviousState, evt.State)
	}
	return nil
}
