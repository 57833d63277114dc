package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func sampleEvent(jobID, state string) JobStateChanged {
	return JobStateChanged{
		EventID:       "evt-" + jobID,
		JobID:         jobID,
		TenantID:      "tenant-1",
		Kind:          "trial",
		TargetID:      "trial-1",
		PreviousState: "processing",
		State:         state,
		Terminal:      state == "ready",
		OccurredAt:    time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestKafkaPublisherKeysByJobAndSetsHeaders(t *testing.T) {
	writer := &recordingWriter{}
	publisher := newKafkaPublisher(writer)

	require.NoError(t, publisher.Publish(context.Background(), sampleEvent("job-1", "ready"), sampleEvent("job-2", "failed")))
	require.Len(t, writer.msgs, 2)

	msg := writer.msgs[0]
	require.Equal(t, "job-1", string(msg.Key))
	require.Equal(t, []kafka.Header{
		{Key: "event_type", Value: []byte(TypeJobStateChanged)},
		{Key: "tenant_id", Value: []byte("tenant-1")},
	}, msg.Headers)

	var decoded JobStateChanged
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	require.Equal(t, sampleEvent("job-1", "ready"), decoded)
}

func TestKafkaPublisherSkipsEmptyBatch(t *testing.T) {
	writer := &recordingWriter{err: errors.New("should not be called")}
	require.NoError(t, newKafkaPublisher(writer).Publish(context.Background()))
	require.Empty(t, writer.msgs)
}

func TestKafkaPublisherReturnsWriterError(t *testing.T) {
	writer := &recordingWriter{err: errors.New("broker unavailable")}
	err := newKafkaPublisher(writer).Publish(context.Background(), sampleEvent("job-1", "ready"))
	require.EqualError(t, err, "broker unavailable")
}

func TestLogPublisherWritesTransitions(t *testing.T) {
	var buf bytes.Buffer
	publisher := LogPublisher{Logger: log.New(&buf, "", 0)}

	require.NoError(t, publisher.Publish(context.Background(), sampleEvent("job-1", "ready")))
	require.Equal(t, "job job-1 (trial trial-1): processing -> ready\n", buf.String())
}

func TestKafkaPublisherClosesWriter(t *testing.T) {
	writer := &recordingWriter{}
	require.NoError(t, newKafkaPublisher(writer).Close())
	require.True(t, writer.closed)
}

func TestNewKafkaPublisherTargetsTopic(t *testing.T) {
	publisher := NewKafkaPublisher([]string{"localhost:9092"}, "modelhealth_job_events")
	writer, ok := publisher.writer.(*kafka.Writer)
	require.True(t, ok)
	require.Equal(t, "modelhealth_job_events", writer.Topic)
	require.Equal(t, kafka.RequireAll, writer.RequiredAcks)
	require.NoError(t, publisher.Close())
}
