package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type captureWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *captureWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisherKeysByAggregate(t *testing.T) {
	w := &captureWriter{}
	p := &KafkaPublisher{writer: w}

	evt := New(SaleRecorded, "sale:12", 7, map[string]any{"quantity": 4})
	require.NoError(t, p.Publish(context.Background(), evt))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	require.Equal(t, "sale:12", string(msg.Key))
	require.Equal(t, "type", msg.Headers[0].Key)
	require.Equal(t, SaleRecorded, string(msg.Headers[0].Value))

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	require.Equal(t, evt.ID, decoded.ID)
	require.Equal(t, int64(7), decoded.ActorID)

	require.NoError(t, p.Close())
	require.True(t, w.closed)
}

func TestNewPublisherWithoutBrokersIsNop(t *testing.T) {
	p := NewPublisher(nil, "boutique.events")
	require.IsType(t, Nop{}, p)
	require.NoError(t, p.Publish(context.Background(), New(SaleCancelled, "sale:1", 1, nil)))
}

func TestEmitLogsFailures(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	p := &KafkaPublisher{writer: &captureWriter{err: errors.New("broker down")}}

	Emit(context.Background(), p, logger, New(SubscriptionApproved, "user:3", 1, nil))
	require.Contains(t, buf.String(), "publish events failed")
	require.Contains(t, buf.String(), "broker down")

	Emit(context.Background(), nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}
