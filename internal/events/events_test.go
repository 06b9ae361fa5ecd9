package events

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}

	f.msgs = append(f.msgs, msgs...)

	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestProducer_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{writer: w, topic: "ledger-events"}

	require.NoError(t, p.Publish(context.Background(), "investor-1", []byte(`{"event":"transaction.recorded"}`)))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "investor-1", string(w.msgs[0].Key))
	assert.JSONEq(t, `{"event":"transaction.recorded"}`, string(w.msgs[0].Value))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestProducer_PublishError(t *testing.T) {
	p := &Producer{writer: &fakeWriter{err: errors.New("broker down")}, topic: "ledger-events"}

	err := p.Publish(context.Background(), "k", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ledger-events")
}
