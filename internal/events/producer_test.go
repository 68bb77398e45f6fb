package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs     []kafka.Message
	err      error
	deadline time.Time
	closed   bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.deadline, _ = ctx.Deadline()
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

func TestProducer_PublishEvent(t *testing.T) {
	t.Parallel()

	w := &fakeWriter{}
	p := &Producer{writer: w}
	ev := UserEvent{Type: UserLoggedIn, UserID: "u-1", Username: "alice", OccurredAt: time.Unix(100, 0).UTC()}

	require.NoError(t, p.PublishEvent(context.Background(), TopicUserEvents, "u-1", ev))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, TopicUserEvents, msg.Topic)
	assert.Equal(t, []byte("u-1"), msg.Key)

	var got UserEvent
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, ev, got)
	assert.WithinDuration(t, time.Now().Add(publishTimeout), w.deadline, time.Second)
}

func TestProducer_PublishEvent_Errors(t *testing.T) {
	t.Parallel()

	w := &fakeWriter{err: errors.New("broker down")}
	p := &Producer{writer: w}

	err := p.PublishEvent(context.Background(), TopicUserEvents, "k", UserEvent{Type: UserLoggedOut})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")

	err = p.PublishEvent(context.Background(), TopicUserEvents, "k", make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "json.Marshal")
}

func TestProducer_Close(t *testing.T) {
	t.Parallel()

	w := &fakeWriter{}
	p := &Producer{writer: w}
	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestNewProducer_Writer(t *testing.T) {
	t.Parallel()

	p := NewProducer([]string{"k1:9092", "k2:9092"})
	w, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Contains(t, w.Addr.String(), "k1:9092")
	assert.Empty(t, w.Topic)
	require.NoError(t, p.Close())
}

func TestNoop(t *testing.T) {
	t.Parallel()

	var n Noop
	assert.NoError(t, n.PublishEvent(context.Background(), TopicUserEvents, "k", nil))
	assert.NoError(t, n.Close())
}
