package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"dharohar/config"
	"dharohar/core/block"
)

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *mockWriter) Close() error {
	return m.Called().Error(0)
}

type recordingPublisher struct {
	events []BlockEvent
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, ev BlockEvent) error {
	r.events = append(r.events, ev)
	return r.err
}

func (r *recordingPublisher) Close() error { return r.err }

func sampleBlock() block.Block {
	return block.Block{
		Index:          3,
		CreatedAt:      time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		Digest:         "00ab12cd",
		PreviousDigest: "00ffee11",
		Nonce:          42,
		Transactions: []block.Transaction{
			{ID: "tx_1", Kind: block.KindDonorRegistration},
			{ID: "tx_2", Kind: block.KindSystemEvent},
			{ID: "tx_3", Kind: block.KindSystemEvent},
		},
	}
}

func quiet() *log.Logger { return log.New(io.Discard, "", 0) }

func TestNewBlockEvent(t *testing.T) {
	ev := NewBlockEvent(sampleBlock())
	assert.Equal(t, EventBlockMined, ev.Type)
	assert.Equal(t, 3, ev.Index)
	assert.Equal(t, "00ab12cd", ev.Digest)
	assert.Equal(t, []string{"tx_1", "tx_2", "tx_3"}, ev.TxIDs)
	assert.Equal(t, map[block.Kind]int{block.KindDonorRegistration: 1, block.KindSystemEvent: 2}, ev.KindCounts)
}

func TestKafkaPublisherWritesKeyedMessage(t *testing.T) {
	w := new(mockWriter)
	w.On("WriteMessages", mock.Anything, mock.MatchedBy(func(msgs []kafka.Message) bool {
		if len(msgs) != 1 || string(msgs[0].Key) != "3" {
			return false
		}
		var ev BlockEvent
		return json.Unmarshal(msgs[0].Value, &ev) == nil && ev.Digest == "00ab12cd"
	})).Return(nil).Once()
	w.On("Close").Return(nil)

	p := &KafkaPublisher{writer: w, logger: quiet(), topic: "blocks"}
	require.NoError(t, p.Publish(context.Background(), NewBlockEvent(sampleBlock())))
	require.NoError(t, p.Close())
	w.AssertExpectations(t)
}

func TestKafkaPublisherWrapsWriteError(t *testing.T) {
	w := new(mockWriter)
	w.On("WriteMessages", mock.Anything, mock.Anything).Return(errors.New("broker down"))
	p := &KafkaPublisher{writer: w, logger: quiet(), topic: "blocks"}

	err := p.Publish(context.Background(), NewBlockEvent(sampleBlock()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
	assert.Contains(t, err.Error(), "blocks")
}

func TestNewKafkaPublisherRequiresBrokersAndTopic(t *testing.T) {
	_, err := NewKafkaPublisher(config.KafkaConfig{Topic: "t"}, quiet())
	assert.Error(t, err)
	_, err = NewKafkaPublisher(config.KafkaConfig{Brokers: []string{"localhost:9092"}}, quiet())
	assert.Error(t, err)

	p, err := NewKafkaPublisher(config.KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "t", RequiredAcks: "all"}, quiet())
	require.NoError(t, err)
	assert.Equal(t, "t", p.topic)
}

func TestListenerLogsFailures(t *testing.T) {
	var buf bytes.Buffer
	pub := &recordingPublisher{err: errors.New("nope")}
	fn := Listener(pub, log.New(&buf, "", 0), time.Second)

	fn(sampleBlock())
	require.Len(t, pub.events, 1)
	assert.True(t, strings.Contains(buf.String(), "Failed to publish block #3"))
}

func TestFanoutAndLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	a := &recordingPublisher{}
	b := &recordingPublisher{err: errors.New("b failed")}
	f := Fanout{NewLogPublisher(log.New(&buf, "", 0)), a, b}

	err := f.Publish(context.Background(), NewBlockEvent(sampleBlock()))
	assert.EqualError(t, err, "b failed")
	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 1)
	assert.Contains(t, buf.String(), "[NOTIFY] Block #3")
	assert.EqualError(t, f.Close(), "b failed")
}
