package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestKafkaNotifierPublishesJSON(t *testing.T) {
	producer := mocks.NewAsyncProducer(t, mocks.NewTestConfig())
	userID := uuid.New()
	txID := uuid.New()

	producer.ExpectInputWithCheckerFunctionAndSucceed(func(val []byte) error {
		var ev Event
		if err := json.Unmarshal(val, &ev); err != nil {
			return err
		}
		if ev.Type != EventPayoutRecorded || ev.UserID != userID {
			return errors.New("unexpected event payload")
		}
		if ev.TransactionID == nil || *ev.TransactionID != txID {
			return errors.New("missing transaction id")
		}
		return nil
	})

	n := NewKafkaNotifier(producer, "settlement.notifications", nil)
	err := n.Notify(context.Background(), Event{
		Type:          EventPayoutRecorded,
		UserID:        userID,
		TransactionID: &txID,
		At:            time.Now().UTC(),
	})
	require.NoError(t, err)
	require.NoError(t, n.Close())
}

func TestKafkaNotifierLogsDeliveryFailures(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	producer := mocks.NewAsyncProducer(t, mocks.NewTestConfig())
	producer.ExpectInputAndFail(sarama.ErrOutOfBrokers)

	n := NewKafkaNotifier(producer, "settlement.notifications", zap.New(core))
	err := n.Notify(context.Background(), Event{Type: EventPaymentReminder, UserID: uuid.New()})
	require.NoError(t, err, "delivery happens after Notify returns")
	require.NoError(t, n.Close())

	failures := logs.FilterMessage("kafka publish failed").All()
	require.Len(t, failures, 1)
	assert.Equal(t, EventPaymentReminder, failures[0].ContextMap()["event"])
}

// stalledProducer never accepts input, like a producer whose buffer is full
// behind an unreachable broker.
type stalledProducer struct {
	sarama.AsyncProducer
	input  chan *sarama.ProducerMessage
	errors chan *sarama.ProducerError
}

func newStalledProducer() *stalledProducer {
	return &stalledProducer{
		input:  make(chan *sarama.ProducerMessage),
		errors: make(chan *sarama.ProducerError),
	}
}

func (p *stalledProducer) Input() chan<- *sarama.ProducerMessage { return p.input }
func (p *stalledProducer) Errors() <-chan *sarama.ProducerError  { return p.errors }
func (p *stalledProducer) AsyncClose()                           { close(p.errors) }

func TestKafkaNotifierNeverBlocksCaller(t *testing.T) {
	n := NewKafkaNotifier(newStalledProducer(), "settlement.notifications", nil)

	done := make(chan error, 1)
	go func() {
		done <- n.Notify(context.Background(), Event{Type: EventSessionPaid, UserID: uuid.New()})
	}()
	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrQueueFull)
	case <-time.After(time.Second):
		t.Fatal("Notify waited on the broker")
	}
	require.NoError(t, n.Close())
}

func TestKafkaNotifierHonoursCancelledContext(t *testing.T) {
	n := NewKafkaNotifier(newStalledProducer(), "settlement.notifications", nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, n.Notify(ctx, Event{Type: EventSessionPaid}), context.Canceled)
	require.NoError(t, n.Close())
}

func TestLogNotifierNeverFails(t *testing.T) {
	sid := uuid.New()
	err := NewLogNotifier(nil).Notify(context.Background(), Event{Type: EventSessionPaid, UserID: uuid.New(), SessionID: &sid})
	assert.NoError(t, err)
}
