package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/ayo6706/tutor-settlement/internal/observability"
	"go.uber.org/zap"
)

// ErrQueueFull is returned when the producer cannot take another message
// without making the caller wait.
var ErrQueueFull = errors.New("notification queue full")

// KafkaNotifier publishes events as JSON, keyed by user id so one user's
// events stay ordered within a partition. Publishing is asynchronous: Notify
// only enqueues, and delivery failures are logged and counted in the
// background.
type KafkaNotifier struct {
	producer sarama.AsyncProducer
	topic    string
	logger   *zap.Logger
	done     chan struct{}
}

// NewKafkaProducer dials the brokers, retrying while they come up.
func NewKafkaProducer(brokers []string, attempts int) (sarama.AsyncProducer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = false
	config.Producer.Return.Errors = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3

	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 1; i <= attempts; i++ {
		var producer sarama.AsyncProducer
		producer, err = sarama.NewAsyncProducer(brokers, config)
		if err == nil {
			return producer, nil
		}
		zap.L().Warn("waiting for kafka", zap.Int("attempt", i), zap.Int("of", attempts), zap.Error(err))
		if i < attempts {
			time.Sleep(2 * time.Second)
		}
	}
	return nil, fmt.Errorf("start kafka producer: %w", err)
}

// NewKafkaNotifier starts draining the producer's error channel. Close must be
// called to flush pending messages.
func NewKafkaNotifier(producer sarama.AsyncProducer, topic string, logger *zap.Logger) *KafkaNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &KafkaNotifier{producer: producer, topic: topic, logger: logger, done: make(chan struct{})}
	go n.drainErrors()
	return n
}

func (n *KafkaNotifier) drainErrors() {
	defer close(n.done)
	for perr := range n.producer.Errors() {
		eventType, _ := perr.Msg.Metadata.(string)
		observability.IncrementNotificationFailure(eventType)
		n.logger.Warn("kafka publish failed",
			zap.String("event", eventType),
			zap.String("topic", perr.Msg.Topic),
			zap.Error(perr.Err),
		)
	}
}

// Notify enqueues the event without waiting for the broker.
func (n *KafkaNotifier) Notify(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.Type, err)
	}
	msg := &sarama.ProducerMessage{
		Topic: n.topic,
		Key:   sarama.StringEncoder(event.UserID.String()),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.Type)},
		},
		Metadata: event.Type,
	}
	select {
	case n.producer.Input() <- msg:
		return nil
	default:
		return fmt.Errorf("publish %s event: %w", event.Type, ErrQueueFull)
	}
}

// Close flushes buffered messages and waits for the error drain to finish.
func (n *KafkaNotifier) Close() error {
	n.producer.AsyncClose()
	<-n.done
	return nil
}
