package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"dharohar/config"
)

// messageWriter is the subset of *kafka.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes block events to a Kafka topic, keyed by block index.
type KafkaPublisher struct {
	writer messageWriter
	logger *log.Logger
	topic  string
}

var _ Publisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates a producer for cfg.Topic on cfg.Brokers.
func NewKafkaPublisher(cfg config.KafkaConfig, logger *log.Logger) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, errors.New("kafka configuration incomplete: both brokers and topic are required")
	}
	if logger == nil {
		logger = log.Default()
	}

	var requiredAcks kafka.RequiredAcks
	switch cfg.RequiredAcks {
	case "none":
		requiredAcks = kafka.RequireNone
	case "all":
		requiredAcks = kafka.RequireAll
	default:
		requiredAcks = kafka.RequireOne
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: config.Duration(cfg.BatchTimeout, 100*time.Millisecond),
		WriteTimeout: config.Duration(cfg.WriteTimeout, 5*time.Second),
		RequiredAcks: requiredAcks,
		Async:        cfg.Async,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Printf("[NOTIFY] Kafka writer error: "+msg, args...)
		}),
	}

	logger.Printf("[NOTIFY] Kafka publisher created, brokers: %v, topic: %s", cfg.Brokers, cfg.Topic)
	return &KafkaPublisher{writer: w, logger: logger, topic: cfg.Topic}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev BlockEvent) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to serialize block event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(strconv.Itoa(ev.Index)),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(ev.Type)},
			{Key: "hash", Value: []byte(ev.Digest)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write block #%d to kafka topic %s: %w", ev.Index, p.topic, err)
	}
	return nil
}

// Close flushes buffered messages and closes the producer.
func (p *KafkaPublisher) Close() error {
	p.logger.Println("[NOTIFY] Closing Kafka publisher (and flushing buffer)...")
	return p.writer.Close()
}
