package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/storefront/pkg/logger"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	GroupID string   `mapstructure:"group_id"`
	// Async writes return before the broker acknowledges; failures are
	// only logged.
	Async bool `mapstructure:"async"`
}

func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

type KafkaPublisher struct {
	writer *kafka.Writer
	log    *zap.Logger
}

func NewKafkaPublisher(cfg KafkaConfig, log *zap.Logger) *KafkaPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("kafka")
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		Async:                  cfg.Async,
		BatchTimeout:           50 * time.Millisecond,
	}
	if cfg.Async {
		w.Completion = func(msgs []kafka.Message, err error) {
			if err != nil {
				log.Error("async kafka write failed", zap.Int("messages", len(msgs)), zap.Error(err))
			}
		}
	}
	return &KafkaPublisher{writer: w, log: log}
}

func (p *KafkaPublisher) Publish(ctx context.Context, topic, key string, payload any) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", topic, err)
	}
	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(topic)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// KafkaConsumer reads one topic in a consumer group and hands every message
// to a handler. Handler failures are logged and the message is not redelivered.
type KafkaConsumer struct {
	reader     messageReader
	handler    Handler
	topic      string
	retryDelay time.Duration
	log        *zap.Logger
}

func NewKafkaConsumer(cfg KafkaConfig, topic string, h Handler, log *zap.Logger) *KafkaConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    topic,
		GroupID:  cfg.GroupID,
		MaxBytes: 10e6, // 10MB
	})
	return newKafkaConsumer(reader, topic, h, log)
}

func newKafkaConsumer(reader messageReader, topic string, h Handler, log *zap.Logger) *KafkaConsumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &KafkaConsumer{
		reader:     reader,
		handler:    h,
		topic:      topic,
		retryDelay: time.Second,
		log:        log.Named("kafka").With(zap.String("topic", topic)),
	}
}

// Run consumes until ctx is cancelled.
func (c *KafkaConsumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.processMessage(ctx)
	}
}

func (c *KafkaConsumer) processMessage(ctx context.Context) {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return
		}
		c.log.Warn("error reading message", zap.Error(err))
		select {
		case <-ctx.Done():
		case <-time.After(c.retryDelay):
		}
		return
	}

	msg := Message{Topic: m.Topic, Key: string(m.Key), Value: m.Value, Time: m.Time}
	if msg.Topic == "" {
		msg.Topic = c.topic
	}
	if err := c.handler(ctx, msg); err != nil {
		logger.For(ctx, c.log).Error("failed to handle message",
			zap.String("key", msg.Key),
			zap.Int64("offset", m.Offset),
			zap.Error(err))
	}
}

func (c *KafkaConsumer) Close() error {
	if err := c.reader.Close(); err != nil {
		return fmt.Errorf("close kafka reader: %w", err)
	}
	return nil
}
