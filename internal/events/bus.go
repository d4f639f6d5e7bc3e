package events

import (
	"context"
	"slices"
	"sync"

	"go.uber.org/zap"
)

// Bus picks the transport for a process: Kafka when brokers are configured,
// otherwise an in-process LocalBus.
type Bus struct {
	local     *LocalBus
	kafka     *KafkaPublisher
	cfg       KafkaConfig
	consumers []*KafkaConsumer
	topics    []string
	log       *zap.Logger
}

func NewBus(cfg KafkaConfig, log *zap.Logger) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	b := &Bus{cfg: cfg, log: log}
	if cfg.Enabled() {
		b.kafka = NewKafkaPublisher(cfg, log)
		log.Info("publishing events to Kafka", zap.Strings("brokers", cfg.Brokers))
	} else {
		b.local = NewLocalBus(log)
		log.Info("publishing events in-process")
	}
	return b
}

func (b *Bus) Publisher() Publisher {
	if b.kafka != nil {
		return b.kafka
	}
	return b.local
}

// Local reports whether events stay inside this process.
func (b *Bus) Local() bool {
	return b.local != nil
}

// Subscribe attaches h to topic. With Kafka the consumer group is the
// configured group suffixed with group, so each concern keeps its own offsets.
func (b *Bus) Subscribe(topic, group string, h Handler) {
	b.topics = append(b.topics, topic)
	if b.local != nil {
		b.local.Subscribe(topic, h)
		return
	}
	cfg := b.cfg
	cfg.GroupID = groupID(b.cfg.GroupID, group)
	b.consumers = append(b.consumers, NewKafkaConsumer(cfg, topic, h, b.log))
}

// Topics lists subscribed topics in subscription order.
func (b *Bus) Topics() []string {
	return slices.Clone(b.topics)
}

// Run drives the Kafka consumers until ctx is cancelled. It returns at once
// for a local bus.
func (b *Bus) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, c := range b.consumers {
		wg.Go(func() { c.Run(ctx) })
	}
	wg.Wait()
}

func (b *Bus) Close() error {
	for _, c := range b.consumers {
		if err := c.Close(); err != nil {
			b.log.Warn("error closing consumer", zap.Error(err))
		}
	}
	if b.kafka != nil {
		return b.kafka.Close()
	}
	return b.local.Close()
}

func groupID(base, suffix string) string {
	if base == "" {
		return suffix
	}
	return base + "-" + suffix
}
