package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/storefront/pkg/logger"
	"go.uber.org/zap"
)

var ErrBusClosed = errors.New("event bus is closed")

// LocalBus delivers events to in-process subscribers. Each handler runs in
// its own goroutine so Publish never waits for a handler.
type LocalBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	closed   bool
	inflight sync.WaitGroup
	log      *zap.Logger
}

func NewLocalBus(log *zap.Logger) *LocalBus {
	if log == nil {
		log = zap.NewNop()
	}
	return &LocalBus{
		handlers: make(map[string][]Handler),
		log:      log.Named("events"),
	}
}

func (b *LocalBus) Subscribe(topic string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], h)
}

func (b *LocalBus) Publish(ctx context.Context, topic, key string, payload any) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", topic, err)
	}
	msg := Message{Topic: topic, Key: key, Value: value, Time: time.Now()}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}
	// Handlers outlive the publishing request.
	hctx := context.WithoutCancel(ctx)
	for _, h := range b.handlers[topic] {
		b.inflight.Add(1)
		go func() {
			defer b.inflight.Done()
			if err := h(hctx, msg); err != nil {
				logger.For(hctx, b.log).Error("event handler failed",
					zap.String("topic", topic), zap.String("key", key), zap.Error(err))
			}
		}()
	}
	return nil
}

// Wait blocks until every dispatched handler has returned.
func (b *LocalBus) Wait() {
	b.inflight.Wait()
}

// Close rejects further events and waits for in-flight handlers.
func (b *LocalBus) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.inflight.Wait()
	return nil
}
