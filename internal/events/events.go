// Package events moves domain events between storefront components, either
// in-process or through Kafka.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/storefront/internal/domain"
)

// Publisher sends payload, encoded as JSON, to topic. Messages with the same
// key keep their relative order.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload any) error
}

type Message struct {
	Topic string
	Key   string
	Value []byte
	Time  time.Time
}

type Handler func(ctx context.Context, msg Message) error

// Decode unmarshals a message value into T.
func Decode[T any](msg Message) (T, error) {
	var v T
	if err := json.Unmarshal(msg.Value, &v); err != nil {
		return v, fmt.Errorf("decode %s message: %w", msg.Topic, err)
	}
	return v, nil
}

// SyncRequester accepts catalog sync requests directly.
type SyncRequester interface {
	RequestSync(ctx context.Context, req domain.SyncRequested) error
}

// SyncTrigger publishes catalog sync requests. It satisfies the reconciler's
// trigger interface.
type SyncTrigger struct {
	pub   Publisher
	local SyncRequester
}

func NewSyncTrigger(pub Publisher) *SyncTrigger {
	return &SyncTrigger{pub: pub}
}

// WithLocal also hands every request to r before publishing it. A process
// that runs its own worker then refreshes its snapshot even when the
// published request is consumed by another instance.
func (t *SyncTrigger) WithLocal(r SyncRequester) *SyncTrigger {
	return &SyncTrigger{pub: t.pub, local: r}
}

func (t *SyncTrigger) RequestSync(ctx context.Context, req domain.SyncRequested) error {
	var localErr error
	if t.local != nil {
		localErr = t.local.RequestSync(ctx, req)
	}
	return errors.Join(localErr, t.pub.Publish(ctx, domain.TopicSyncRequested, req.SessionID.String(), req))
}
