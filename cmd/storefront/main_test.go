package main

import (
	"testing"

	"github.com/fjod/storefront/internal/catalog"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type readiness struct{ ready bool }

func (r *readiness) SetReady(ready bool) { r.ready = ready }

func newWorker(store *catalog.Store) *catalog.Worker {
	syncer := catalog.NewSyncer(nil, store, nil, nil, catalog.DefaultSyncConfig(), nil)
	return catalog.NewWorker(syncer, 0, nil, nil)
}

func kafkaBus(t *testing.T) *events.Bus {
	t.Helper()
	bus := events.NewBus(events.KafkaConfig{Brokers: []string{"127.0.0.1:1"}, GroupID: "storefront"}, nil)
	t.Cleanup(func() { _ = bus.Close() })
	return bus
}

func TestWireSync_InProcessWorkerIsTheTrigger(t *testing.T) {
	bus := events.NewBus(events.KafkaConfig{}, nil)
	t.Cleanup(func() { _ = bus.Close() })
	store := catalog.NewStore(nil, nil)
	worker := newWorker(store)

	trigger := wireSync(bus, worker, store, &readiness{})

	assert.Same(t, worker, trigger)
	assert.Empty(t, bus.Topics())
}

func TestWireSync_KafkaWorkerRefreshesLocallyAndFollowsSnapshots(t *testing.T) {
	bus := kafkaBus(t)
	store := catalog.NewStore(nil, nil)

	trigger := wireSync(bus, newWorker(store), store, &readiness{})

	_, ok := trigger.(*events.SyncTrigger)
	require.True(t, ok)
	assert.Equal(t, []string{domain.TopicSyncRequested, domain.TopicSnapshotUpdated}, bus.Topics())
}

func TestWireSync_KafkaWithoutWorkerFollowsSnapshots(t *testing.T) {
	bus := kafkaBus(t)
	store := catalog.NewStore(nil, nil)

	trigger := wireSync(bus, nil, store, &readiness{})

	_, ok := trigger.(*events.SyncTrigger)
	require.True(t, ok)
	assert.Equal(t, []string{domain.TopicSnapshotUpdated}, bus.Topics())
}
