package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guild-metrics/internal/domain"
	"guild-metrics/internal/observability"
	"guild-metrics/internal/repository"
)

type failingStore struct {
	*repository.MemoryStore
}

func (f failingStore) IncrementMessageCounter(ctx context.Context, guildID, date string) error {
	return domain.NewStorageError("increment message counter", errors.New("database is locked"))
}

func TestIngestor_OnMessage(t *testing.T) {
	store := repository.NewMemoryStore()
	// 23:30 in UTC-5 is already the next day in UTC
	local := time.Date(2026, 10, 14, 23, 30, 0, 0, time.FixedZone("EST", -5*3600))
	ing := New(store, WithClock(func() time.Time { return local }))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, ing.OnMessage(ctx, "g1"))
	}

	got, err := store.ListMessageCounters(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, []domain.MessageCounter{{GuildID: "g1", Date: "2026-10-15", Count: 3}}, got)
}

func TestIngestor_IgnoresMessagesWithoutGuild(t *testing.T) {
	store := repository.NewMemoryStore()
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	ing := New(store, WithMetrics(metrics))

	err := ing.OnMessage(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrEmptyGuild)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.MessagesIngestedTotal.WithLabelValues(observability.ResultIgnored)))
}

func TestIngestor_StorageFailureDropsMessage(t *testing.T) {
	store := failingStore{repository.NewMemoryStore()}
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	ing := New(store, WithMetrics(metrics))
	ctx := context.Background()

	err := ing.OnMessage(ctx, "g1")
	assert.Error(t, err)
	assert.True(t, domain.IsStorageError(err))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.MessagesIngestedTotal.WithLabelValues(observability.ResultStorageError)))

	got, err := store.ListMessageCounters(ctx, "g1")
	assert.NoError(t, err)
	assert.Empty(t, got)
}

func TestIngestor_ConcurrentMessages(t *testing.T) {
	store := repository.NewMemoryStore()
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	fixed := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	ing := New(store, WithMetrics(metrics), WithClock(func() time.Time { return fixed }))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, ing.OnMessage(ctx, "g1"))
		}()
	}
	wg.Wait()

	got, err := store.ListMessageCounters(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(200), got[0].Count)
	assert.Equal(t, 200.0, testutil.ToFloat64(metrics.MessagesIngestedTotal.WithLabelValues(observability.ResultOK)))
}
