// Package ingest counts guild messages into per-day counters.
package ingest

import (
	"context"
	"time"

	"go.uber.org/zap"

	"guild-metrics/internal/domain"
	"guild-metrics/internal/observability"
	"guild-metrics/internal/util"
)

type Ingestor struct {
	store   domain.MetricStore
	now     func() time.Time
	metrics *observability.Metrics
	log     *util.MetricsLogger
}

type Option func(*Ingestor)

func WithClock(now func() time.Time) Option {
	return func(i *Ingestor) { i.now = now }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(i *Ingestor) { i.metrics = m }
}

func WithLogger(l *util.MetricsLogger) Option {
	return func(i *Ingestor) {
		if l != nil {
			i.log = l
		}
	}
}

func New(store domain.MetricStore, opts ...Option) *Ingestor {
	i := &Ingestor{store: store, now: time.Now, log: &util.MetricsLogger{}}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// OnMessage adds one message to today's counter for the guild. Messages without a
// guild (direct messages) are ignored. A failed write loses that message from the
// count; the error is returned so the caller can report it, but nothing retries.
func (i *Ingestor) OnMessage(ctx context.Context, guildID string) error {
	if guildID == "" {
		i.metrics.MessageIngested(observability.ResultIgnored)
		return domain.ErrEmptyGuild
	}

	today := domain.DayOf(i.now())
	if err := i.store.IncrementMessageCounter(ctx, guildID, today); err != nil {
		i.metrics.MessageIngested(observability.ResultStorageError)
		i.log.Error("message dropped from daily count",
			zap.String("guild_id", guildID), zap.String("date", today), zap.Error(err))
		return err
	}

	i.metrics.MessageIngested(observability.ResultOK)
	return nil
}
