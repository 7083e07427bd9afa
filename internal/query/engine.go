// Package query answers windowed reads over a guild's stored metrics.
//
// Member windows are fixed spans of seconds (a month is 30 days, a year 365).
// Message windows compare UTC calendar dates. An unrecognized timeframe narrows
// member series to a day but leaves message series unfiltered.
package query

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"guild-metrics/internal/domain"
	"guild-metrics/internal/observability"
	"guild-metrics/internal/util"
)

const day = 24 * time.Hour

var spans = map[domain.TimeFrame]time.Duration{
	domain.FrameDay:   day,
	domain.FrameWeek:  7 * day,
	domain.FrameMonth: 30 * day,
	domain.FrameYear:  365 * day,
}

type Engine struct {
	store   domain.MetricStore
	now     func() time.Time
	metrics *observability.Metrics
	log     *util.MetricsLogger
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithLogger(l *util.MetricsLogger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

func NewEngine(store domain.MetricStore, opts ...Option) *Engine {
	e := &Engine{store: store, now: time.Now, log: &util.MetricsLogger{}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Query returns the guild's series for kind restricted to frame, oldest first.
// No data is an empty series, not an error.
func (e *Engine) Query(ctx context.Context, guildID string, kind domain.MetricKind, frame domain.TimeFrame) (domain.Series, error) {
	if frame == "" {
		frame = domain.DefaultFrame
	}
	series := domain.Series{GuildID: guildID, Kind: kind, Frame: frame, Points: []domain.Point{}}

	if guildID == "" {
		return series, domain.ErrEmptyGuild
	}

	var err error
	switch kind {
	case domain.MetricMembers:
		series.Points, err = e.members(ctx, guildID, frame)
	case domain.MetricMessages:
		series.Points, err = e.messages(ctx, guildID, frame)
	default:
		return series, domain.ErrUnknownMetric
	}

	if err != nil {
		e.metrics.Query(string(kind), observability.ResultStorageError)
		e.log.Error("series query failed", zap.String("guild_id", guildID),
			zap.String("kind", string(kind)), zap.String("timeframe", string(frame)), zap.Error(err))
		return series, err
	}
	e.metrics.Query(string(kind), observability.ResultOK)
	return series, nil
}

func (e *Engine) members(ctx context.Context, guildID string, frame domain.TimeFrame) ([]domain.Point, error) {
	rows, err := e.store.ListMemberSamples(ctx, guildID)
	if err != nil {
		return nil, err
	}

	var since int64
	bounded := frame != domain.FrameAll
	if bounded {
		span, ok := spans[frame]
		if !ok {
			span = spans[domain.FrameDay]
		}
		since = e.now().Add(-span).Unix()
	}

	points := make([]domain.Point, 0, len(rows))
	for _, r := range rows {
		if bounded && r.Timestamp < since {
			continue
		}
		points = append(points, domain.Point{
			Key:   strconv.FormatInt(r.Timestamp, 10),
			Unix:  r.Timestamp,
			Value: r.Count,
		})
	}
	return points, nil
}

func (e *Engine) messages(ctx context.Context, guildID string, frame domain.TimeFrame) ([]domain.Point, error) {
	rows, err := e.store.ListMessageCounters(ctx, guildID)
	if err != nil {
		return nil, err
	}

	now := e.now()
	today := domain.DayOf(now)
	keep := func(string) bool { return true }
	switch frame {
	case domain.FrameDay:
		keep = func(date string) bool { return date == today }
	case domain.FrameWeek, domain.FrameMonth, domain.FrameYear:
		cutoff := domain.DayOf(now.Add(-spans[frame]))
		// YYYY-MM-DD sorts lexically in date order
		keep = func(date string) bool { return date >= cutoff }
	}

	points := make([]domain.Point, 0, len(rows))
	for _, r := range rows {
		if !keep(r.Date) {
			continue
		}
		var unix int64
		if t, err := time.Parse(domain.DateLayout, r.Date); err == nil {
			unix = t.Unix()
		}
		points = append(points, domain.Point{Key: r.Date, Unix: unix, Value: r.Count})
	}
	return points, nil
}
