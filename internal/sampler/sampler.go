// Package sampler records guild member counts on a fixed period. Every guild has its
// own schedule entry, all of them driven by one cron run loop.
package sampler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"guild-metrics/internal/domain"
	"guild-metrics/internal/observability"
	"guild-metrics/internal/platform"
	"guild-metrics/internal/util"
)

const DefaultPeriod = time.Hour

// every fires at a constant period after the previous run. cron.Every rounds down to
// whole seconds, which rules out short periods.
type every time.Duration

func (e every) Next(t time.Time) time.Time { return t.Add(time.Duration(e)) }

type Option func(*Sampler)

// WithClock overrides the source of sample timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Sampler) { s.now = now }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(s *Sampler) { s.metrics = m }
}

func WithLogger(l *util.MetricsLogger) Option {
	return func(s *Sampler) {
		if l != nil {
			s.log = l
		}
	}
}

type Sampler struct {
	counter platform.MemberCounter
	store   domain.MetricStore
	period  time.Duration
	now     func() time.Time
	metrics *observability.Metrics
	log     *util.MetricsLogger

	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	entries map[string]cron.EntryID
	stopped bool
	startup sync.WaitGroup
}

func New(counter platform.MemberCounter, store domain.MetricStore, period time.Duration, opts ...Option) *Sampler {
	if period <= 0 {
		period = DefaultPeriod
	}
	s := &Sampler{
		counter: counter,
		store:   store,
		period:  period,
		now:     time.Now,
		log:     &util.MetricsLogger{},
		entries: make(map[string]cron.EntryID),
	}
	for _, opt := range opts {
		opt(s)
	}

	clog := cronLogger{log: s.log.With(zap.String("component", "sampler"))}
	s.cron = cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(clog),
		cron.WithChain(cron.Recover(clog)),
	)
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

// Start launches the scheduler loop. Guilds may be added before or after.
func (s *Sampler) Start() {
	s.cron.Start()
}

// OnReady registers every guild the platform reports at connect time.
func (s *Sampler) OnReady(guildIDs []string) {
	for _, id := range guildIDs {
		s.Add(id)
	}
}

// Add takes one sample right away and schedules the rest. Known guilds are left alone.
func (s *Sampler) Add(guildID string) bool {
	if guildID == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	if _, ok := s.entries[guildID]; ok {
		return false
	}

	s.entries[guildID] = s.cron.Schedule(every(s.period), cron.FuncJob(func() {
		_ = s.Tick(s.ctx, guildID)
	}))
	s.metrics.SetScheduledGuilds(len(s.entries))
	s.log.Info("guild scheduled", zap.String("guild_id", guildID), zap.Duration("period", s.period))

	s.startup.Add(1)
	go func() {
		defer s.startup.Done()
		_ = s.Tick(s.ctx, guildID)
	}()
	return true
}

// Remove cancels the guild's schedule. A tick already running finishes.
func (s *Sampler) Remove(guildID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.entries[guildID]
	if !ok {
		return false
	}
	s.cron.Remove(id)
	delete(s.entries, guildID)
	s.metrics.SetScheduledGuilds(len(s.entries))
	s.log.Info("guild unscheduled", zap.String("guild_id", guildID))
	return true
}

// NextFire reports when the guild is sampled next. It is zero until Start.
func (s *Sampler) NextFire(guildID string) (time.Time, bool) {
	s.mu.Lock()
	id, ok := s.entries[guildID]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(id).Next, true
}

func (s *Sampler) Guilds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for id := range s.entries {
		out = append(out, id)
	}
	return out
}

// Tick samples one guild once. A failed read or write is logged and counted; the
// schedule carries on regardless.
func (s *Sampler) Tick(ctx context.Context, guildID string) error {
	count, err := s.counter.MemberCount(ctx, guildID)
	if err != nil {
		s.metrics.SamplerTick(observability.ResultPlatformError)
		s.log.Warn("member count unavailable, sample skipped", zap.String("guild_id", guildID), zap.Error(err))
		return err
	}

	ts := s.now().Unix()
	if err := s.store.AppendMemberSample(ctx, guildID, ts, count); err != nil {
		s.metrics.SamplerTick(observability.ResultStorageError)
		s.log.Error("member sample dropped", zap.String("guild_id", guildID), zap.Int64("count", count), zap.Error(err))
		return err
	}

	s.metrics.SamplerTick(observability.ResultOK)
	s.log.Debug("member sample stored", zap.String("guild_id", guildID), zap.Int64("timestamp", ts), zap.Int64("count", count))
	return nil
}

// Stop cancels every schedule and waits for running ticks to return.
func (s *Sampler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	for guildID, id := range s.entries {
		s.cron.Remove(id)
		delete(s.entries, guildID)
	}
	s.metrics.SetScheduledGuilds(0)
	s.mu.Unlock()

	s.cancel()
	<-s.cron.Stop().Done()
	s.startup.Wait()
	s.log.Info("sampler stopped")
}

// cronLogger routes cron's own chatter through the service logger; its info
// lines fire on every schedule change, so they go out at debug.
type cronLogger struct {
	log *util.MetricsLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, zap.Any("details", keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, zap.Error(err), zap.Any("details", keysAndValues))
}
