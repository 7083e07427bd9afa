package repository

import (
	"context"
	"sort"
	"sync"

	"guild-metrics/internal/domain"
)

// MemoryStore is a process-local MetricStore for tests and the simulate command.
// A single mutex makes every operation, including the increment, atomic.
type MemoryStore struct {
	mu       sync.Mutex
	samples  map[string][]domain.MemberSample
	counters map[string]map[string]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		samples:  make(map[string][]domain.MemberSample),
		counters: make(map[string]map[string]int64),
	}
}

func (s *MemoryStore) Init() error { return nil }

func (s *MemoryStore) AppendMemberSample(ctx context.Context, guildID string, timestamp, count int64) error {
	if err := ctx.Err(); err != nil {
		return domain.NewStorageError("append member sample", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples[guildID] = append(s.samples[guildID], domain.MemberSample{GuildID: guildID, Timestamp: timestamp, Count: count})
	return nil
}

func (s *MemoryStore) IncrementMessageCounter(ctx context.Context, guildID, date string) error {
	if err := ctx.Err(); err != nil {
		return domain.NewStorageError("increment message counter", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	days, ok := s.counters[guildID]
	if !ok {
		days = make(map[string]int64)
		s.counters[guildID] = days
	}
	days[date]++
	return nil
}

func (s *MemoryStore) ListMemberSamples(ctx context.Context, guildID string) ([]domain.MemberSample, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewStorageError("list member samples", err)
	}
	s.mu.Lock()
	out := append([]domain.MemberSample{}, s.samples[guildID]...)
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}

func (s *MemoryStore) ListMessageCounters(ctx context.Context, guildID string) ([]domain.MessageCounter, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewStorageError("list message counters", err)
	}
	s.mu.Lock()
	out := make([]domain.MessageCounter, 0, len(s.counters[guildID]))
	for date, n := range s.counters[guildID] {
		out = append(out, domain.MessageCounter{GuildID: guildID, Date: date, Count: n})
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
