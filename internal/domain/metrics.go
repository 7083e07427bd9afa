package domain

import (
	"context"
	"time"
)

// DateLayout is the calendar-day key of message counters. Days are always UTC.
const DateLayout = "2006-01-02"

type MemberSample struct {
	GuildID   string `json:"guild_id"`
	Timestamp int64  `json:"timestamp"`
	Count     int64  `json:"count"`
}

type MessageCounter struct {
	GuildID string `json:"guild_id"`
	Date    string `json:"date"`
	Count   int64  `json:"count"`
}

// MetricStore is the durable home of both record kinds. Implementations must make
// IncrementMessageCounter a single atomic upsert; everything else is plain append or read.
type MetricStore interface {
	Init() error
	AppendMemberSample(ctx context.Context, guildID string, timestamp, count int64) error
	IncrementMessageCounter(ctx context.Context, guildID, date string) error
	ListMemberSamples(ctx context.Context, guildID string) ([]MemberSample, error)
	ListMessageCounters(ctx context.Context, guildID string) ([]MessageCounter, error)
	Close() error
}

// DayOf returns the UTC calendar day of t.
func DayOf(t time.Time) string {
	return t.UTC().Format(DateLayout)
}
