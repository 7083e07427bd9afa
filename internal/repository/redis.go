package repository

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/go-redis/redis/v8"

	"guild-metrics/internal/domain"
)

const (
	redisMemberKey   = "member_counts:%s"
	redisCounterKey  = "message_counts:%s"
	redisSequenceKey = "member_counts_seq"
)

// RedisStore keeps member samples in one sorted set per guild (score = timestamp) and
// daily message counters in one hash per guild (field = date). HINCRBY is atomic, so
// the increment needs no transaction.
type RedisStore struct {
	addr   string
	client *redis.Client
}

func NewRedisStore(addr string) *RedisStore {
	return &RedisStore{addr: addr}
}

// NewRedisStoreWithClient wraps an existing client; Init only pings it.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Init() error {
	if s.client == nil {
		s.client = redis.NewClient(&redis.Options{Addr: s.addr})
	}
	if err := s.client.Ping(context.Background()).Err(); err != nil {
		return fmt.Errorf("error connecting to redis: %w", err)
	}
	return nil
}

func (s *RedisStore) AppendMemberSample(ctx context.Context, guildID string, timestamp, count int64) error {
	seq, err := s.client.Incr(ctx, redisSequenceKey).Result()
	if err != nil {
		return domain.NewStorageError("append member sample", err)
	}

	// equal scores order by member, so the zero padded sequence keeps insertion order
	member := fmt.Sprintf("%020d:%d", seq, count)
	err = s.client.ZAdd(ctx, fmt.Sprintf(redisMemberKey, guildID), &redis.Z{
		Score:  float64(timestamp),
		Member: member,
	}).Err()
	return domain.NewStorageError("append member sample", err)
}

func (s *RedisStore) IncrementMessageCounter(ctx context.Context, guildID, date string) error {
	err := s.client.HIncrBy(ctx, fmt.Sprintf(redisCounterKey, guildID), date, 1).Err()
	return domain.NewStorageError("increment message counter", err)
}

func (s *RedisStore) ListMemberSamples(ctx context.Context, guildID string) ([]domain.MemberSample, error) {
	entries, err := s.client.ZRangeWithScores(ctx, fmt.Sprintf(redisMemberKey, guildID), 0, -1).Result()
	if err != nil {
		return nil, domain.NewStorageError("list member samples", err)
	}

	samples := make([]domain.MemberSample, 0, len(entries))
	for _, z := range entries {
		member, _ := z.Member.(string)
		_, countStr, ok := strings.Cut(member, ":")
		if !ok {
			return nil, domain.NewStorageError("list member samples", fmt.Errorf("malformed member %q", member))
		}
		count, err := strconv.ParseInt(countStr, 10, 64)
		if err != nil {
			return nil, domain.NewStorageError("list member samples", err)
		}
		samples = append(samples, domain.MemberSample{
			GuildID:   guildID,
			Timestamp: int64(z.Score),
			Count:     count,
		})
	}
	return samples, nil
}

func (s *RedisStore) ListMessageCounters(ctx context.Context, guildID string) ([]domain.MessageCounter, error) {
	fields, err := s.client.HGetAll(ctx, fmt.Sprintf(redisCounterKey, guildID)).Result()
	if err != nil {
		return nil, domain.NewStorageError("list message counters", err)
	}

	counters := make([]domain.MessageCounter, 0, len(fields))
	for date, v := range fields {
		count, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, domain.NewStorageError("list message counters", err)
		}
		counters = append(counters, domain.MessageCounter{GuildID: guildID, Date: date, Count: count})
	}
	sort.Slice(counters, func(i, j int) bool { return counters[i].Date < counters[j].Date })
	return counters, nil
}

func (s *RedisStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
