package repository

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"guild-metrics/internal/domain"
)

const (
	memberPrefix  = "m"
	counterPrefix = "c"
	sequenceKey   = "!seq/member_counts"

	// how many times an increment is replayed after losing a transaction conflict
	maxIncrementAttempts = 1000
)

// BadgerStore keeps both record kinds in an embedded Badger database.
//
// Member samples live under m/<guild>/<timestamp><seq> so a prefix scan returns them
// in timestamp order with insertion order breaking ties. Counters live under
// c/<guild>/<date>; the increment runs in a serializable transaction and is replayed
// when Badger reports a conflict with a concurrent increment.
type BadgerStore struct {
	path string
	db   *badger.DB
	seq  *badger.Sequence
}

// NewBadgerStore returns a store rooted at path. An empty path keeps everything in memory.
func NewBadgerStore(path string) *BadgerStore {
	return &BadgerStore{path: path}
}

func (s *BadgerStore) Init() error {
	opts := badger.DefaultOptions(s.path).WithLogger(nil)
	if s.path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return fmt.Errorf("failed to open BadgerDB: %w", err)
	}

	seq, err := db.GetSequence([]byte(sequenceKey), 1000)
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to allocate sequence: %w", err)
	}

	s.db = db
	s.seq = seq
	return nil
}

// guildPrefix length-prefixes the guild id so one guild's prefix never matches another's keys.
func guildPrefix(kind, guildID string) []byte {
	return []byte(fmt.Sprintf("%s/%d:%s/", kind, len(guildID), guildID))
}

func memberKey(guildID string, timestamp int64, seq uint64) []byte {
	key := guildPrefix(memberPrefix, guildID)
	var buf [16]byte
	// flip the sign bit so negative timestamps still sort first
	binary.BigEndian.PutUint64(buf[:8], uint64(timestamp)^(1<<63))
	binary.BigEndian.PutUint64(buf[8:], seq)
	return append(key, buf[:]...)
}

func (s *BadgerStore) AppendMemberSample(ctx context.Context, guildID string, timestamp, count int64) error {
	id, err := s.seq.Next()
	if err != nil {
		return domain.NewStorageError("append member sample", err)
	}

	val := make([]byte, 8)
	binary.BigEndian.PutUint64(val, uint64(count))

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(memberKey(guildID, timestamp, id), val)
	})
	return domain.NewStorageError("append member sample", err)
}

func (s *BadgerStore) IncrementMessageCounter(ctx context.Context, guildID, date string) error {
	key := append(guildPrefix(counterPrefix, guildID), date...)

	var err error
	for attempt := 0; attempt < maxIncrementAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.NewStorageError("increment message counter", ctxErr)
		}

		err = s.db.Update(func(txn *badger.Txn) error {
			var n uint64
			item, err := txn.Get(key)
			switch {
			case errors.Is(err, badger.ErrKeyNotFound):
			case err != nil:
				return err
			default:
				if err := item.Value(func(v []byte) error {
					n = binary.BigEndian.Uint64(v)
					return nil
				}); err != nil {
					return err
				}
			}

			val := make([]byte, 8)
			binary.BigEndian.PutUint64(val, n+1)
			return txn.Set(key, val)
		})
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
	}
	return domain.NewStorageError("increment message counter", err)
}

func (s *BadgerStore) ListMemberSamples(ctx context.Context, guildID string) ([]domain.MemberSample, error) {
	prefix := guildPrefix(memberPrefix, guildID)
	samples := []domain.MemberSample{}

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			suffix := bytes.TrimPrefix(item.Key(), prefix)
			if len(suffix) != 16 {
				return fmt.Errorf("malformed member key %q", item.Key())
			}
			ts := int64(binary.BigEndian.Uint64(suffix[:8]) ^ (1 << 63))

			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			samples = append(samples, domain.MemberSample{
				GuildID:   guildID,
				Timestamp: ts,
				Count:     int64(binary.BigEndian.Uint64(val)),
			})
		}
		return nil
	})
	if err != nil {
		return nil, domain.NewStorageError("list member samples", err)
	}
	return samples, nil
}

func (s *BadgerStore) ListMessageCounters(ctx context.Context, guildID string) ([]domain.MessageCounter, error) {
	prefix := guildPrefix(counterPrefix, guildID)
	counters := []domain.MessageCounter{}

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			counters = append(counters, domain.MessageCounter{
				GuildID: guildID,
				Date:    string(bytes.TrimPrefix(item.KeyCopy(nil), prefix)),
				Count:   int64(binary.BigEndian.Uint64(val)),
			})
		}
		return nil
	})
	if err != nil {
		return nil, domain.NewStorageError("list message counters", err)
	}
	return counters, nil
}

func (s *BadgerStore) Close() error {
	if s.db == nil {
		return nil
	}
	if s.seq != nil {
		_ = s.seq.Release()
	}
	return s.db.Close()
}
