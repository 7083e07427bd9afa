package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"guild-metrics/internal/domain"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

func dialectFor(driver string) dialect {
	switch driver {
	case DriverPgx, DriverPostgres:
		return dialectPostgres
	}
	return dialectSQLite
}

// SQLStore keeps both tables in a relational database reached through database/sql.
// The same queries serve SQLite and PostgreSQL; only placeholders and column types differ.
type SQLStore struct {
	db      *sql.DB
	driver  string
	dsn     string
	dialect dialect
}

func NewSQLiteStore(path string) *SQLStore {
	return NewSQLStore(DriverSQLite3, path)
}

func NewSQLStore(driver, dsn string) *SQLStore {
	return &SQLStore{driver: driver, dsn: dsn, dialect: dialectFor(driver)}
}

// NewSQLStoreWithDB wraps an already opened handle; Init will not reopen it.
func NewSQLStoreWithDB(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver, dialect: dialectFor(driver)}
}

func (s *SQLStore) Init() error {
	var err error

	if s.db == nil {
		s.db, err = sql.Open(s.driver, s.dsn)
		if err != nil {
			return fmt.Errorf("error opening database: %w", err)
		}
	}

	if err = s.db.Ping(); err != nil {
		return fmt.Errorf("error connecting to database: %w", err)
	}

	if s.dialect == dialectSQLite {
		// sqlite has a single writer; one connection keeps increments from tripping SQLITE_BUSY
		s.db.SetMaxOpenConns(1)
	}

	for _, stmt := range s.schema() {
		if _, err = s.db.Exec(stmt); err != nil {
			return fmt.Errorf("error creating schema: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) schema() []string {
	if s.dialect == dialectPostgres {
		return []string{
			`CREATE TABLE IF NOT EXISTS member_counts (
				id BIGSERIAL PRIMARY KEY,
				guild_id TEXT NOT NULL,
				timestamp BIGINT NOT NULL,
				count BIGINT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_member_counts_guild_ts ON member_counts(guild_id, timestamp)`,
			`CREATE TABLE IF NOT EXISTS message_counts (
				guild_id TEXT NOT NULL,
				date TEXT NOT NULL,
				count BIGINT NOT NULL DEFAULT 0,
				PRIMARY KEY (guild_id, date)
			)`,
		}
	}
	return []string{
		`PRAGMA journal_mode=WAL`,
		`PRAGMA busy_timeout=5000`,
		`CREATE TABLE IF NOT EXISTS member_counts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			guild_id TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			count INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_member_counts_guild_ts ON member_counts(guild_id, timestamp)`,
		`CREATE TABLE IF NOT EXISTS message_counts (
			guild_id TEXT NOT NULL,
			date TEXT NOT NULL,
			count INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (guild_id, date)
		)`,
	}
}

// rebind rewrites ? placeholders into $n for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) AppendMemberSample(ctx context.Context, guildID string, timestamp, count int64) error {
	query := s.rebind("INSERT INTO member_counts (guild_id, timestamp, count) VALUES (?, ?, ?)")
	if _, err := s.db.ExecContext(ctx, query, guildID, timestamp, count); err != nil {
		return domain.NewStorageError("append member sample", err)
	}
	return nil
}

// IncrementMessageCounter creates the (guild, date) row with count 1 or bumps it by one
// in the same statement, so concurrent callers never lose an increment.
func (s *SQLStore) IncrementMessageCounter(ctx context.Context, guildID, date string) error {
	query := s.rebind(`INSERT INTO message_counts (guild_id, date, count) VALUES (?, ?, 1)
		ON CONFLICT (guild_id, date) DO UPDATE SET count = message_counts.count + 1`)
	if _, err := s.db.ExecContext(ctx, query, guildID, date); err != nil {
		return domain.NewStorageError("increment message counter", err)
	}
	return nil
}

func (s *SQLStore) ListMemberSamples(ctx context.Context, guildID string) ([]domain.MemberSample, error) {
	query := s.rebind("SELECT timestamp, count FROM member_counts WHERE guild_id = ? ORDER BY timestamp ASC, id ASC")

	rows, err := s.db.QueryContext(ctx, query, guildID)
	if err != nil {
		return nil, domain.NewStorageError("list member samples", err)
	}
	defer rows.Close()

	samples := []domain.MemberSample{}
	for rows.Next() {
		m := domain.MemberSample{GuildID: guildID}
		if err := rows.Scan(&m.Timestamp, &m.Count); err != nil {
			return nil, domain.NewStorageError("scan member sample", err)
		}
		samples = append(samples, m)
	}

	if err = rows.Err(); err != nil {
		return nil, domain.NewStorageError("list member samples", err)
	}
	return samples, nil
}

func (s *SQLStore) ListMessageCounters(ctx context.Context, guildID string) ([]domain.MessageCounter, error) {
	query := s.rebind("SELECT date, count FROM message_counts WHERE guild_id = ? ORDER BY date ASC")

	rows, err := s.db.QueryContext(ctx, query, guildID)
	if err != nil {
		return nil, domain.NewStorageError("list message counters", err)
	}
	defer rows.Close()

	counters := []domain.MessageCounter{}
	for rows.Next() {
		c := domain.MessageCounter{GuildID: guildID}
		if err := rows.Scan(&c.Date, &c.Count); err != nil {
			return nil, domain.NewStorageError("scan message counter", err)
		}
		counters = append(counters, c)
	}

	if err = rows.Err(); err != nil {
		return nil, domain.NewStorageError("list message counters", err)
	}
	return counters, nil
}

func (s *SQLStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
