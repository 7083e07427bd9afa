package repository

import (
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"guild-metrics/internal/domain"
)

// Driver names accepted by Open. The SQL ones are the database/sql driver names.
const (
	DriverSQLite3  = "sqlite3" // mattn/go-sqlite3, cgo
	DriverSQLite   = "sqlite"  // modernc.org/sqlite, pure Go
	DriverPgx      = "pgx"
	DriverPostgres = "postgres" // lib/pq
	DriverBadger   = "badger"
	DriverRedis    = "redis"
	DriverMemory   = "memory"
)

// Open builds an uninitialized store for the given driver; callers still call Init.
// For badger the dsn is a directory, for redis a host:port address.
func Open(driver, dsn string) (domain.MetricStore, error) {
	switch driver {
	case DriverSQLite3, DriverSQLite, DriverPgx, DriverPostgres:
		return NewSQLStore(driver, dsn), nil
	case DriverBadger:
		return NewBadgerStore(dsn), nil
	case DriverRedis:
		return NewRedisStore(dsn), nil
	case DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", driver)
	}
}
