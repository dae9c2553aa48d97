// Package store persists symbols, bars and their derived entities in SQLite
// and answers the read queries the API serves.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rustyeddy/tradeview/apperr"
	"github.com/rustyeddy/tradeview/market"
)

// Store owns the process-wide connection pool. It is safe for concurrent use;
// SQLite serializes writers.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

type Option func(*Store)

// WithClock replaces time.Now for created_at / updated_at stamping.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithPool sets connection pool limits. Zero values keep the driver defaults.
func WithPool(maxOpen, maxIdle int, maxLifetime time.Duration) Option {
	return func(s *Store) {
		if maxOpen > 0 {
			s.db.SetMaxOpenConns(maxOpen)
		}
		if maxIdle > 0 {
			s.db.SetMaxIdleConns(maxIdle)
		}
		if maxLifetime > 0 {
			s.db.SetConnMaxLifetime(maxLifetime)
		}
	}
}

// DSN appends the connection parameters every connection needs. Foreign keys
// are off by default in SQLite and cascades depend on them.
func DSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_foreign_keys=on&_busy_timeout=5000"
}

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

var memorySeq atomic.Uint64

// memoryDSN names a shared-cache in-memory database unique to one Open call,
// so every pooled connection sees the same tables.
func memoryDSN() string {
	return fmt.Sprintf("file:tradeview-mem-%d?mode=memory&cache=shared", memorySeq.Add(1))
}

// Open opens (creating if needed) the SQLite file at path. MemoryPath gives
// an in-memory database that lives until the store is closed. Open does not
// run migrations; callers must run Migrator.Up before issuing queries.
func Open(path string, opts ...Option) (*Store, error) {
	memory := path == MemoryPath
	if dir := filepath.Dir(path); !memory && !strings.HasPrefix(path, "file:") && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, apperr.Database("open store", err)
		}
	}

	dsn := DSN(path)
	if memory {
		dsn = DSN(memoryDSN())
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, apperr.Database("open store", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, apperr.Database("open store", err)
	}

	s := New(db, opts...)
	if memory {
		// The database is dropped with its last connection; keep idle ones alive.
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
	}
	return s, nil
}

// New wraps an already opened handle. The handle must have foreign keys
// enabled, see DSN.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB exposes the underlying handle for tooling and tests.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Ping(ctx context.Context) error {
	return apperr.Database("ping store", s.db.PingContext(ctx))
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrator returns a migrator over the canonical migration list.
func (s *Store) Migrator() *Migrator {
	return NewMigrator(s.db, Migrations(), s.now)
}

func (s *Store) stamp() market.Timestamp {
	return market.NewTimestamp(s.now())
}
