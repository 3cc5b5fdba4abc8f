package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Drivers accepted by Open.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// Options selects and configures a snapshot backend.
type Options struct {
	Driver      string
	SQLite      *sql.DB // migrated database, required for DriverSQLite
	RedisAddr   string
	RedisDB     int
	SnapshotTTL time.Duration
	DatabaseURL string
}

// Open builds the Store named by opts.Driver and checks connectivity (fail fast).
func Open(ctx context.Context, opts Options) (Store, error) {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	switch opts.Driver {
	case "", DriverMemory:
		return NewMemoryStore(), nil

	case DriverSQLite:
		if opts.SQLite == nil {
			return nil, fmt.Errorf("sqlite store: no database")
		}
		return NewSQLiteStore(opts.SQLite), nil

	case DriverRedis:
		rdb := redis.NewClient(&redis.Options{Addr: opts.RedisAddr, DB: opts.RedisDB})
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("redis ping (%s db=%d): %w", opts.RedisAddr, opts.RedisDB, err)
		}
		log.Info().Str("addr", opts.RedisAddr).Int("db", opts.RedisDB).Msg("redis snapshot store")
		return NewRedisStore(rdb, opts.SnapshotTTL), nil

	case DriverPostgres:
		pool, err := pgxpool.New(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("pgxpool: %w", err)
		}
		if err := pool.Ping(pingCtx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("postgres ping: %w", err)
		}
		s := NewPostgresStore(pool)
		if err := s.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		log.Info().Msg("postgres snapshot store")
		return s, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
}

// Scoped prefixes every key with a namespace (one per player).
type Scoped struct {
	Store
	ns string
}

func NewScoped(s Store, ns string) Scoped { return Scoped{Store: s, ns: ns} }

func (s Scoped) Get(ctx context.Context, key string) (string, bool, error) {
	return s.Store.Get(ctx, s.ns+"/"+key)
}

func (s Scoped) Set(ctx context.Context, key, value string) error {
	return s.Store.Set(ctx, s.ns+"/"+key, value)
}
