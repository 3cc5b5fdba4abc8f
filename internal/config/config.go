// internal/config/config.go
//
// Typed server settings.
// Every setting is a flag; each flag can also come from the environment, either as
// OMNIMUSLE_<NAME> or as the bare <NAME> (PORT, LOG_LEVEL, JWT_SECRET, ...). An explicit
// flag beats the environment, which beats the default.

package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/michaljagosz/omnimusle/internal/provider"
	"github.com/michaljagosz/omnimusle/internal/store"
)

const EnvPrefix = "OMNIMUSLE"

type Config struct {
	Bind      string
	Port      int
	LogLevel  string
	LogFormat string // console | json
	LogFile   string

	StorageDriver string
	SQLitePath    string
	RedisAddr     string
	RedisDB       int
	SnapshotTTL   time.Duration
	DatabaseURL   string

	DeezerBaseURL string
	TMDBBaseURL   string
	TMDBAPIKey    string
	UpstreamRPS   float64
	CatalogFile   string

	JWTSecret      string
	SecureCookies  bool
	ClientOrigin   string
	ShareURL       string
	SearchDebounce time.Duration
}

// Flags registers every setting on fs with its default.
func Flags(fs *pflag.FlagSet, c *Config) {
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&c.Bind, "bind", "b", "0.0.0.0", "address to bind to (env: BIND)")
	fs.IntVarP(&c.Port, "port", "p", 5175, "port to listen on (env: PORT)")
	fs.StringVar(&c.LogLevel, "log-level", "info", "zerolog level (env: LOG_LEVEL)")
	fs.StringVar(&c.LogFormat, "log-format", "console", "console or json (env: LOG_FORMAT)")
	fs.StringVar(&c.LogFile, "log-file", "", "also write logs to this rotating file (env: LOG_FILE)")

	fs.StringVar(&c.StorageDriver, "storage-driver", store.DriverSQLite, "snapshot store: memory, sqlite, redis or postgres (env: STORAGE_DRIVER)")
	fs.StringVar(&c.SQLitePath, "sqlite-path", "./data/omnimusle.db", "SQLite database for snapshots and results (env: SQLITE_PATH)")
	fs.StringVar(&c.RedisAddr, "redis-addr", "localhost:6379", "redis address (env: REDIS_ADDR)")
	fs.IntVar(&c.RedisDB, "redis-db", 0, "redis database number (env: REDIS_DB)")
	fs.DurationVar(&c.SnapshotTTL, "snapshot-ttl", 72*time.Hour, "redis snapshot expiry, 0 to keep forever (env: SNAPSHOT_TTL)")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "postgres connection string (env: DATABASE_URL)")

	fs.StringVar(&c.DeezerBaseURL, "deezer-base-url", provider.DefaultDeezerURL, "Deezer API base URL (env: DEEZER_BASE_URL)")
	fs.StringVar(&c.TMDBBaseURL, "tmdb-base-url", provider.DefaultTMDBURL, "TMDB API base URL (env: TMDB_BASE_URL)")
	fs.StringVar(&c.TMDBAPIKey, "tmdb-api-key", "", "TMDB API key; film search and posters are off without it (env: TMDB_API_KEY)")
	fs.Float64Var(&c.UpstreamRPS, "upstream-rps", 8, "requests per second per provider, 0 for unlimited (env: UPSTREAM_RPS)")
	fs.StringVar(&c.CatalogFile, "catalog-file", "", "playlist JSON overriding the embedded one (env: CATALOG_FILE)")

	fs.StringVar(&c.JWTSecret, "jwt-secret", "", "secret signing player cookies (env: JWT_SECRET)")
	fs.BoolVar(&c.SecureCookies, "secure-cookies", false, "mark cookies Secure + SameSite=None (env: SECURE_COOKIES)")
	fs.StringVar(&c.ClientOrigin, "client-origin", "http://localhost:5173", "origin allowed by CORS and the websocket (env: CLIENT_ORIGIN)")
	fs.StringVar(&c.ShareURL, "share-url", "https://omnimusle.app", "link appended to share text (env: SHARE_URL)")
	fs.DurationVar(&c.SearchDebounce, "search-debounce", 400*time.Millisecond, "quiet interval before a live search runs (env: SEARCH_DEBOUNCE)")
}

// BindEnv fills every flag the caller did not set explicitly from the environment.
func BindEnv(fs *pflag.FlagSet, v *viper.Viper) error {
	var errs []error
	fs.VisitAll(func(f *pflag.Flag) {
		bare := strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name, EnvPrefix+"_"+bare, bare)
		if !f.Changed && v.IsSet(f.Name) {
			if err := fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name))); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", bare, err))
			}
		}
	})
	return errors.Join(errs...)
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	switch c.StorageDriver {
	case store.DriverMemory, store.DriverSQLite, store.DriverRedis:
	case store.DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("storage driver postgres needs --database-url")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.StorageDriver)
	}
	if c.SQLitePath == "" {
		return errors.New("--sqlite-path must not be empty")
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	if c.UpstreamRPS < 0 {
		return fmt.Errorf("upstream rps must not be negative: %v", c.UpstreamRPS)
	}
	if c.SnapshotTTL < 0 || c.SearchDebounce < 0 {
		return errors.New("durations must not be negative")
	}
	return nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Bind, strconv.Itoa(c.Port))
}

// StoreOptions maps the storage settings onto store.Open.
func (c *Config) StoreOptions() store.Options {
	return store.Options{
		Driver:      c.StorageDriver,
		RedisAddr:   c.RedisAddr,
		RedisDB:     c.RedisDB,
		SnapshotTTL: c.SnapshotTTL,
		DatabaseURL: c.DatabaseURL,
	}
}
