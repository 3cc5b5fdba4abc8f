package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/michaljagosz/omnimusle/internal/store"
)

func parse(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	c := &Config{}
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	Flags(fs, c)
	require.NoError(t, fs.Parse(args))
	return c, BindEnv(fs, viper.New())
}

func TestDefaults(t *testing.T) {
	c, err := parse(t)
	require.NoError(t, err)
	require.NoError(t, c.Validate())
	require.Equal(t, 5175, c.Port)
	require.Equal(t, "0.0.0.0:5175", c.Addr())
	require.Equal(t, store.DriverSQLite, c.StorageDriver)
	require.Equal(t, 400*time.Millisecond, c.SearchDebounce)
	require.Equal(t, "http://localhost:5173", c.ClientOrigin)
}

func TestEnvBinding(t *testing.T) {
	t.Setenv("PORT", "8081")
	t.Setenv("OMNIMUSLE_STORAGE_DRIVER", "redis")
	t.Setenv("SNAPSHOT_TTL", "1h")
	t.Setenv("UPSTREAM_RPS", "2.5")
	t.Setenv("TMDB_API_KEY", "k")

	c, err := parse(t)
	require.NoError(t, err)
	require.Equal(t, 8081, c.Port)
	require.Equal(t, store.DriverRedis, c.StorageDriver)
	require.Equal(t, time.Hour, c.SnapshotTTL)
	require.Equal(t, 2.5, c.UpstreamRPS)
	require.Equal(t, "k", c.TMDBAPIKey)

	opts := c.StoreOptions()
	require.Equal(t, store.DriverRedis, opts.Driver)
	require.Equal(t, time.Hour, opts.SnapshotTTL)
}

func TestPrefixedEnvWins(t *testing.T) {
	t.Setenv("PORT", "8081")
	t.Setenv("OMNIMUSLE_PORT", "9090")
	c, err := parse(t)
	require.NoError(t, err)
	require.Equal(t, 9090, c.Port)
}

func TestFlagBeatsEnv(t *testing.T) {
	t.Setenv("PORT", "8081")
	c, err := parse(t, "--port", "7000")
	require.NoError(t, err)
	require.Equal(t, 7000, c.Port)
}

func TestBadEnvValue(t *testing.T) {
	t.Setenv("REDIS_DB", "zero")
	_, err := parse(t)
	require.ErrorContains(t, err, "REDIS_DB")
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		c, err := parse(t)
		require.NoError(t, err)
		return c
	}
	cases := map[string]func(*Config){
		"port":            func(c *Config) { c.Port = 0 },
		"driver":          func(c *Config) { c.StorageDriver = "mongo" },
		"postgres no url": func(c *Config) { c.StorageDriver = store.DriverPostgres },
		"log format":      func(c *Config) { c.LogFormat = "xml" },
		"negative rps":    func(c *Config) { c.UpstreamRPS = -1 },
		"no sqlite path":  func(c *Config) { c.SQLitePath = "" },
	}
	for name, mut := range cases {
		t.Run(name, func(t *testing.T) {
			c := base()
			mut(c)
			require.Error(t, c.Validate())
		})
	}

	c := base()
	c.StorageDriver, c.DatabaseURL = store.DriverPostgres, "postgres://localhost/omnimusle"
	require.NoError(t, c.Validate())
}

func TestSetupLogging(t *testing.T) {
	c, err := parse(t, "--log-format", "json", "--log-file", t.TempDir()+"/omnimusle.log", "--log-level", "warn")
	require.NoError(t, err)
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })
	closer := SetupLogging(c)
	require.NoError(t, closer.Close())
}
