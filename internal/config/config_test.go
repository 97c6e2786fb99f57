package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeEnv(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "-1000", cfg.Rules.Floors["bonus"])
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty addr", func(c *Config) { c.Server.Addr = "" }, "server.addr"},
		{"bad mode", func(c *Config) { c.Server.Mode = "prod" }, "server.mode"},
		{"bad driver", func(c *Config) { c.Database.Driver = "mysql" }, "database.driver"},
		{"postgres without dsn", func(c *Config) { c.Database.Driver = "postgres"; c.Database.DSN = "" }, "database.dsn"},
		{"bad level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"negative points", func(c *Config) { c.Rules.InitialPoints = -1 }, "initial_points"},
		{"unknown floor", func(c *Config) { c.Rules.Floors["checking"] = "0" }, "checking"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestLoaderFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bankapp.yaml")
	yml := `
server:
  addr: ":9090"
database:
  driver: postgres
  dsn: postgres://bank@localhost/bank
redis:
  ttl: 30s
rules:
  floors:
    simple: "-100"
  deposit_cutoff: "50"
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	l := NewLoader(nil)
	l.lookup = fakeEnv(map[string]string{
		"BANKAPP_REDIS_ADDR": "localhost:6379",
		"BANKAPP_LOG_LEVEL":  "debug",
	})
	cfg, err := l.Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "release", cfg.Server.Mode, "defaults survive partial files")
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 30*time.Second, cfg.Redis.TTL)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "-100", cfg.Rules.Floors["simple"])
	assert.Equal(t, "50", cfg.Rules.DepositCutoff)
	assert.Equal(t, "200", cfg.Rules.TransferCutoff)
}

func TestLoaderMissingFile(t *testing.T) {
	chdir(t, t.TempDir())

	l := NewLoader(nil)
	l.lookup = fakeEnv(nil)
	cfg, err := l.Load("")
	require.NoError(t, err, "missing default file falls back to defaults")
	assert.Equal(t, DefaultConfig().Server, cfg.Server)

	_, err = l.Load("does-not-exist.yaml")
	assert.Error(t, err, "an explicit path must exist")
}

func TestLoaderEnvErrors(t *testing.T) {
	chdir(t, t.TempDir())
	for _, key := range []string{"BANKAPP_REDIS_DB", "BANKAPP_REDIS_TTL", "BANKAPP_DATABASE_LOG_SQL"} {
		l := NewLoader(nil)
		l.lookup = fakeEnv(map[string]string{key: "nope"})
		_, err := l.Load("")
		assert.ErrorContains(t, err, key)
	}
}

func TestSaveToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "bankapp.yaml")
	cfg := DefaultConfig()
	cfg.NATS.URL = "nats://localhost:4222"
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path, nil)
	require.NoError(t, err)
	assert.Equal(t, cfg.NATS, loaded.NATS)
	assert.Equal(t, cfg.Server.ShutdownTimeout, loaded.Server.ShutdownTimeout)
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir from Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}
