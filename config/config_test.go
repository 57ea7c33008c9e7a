package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"DATABASE_HOST", "DATABASE_PORT", "DATABASE_NAME", "DATABASE_USER",
	"DATABASE_PASSWORD", "DATABASE_DSN", "MVCORE_DRIVER", "MVCORE_LOG_LEVEL",
	"MVCORE_LOG_SQL", "MVCORE_CATALOG_SOURCE",
}

// unsetEnv removes keys for the duration of the test.
func unsetEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	unsetEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DriverMySQL, cfg.Driver)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 3306, cfg.Database.Port)
	assert.Equal(t, "mvcore", cfg.Database.Name)
	assert.Equal(t, "root", cfg.Database.User)
	assert.Empty(t, cfg.Database.Password)
	assert.Zero(t, cfg.Stats.SlowThreshold)
}

func TestLoad_File(t *testing.T) {
	unsetEnv(t)
	path := writeFile(t, "mvcore.yaml", `
driver: mysql
database:
  host: db.internal
  port: 3307
  name: shop
  user: app
logging:
  level: debug
  format: json
  sql: true
stats:
  slow_threshold: 250ms
catalog:
  ttl: 10m
  source: atlas
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 3307, cfg.Database.Port)
	assert.Equal(t, "shop", cfg.Database.Name)
	assert.Equal(t, "app", cfg.Database.User)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.SQL)
	assert.Equal(t, 250*time.Millisecond, cfg.Stats.SlowThreshold)
	assert.Equal(t, 10*time.Minute, cfg.Catalog.TTL)
	assert.Equal(t, SourceAtlas, cfg.Catalog.Source)
	// Untouched keys keep their defaults.
	assert.Equal(t, "utf8", cfg.Database.Charset)
}

func TestLoad_EnvOverrides(t *testing.T) {
	unsetEnv(t)
	path := writeFile(t, "mvcore.yaml", "database:\n  host: from-file\n")
	t.Setenv("DATABASE_HOST", "from-env")
	t.Setenv("DATABASE_PORT", "3310")
	t.Setenv("DATABASE_PASSWORD", "")
	t.Setenv("MVCORE_LOG_LEVEL", "warn")
	t.Setenv("MVCORE_LOG_SQL", "1")
	t.Setenv("MVCORE_CATALOG_SOURCE", "native")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Database.Host)
	assert.Equal(t, 3310, cfg.Database.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.True(t, cfg.Logging.SQL)
	assert.Equal(t, SourceNative, cfg.Catalog.Source)

	t.Setenv("MVCORE_LOG_SQL", "sometimes")
	_, err = Load(path)
	assert.ErrorContains(t, err, "MVCORE_LOG_SQL")
	t.Setenv("MVCORE_LOG_SQL", "")

	t.Setenv("DATABASE_PORT", "abc")
	_, err = Load(path)
	assert.ErrorContains(t, err, "DATABASE_PORT")
}

func TestLoad_EnvFile(t *testing.T) {
	unsetEnv(t)
	env := writeFile(t, ".env", "DATABASE_NAME=fromdotenv\nDATABASE_USER=dotuser\n")
	t.Setenv("DATABASE_USER", "shell")

	cfg, err := Load("", WithEnvFile(env))
	require.NoError(t, err)
	assert.Equal(t, "fromdotenv", cfg.Database.Name)
	assert.Equal(t, "shell", cfg.Database.User, "process environment wins over .env")

	_, err = Load("", WithEnvFile(filepath.Join(t.TempDir(), "missing.env")))
	assert.Error(t, err)
}

func TestLoad_Errors(t *testing.T) {
	unsetEnv(t)
	_, err := Load("/nonexistent/path/mvcore.yaml")
	assert.ErrorContains(t, err, "reading config file")

	bad := writeFile(t, "bad.yaml", "database: [unclosed")
	_, err = Load(bad)
	assert.ErrorContains(t, err, "parsing config file")

	invalid := writeFile(t, "invalid.yaml", "driver: oracle\n")
	_, err = Load(invalid)
	assert.ErrorContains(t, err, `unsupported driver "oracle"`)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults"},
		{name: "missing host", mutate: func(c *Config) { c.Database.Host = "" }, wantErr: "database.host is required"},
		{name: "bad port", mutate: func(c *Config) { c.Database.Port = 70000 }, wantErr: "database.port"},
		{name: "sqlite path", mutate: func(c *Config) { c.Driver, c.Database.Path = DriverSQLite, "" }, wantErr: "database.path"},
		{name: "sqlite ignores host", mutate: func(c *Config) { c.Driver, c.Database.Host = DriverSQLite, "" }},
		{name: "log level", mutate: func(c *Config) { c.Logging.Level = "loud" }, wantErr: `unknown log level "loud"`},
		{name: "log format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: "logging.format"},
		{name: "catalog source", mutate: func(c *Config) { c.Catalog.Source = "guess" }, wantErr: "catalog.source"},
		{name: "atlas source", mutate: func(c *Config) { c.Catalog.Source = SourceAtlas }},
		{name: "bad dsn", mutate: func(c *Config) { c.Database.Source = "db:3306" }, wantErr: "database.dsn"},
		{name: "slow threshold", mutate: func(c *Config) { c.Stats.SlowThreshold = -time.Second }, wantErr: "slow_threshold"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestDSN(t *testing.T) {
	cfg := Default()
	cfg.Database.Password = "s3cret"
	parsed, err := mysql.ParseDSN(cfg.DSN())
	require.NoError(t, err)
	assert.Equal(t, "root", parsed.User)
	assert.Equal(t, "s3cret", parsed.Passwd)
	assert.Equal(t, "tcp", parsed.Net)
	assert.Equal(t, "localhost:3306", parsed.Addr)
	assert.Equal(t, "mvcore", parsed.DBName)
	assert.True(t, parsed.InterpolateParams)
	assert.True(t, parsed.ParseTime)
	assert.Contains(t, cfg.DSN(), "charset=utf8")

	cfg.Driver = DriverSQLite
	cfg.Database.Path = "file:test.db"
	assert.Equal(t, "file:test.db", cfg.DSN())

	cfg.Database.Path = ""
	cfg.Database.Source = "file::memory:"
	assert.Equal(t, "file::memory:", cfg.DSN())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_DSNOverride(t *testing.T) {
	unsetEnv(t)
	t.Setenv("DATABASE_DSN", "app:pw@tcp(db:3306)/app")
	t.Setenv("DATABASE_HOST", "ignored")
	cfg, err := Load("")
	require.NoError(t, err)
	parsed, err := mysql.ParseDSN(cfg.DSN())
	require.NoError(t, err)
	assert.Equal(t, "app", parsed.User)
	assert.Equal(t, "pw", parsed.Passwd)
	assert.Equal(t, "db:3306", parsed.Addr)
	assert.Equal(t, "app", parsed.DBName)
	assert.True(t, parsed.InterpolateParams)
	assert.True(t, parsed.ParseTime)

	// Explicitly disabled flags are forced back on, other params survive.
	t.Setenv("DATABASE_DSN", "app:pw@tcp(db:3306)/app?interpolateParams=false&parseTime=false&timeout=5s")
	cfg, err = Load("")
	require.NoError(t, err)
	parsed, err = mysql.ParseDSN(cfg.DSN())
	require.NoError(t, err)
	assert.True(t, parsed.InterpolateParams)
	assert.True(t, parsed.ParseTime)
	assert.Equal(t, 5*time.Second, parsed.Timeout)

	t.Setenv("DATABASE_DSN", "app:pw@tcp(db:3306)")
	_, err = Load("")
	assert.ErrorContains(t, err, "database.dsn")
}

func TestLogging(t *testing.T) {
	level, err := ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)

	var buf bytes.Buffer
	l := Logging{Level: "info", Format: "json"}.NewLogger(&buf)
	l.Debug("hidden")
	l.Info("shown", "table", "users")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"table":"users"`)

	buf.Reset()
	Logging{Level: "debug"}.NewLogger(&buf).Debug("text")
	assert.Contains(t, buf.String(), "msg=text")
}
