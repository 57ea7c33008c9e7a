// Package config loads the mvcore configuration.
//
// Values are resolved in order: built-in defaults, an optional YAML file, an
// optional .env file and finally the process environment:
//
//	DATABASE_HOST, DATABASE_PORT, DATABASE_NAME, DATABASE_USER, DATABASE_PASSWORD, DATABASE_DSN
//	MVCORE_DRIVER, MVCORE_LOG_LEVEL, MVCORE_LOG_SQL, MVCORE_CATALOG_SOURCE
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Supported drivers.
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Config is the root configuration.
type Config struct {
	Driver   string   `yaml:"driver"`
	Database Database `yaml:"database"`
	Logging  Logging  `yaml:"logging"`
	Stats    Stats    `yaml:"stats"`
	Catalog  Catalog  `yaml:"catalog"`
}

// Database holds the connection settings.
type Database struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Charset  string `yaml:"charset"`
	// Source is a complete data source name. When set the other connection
	// settings are ignored. A MySQL source always gets client-side
	// interpolation and time parsing.
	Source string `yaml:"dsn"`
	// Path is the database file of the sqlite driver.
	Path string `yaml:"path"`
}

// Logging configures the slog handler.
type Logging struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
	// SQL logs every statement with its arguments substituted. The
	// statements are written at debug level.
	SQL bool `yaml:"sql"`
}

// Stats configures query statistics. A zero SlowThreshold disables them.
type Stats struct {
	SlowThreshold time.Duration `yaml:"slow_threshold"`
}

// Catalog configures the column type catalog.
type Catalog struct {
	// TTL of entries kept in the second-tier cache. Zero means no expiry.
	TTL time.Duration `yaml:"ttl"`
	// Source selects the introspection of column types: "native" queries
	// the information schema directly, "atlas" uses the atlas inspector.
	Source string `yaml:"source"`
}

// Catalog sources.
const (
	SourceNative = "native"
	SourceAtlas  = "atlas"
)

// Option configures Load.
type Option func(*loader)

type loader struct {
	envFiles []string
}

// WithEnvFile loads the given .env files before reading the environment.
// Variables already set in the environment take precedence.
func WithEnvFile(files ...string) Option {
	return func(l *loader) {
		l.envFiles = append(l.envFiles, files...)
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Driver: DriverMySQL,
		Database: Database{
			Host:    "localhost",
			Port:    3306,
			Name:    "mvcore",
			User:    "root",
			Charset: "utf8",
			Path:    "mvcore.db",
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load resolves the configuration. An empty path skips the YAML file.
func Load(path string, opts ...Option) (*Config, error) {
	l := &loader{}
	for _, opt := range opts {
		opt(l)
	}
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}
	if len(l.envFiles) > 0 {
		if err := godotenv.Load(l.envFiles...); err != nil {
			return nil, fmt.Errorf("loading env file: %w", err)
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("DATABASE_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("DATABASE_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DATABASE_PORT: %w", err)
		}
		cfg.Database.Port = port
	}
	if v := os.Getenv("DATABASE_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("DATABASE_USER"); v != "" {
		cfg.Database.User = v
	}
	// An empty password is a valid override.
	if v, ok := os.LookupEnv("DATABASE_PASSWORD"); ok {
		cfg.Database.Password = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.Source = v
	}
	if v := os.Getenv("MVCORE_DRIVER"); v != "" {
		cfg.Driver = v
	}
	if v := os.Getenv("MVCORE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MVCORE_CATALOG_SOURCE"); v != "" {
		cfg.Catalog.Source = v
	}
	if v := os.Getenv("MVCORE_LOG_SQL"); v != "" {
		sql, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("MVCORE_LOG_SQL: %w", err)
		}
		cfg.Logging.SQL = sql
	}
	return nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	var errs []error
	switch c.Driver {
	case DriverMySQL:
		if c.Database.Source != "" {
			if _, err := mysql.ParseDSN(c.Database.Source); err != nil {
				errs = append(errs, fmt.Errorf("database.dsn: %w", err))
			}
			break
		}
		if c.Database.Host == "" {
			errs = append(errs, errors.New("database.host is required"))
		}
		if c.Database.Name == "" {
			errs = append(errs, errors.New("database.name is required"))
		}
		if c.Database.Port < 1 || c.Database.Port > 65535 {
			errs = append(errs, errors.New("database.port must be between 1 and 65535"))
		}
	case DriverSQLite:
		if c.Database.Path == "" && c.Database.Source == "" {
			errs = append(errs, errors.New("database.path is required for sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported driver %q", c.Driver))
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q is not text or json", c.Logging.Format))
	}
	switch c.Catalog.Source {
	case "", SourceNative, SourceAtlas:
	default:
		errs = append(errs, fmt.Errorf("catalog.source %q is not native or atlas", c.Catalog.Source))
	}
	if c.Stats.SlowThreshold < 0 {
		errs = append(errs, errors.New("stats.slow_threshold must not be negative"))
	}
	return errors.Join(errs...)
}

// DSN returns the data source name of the configured driver.
func (c *Config) DSN() string {
	switch {
	case c.Driver == DriverSQLite && c.Database.Source != "":
		return c.Database.Source
	case c.Driver == DriverSQLite:
		return c.Database.Path
	case c.Database.Source != "":
		cfg, err := mysql.ParseDSN(c.Database.Source)
		if err != nil {
			// Rejected by Validate.
			return c.Database.Source
		}
		cfg.InterpolateParams = true
		cfg.ParseTime = true
		return cfg.FormatDSN()
	default:
		return c.Database.DSN()
	}
}

// DSN returns the MySQL data source name. Parameters are interpolated on the
// client, so bit markers reach the server as bit literals.
func (d Database) DSN() string {
	cfg := mysql.NewConfig()
	cfg.User = d.User
	cfg.Passwd = d.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
	cfg.DBName = d.Name
	cfg.InterpolateParams = true
	cfg.ParseTime = true
	if d.Charset != "" {
		// Charset never fails.
		_ = cfg.Apply(mysql.Charset(d.Charset, ""))
	}
	return cfg.FormatDSN()
}

// ParseLevel converts a level name to a slog.Level. An empty name is info.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

// NewLogger returns a logger writing to w in the configured format.
func (l Logging) NewLogger(w io.Writer) *slog.Logger {
	level, _ := ParseLevel(l.Level)
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if strings.EqualFold(l.Format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}
