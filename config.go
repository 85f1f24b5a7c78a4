package fieldz

import (
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config is the engine configuration file.
//
//	logging:
//	  level: debug
//	  development: true
//	sql:
//	  driver: sqlite
//	  dsn: file:app.db
//	  max_open_conns: 8
//	  query_timeout: 2s
//	  retry_attempts: 3
//	  retry_delay: 50ms
//	  breaker_threshold: 5
//	  breaker_reset: 30s
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	SQL     SQLConfig     `yaml:"sql"`
}

// LoggingConfig selects the zap preset and level.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// SQLConfig describes the database behind the raw query connector. An empty
// DSN means no connector is opened. RetryAttempts above 1 wraps the
// connector in a Backoff; a positive BreakerThreshold adds a CircuitBreaker.
type SQLConfig struct {
	Driver           string        `yaml:"driver"`
	DSN              string        `yaml:"dsn"`
	MaxOpenConns     int           `yaml:"max_open_conns"`
	QueryTimeout     time.Duration `yaml:"query_timeout"`
	RetryAttempts    int           `yaml:"retry_attempts"`
	RetryDelay       time.Duration `yaml:"retry_delay"`
	BreakerThreshold int           `yaml:"breaker_threshold"`
	BreakerReset     time.Duration `yaml:"breaker_reset"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		SQL:     SQLConfig{Driver: "sqlite", MaxOpenConns: 4},
	}
}

// LoadConfig reads and parses the YAML file at path.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML on top of DefaultConfig and validates the result.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every problem in the configuration.
func (c Config) Validate() error {
	var errs []error
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	if c.SQL.DSN != "" && c.SQL.Driver == "" {
		errs = append(errs, errors.New("sql.driver: required when sql.dsn is set"))
	}
	if c.SQL.MaxOpenConns < 0 {
		errs = append(errs, fmt.Errorf("sql.max_open_conns: must not be negative, got %d", c.SQL.MaxOpenConns))
	}
	if c.SQL.QueryTimeout < 0 {
		errs = append(errs, fmt.Errorf("sql.query_timeout: must not be negative, got %s", c.SQL.QueryTimeout))
	}
	if c.SQL.RetryAttempts < 0 || c.SQL.RetryDelay < 0 {
		errs = append(errs, errors.New("sql.retry_attempts and sql.retry_delay: must not be negative"))
	}
	if c.SQL.BreakerThreshold < 0 || c.SQL.BreakerReset < 0 {
		errs = append(errs, errors.New("sql.breaker_threshold and sql.breaker_reset: must not be negative"))
	}
	return errors.Join(errs...)
}

// BuildLogger creates the zap logger described by the logging section.
func (c LoggingConfig) BuildLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// OnClose registers fn to run when the App is closed.
func OnClose(fn func() error) AppOption {
	return func(a *App) { a.closer = fn }
}
