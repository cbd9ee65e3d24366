package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	DB        DBConfig
	Log       LogConfig
	Tax       TaxConfig
	Recompute RecomputeConfig
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`

	// ConnMaxIdleSecs closes pooled connections idle for longer. Zero keeps them.
	ConnMaxIdleSecs int    `mapstructure:"conn_max_idle_secs"`
	MigrationsPath  string `mapstructure:"migrations_path"`
}

// DSN returns the PostgreSQL connection string.
func (d *DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TaxConfig selects the rate tables.
type TaxConfig struct {
	// TablePath points at a YAML rate table file. Empty uses the built-in tables.
	TablePath string `mapstructure:"table_path"`
	MinYear   int    `mapstructure:"min_year"`
}

// Recompute modes.
const (
	RecomputeModeInline = "inline"
	RecomputeModeQueued = "queued"
)

// RecomputeConfig holds summary recomputation settings.
type RecomputeConfig struct {
	Mode             string `mapstructure:"mode"`
	PollIntervalSecs int    `mapstructure:"poll_interval_secs"`
	Concurrency      int    `mapstructure:"concurrency"`
	MaxRetries       int    `mapstructure:"max_retries"`
	BatchSize        int    `mapstructure:"batch_size"`
	JobTimeoutSecs   int    `mapstructure:"job_timeout_secs"`
	// StaleAfterSecs is how long a claimed request may stay processing
	// before the worker claims it again.
	StaleAfterSecs   int    `mapstructure:"stale_after_secs"`
}

// Queued reports whether recomputation is deferred to the worker.
func (r *RecomputeConfig) Queued() bool {
	return r.Mode == RecomputeModeQueued
}

// MigrationsURL returns the golang-migrate source URL for the migrations directory.
func (d *DBConfig) MigrationsURL() string {
	return "file://" + d.MigrationsPath
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	switch c.Recompute.Mode {
	case RecomputeModeInline, RecomputeModeQueued:
	default:
		return fmt.Errorf("recompute.mode must be %q or %q, got %q", RecomputeModeInline, RecomputeModeQueued, c.Recompute.Mode)
	}
	if c.Recompute.Concurrency < 1 {
		return fmt.Errorf("recompute.concurrency must be at least 1, got %d", c.Recompute.Concurrency)
	}
	if c.Recompute.PollIntervalSecs < 1 {
		return fmt.Errorf("recompute.poll_interval_secs must be at least 1, got %d", c.Recompute.PollIntervalSecs)
	}
	if c.Recompute.BatchSize < 1 {
		return fmt.Errorf("recompute.batch_size must be at least 1, got %d", c.Recompute.BatchSize)
	}
	if c.Recompute.JobTimeoutSecs < 1 {
		return fmt.Errorf("recompute.job_timeout_secs must be at least 1, got %d", c.Recompute.JobTimeoutSecs)
	}
	if c.Recompute.StaleAfterSecs <= c.Recompute.JobTimeoutSecs {
		return fmt.Errorf("recompute.stale_after_secs must exceed recompute.job_timeout_secs (%d), got %d",
			c.Recompute.JobTimeoutSecs, c.Recompute.StaleAfterSecs)
	}
	return nil
}

// Load reads configuration from environment variables with the TAXENGINE_ prefix.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TAXENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// DB defaults
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "taxengine")
	v.SetDefault("db.password", "taxengine_secret")
	v.SetDefault("db.name", "taxengine_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open", 25)
	v.SetDefault("db.max_idle", 10)
	v.SetDefault("db.conn_max_idle_secs", 300)
	v.SetDefault("db.migrations_path", "db/migrations")

	// Log defaults
	v.SetDefault("log.level", "debug")
	v.SetDefault("log.format", "console")

	// Tax table defaults
	v.SetDefault("tax.table_path", "")
	v.SetDefault("tax.min_year", 2024)

	// Recompute defaults
	v.SetDefault("recompute.mode", RecomputeModeInline)
	v.SetDefault("recompute.poll_interval_secs", 5)
	v.SetDefault("recompute.concurrency", 4)
	v.SetDefault("recompute.max_retries", 5)
	v.SetDefault("recompute.batch_size", 100)
	v.SetDefault("recompute.job_timeout_secs", 60)
	v.SetDefault("recompute.stale_after_secs", 300)

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"db.host":                      "TAXENGINE_DB_HOST",
		"db.port":                      "TAXENGINE_DB_PORT",
		"db.user":                      "TAXENGINE_DB_USER",
		"db.password":                  "TAXENGINE_DB_PASSWORD",
		"db.name":                      "TAXENGINE_DB_NAME",
		"db.sslmode":                   "TAXENGINE_DB_SSLMODE",
		"db.max_open":                  "TAXENGINE_DB_MAX_OPEN",
		"db.max_idle":                  "TAXENGINE_DB_MAX_IDLE",
		"db.conn_max_idle_secs":        "TAXENGINE_DB_CONN_MAX_IDLE_SECS",
		"db.migrations_path":           "TAXENGINE_DB_MIGRATIONS_PATH",
		"log.level":                    "TAXENGINE_LOG_LEVEL",
		"log.format":                   "TAXENGINE_LOG_FORMAT",
		"tax.table_path":               "TAXENGINE_TAX_TABLE_PATH",
		"tax.min_year":                 "TAXENGINE_TAX_MIN_YEAR",
		"recompute.mode":               "TAXENGINE_RECOMPUTE_MODE",
		"recompute.poll_interval_secs": "TAXENGINE_RECOMPUTE_POLL_INTERVAL_SECS",
		"recompute.concurrency":        "TAXENGINE_RECOMPUTE_CONCURRENCY",
		"recompute.max_retries":        "TAXENGINE_RECOMPUTE_MAX_RETRIES",
		"recompute.batch_size":         "TAXENGINE_RECOMPUTE_BATCH_SIZE",
		"recompute.job_timeout_secs":   "TAXENGINE_RECOMPUTE_JOB_TIMEOUT_SECS",
		"recompute.stale_after_secs":   "TAXENGINE_RECOMPUTE_STALE_AFTER_SECS",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}
	cfg.DB = DBConfig{
		Host:     v.GetString("db.host"),
		Port:     v.GetInt("db.port"),
		User:     v.GetString("db.user"),
		Password: v.GetString("db.password"),
		Name:     v.GetString("db.name"),
		SSLMode:  v.GetString("db.sslmode"),
		MaxOpen:  v.GetInt("db.max_open"),
		MaxIdle:  v.GetInt("db.max_idle"),

		ConnMaxIdleSecs: v.GetInt("db.conn_max_idle_secs"),
		MigrationsPath:  strings.TrimSpace(v.GetString("db.migrations_path")),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}
	cfg.Tax = TaxConfig{
		TablePath: strings.TrimSpace(v.GetString("tax.table_path")),
		MinYear:   v.GetInt("tax.min_year"),
	}
	cfg.Recompute = RecomputeConfig{
		Mode:             strings.ToLower(strings.TrimSpace(v.GetString("recompute.mode"))),
		PollIntervalSecs: v.GetInt("recompute.poll_interval_secs"),
		Concurrency:      v.GetInt("recompute.concurrency"),
		MaxRetries:       v.GetInt("recompute.max_retries"),
		BatchSize:        v.GetInt("recompute.batch_size"),
		JobTimeoutSecs:   v.GetInt("recompute.job_timeout_secs"),
		StaleAfterSecs:   v.GetInt("recompute.stale_after_secs"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
