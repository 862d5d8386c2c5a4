package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverBigQuery = "bigquery"
)

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type StoreConfig struct {
	Driver     string `mapstructure:"driver"`
	SQLitePath string `mapstructure:"sqlite_path"`
	ProjectID  string `mapstructure:"project_id"`
	DatasetID  string `mapstructure:"dataset_id"`
}

type AuthConfig struct {
	// Token is the bearer token the API requires. Empty disables the check.
	Token string `mapstructure:"token"`
}

type WriteBackConfig struct {
	BufferSize   int           `mapstructure:"buffer_size"`
	Workers      int           `mapstructure:"workers"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	// Retention caps how many finished jobs are kept for /api/jobs. Zero keeps all.
	Retention int `mapstructure:"retention"`
}

type ReconcileConfig struct {
	// Tolerance is the drift above which a recomputed value is written back.
	Tolerance string `mapstructure:"tolerance"`
	// CacheTTL bounds how long a reconciled entity is served from memory.
	// Other processes writing the same store become visible after at most
	// this long. Zero caches until the next local write.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ReportConfig struct {
	Bucket string `mapstructure:"bucket"`
}

type WorkerConfig struct {
	// Interval between reconciliation sweeps.
	Interval time.Duration `mapstructure:"interval"`
}

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Auth      AuthConfig      `mapstructure:"auth"`
	WriteBack WriteBackConfig `mapstructure:"writeback"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
	Log       LogConfig       `mapstructure:"log"`
	Report    ReportConfig    `mapstructure:"report"`
	Worker    WorkerConfig    `mapstructure:"worker"`
}

// EnvPrefix is prepended to environment overrides, e.g. FINLEDGER_STORE_DRIVER=sqlite.
const EnvPrefix = "FINLEDGER"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)

	v.SetDefault("store.driver", DriverMemory)
	v.SetDefault("store.sqlite_path", "data/ledger.db")
	v.SetDefault("store.project_id", "")
	v.SetDefault("store.dataset_id", "finance")

	// Keys without a default are invisible to AutomaticEnv during Unmarshal.
	v.SetDefault("auth.token", "")
	v.SetDefault("report.bucket", "")

	v.SetDefault("writeback.buffer_size", 100)
	v.SetDefault("writeback.workers", 2)
	v.SetDefault("writeback.max_retries", 2)
	v.SetDefault("writeback.retry_backoff", time.Second)
	v.SetDefault("writeback.retention", 1000)

	v.SetDefault("reconcile.tolerance", "0.01")
	v.SetDefault("reconcile.cache_ttl", 5*time.Second)

	v.SetDefault("worker.interval", 15*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Load reads configuration from path (YAML) layered over defaults and
// FINLEDGER_* environment variables. An empty path skips the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks values that would otherwise fail later at startup.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory, DriverSQLite:
	case DriverBigQuery:
		if c.Store.ProjectID == "" {
			return fmt.Errorf("config: store.project_id is required for the bigquery driver")
		}
	default:
		return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}

	if _, err := c.ToleranceDecimal(); err != nil {
		return err
	}
	if c.WriteBack.Retention < 0 {
		return fmt.Errorf("config: writeback.retention must not be negative")
	}
	if c.Reconcile.CacheTTL < 0 {
		return fmt.Errorf("config: reconcile.cache_ttl must not be negative")
	}
	if c.Worker.Interval <= 0 {
		return fmt.Errorf("config: worker.interval must be positive")
	}
	return nil
}

// ToleranceDecimal parses Reconcile.Tolerance.
func (c *Config) ToleranceDecimal() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(c.Reconcile.Tolerance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("config: reconcile.tolerance: %w", err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("config: reconcile.tolerance must not be negative")
	}
	return d, nil
}
