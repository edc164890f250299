package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Veraticus/ledgersync/internal/common"
	"github.com/Veraticus/ledgersync/internal/enablebanking"
	"github.com/Veraticus/ledgersync/internal/scheduler"
	"github.com/Veraticus/ledgersync/internal/selection"
	"github.com/Veraticus/ledgersync/internal/service"
	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
)

// Config is the full set of settings. Everything downstream of the CLI
// receives values from here instead of reading viper directly.
type Config struct {
	EnableBanking EnableBankingConfig `mapstructure:"enable_banking"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Sync          SyncConfig          `mapstructure:"sync"`
	Retry         RetryConfig         `mapstructure:"retry"`
}

// EnableBankingConfig holds provider credentials.
type EnableBankingConfig struct {
	AppID          string        `mapstructure:"app_id" validate:"required,uuid"`
	PrivateKey     string        `mapstructure:"private_key"`
	PrivateKeyFile string        `mapstructure:"private_key_file"`
	RedirectURL    string        `mapstructure:"redirect_url" validate:"required,url,startswith=http"`
	Environment    string        `mapstructure:"environment" validate:"oneof=sandbox production"`
	BaseURL        string        `mapstructure:"base_url" validate:"omitempty,url"`
	Timeout        time.Duration `mapstructure:"timeout" validate:"gte=0"`
	SendAuthMethod bool          `mapstructure:"send_auth_method"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=console json"`
}

// DatabaseConfig selects the ledger store.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver" validate:"oneof=sqlite3 sqlite postgres postgresql"`
	DSN    string `mapstructure:"dsn"`
}

// RedisConfig points at the selection cache. An empty Addr keeps
// selections in process memory.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" validate:"omitempty,hostname_port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
}

// SyncConfig tunes the scheduler.
type SyncConfig struct {
	DailyAt    string        `mapstructure:"daily_at" validate:"required"`
	Timezone   string        `mapstructure:"timezone"`
	JitterMin  time.Duration `mapstructure:"jitter_min" validate:"gt=0"`
	JitterMax  time.Duration `mapstructure:"jitter_max" validate:"gtefield=JitterMin"`
	Lookback   time.Duration `mapstructure:"lookback" validate:"gt=0"`
	JobTimeout time.Duration `mapstructure:"job_timeout" validate:"gte=0"`
	Workers    int           `mapstructure:"workers" validate:"gte=1"`
	QueueSize  int           `mapstructure:"queue_size" validate:"gte=1"`
}

// RetryConfig mirrors service.RetryOptions.
type RetryConfig struct {
	MaxAttempts  int           `mapstructure:"max_attempts" validate:"gte=1"`
	InitialDelay time.Duration `mapstructure:"initial_delay" validate:"gt=0"`
	MaxDelay     time.Duration `mapstructure:"max_delay" validate:"gtefield=InitialDelay"`
	Multiplier   float64       `mapstructure:"multiplier" validate:"gte=1"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("enable_banking.app_id", "")
	v.SetDefault("enable_banking.private_key", "")
	v.SetDefault("enable_banking.private_key_file", "")
	v.SetDefault("enable_banking.redirect_url", "")
	v.SetDefault("enable_banking.environment", "production")
	v.SetDefault("enable_banking.base_url", enablebanking.DefaultBaseURL)
	v.SetDefault("enable_banking.timeout", 30*time.Second)
	v.SetDefault("enable_banking.send_auth_method", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.dsn", "")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("sync.daily_at", "00:00")
	v.SetDefault("sync.timezone", "")
	v.SetDefault("sync.jitter_min", time.Minute)
	v.SetDefault("sync.jitter_max", 30*time.Minute)
	v.SetDefault("sync.lookback", scheduler.DefaultLookback)
	v.SetDefault("sync.job_timeout", 5*time.Minute)
	v.SetDefault("sync.workers", 4)
	v.SetDefault("sync.queue_size", 256)

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_delay", time.Second)
	v.SetDefault("retry.max_delay", 30*time.Second)
	v.SetDefault("retry.multiplier", 2.0)
}

// Load unmarshals v into a Config and fills in derived defaults. It does
// not validate provider credentials; commands that talk to the bank call
// ValidateProvider.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrConfiguration, err)
	}

	if cfg.Database.DSN == "" && isSQLite(cfg.Database.Driver) {
		cfg.Database.DSN = DefaultDSN()
	} else if isSQLite(cfg.Database.Driver) {
		cfg.Database.DSN = ExpandPath(cfg.Database.DSN)
	}
	cfg.EnableBanking.PrivateKeyFile = ExpandPath(cfg.EnableBanking.PrivateKeyFile)

	if err := validator.New().StructExcept(cfg, "EnableBanking"); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrConfiguration, err)
	}
	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("%w: database.dsn is required for driver %s", common.ErrConfiguration, cfg.Database.Driver)
	}
	if _, err := scheduler.ParseScheduleTime(cfg.Sync.DailyAt); err != nil {
		return nil, err
	}
	if _, err := cfg.Sync.location(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ValidateProvider checks the Enable Banking section and that the private
// key parses as an RSA key.
func (c *Config) ValidateProvider() error {
	if err := validator.New().Struct(c.EnableBanking); err != nil {
		return fmt.Errorf("%w: %w", common.ErrConfiguration, err)
	}
	key, err := c.EnableBanking.PrivateKeyPEM()
	if err != nil {
		return err
	}
	if _, err := jwt.ParseRSAPrivateKeyFromPEM(key); err != nil {
		return fmt.Errorf("%w: enable_banking private key: %w", common.ErrConfiguration, err)
	}
	return nil
}

// PrivateKeyPEM returns the inline key, or reads private_key_file.
func (c EnableBankingConfig) PrivateKeyPEM() ([]byte, error) {
	if strings.TrimSpace(c.PrivateKey) != "" {
		return []byte(c.PrivateKey), nil
	}
	if c.PrivateKeyFile == "" {
		return nil, fmt.Errorf("%w: one of enable_banking.private_key or enable_banking.private_key_file is required", common.ErrConfiguration)
	}
	data, err := os.ReadFile(c.PrivateKeyFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: private key file %s not found", common.ErrConfiguration, c.PrivateKeyFile)
		}
		return nil, fmt.Errorf("%w: failed to read private key: %w", common.ErrConfiguration, err)
	}
	return data, nil
}

// ClientConfig builds the provider client settings.
func (c *Config) ClientConfig() (enablebanking.Config, error) {
	key, err := c.EnableBanking.PrivateKeyPEM()
	if err != nil {
		return enablebanking.Config{}, err
	}
	return enablebanking.Config{
		BaseURL:        c.EnableBanking.BaseURL,
		AppID:          c.EnableBanking.AppID,
		PrivateKey:     key,
		Timeout:        c.EnableBanking.Timeout,
		SendAuthMethod: c.EnableBanking.SendAuthMethod,
	}, nil
}

// RetryOptions converts the retry section.
func (c *Config) RetryOptions() service.RetryOptions {
	return service.RetryOptions{
		MaxAttempts:  c.Retry.MaxAttempts,
		InitialDelay: c.Retry.InitialDelay,
		MaxDelay:     c.Retry.MaxDelay,
		Multiplier:   c.Retry.Multiplier,
	}.WithDefaults()
}

// RedisOptions converts the redis section.
func (c *Config) RedisOptions() selection.RedisOptions {
	return selection.RedisOptions{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
	}
}

// SchedulerConfig converts the sync section.
func (c *Config) SchedulerConfig() (scheduler.Config, error) {
	at, err := scheduler.ParseScheduleTime(c.Sync.DailyAt)
	if err != nil {
		return scheduler.Config{}, err
	}
	loc, err := c.Sync.location()
	if err != nil {
		return scheduler.Config{}, err
	}
	return scheduler.Config{
		Location:   loc,
		DailyAt:    at,
		JitterMin:  c.Sync.JitterMin,
		JitterMax:  c.Sync.JitterMax,
		JobTimeout: c.Sync.JobTimeout,
		Workers:    c.Sync.Workers,
		QueueSize:  c.Sync.QueueSize,
	}, nil
}

func (s SyncConfig) location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: sync.timezone: %w", common.ErrConfiguration, err)
	}
	return loc, nil
}

func isSQLite(driver string) bool {
	return driver == "" || driver == "sqlite3" || driver == "sqlite"
}
