package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"groupfeed/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Logging    logging.Config   `mapstructure:"logging"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Refresh    RefreshConfig    `mapstructure:"refresh"`
	Ledger     LedgerConfig     `mapstructure:"ledger"`
	Crossbar   CrossbarConfig   `mapstructure:"crossbar"`
	AssetPrice AssetPriceConfig `mapstructure:"asset_price"`
	StakePools StakePoolsConfig `mapstructure:"stake_pools"`
	Cache      CacheConfig      `mapstructure:"cache"`
	FeedMap    FeedMapConfig    `mapstructure:"feedmap"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity for the run journal.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// RefreshConfig governs refresh cadence.
type RefreshConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// LedgerConfig covers on-ledger data access.
type LedgerConfig struct {
	RPCURL         string        `mapstructure:"rpc_url"`
	ProgramID      string        `mapstructure:"program_id"`
	GroupAddress   string        `mapstructure:"group_address"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// Program parses the lending program id.
func (c LedgerConfig) Program() (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(c.ProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("ledger.program_id: %w", err)
	}
	return pk, nil
}

// Group parses the default group address.
func (c LedgerConfig) Group() (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(c.GroupAddress)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("ledger.group_address: %w", err)
	}
	return pk, nil
}

// CrossbarConfig captures the simulation endpoint chain.
type CrossbarConfig struct {
	BaseURL        string                 `mapstructure:"base_url"`
	RequestTimeout time.Duration          `mapstructure:"request_timeout"`
	Fallback       CrossbarFallbackConfig `mapstructure:"fallback"`
}

// CrossbarFallbackConfig is the optional secondary endpoint; it may require
// basic auth.
type CrossbarFallbackConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	Username string `mapstructure:"username"`
	Bearer   string `mapstructure:"bearer"`
}

// AssetPriceConfig is the last-resort per-asset price override service.
type AssetPriceConfig struct {
	BaseURL        string            `mapstructure:"base_url"`
	RequestTimeout time.Duration     `mapstructure:"request_timeout"`
	UserAgent      string            `mapstructure:"user_agent"`
	FeedOverrides  map[string]string `mapstructure:"feed_overrides"`
}

// StakePoolsConfig locates the staked-bank metadata document.
type StakePoolsConfig struct {
	MetadataURL    string        `mapstructure:"metadata_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// CacheConfig describes the shared snapshot cache.
type CacheConfig struct {
	RedisURL string `mapstructure:"redis_url"`
}

// FeedMapConfig scopes the standalone feed-map fetch path.
type FeedMapConfig struct {
	// ExcludeSubstrings denylists bank addresses from feed-map construction.
	// It deliberately does not apply to the refresh pipeline.
	ExcludeSubstrings []string `mapstructure:"exclude_substrings"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("GROUPFEED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "groupfeed")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("refresh.interval", "5s")
	v.SetDefault("refresh.align_to_bucket", false)
	v.SetDefault("refresh.advisory_lock_key", int64(0x67726670))
	v.SetDefault("refresh.startup_delay", "0s")

	v.SetDefault("ledger.request_timeout", "10s")

	v.SetDefault("crossbar.base_url", "https://crossbar.switchboard.xyz")
	v.SetDefault("crossbar.request_timeout", "8s")

	v.SetDefault("asset_price.request_timeout", "8s")
	v.SetDefault("asset_price.user_agent", "groupfeed/1.0")

	v.SetDefault("stake_pools.request_timeout", "8s")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Refresh.Interval <= 0 {
		return fmt.Errorf("refresh.interval must be greater than zero")
	}
	if c.Ledger.ProgramID != "" {
		if _, err := c.Ledger.Program(); err != nil {
			return err
		}
	}
	if c.Ledger.GroupAddress != "" {
		if _, err := c.Ledger.Group(); err != nil {
			return err
		}
	}
	if c.Crossbar.Fallback.Username != "" && c.Crossbar.Fallback.Bearer == "" {
		return fmt.Errorf("crossbar.fallback.bearer 必须与 username 一起配置")
	}
	return nil
}
