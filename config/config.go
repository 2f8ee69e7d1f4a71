// Package config loads the configuration of the tsy command.
//
// Values come from defaults, an optional treasury.yaml file and environment
// variables prefixed with TSY_ (TSY_SOURCE_URL, TSY_SYNC_CHUNK_SIZE, ...), the
// latter taking precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/etnz/treasury"
	"github.com/etnz/treasury/tracker"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config is the complete configuration.
type Config struct {
	Source   SourceConfig   `mapstructure:"source"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Store    StoreConfig    `mapstructure:"store"`
}

// SourceConfig locates the issuer's workbook.
type SourceConfig struct {
	URL     string        `mapstructure:"url"`
	File    string        `mapstructure:"file"` // local xlsx, takes precedence over URL.
	Timeout time.Duration `mapstructure:"timeout"`
	Cache   bool          `mapstructure:"cache"` // keep one download per day on disk.
}

// ScheduleConfig selects how schedules are computed.
type ScheduleConfig struct {
	Mode   string `mapstructure:"mode"`   // "daily" or "event"
	Policy string `mapstructure:"policy"` // "anchored-rate" or "interest-first"
}

// SyncConfig tunes the synchronization of quotes.
type SyncConfig struct {
	Tolerance  string        `mapstructure:"tolerance"`
	ChunkSize  int           `mapstructure:"chunk_size"`
	Lease      time.Duration `mapstructure:"lease"`
	Currency   string        `mapstructure:"currency"`
	DataSource string        `mapstructure:"data_source"`
}

// StoreConfig locates the portfolio folder.
type StoreConfig struct {
	Dir string `mapstructure:"dir"`
}

// Load reads the configuration.
//
// If path is empty, treasury.yaml is searched in the current directory and in
// $HOME/.config/treasury and may be missing. Otherwise path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("treasury")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "treasury"))
		}
	}

	v.SetEnvPrefix("TSY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("cannot read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("cannot decode config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source.url", "")
	v.SetDefault("source.file", "")
	v.SetDefault("source.timeout", 20*time.Second)
	v.SetDefault("source.cache", false)

	v.SetDefault("schedule.mode", "daily")
	v.SetDefault("schedule.policy", "anchored-rate")

	v.SetDefault("sync.tolerance", "0.004")
	v.SetDefault("sync.chunk_size", tracker.DefaultChunkSize)
	v.SetDefault("sync.lease", tracker.DefaultLease)
	v.SetDefault("sync.currency", tracker.DefaultCurrency)
	v.SetDefault("sync.data_source", tracker.DefaultDataSource)

	v.SetDefault("store.dir", ".")
}

// Validate reports every invalid value.
func (c *Config) Validate() error {
	var errs []error
	if _, err := treasury.ParseMode(c.Schedule.Mode); err != nil {
		errs = append(errs, err)
	}
	if _, err := treasury.ParsePolicy(c.Schedule.Policy); err != nil {
		errs = append(errs, err)
	}
	if t, err := decimal.NewFromString(c.Sync.Tolerance); err != nil || t.IsNegative() {
		errs = append(errs, fmt.Errorf("invalid sync tolerance %q", c.Sync.Tolerance))
	}
	if c.Sync.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("invalid sync chunk size %d", c.Sync.ChunkSize))
	}
	if c.Sync.Lease < 0 {
		errs = append(errs, fmt.Errorf("invalid sync lease %v", c.Sync.Lease))
	}
	if c.Source.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("invalid source timeout %v", c.Source.Timeout))
	}
	return errors.Join(errs...)
}

// Builder returns the schedule builder configured.
func (c *Config) Builder() (treasury.Builder, error) {
	mode, err := treasury.ParseMode(c.Schedule.Mode)
	if err != nil {
		return treasury.Builder{}, err
	}
	policy, err := treasury.ParsePolicy(c.Schedule.Policy)
	if err != nil {
		return treasury.Builder{}, err
	}
	return treasury.Builder{Mode: mode, Policy: policy}, nil
}

// TrackerOptions returns the options of the sync engine.
func (c *Config) TrackerOptions() (tracker.Options, error) {
	b, err := c.Builder()
	if err != nil {
		return tracker.Options{}, err
	}
	tolerance, err := decimal.NewFromString(c.Sync.Tolerance)
	if err != nil {
		return tracker.Options{}, fmt.Errorf("invalid sync tolerance %q: %w", c.Sync.Tolerance, err)
	}
	return tracker.Options{
		Builder:    b,
		Tolerance:  tolerance,
		ChunkSize:  c.Sync.ChunkSize,
		Lease:      c.Sync.Lease,
		Currency:   c.Sync.Currency,
		DataSource: c.Sync.DataSource,
	}, nil
}
