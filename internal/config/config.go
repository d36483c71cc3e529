// Package config loads and validates the settings of a download run.
//
// Settings come from an optional YAML file and are then overridden by command line flags.
// Any problem found here is a configuration error and stops the run before a single
// task is attempted.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/rxtech-lab/argo-history/pkg/errors"
)

const minYear = 1970

const (
	DefaultProvider     = "yahoo"
	DefaultFormat       = "csv"
	DefaultDataDir      = "data"
	DefaultLogDir       = "logs"
	DefaultLogLevel     = "info"
	DefaultDelaySeconds = 12
	DefaultCachePath    = ".cache/history.sqlite"
	DefaultCacheTTL     = 24 * time.Hour
)

// currentYear is replaced in tests.
var currentYear = func() int { return time.Now().Year() }

// Config holds the settings of a download run.
type Config struct {
	// Symbols is an inline symbol list.
	Symbols []string `yaml:"symbols"`
	// SymbolsFile is a text file with one symbol per line, or a CSV file with a Symbol column.
	SymbolsFile string `yaml:"symbols_file"`
	// SymbolsURL is a web page holding a table with a Symbol column.
	SymbolsURL string `yaml:"symbols_url" validate:"omitempty,url"`
	// Exchange names the symbol list in logs.
	Exchange string `yaml:"exchange"`

	StartYear int `yaml:"start_year" validate:"required,gte=1970"`
	// EndYear defaults to StartYear.
	EndYear int `yaml:"end_year" validate:"omitempty,gtefield=StartYear"`
	// DelaySeconds is the pause after each fetch attempt.
	DelaySeconds float64 `yaml:"delay" validate:"gte=0"`

	DataDir  string `yaml:"data_dir" validate:"required"`
	LogDir   string `yaml:"log_dir"`
	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`

	Provider      string `yaml:"provider" validate:"required,oneof=yahoo polygon binance"`
	Format        string `yaml:"format" validate:"required,oneof=csv parquet"`
	PolygonAPIKey string `yaml:"polygon_api_key" validate:"required_if=Provider polygon"`

	Cache     CacheConfig     `yaml:"cache"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// CacheConfig configures the fetch response cache.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Path    string        `yaml:"path" validate:"required_if=Enabled true"`
	TTL     time.Duration `yaml:"ttl" validate:"gte=0"`
}

// RateLimitConfig configures the token bucket placed in front of the provider.
// A zero RequestsPerMinute disables it.
type RateLimitConfig struct {
	RequestsPerMinute float64 `yaml:"requests_per_minute" validate:"gte=0"`
	Burst             int     `yaml:"burst" validate:"gte=0"`
}

// Default returns the configuration used when nothing is specified.
func Default() Config {
	//nolint:exhaustruct // symbol sources and years have no defaults
	return Config{
		DelaySeconds: DefaultDelaySeconds,
		DataDir:      DefaultDataDir,
		LogDir:       DefaultLogDir,
		LogLevel:     DefaultLogLevel,
		Provider:     DefaultProvider,
		Format:       DefaultFormat,
		Cache: CacheConfig{
			Enabled: false,
			Path:    DefaultCachePath,
			TTL:     DefaultCacheTTL,
		},
	}
}

// Load reads the YAML file at path on top of Default. An empty path returns Default.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read config file %s", path)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to parse config file %s", path)
	}

	return cfg, nil
}

// Validate checks field constraints, the year range and that at least one symbol source is set.
func (c *Config) Validate() error {
	if c.EndYear == 0 {
		c.EndYear = c.StartYear
	}

	if c.Cache.Enabled && c.Cache.Path == "" {
		c.Cache.Path = DefaultCachePath
	}

	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid configuration", err)
	}

	now := currentYear()
	if c.StartYear < minYear || c.EndYear > now || c.StartYear > c.EndYear {
		return errors.Newf(errors.ErrCodeInvalidYearRange,
			"invalid year range %d-%d: years must be within %d-%d", c.StartYear, c.EndYear, minYear, now)
	}

	if len(c.Symbols) == 0 && c.SymbolsFile == "" && c.SymbolsURL == "" {
		return errors.New(errors.ErrCodeEmptySymbolList, "no symbol source configured: set symbols, symbols_file or symbols_url")
	}

	return nil
}

// Years returns every year from StartYear to EndYear inclusive.
func (c Config) Years() []int {
	end := c.EndYear
	if end == 0 {
		end = c.StartYear
	}

	years := make([]int, 0, end-c.StartYear+1)
	for year := c.StartYear; year <= end; year++ {
		years = append(years, year)
	}

	return years
}

// Delay returns DelaySeconds as a duration.
func (c Config) Delay() time.Duration {
	return time.Duration(c.DelaySeconds * float64(time.Second))
}

// ExchangeName returns the label used for the symbol list in logs.
func (c Config) ExchangeName() string {
	if c.Exchange != "" {
		return c.Exchange
	}

	return fmt.Sprintf("%d symbol source(s)", c.sourceCount())
}

func (c Config) sourceCount() int {
	n := 0
	if len(c.Symbols) > 0 {
		n++
	}

	if c.SymbolsFile != "" {
		n++
	}

	if c.SymbolsURL != "" {
		n++
	}

	return n
}
