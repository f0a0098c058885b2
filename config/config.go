package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the firewatch service
type Config struct {
	// MSP holds upstream security service connection settings
	MSP struct {
		// BaseURL is the MSP API root (FIREWATCH_MSP_BASE_URL)
		BaseURL string `mapstructure:"base_url"`
		// Token authenticates every upstream request (FIREWATCH_MSP_TOKEN)
		Token string `mapstructure:"token"`
		// BoxID scopes requests to one monitored network (FIREWATCH_MSP_BOX_ID)
		BoxID string `mapstructure:"box_id"`
		// Timeout bounds one upstream request
		Timeout time.Duration `mapstructure:"timeout"`
		// RateLimit caps upstream requests per second
		RateLimit float64 `mapstructure:"rate_limit"`
		// RateBurst is the rate limiter burst allowance
		RateBurst int `mapstructure:"rate_burst"`
		// FetchLimit is how many records one upstream page request asks for
		FetchLimit int `mapstructure:"fetch_limit"`
		// MaxFetchPages bounds upstream pagination per search
		MaxFetchPages int `mapstructure:"max_fetch_pages"`
	} `mapstructure:"msp"`

	Cache struct {
		// Size is the maximum number of cached upstream responses
		Size int `mapstructure:"size"`
		// TTL is how long a cached response stays valid
		TTL time.Duration `mapstructure:"ttl"`
	} `mapstructure:"cache"`

	Search struct {
		// DefaultLimit is the result bound for transports that may omit
		// one, such as the query subcommand. Tool requests always name
		// their own limit.
		DefaultLimit int `mapstructure:"default_limit"`
		// MaxLimit caps the page size a request may ask for
		MaxLimit int `mapstructure:"max_limit"`
		// FieldOverrides optionally points at a YAML candidate-path overlay
		FieldOverrides string `mapstructure:"field_overrides"`
	} `mapstructure:"search"`

	API struct {
		Host string `mapstructure:"host"`
		Port int    `mapstructure:"port"`
		// ReadTimeout and WriteTimeout bound one HTTP exchange
		ReadTimeout  time.Duration `mapstructure:"read_timeout"`
		WriteTimeout time.Duration `mapstructure:"write_timeout"`
	} `mapstructure:"api"`

	Log struct {
		// Level is one of debug, info, warn, error
		Level string `mapstructure:"level"`
		// Development switches to the human-readable console encoder
		Development bool `mapstructure:"development"`
	} `mapstructure:"log"`
}

func setDefaults() {
	viper.SetDefault("msp.base_url", "")
	viper.SetDefault("msp.token", "")
	viper.SetDefault("msp.box_id", "")
	viper.SetDefault("msp.timeout", 30*time.Second)
	viper.SetDefault("msp.rate_limit", 10.0)
	viper.SetDefault("msp.rate_burst", 20)
	viper.SetDefault("msp.fetch_limit", 500)
	viper.SetDefault("msp.max_fetch_pages", 10)

	viper.SetDefault("cache.size", 256)
	viper.SetDefault("cache.ttl", 60*time.Second)

	viper.SetDefault("search.default_limit", 200)
	viper.SetDefault("search.max_limit", 500)
	viper.SetDefault("search.field_overrides", "")

	viper.SetDefault("api.host", "0.0.0.0")
	viper.SetDefault("api.port", 8080)
	viper.SetDefault("api.read_timeout", 30*time.Second)
	viper.SetDefault("api.write_timeout", 60*time.Second)

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)
}

func loadFromEnv() {
	_ = viper.BindEnv("msp.base_url", "FIREWATCH_MSP_BASE_URL")
	_ = viper.BindEnv("msp.token", "FIREWATCH_MSP_TOKEN")
	_ = viper.BindEnv("msp.box_id", "FIREWATCH_MSP_BOX_ID")
	_ = viper.BindEnv("msp.timeout", "FIREWATCH_MSP_TIMEOUT")
	_ = viper.BindEnv("msp.rate_limit", "FIREWATCH_MSP_RATE_LIMIT")
	_ = viper.BindEnv("msp.rate_burst", "FIREWATCH_MSP_RATE_BURST")
	_ = viper.BindEnv("cache.size", "FIREWATCH_CACHE_SIZE")
	_ = viper.BindEnv("cache.ttl", "FIREWATCH_CACHE_TTL")
	_ = viper.BindEnv("search.default_limit", "FIREWATCH_SEARCH_DEFAULT_LIMIT")
	_ = viper.BindEnv("search.max_limit", "FIREWATCH_SEARCH_MAX_LIMIT")
	_ = viper.BindEnv("search.field_overrides", "FIREWATCH_FIELD_OVERRIDES")
	_ = viper.BindEnv("api.host", "FIREWATCH_API_HOST")
	_ = viper.BindEnv("api.port", "FIREWATCH_API_PORT")
	_ = viper.BindEnv("log.level", "FIREWATCH_LOG_LEVEL")
	_ = viper.BindEnv("log.development", "FIREWATCH_LOG_DEV")
}

// LoadConfig reads configuration from config.yaml, the environment and a
// local .env file, in ascending precedence of env over file over defaults.
func LoadConfig() (*Config, error) {
	// A .env file is a development convenience, absence is normal
	_ = godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()
	loadFromEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, defaults and env vars carry the load
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks cross-field constraints that viper cannot express.
func (c *Config) Validate() error {
	if c.MSP.BaseURL != "" {
		u, err := url.Parse(c.MSP.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("msp.base_url %q is not a valid http(s) URL", c.MSP.BaseURL)
		}
	}

	if c.MSP.RateLimit <= 0 {
		return fmt.Errorf("msp.rate_limit must be positive, got %g", c.MSP.RateLimit)
	}
	if c.MSP.RateBurst < 1 {
		return fmt.Errorf("msp.rate_burst must be at least 1, got %d", c.MSP.RateBurst)
	}
	if c.MSP.FetchLimit < 1 {
		return fmt.Errorf("msp.fetch_limit must be at least 1, got %d", c.MSP.FetchLimit)
	}
	if c.MSP.MaxFetchPages < 1 {
		return fmt.Errorf("msp.max_fetch_pages must be at least 1, got %d", c.MSP.MaxFetchPages)
	}

	if c.Cache.Size < 0 {
		return fmt.Errorf("cache.size cannot be negative, got %d", c.Cache.Size)
	}

	if c.Search.DefaultLimit < 1 || c.Search.MaxLimit < 1 {
		return fmt.Errorf("search limits must be at least 1")
	}
	if c.Search.DefaultLimit > c.Search.MaxLimit {
		return fmt.Errorf("search.default_limit %d exceeds search.max_limit %d",
			c.Search.DefaultLimit, c.Search.MaxLimit)
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		return fmt.Errorf("api.port %d is out of range", c.API.Port)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}

	return nil
}
