package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port              string  `mapstructure:"PORT"`
	Env               string  `mapstructure:"ENV"`
	AllowedOrigin     string  `mapstructure:"ALLOWED_ORIGIN"`
	DatabaseURL       string  `mapstructure:"DATABASE_URL"`
	DBMaxConns        int32   `mapstructure:"DB_MAX_CONNS"`
	DBMinConns        int32   `mapstructure:"DB_MIN_CONNS"`
	DBAcquireMs       int     `mapstructure:"DB_ACQUIRE_TIMEOUT_MS"`
	DBQueryMs         int     `mapstructure:"DB_QUERY_TIMEOUT_MS"`
	RequestTimeoutMs  int     `mapstructure:"REQUEST_TIMEOUT_MS"`
	GeocodeRegion     string  `mapstructure:"GEOCODE_REGION"`
	GeocodeIndexName  string  `mapstructure:"GEOCODE_INDEX_NAME"`
	GeocodeAPIKey     string  `mapstructure:"GEOCODE_API_KEY"`
	GeocodeTimeoutMs  int     `mapstructure:"GEOCODE_TIMEOUT_MS"`
	GeocodeMinScore   float64 `mapstructure:"GEOCODE_MIN_SCORE"`
	QualityThreshold  float64 `mapstructure:"QUALITY_THRESHOLD"`
	MinResults        int     `mapstructure:"MIN_RESULTS"`
	MaxRadiusKm       float64 `mapstructure:"MAX_RADIUS_KM"`
	AIEnabled         bool    `mapstructure:"AI_CLASSIFIER_ENABLED"`
	AIRegion          string  `mapstructure:"AI_CLASSIFIER_REGION"`
	AITimeoutMs       int     `mapstructure:"AI_CLASSIFIER_TIMEOUT_MS"`
	AIStage1Model     string  `mapstructure:"AI_STAGE1_MODEL"`
	AIStage2Model     string  `mapstructure:"AI_STAGE2_MODEL"`
	StageCacheSecret  string  `mapstructure:"STAGE_CACHE_SECRET"`
	StageCacheTTLSecs int     `mapstructure:"STAGE_CACHE_TTL_S"`
	PincodeCacheTTLS  int     `mapstructure:"CACHE_TTL_S"`
	RateLimitRPS      float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst    int     `mapstructure:"RATE_LIMIT_BURST"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "5000")
	v.SetDefault("ENV", "development")
	v.SetDefault("ALLOWED_ORIGIN", "http://localhost:3001")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("DB_ACQUIRE_TIMEOUT_MS", 500)
	v.SetDefault("DB_QUERY_TIMEOUT_MS", 3000)
	v.SetDefault("REQUEST_TIMEOUT_MS", 15000)
	v.SetDefault("GEOCODE_REGION", "ap-south-1")
	v.SetDefault("GEOCODE_TIMEOUT_MS", 2000)
	v.SetDefault("GEOCODE_MIN_SCORE", 0.5)
	v.SetDefault("QUALITY_THRESHOLD", 0.3)
	v.SetDefault("MIN_RESULTS", 3)
	v.SetDefault("MAX_RADIUS_KM", 20)
	v.SetDefault("AI_CLASSIFIER_ENABLED", false)
	v.SetDefault("AI_CLASSIFIER_REGION", "ap-south-1")
	v.SetDefault("AI_CLASSIFIER_TIMEOUT_MS", 8000)
	v.SetDefault("AI_STAGE1_MODEL", "anthropic.claude-3-haiku-20240307-v1:0")
	v.SetDefault("AI_STAGE2_MODEL", "anthropic.claude-3-sonnet-20240229-v1:0")
	v.SetDefault("STAGE_CACHE_TTL_S", 600)
	v.SetDefault("CACHE_TTL_S", 86400)
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("ALLOWED_ORIGIN")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("DB_ACQUIRE_TIMEOUT_MS")
	v.BindEnv("DB_QUERY_TIMEOUT_MS")
	v.BindEnv("REQUEST_TIMEOUT_MS")
	v.BindEnv("GEOCODE_REGION")
	v.BindEnv("GEOCODE_INDEX_NAME")
	v.BindEnv("GEOCODE_API_KEY")
	v.BindEnv("GEOCODE_TIMEOUT_MS")
	v.BindEnv("GEOCODE_MIN_SCORE")
	v.BindEnv("QUALITY_THRESHOLD")
	v.BindEnv("MIN_RESULTS")
	v.BindEnv("MAX_RADIUS_KM")
	v.BindEnv("AI_CLASSIFIER_ENABLED")
	v.BindEnv("AI_CLASSIFIER_REGION")
	v.BindEnv("AI_CLASSIFIER_TIMEOUT_MS")
	v.BindEnv("AI_STAGE1_MODEL")
	v.BindEnv("AI_STAGE2_MODEL")
	v.BindEnv("STAGE_CACHE_SECRET")
	v.BindEnv("STAGE_CACHE_TTL_S")
	v.BindEnv("CACHE_TTL_S")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// GeocodeEnabled reports whether the external geocoder is configured.
// Without a place index name the resolver goes straight to the local
// centroid strategies.
func (c *Config) GeocodeEnabled() bool {
	return c.GeocodeIndexName != ""
}

func (c *Config) DBAcquireTimeout() time.Duration {
	return time.Duration(c.DBAcquireMs) * time.Millisecond
}

func (c *Config) DBQueryTimeout() time.Duration {
	return time.Duration(c.DBQueryMs) * time.Millisecond
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}

func (c *Config) GeocodeTimeout() time.Duration {
	return time.Duration(c.GeocodeTimeoutMs) * time.Millisecond
}

func (c *Config) AITimeout() time.Duration {
	return time.Duration(c.AITimeoutMs) * time.Millisecond
}

func (c *Config) StageCacheTTL() time.Duration {
	return time.Duration(c.StageCacheTTLSecs) * time.Second
}

func (c *Config) PincodeCacheTTL() time.Duration {
	return time.Duration(c.PincodeCacheTTLS) * time.Second
}

// Validate checks option ranges that would otherwise fail at request time.
func (c *Config) Validate() error {
	if c.QualityThreshold < 0 || c.QualityThreshold > 1 {
		return fmt.Errorf("QUALITY_THRESHOLD must be in [0,1], got %f", c.QualityThreshold)
	}
	if c.MaxRadiusKm <= 0 {
		return fmt.Errorf("MAX_RADIUS_KM must be positive, got %f", c.MaxRadiusKm)
	}
	if c.MinResults < 1 {
		return fmt.Errorf("MIN_RESULTS must be at least 1, got %d", c.MinResults)
	}
	if c.GeocodeMinScore < 0 || c.GeocodeMinScore > 1 {
		return fmt.Errorf("GEOCODE_MIN_SCORE must be in [0,1], got %f", c.GeocodeMinScore)
	}
	if c.AIEnabled && c.AIRegion == "" {
		return fmt.Errorf("AI_CLASSIFIER_REGION is required when AI_CLASSIFIER_ENABLED is true")
	}
	return nil
}
