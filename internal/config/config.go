package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "FLEETDASH"

// Config is the parsed contents of configs/config.yml plus environment overrides.
type Config struct {
	Port      string          `mapstructure:"port"`
	Log       LogConfig       `mapstructure:"log"`
	DB        DBConfig        `mapstructure:"db"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Activity  ActivityConfig  `mapstructure:"activity"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	// Format is console or json.
	Format string `mapstructure:"format"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

// AnalyticsConfig points at the backend that produces heatmaps, health
// scores, forecasts and failure clusters.
type AnalyticsConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type DashboardConfig struct {
	AutoSelect bool          `mapstructure:"auto_select"`
	FitDelay   time.Duration `mapstructure:"fit_delay"`
}

type AuthConfig struct {
	SigningKey string        `mapstructure:"signing_key"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
}

type ActivityConfig struct {
	Buffer int `mapstructure:"buffer"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("db.path", "dashboard.db")
	v.SetDefault("analytics.base_url", "http://localhost:5000")
	v.SetDefault("analytics.timeout", 15*time.Second)
	v.SetDefault("dashboard.auto_select", true)
	v.SetDefault("dashboard.fit_delay", 300*time.Millisecond)
	v.SetDefault("auth.signing_key", "")
	v.SetDefault("auth.token_ttl", time.Hour)
	v.SetDefault("activity.buffer", 256)
}

// Load reads <dir>/config.yml. A missing file is not an error: defaults and
// FLEETDASH_* environment variables still apply. A .env file in the working
// directory is loaded first when present.
func Load(dir string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AddConfigPath(dir)
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the service cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Analytics.BaseURL) == "" {
		return errors.New("analytics.base_url must be set")
	}
	if c.Analytics.Timeout <= 0 {
		return fmt.Errorf("analytics.timeout must be positive, got %s", c.Analytics.Timeout)
	}
	if c.Dashboard.FitDelay < 0 {
		return fmt.Errorf("dashboard.fit_delay must not be negative, got %s", c.Dashboard.FitDelay)
	}
	if c.Auth.SigningKey == "" {
		return errors.New("auth.signing_key must be set (FLEETDASH_AUTH_SIGNING_KEY)")
	}
	if c.Activity.Buffer <= 0 {
		c.Activity.Buffer = 1
	}
	return nil
}
