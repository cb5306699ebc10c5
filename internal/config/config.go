package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/hygrolog/hygrolog/pkg/logging"
	"github.com/hygrolog/hygrolog/pkg/ocr"
	"github.com/hygrolog/hygrolog/pkg/reading"
)

// ServerConfig holds the HTTP surface settings.
type ServerConfig struct {
	Addr         string `mapstructure:"addr"`
	MediaDir     string `mapstructure:"media_dir"`
	MediaBaseURL string `mapstructure:"media_base_url"`
}

// DatabaseConfig selects the record store backend.
type DatabaseConfig struct {
	// URL is a Postgres DSN; empty selects the in-memory store.
	URL string `mapstructure:"url"`
}

// VisionConfig configures the secondary recognizer.
type VisionConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Provider       string `mapstructure:"provider"` // openai, ollama
	Model          string `mapstructure:"model"`
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// OCRConfig exposes the pipeline tuning knobs worth overriding per site.
type OCRConfig struct {
	Language  string  `mapstructure:"language"`
	TempMin   float64 `mapstructure:"temp_min"`
	TempMax   float64 `mapstructure:"temp_max"`
	HumiMin   float64 `mapstructure:"humi_min"`
	HumiMax   float64 `mapstructure:"humi_max"`
	CacheSize int     `mapstructure:"cache_size"`
}

// UploadConfig holds the object-store credential.
type UploadConfig struct {
	Token string `mapstructure:"token"`
}

// Config is the whole service configuration.
type Config struct {
	Server   ServerConfig      `mapstructure:"server"`
	Database DatabaseConfig    `mapstructure:"database"`
	Vision   VisionConfig      `mapstructure:"vision"`
	OCR      OCRConfig         `mapstructure:"ocr"`
	Upload   UploadConfig      `mapstructure:"upload"`
	Log      logging.LogConfig `mapstructure:"log"`
}

// Load reads config.yaml from the working directory (optional) and the
// HYGROLOG_* environment, with defaults suitable for local use.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("hygrolog")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.media_dir", "./data/media")
	v.SetDefault("server.media_base_url", "/media")
	v.SetDefault("vision.enabled", false)
	v.SetDefault("vision.provider", "openai")
	v.SetDefault("vision.model", "gpt-4o-mini")
	v.SetDefault("vision.timeout_seconds", 10)
	v.SetDefault("ocr.language", "eng")
	v.SetDefault("ocr.temp_min", -10)
	v.SetDefault("ocr.temp_max", 50)
	v.SetDefault("ocr.humi_min", 0)
	v.SetDefault("ocr.humi_max", 100)
	v.SetDefault("ocr.cache_size", 256)
	v.SetDefault("upload.token", "local")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.console", true)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// PipelineConfig converts the service-level tuning into the pipeline's
// config, keeping all other defaults.
func (c *Config) PipelineConfig() ocr.Config {
	p := ocr.DefaultConfig()
	p.TemperatureRange = reading.Range{Min: c.OCR.TempMin, Max: c.OCR.TempMax}
	p.HumidityRange = reading.Range{Min: c.OCR.HumiMin, Max: c.OCR.HumiMax}
	if c.Vision.TimeoutSeconds > 0 {
		p.SecondaryTimeout = time.Duration(c.Vision.TimeoutSeconds) * time.Second
	}
	return p
}
