// Package config loads service configuration from an optional YAML file and
// environment variable overrides. Environment always wins over the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all toonslate configuration.
type Config struct {
	// HTTP server
	ListenAddr  string   `yaml:"listen_addr"`
	BaseURL     string   `yaml:"base_url"`
	CORSOrigins []string `yaml:"cors_origins"`

	// Redis (keyed store + task queue)
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	// Blob storage
	StorageDir string `yaml:"storage_dir"`

	// Quota
	IPHashSecret string `yaml:"ip_hash_secret"`
	WeeklyImages int    `yaml:"weekly_images"`
	MaxBatchSize int    `yaml:"max_batch_size"`

	// Record lifetime in the keyed store.
	DataTTL time.Duration `yaml:"data_ttl"`

	// Worker
	SoftTimeLimit time.Duration `yaml:"soft_time_limit"`
	HardTimeLimit time.Duration `yaml:"hard_time_limit"`

	Detection   DetectionConfig   `yaml:"detection"`
	Translation TranslationConfig `yaml:"translation"`
	Inpainting  InpaintingConfig  `yaml:"inpainting"`

	Logging LoggingConfig `yaml:"logging"`
}

// DetectionConfig configures the bubble/text detection backend.
type DetectionConfig struct {
	Provider string        `yaml:"provider"` // space
	SpaceURL string        `yaml:"space_url"`
	Timeout  time.Duration `yaml:"timeout"`
}

// TranslationConfig configures the translation backend.
type TranslationConfig struct {
	Provider string        `yaml:"provider"` // gemini
	APIKey   string        `yaml:"api_key"`
	Model    string        `yaml:"model"`
	Timeout  time.Duration `yaml:"timeout"`
}

// InpaintingConfig configures the neural background restorer.
type InpaintingConfig struct {
	Provider string        `yaml:"provider"` // space
	SpaceURL string        `yaml:"space_url"`
	Timeout  time.Duration `yaml:"timeout"`
}

// LoggingConfig selects logger verbosity and encoder.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the baseline configuration before file or env overrides.
func Default() *Config {
	return &Config{
		ListenAddr:    ":8000",
		BaseURL:       "http://localhost:8000",
		CORSOrigins:   []string{"http://localhost:3000"},
		RedisAddr:     "localhost:6379",
		StorageDir:    "uploads",
		WeeklyImages:  20,
		MaxBatchSize:  10,
		DataTTL:       2 * time.Hour,
		SoftTimeLimit: 300 * time.Second,
		HardTimeLimit: 360 * time.Second,
		Detection: DetectionConfig{
			Provider: "space",
			Timeout:  120 * time.Second,
		},
		Translation: TranslationConfig{
			Provider: "gemini",
			Model:    "gemini-2.0-flash",
			Timeout:  120 * time.Second,
		},
		Inpainting: InpaintingConfig{
			Provider: "space",
			Timeout:  120 * time.Second,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads path (if non-empty and present) on top of the defaults and then
// applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Config file is optional.
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	setString(&c.ListenAddr, "LISTEN_ADDR")
	setString(&c.BaseURL, "BASE_URL")
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.CORSOrigins = splitAndTrim(v)
	}

	setString(&c.RedisAddr, "REDIS_ADDR")
	setString(&c.RedisPassword, "REDIS_PASSWORD")
	setInt(&c.RedisDB, "REDIS_DB")

	setString(&c.StorageDir, "STORAGE_DIR")

	setString(&c.IPHashSecret, "IP_HASH_SECRET")
	setInt(&c.WeeklyImages, "WEEKLY_IMAGES")
	setInt(&c.MaxBatchSize, "MAX_BATCH_SIZE")
	setDuration(&c.DataTTL, "DATA_TTL")

	setDuration(&c.SoftTimeLimit, "SOFT_TIME_LIMIT")
	setDuration(&c.HardTimeLimit, "HARD_TIME_LIMIT")

	setString(&c.Detection.Provider, "DETECTION_PROVIDER")
	setString(&c.Detection.SpaceURL, "DETECTION_SPACE_URL")
	setDuration(&c.Detection.Timeout, "DETECTION_TIMEOUT")

	setString(&c.Translation.Provider, "TRANSLATION_PROVIDER")
	setString(&c.Translation.APIKey, "GEMINI_API_KEY")
	setString(&c.Translation.Model, "GEMINI_MODEL")
	setDuration(&c.Translation.Timeout, "TRANSLATION_TIMEOUT")

	setString(&c.Inpainting.Provider, "INPAINTING_PROVIDER")
	setString(&c.Inpainting.SpaceURL, "INPAINTING_SPACE_URL")
	setDuration(&c.Inpainting.Timeout, "INPAINTING_TIMEOUT")

	setString(&c.Logging.Level, "LOG_LEVEL")
	if v := os.Getenv("LOG_DEVELOPMENT"); v != "" {
		c.Logging.Development = v == "1" || strings.EqualFold(v, "true")
	}
}

func (c *Config) validate() error {
	if c.WeeklyImages <= 0 {
		return fmt.Errorf("weekly_images must be positive, got %d", c.WeeklyImages)
	}
	if c.MaxBatchSize <= 0 {
		return fmt.Errorf("max_batch_size must be positive, got %d", c.MaxBatchSize)
	}
	if c.DataTTL <= 0 {
		return fmt.Errorf("data_ttl must be positive, got %s", c.DataTTL)
	}
	if c.HardTimeLimit <= c.SoftTimeLimit {
		return fmt.Errorf("hard_time_limit (%s) must exceed soft_time_limit (%s)",
			c.HardTimeLimit, c.SoftTimeLimit)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
