package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds runtime settings for the server.
type Config struct {
	ServerAddr          string `toml:"server_addr"`
	StorageDir          string `toml:"storage_dir"`
	PublicDir           string `toml:"public_dir"`
	MaxUploadBytes      int64  `toml:"max_upload_bytes"`
	Workers             int    `toml:"workers"`
	StageTimeoutMinutes int    `toml:"stage_timeout_minutes"`
	RetentionMinutes    int    `toml:"retention_minutes"`
}

func defaults() Config {
	return Config{
		ServerAddr:          ":8080",
		StorageDir:          filepath.Join(os.TempDir(), "video-converter"),
		PublicDir:           "./public",
		MaxUploadBytes:      5 << 30,
		Workers:             4,
		StageTimeoutMinutes: 240,
		RetentionMinutes:    60,
	}
}

// Load reads the optional TOML config file named by VIDCONV_CONFIG, then
// applies environment overrides on top of the defaults.
func Load() (Config, error) {
	cfg := defaults()

	if path := strings.TrimSpace(os.Getenv("VIDCONV_CONFIG")); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg.ServerAddr = getEnv("SERVER_ADDR", cfg.ServerAddr)
	cfg.StorageDir = getEnv("STORAGE_DIR", cfg.StorageDir)
	cfg.PublicDir = getEnv("PUBLIC_DIR", cfg.PublicDir)
	cfg.MaxUploadBytes = getEnvInt64("MAX_UPLOAD_BYTES", cfg.MaxUploadBytes)
	cfg.Workers = getEnvInt("WORKERS", cfg.Workers)
	cfg.StageTimeoutMinutes = getEnvNonNegInt("STAGE_TIMEOUT_MINUTES", cfg.StageTimeoutMinutes)
	cfg.RetentionMinutes = getEnvInt("RETENTION_MINUTES", cfg.RetentionMinutes)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// StageTimeout returns the per-stage deadline, zero when disabled.
func (c Config) StageTimeout() time.Duration {
	return time.Duration(c.StageTimeoutMinutes) * time.Minute
}

// RetentionDelay returns how long finished artifacts are kept.
func (c Config) RetentionDelay() time.Duration {
	return time.Duration(c.RetentionMinutes) * time.Minute
}

func (c Config) validate() error {
	if strings.TrimSpace(c.ServerAddr) == "" {
		return errors.New("server_addr must not be empty")
	}
	if strings.TrimSpace(c.StorageDir) == "" {
		return errors.New("storage_dir must not be empty")
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("max_upload_bytes must be positive")
	}
	if c.Workers <= 0 {
		return errors.New("workers must be positive")
	}
	if c.StageTimeoutMinutes < 0 {
		return errors.New("stage_timeout_minutes must not be negative")
	}
	if c.RetentionMinutes <= 0 {
		return errors.New("retention_minutes must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	var out int
	if _, err := fmt.Sscanf(value, "%d", &out); err != nil || out <= 0 {
		return fallback
	}
	return out
}

// getEnvNonNegInt accepts zero, for keys where zero means disabled.
func getEnvNonNegInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	var out int
	if _, err := fmt.Sscanf(value, "%d", &out); err != nil || out < 0 {
		return fallback
	}
	return out
}

func getEnvInt64(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	var out int64
	if _, err := fmt.Sscanf(value, "%d", &out); err != nil || out <= 0 {
		return fallback
	}
	return out
}
