package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cesargomez89/segmentcraft/internal/constants"
	"github.com/cesargomez89/segmentcraft/internal/music"
)

// Config holds all application configuration
type Config struct {
	Port        string
	DBPath      string
	ContentPath string
	ShipDir     string
	ShipLayout  string
	LogLevel    string
	LogFormat   string

	WorkCycle           time.Duration
	MaxConcurrentChains int

	CraftAheadSeconds         int
	BufferAheadSeconds        int
	BufferBeforeSeconds       int
	PersistenceWindowSeconds  int
	ChainStartInFutureSeconds int
	PreviewLengthMaxHours     int
	PreviewShipKeyLength      int

	TuningRootNote    string
	TuningRootPitchHz float64
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", constants.DefaultPort),
		DBPath:      getEnv("DB_PATH", constants.DefaultDBPath),
		ContentPath: getEnv("CONTENT_PATH", constants.DefaultContentPath),
		ShipDir:     getEnv("SHIP_DIR", ""),
		ShipLayout:  getEnv("SHIP_LAYOUT", constants.DefaultShipLayout),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "text"),

		WorkCycle:           getEnvDuration("WORK_CYCLE", constants.DefaultWorkCycle),
		MaxConcurrentChains: getEnvInt("MAX_CONCURRENT_CHAINS", constants.DefaultMaxConcurrentChains),

		CraftAheadSeconds:         getEnvInt("CRAFT_AHEAD_SECONDS", constants.DefaultCraftAheadSeconds),
		BufferAheadSeconds:        getEnvInt("BUFFER_AHEAD_SECONDS", constants.DefaultBufferAheadSeconds),
		BufferBeforeSeconds:       getEnvInt("BUFFER_BEFORE_SECONDS", constants.DefaultBufferBeforeSeconds),
		PersistenceWindowSeconds:  getEnvInt("PERSISTENCE_WINDOW_SECONDS", constants.DefaultPersistenceWindowSeconds),
		ChainStartInFutureSeconds: getEnvInt("CHAIN_START_IN_FUTURE_SECONDS", constants.DefaultChainStartInFutureSeconds),
		PreviewLengthMaxHours:     getEnvInt("PREVIEW_LENGTH_MAX_HOURS", constants.DefaultPreviewLengthMaxHours),
		PreviewShipKeyLength:      getEnvInt("PREVIEW_SHIP_KEY_LENGTH", constants.DefaultPreviewShipKeyLength),

		TuningRootNote:    getEnv("TUNING_ROOT_NOTE", constants.DefaultTuningRootNote),
		TuningRootPitchHz: getEnvFloat("TUNING_ROOT_PITCH_HZ", constants.DefaultTuningRootPitchHz),
	}
}

// Validate validates the configuration and returns detailed errors
func (c *Config) Validate() error {
	var errors []string

	// Validate Port
	if c.Port == "" {
		errors = append(errors, "PORT cannot be empty")
	} else {
		port, err := strconv.Atoi(c.Port)
		if err != nil {
			errors = append(errors, fmt.Sprintf("PORT must be a valid number, got: %s", c.Port))
		} else if port < 1 || port > 65535 {
			errors = append(errors, fmt.Sprintf("PORT must be between 1 and 65535, got: %d", port))
		}
	}

	if c.DBPath == "" {
		errors = append(errors, "DB_PATH cannot be empty")
	}

	if c.ContentPath == "" {
		errors = append(errors, "CONTENT_PATH cannot be empty")
	}

	if c.ShipDir != "" && c.ShipLayout == "" {
		errors = append(errors, "SHIP_LAYOUT cannot be empty when SHIP_DIR is set")
	}

	// Validate LogLevel
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: debug, info, warn, error, got: %s", c.LogLevel))
	}

	// Validate LogFormat
	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validLogFormats[c.LogFormat] {
		errors = append(errors, fmt.Sprintf("LOG_FORMAT must be one of: text, json, got: %s", c.LogFormat))
	}

	if c.WorkCycle <= 0 {
		errors = append(errors, fmt.Sprintf("WORK_CYCLE must be positive, got: %s", c.WorkCycle))
	}

	if c.MaxConcurrentChains < 1 {
		errors = append(errors, fmt.Sprintf("MAX_CONCURRENT_CHAINS must be at least 1, got: %d", c.MaxConcurrentChains))
	}

	positive := []struct {
		name  string
		value int
	}{
		{"CRAFT_AHEAD_SECONDS", c.CraftAheadSeconds},
		{"BUFFER_AHEAD_SECONDS", c.BufferAheadSeconds},
		{"PERSISTENCE_WINDOW_SECONDS", c.PersistenceWindowSeconds},
		{"PREVIEW_LENGTH_MAX_HOURS", c.PreviewLengthMaxHours},
		{"PREVIEW_SHIP_KEY_LENGTH", c.PreviewShipKeyLength},
	}
	for _, p := range positive {
		if p.value <= 0 {
			errors = append(errors, fmt.Sprintf("%s must be positive, got: %d", p.name, p.value))
		}
	}

	if c.BufferBeforeSeconds < 0 {
		errors = append(errors, fmt.Sprintf("BUFFER_BEFORE_SECONDS cannot be negative, got: %d", c.BufferBeforeSeconds))
	}

	if c.ChainStartInFutureSeconds < 0 {
		errors = append(errors, fmt.Sprintf("CHAIN_START_IN_FUTURE_SECONDS cannot be negative, got: %d", c.ChainStartInFutureSeconds))
	}

	if _, err := c.Tuning(); err != nil {
		errors = append(errors, fmt.Sprintf("TUNING_ROOT_NOTE and TUNING_ROOT_PITCH_HZ are invalid: %v", err))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// CraftAhead is how far past now segments are crafted
func (c *Config) CraftAhead() time.Duration {
	return time.Duration(c.CraftAheadSeconds) * time.Second
}

// PersistenceWindow is how long crafted segments are retained after they end
func (c *Config) PersistenceWindow() time.Duration {
	return time.Duration(c.PersistenceWindowSeconds) * time.Second
}

// Tuning anchors note frequencies at the configured root note and pitch
func (c *Config) Tuning() (*music.Tuning, error) {
	return music.NewTuning(music.NoteOf(c.TuningRootNote), c.TuningRootPitchHz)
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// getEnvInt returns -1 for unparseable values so Validate reports them
func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return -1
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

// getEnvFloat returns -1 for unparseable values so Validate reports them
func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return -1
	}
	return f
}
