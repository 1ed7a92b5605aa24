package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig     `json:"server"`
	Database   DatabaseConfig   `json:"database"`
	Logging    LoggingConfig    `json:"logging"`
	Auth       AuthConfig       `json:"auth"`
	Assistant  AssistantConfig  `json:"assistant"`
	Knowledge  KnowledgeConfig  `json:"knowledge"`
	Guardrails GuardrailsConfig `json:"guardrails"`
	LLM        LLMConfig        `json:"llm"`
	Jobs       JobsConfig       `json:"jobs"`
}

// ServerConfig controls HTTP server
type ServerConfig struct {
	Port                   int    `json:"port"`
	BindAddress            string `json:"bind_address"`
	ShutdownTimeoutSeconds int    `json:"shutdown_timeout_seconds"`
}

// DatabaseConfig selects the persistence backend
type DatabaseConfig struct {
	Driver string `json:"driver"` // "sqlite" or "postgres"
	Path   string `json:"path"`   // sqlite file
	DSN    string `json:"dsn"`    // postgres connection string
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Level        string `json:"level"`  // "debug", "info", "warn", "error"
	Format       string `json:"format"` // "console" or "json"
	DebugEnabled bool   `json:"debug_enabled"`
	File         string `json:"file"`
	MaxSizeMB    int    `json:"max_size_mb"`
	MaxBackups   int    `json:"max_backups"`
	MaxAgeDays   int    `json:"max_age_days"`
}

// AuthConfig controls authentication behavior
type AuthConfig struct {
	SessionExpiryDays      int  `json:"session_expiry_days"`
	LockoutThreshold       int  `json:"lockout_threshold"`
	LockoutDurationMinutes int  `json:"lockout_duration_minutes"`
	AllowRegistration      bool `json:"allow_registration"`
	SeedDemoStudents       bool `json:"seed_demo_students"`
}

// AssistantConfig tunes the response orchestrator
type AssistantConfig struct {
	ThinkingDelayMS        int     `json:"thinking_delay_ms"`
	LowConfidenceThreshold float64 `json:"low_confidence_threshold"`
}

// KnowledgeConfig locates knowledge sources
type KnowledgeConfig struct {
	File         string `json:"file"`          // replaces the built-in table when set
	ImportFolder string `json:"import_folder"` // watched for entry files, empty disables
}

// GuardrailsConfig controls import safety
type GuardrailsConfig struct {
	MaxFileSizeMB     int      `json:"max_file_size_mb"`
	AllowedExtensions []string `json:"allowed_extensions"`
	MaxAnswerChars    int      `json:"max_answer_chars"`
}

// LLMConfig configures the optional draft-answer provider
type LLMConfig struct {
	Type           string `json:"type"` // "", "openai", "ollama"
	Endpoint       string `json:"endpoint"`
	APIKey         string `json:"api_key"`
	Model          string `json:"model"`
	AllowContext   bool   `json:"allow_context"` // send knowledge entries to cloud providers
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// JobsConfig controls housekeeping jobs
type JobsConfig struct {
	CleanupIntervalMinutes    int `json:"cleanup_interval_minutes"`
	FailedLoginRetentionHours int `json:"failed_login_retention_hours"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:                   8080,
			BindAddress:            "127.0.0.1",
			ShutdownTimeoutSeconds: 10,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			Path:   "mauassist.db",
		},
		Logging: LoggingConfig{
			Level:        "info",
			Format:       "console",
			DebugEnabled: true,
			File:         "debug.log",
			MaxSizeMB:    10,
			MaxBackups:   3,
			MaxAgeDays:   28,
		},
		Auth: AuthConfig{
			SessionExpiryDays:      7,
			LockoutThreshold:       5,
			LockoutDurationMinutes: 15,
			AllowRegistration:      true,
		},
		Assistant: AssistantConfig{
			ThinkingDelayMS:        0,
			LowConfidenceThreshold: 0.8,
		},
		Knowledge: KnowledgeConfig{
			ImportFolder: "knowledge-inbox",
		},
		Guardrails: GuardrailsConfig{
			MaxFileSizeMB:     2,
			AllowedExtensions: []string{".yaml", ".yml", ".json"},
			MaxAnswerChars:    4000,
		},
		LLM: LLMConfig{
			TimeoutSeconds: 60,
		},
		Jobs: JobsConfig{
			CleanupIntervalMinutes:    60,
			FailedLoginRetentionHours: 24,
		},
	}
}

// Load reads configuration from file, .env and environment
func Load(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Fields missing from the file keep their defaults
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else {
		if err := cfg.Save(path); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	if err := loadDotEnv(filepath.Join(filepath.Dir(path), ".env")); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadDotEnv fills unset environment variables from a .env file next to the config
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// applyEnvOverrides applies environment variable overrides
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("MAUASSIST_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("MAUASSIST_SERVER_BIND_ADDRESS"); v != "" {
		c.Server.BindAddress = v
	}
	if v := os.Getenv("MAUASSIST_DB_DRIVER"); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv("MAUASSIST_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("MAUASSIST_DATABASE_URL"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("MAUASSIST_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("MAUASSIST_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("MAUASSIST_DEBUG_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Logging.DebugEnabled = b
		}
	}
	if v := os.Getenv("MAUASSIST_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
	if v := os.Getenv("MAUASSIST_KNOWLEDGE_FILE"); v != "" {
		c.Knowledge.File = v
	}
	if v := os.Getenv("MAUASSIST_IMPORT_FOLDER"); v != "" {
		c.Knowledge.ImportFolder = v
	}
	if v := os.Getenv("MAUASSIST_THINKING_DELAY_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			c.Assistant.ThinkingDelayMS = ms
		}
	}
	if v := os.Getenv("MAUASSIST_LLM_TYPE"); v != "" {
		c.LLM.Type = v
	}
	if v := os.Getenv("MAUASSIST_LLM_ENDPOINT"); v != "" {
		c.LLM.Endpoint = v
	}
	if v := os.Getenv("MAUASSIST_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("MAUASSIST_OPENAI_KEY"); v != "" {
		c.LLM.APIKey = v
	}
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if c.Server.Port < 1024 && os.Geteuid() != 0 {
		return fmt.Errorf("privileged port %d requires root", c.Server.Port)
	}
	if c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database path is required for sqlite")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database dsn is required for postgres")
		}
	default:
		return fmt.Errorf("invalid database driver: %s (must be sqlite or postgres)", c.Database.Driver)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}
	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be console or json)", c.Logging.Format)
	}

	if c.Auth.SessionExpiryDays <= 0 {
		return fmt.Errorf("session_expiry_days must be positive")
	}
	if c.Auth.LockoutThreshold <= 0 || c.Auth.LockoutDurationMinutes <= 0 {
		return fmt.Errorf("lockout threshold and duration must be positive")
	}

	if c.Assistant.ThinkingDelayMS < 0 {
		return fmt.Errorf("thinking_delay_ms must not be negative")
	}
	if c.Assistant.LowConfidenceThreshold < 0 || c.Assistant.LowConfidenceThreshold > 1 {
		return fmt.Errorf("low_confidence_threshold must be between 0 and 1, got %v", c.Assistant.LowConfidenceThreshold)
	}

	for _, ext := range c.Guardrails.AllowedExtensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("allowed extension %q must start with a dot", ext)
		}
	}

	switch c.LLM.Type {
	case "":
	case "openai":
		if c.LLM.APIKey == "" {
			return fmt.Errorf("OpenAI API key is required")
		}
	case "ollama":
		if c.LLM.Endpoint == "" {
			return fmt.Errorf("Ollama endpoint is required")
		}
	default:
		return fmt.Errorf("unknown llm type: %s (must be openai or ollama)", c.LLM.Type)
	}

	if c.Jobs.CleanupIntervalMinutes <= 0 {
		return fmt.Errorf("cleanup_interval_minutes must be positive")
	}

	return nil
}
