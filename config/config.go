package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"chat-assistant/conversation"
)

// Config holds every runtime setting of the chat assistant, sourced from the
// environment (and an optional .env file for local runs).
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"development"`
	Port        string `envconfig:"PORT" default:"8000"`

	// Transcript storage
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	TranscriptDir string `envconfig:"TRANSCRIPT_DIR" default:"data/transcripts"`

	// LLM provider. The API key is never configured here; callers supply it per request.
	OpenAIModel   string `envconfig:"OPENAI_MODEL" default:"gpt-3.5-turbo"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL"`

	BufferScope     conversation.Scope `envconfig:"BUFFER_SCOPE" default:"session"`
	ShutdownTimeout time.Duration      `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// Load reads .env (if present) and the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("process environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values envconfig cannot express.
func (c *Config) Validate() error {
	scope, err := conversation.ParseScope(string(c.BufferScope))
	if err != nil {
		return fmt.Errorf("BUFFER_SCOPE: %w", err)
	}
	c.BufferScope = scope

	port, err := strconv.Atoi(c.Port)
	if err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("PORT must be a valid TCP port, got %q", c.Port)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive")
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return ":" + c.Port
}
