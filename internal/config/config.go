// Package config provides configuration types and defaults for studyhall.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"studyhall/internal/log"
	"studyhall/internal/trace"
)

// Config holds all configuration options for studyhall.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Student StudentConfig `mapstructure:"student"`
	Chat    ChatConfig    `mapstructure:"chat"`
	Tracing trace.Config  `mapstructure:"tracing"`
	Debug   bool          `mapstructure:"debug"`
}

// ServerConfig holds the tutoring backend connection settings.
type ServerConfig struct {
	// BaseURL is the root of the tutoring chat API.
	BaseURL string `mapstructure:"base_url"`

	// Token is the bearer token sent with every request.
	Token string `mapstructure:"token"`

	// TimeoutSeconds bounds each API round trip.
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// Timeout returns the per-request timeout as a duration.
func (s ServerConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// StudentConfig identifies the student and course every chat belongs to.
type StudentConfig struct {
	UserID     string `mapstructure:"user_id"`
	CourseName string `mapstructure:"course_name"`
}

// ChatConfig holds conversation behavior settings.
type ChatConfig struct {
	// RevealDelayMs is the pause between revealed tokens of an assistant
	// answer, in milliseconds.
	RevealDelayMs int `mapstructure:"reveal_delay_ms"`

	// FollowUpMarker is the text the backend embeds in answers that offer
	// a follow-up question.
	FollowUpMarker string `mapstructure:"follow_up_marker"`
}

// RevealDelay returns the inter-token reveal pause as a duration.
func (c ChatConfig) RevealDelay() time.Duration {
	return time.Duration(c.RevealDelayMs) * time.Millisecond
}

// Defaults returns the default configuration.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			BaseURL:        "http://localhost:8080",
			TimeoutSeconds: 30,
		},
		Student: StudentConfig{
			CourseName: "general",
		},
		Chat: ChatConfig{
			RevealDelayMs: 40,
		},
		Tracing: trace.DefaultConfig(),
	}
}

// Validate checks the fields the session cannot run without.
func (c Config) Validate() error {
	if c.Server.BaseURL == "" {
		return fmt.Errorf("server.base_url is required")
	}
	if _, err := url.ParseRequestURI(c.Server.BaseURL); err != nil {
		return fmt.Errorf("server.base_url %q is not a valid URL: %w", c.Server.BaseURL, err)
	}
	if c.Student.UserID == "" {
		return fmt.Errorf("student.user_id is required")
	}
	if c.Chat.RevealDelayMs < 0 {
		return fmt.Errorf("chat.reveal_delay_ms must not be negative")
	}
	return nil
}

// DefaultTracesFilePath returns the default path for trace file export.
// Returns ~/.config/studyhall/traces/traces.jsonl or empty string if home
// dir unavailable.
func DefaultTracesFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "studyhall", "traces", "traces.jsonl")
}

// DefaultConfigTemplate returns the default config file content with
// comments explaining every option.
func DefaultConfigTemplate() string {
	return `# studyhall configuration

# Tutoring backend connection
server:
  base_url: http://localhost:8080
  # token: ""            # bearer token, if the backend requires one
  timeout_seconds: 30

# Who you are and what you are studying
student:
  user_id: ""            # required
  course_name: general

# Conversation behavior
chat:
  reveal_delay_ms: 40    # pause between revealed words of an answer
  # follow_up_marker: "[follow-up]"

# Verbose logging to studyhall-debug.log
# debug: true

# Distributed tracing
# tracing:
#   enabled: false                 # Enable/disable tracing (default: false)
#   exporter: file                 # Export backend: none, file, stdout, otlp
#   file_path: ~/.config/studyhall/traces/traces.jsonl
#   otlp_endpoint: localhost:4317  # OTLP collector endpoint (for otlp exporter)
#   sample_rate: 1.0               # Trace sampling rate 0.0-1.0
`
}

// WriteDefaultConfig creates a config file at the given path with default
// settings and comments. Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
