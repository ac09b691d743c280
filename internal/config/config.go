// Package config loads the hirecall YAML configuration. Values may embed
// ${ENV_VAR} references, and credentials fall back to the conventional
// environment variables when left empty.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the main configuration structure for hirecall.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Twilio  TwilioConfig  `yaml:"twilio"`
	Speech  SpeechConfig  `yaml:"speech"`
	Places  PlacesConfig  `yaml:"places"`
	Call    CallConfig    `yaml:"call"`
	Staging StagingConfig `yaml:"staging"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the webhook HTTP server.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// PublicURL is the externally reachable base URL Twilio can deliver
	// webhooks to, e.g. an ngrok or load balancer address.
	PublicURL string `yaml:"public_url"`
}

// TwilioConfig configures the telephony provider.
type TwilioConfig struct {
	AccountSID  string `yaml:"account_sid"`
	AuthToken   string `yaml:"auth_token"`
	PhoneNumber string `yaml:"phone_number"`
	Voice       string `yaml:"voice"`

	RingTimeout   int `yaml:"ring_timeout_seconds"`
	CallTimeLimit int `yaml:"call_time_limit_seconds"`
}

// SpeechConfig configures the OpenAI-compatible speech and language
// providers. Per-service timeouts are generous on purpose: a slow real
// reply degrades the call less than a premature fallback.
type SpeechConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`

	DialogueModel      string `yaml:"dialogue_model"`
	ClassifierModel    string `yaml:"classifier_model"`
	TranscriptionModel string `yaml:"transcription_model"`
	SynthesisModel     string `yaml:"synthesis_model"`

	Voice          string        `yaml:"voice"`
	ResponseFormat string        `yaml:"response_format"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// PlacesConfig configures business discovery.
type PlacesConfig struct {
	APIKey string `yaml:"api_key"`
}

// CallConfig configures the conversation engine.
type CallConfig struct {
	// MaxTurns caps UNCERTAIN follow-ups; zero disables the cap.
	MaxTurns int `yaml:"max_turns"`

	GatherTimeout time.Duration `yaml:"gather_timeout"`
}

// StagingConfig configures the staged-audio store.
type StagingConfig struct {
	Dir string `yaml:"dir"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a configuration with sensible defaults; credentials come
// from the environment.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Twilio: TwilioConfig{
			Voice:         "alice",
			RingTimeout:   30,
			CallTimeLimit: 300,
		},
		Speech: SpeechConfig{
			DialogueModel:      "gpt-4o-mini",
			ClassifierModel:    "gpt-4o-mini",
			TranscriptionModel: "gpt-4o-audio-preview",
			SynthesisModel:     "tts-1",
			Voice:              "alloy",
			ResponseFormat:     "pcm",
			RequestTimeout:     60 * time.Second,
		},
		Call: CallConfig{
			MaxTurns:      5,
			GatherTimeout: 6 * time.Second,
		},
		Staging: StagingConfig{
			Dir: "audio",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a YAML configuration file, expanding ${ENV_VAR} references.
// A missing path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		cfg.applyEnv()
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv fills empty credentials from the conventional environment
// variables.
func (c *Config) applyEnv() {
	if c.Twilio.AccountSID == "" {
		c.Twilio.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if c.Twilio.AuthToken == "" {
		c.Twilio.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if c.Twilio.PhoneNumber == "" {
		c.Twilio.PhoneNumber = os.Getenv("TWILIO_PHONE_NUMBER")
	}
	if c.Speech.APIKey == "" {
		c.Speech.APIKey = os.Getenv("SPEECH_API_KEY")
	}
	if c.Places.APIKey == "" {
		c.Places.APIKey = os.Getenv("PLACES_API_KEY")
	}
}

// Validate checks structural invariants. Credentials are checked by the
// components that need them, so partial deployments (for example discovery
// only) remain possible.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Call.MaxTurns < 0 {
		return fmt.Errorf("call.max_turns must not be negative")
	}
	if c.Call.GatherTimeout <= 0 {
		return fmt.Errorf("call.gather_timeout must be positive")
	}
	switch c.Speech.ResponseFormat {
	case "pcm", "mp3":
	default:
		return fmt.Errorf("speech.response_format must be pcm or mp3, got %q", c.Speech.ResponseFormat)
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
