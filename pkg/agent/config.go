// Package agent orchestrates a Prepzo coaching session: it wires the
// conversation store, tool registry, turn interceptor, and room
// transport into a running voice session.
package agent

import (
	"os"
)

// Default configuration values.
const (
	DefaultChatModel     = "gpt-4o-mini"
	DefaultDocumentModel = "gemini-2.0-flash"
	DefaultResumeDir     = "/tmp/prepzo-resumes"
	DefaultHTTPAddr      = ":8181"
)

// Config holds all configuration for the Prepzo application.
// Flag parsing is done in cmd/prepzo/main.go; this struct is data only.
type Config struct {
	// Debug enables verbose debug logging.
	Debug bool

	// Room connection.
	RoomURL   string
	RoomName  string
	RoomToken string

	// Model configuration.
	ChatModel string
	TTSVoice  string

	// Resume upload directory.
	ResumeDir string

	// KBDataDir is the directory for the local vector index, used when
	// no hosted index is configured.
	KBDataDir string

	// HTTPAddr is the bind address for the HTTP surface.
	HTTPAddr string

	// TokenSecret signs room access tokens issued over HTTP.
	TokenSecret string

	// API keys (typically from environment variables).
	OpenAIKey     string
	PerplexityKey string
	GeminiKey     string
	PineconeKey   string

	// PineconeHost is the index endpoint for knowledge-base search.
	PineconeHost string

	// DatabaseURL is the Postgres connection string for conversation
	// persistence. Empty falls back to in-memory storage.
	DatabaseURL string
}

// DefaultConfig returns sensible defaults for Prepzo configuration.
func DefaultConfig() Config {
	return Config{
		ChatModel: DefaultChatModel,
		ResumeDir: DefaultResumeDir,
		HTTPAddr:  DefaultHTTPAddr,
	}
}

// LoadEnvConfig loads configuration values from environment variables.
// Call this after flag parsing to apply environment overrides.
func (c *Config) LoadEnvConfig() {
	if url := os.Getenv("ROOM_URL"); url != "" {
		c.RoomURL = url
	}
	if name := os.Getenv("ROOM_NAME"); name != "" {
		c.RoomName = name
	}
	if token := os.Getenv("ROOM_TOKEN"); token != "" {
		c.RoomToken = token
	}
	c.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	c.PerplexityKey = os.Getenv("PERPLEXITY_API_KEY")
	c.GeminiKey = os.Getenv("GEMINI_API_KEY")
	c.PineconeKey = os.Getenv("PINECONE_API_KEY")
	c.PineconeHost = os.Getenv("PINECONE_HOST")
	c.DatabaseURL = os.Getenv("DATABASE_URL")
	c.TokenSecret = os.Getenv("TOKEN_SECRET")

	if dir := os.Getenv("RESUME_DIR"); dir != "" {
		c.ResumeDir = dir
	}
	if dir := os.Getenv("KB_DATA_DIR"); dir != "" {
		c.KBDataDir = dir
	}
	if addr := os.Getenv("HTTP_ADDR"); addr != "" {
		c.HTTPAddr = addr
	}
	if model := os.Getenv("CHAT_MODEL"); model != "" {
		c.ChatModel = model
	}
	if voice := os.Getenv("TTS_VOICE"); voice != "" {
		c.TTSVoice = voice
	}
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.OpenAIKey == "" {
		return &ConfigError{Field: "OpenAIKey", Message: "OPENAI_API_KEY environment variable is required"}
	}
	if c.RoomURL == "" {
		return &ConfigError{Field: "RoomURL", Message: "ROOM_URL environment variable is required"}
	}
	if c.RoomToken == "" {
		return &ConfigError{Field: "RoomToken", Message: "ROOM_TOKEN environment variable is required"}
	}
	if c.RoomName == "" {
		return &ConfigError{Field: "RoomName", Message: "ROOM_NAME environment variable is required"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}
