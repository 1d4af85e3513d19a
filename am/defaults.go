package am

import (
	"fmt"

	"github.com/spf13/viper"
)

// Default values referenced outside SetDefaults
const (
	DefaultMaxResults   = 20
	DefaultSampleRows   = 3
	DefaultDatabasePath = "samarth.db"
	DefaultTraceDir     = "llm_logs"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Datasets
	v.SetDefault("data.dir", "data")
	v.SetDefault("data.catalog", "")

	// Query bounds
	v.SetDefault("query.max_results", DefaultMaxResults)
	v.SetDefault("query.sample_rows", DefaultSampleRows)
	v.SetDefault("query.max_join_rows", 1_000_000)

	// Model selection
	v.SetDefault("model.provider", "auto")
	v.SetDefault("model.degrade_errors", true)
	v.SetDefault("model.timeout_seconds", 120)
	v.SetDefault("model.requests_per_minute", 0)

	// Gemini defaults
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("gemini.endpoint", "https://generativelanguage.googleapis.com/v1beta/models")
	v.SetDefault("gemini.temperature", 0.3)
	v.SetDefault("gemini.max_tokens", 1000)

	// OpenRouter defaults
	v.SetDefault("openrouter.model", "openai/gpt-4o-mini")
	v.SetDefault("openrouter.temperature", 0.3)
	v.SetDefault("openrouter.max_tokens", 1000)

	// Local Inference (Ollama) defaults
	v.SetDefault("local_inference.enabled", false)
	v.SetDefault("local_inference.base_url", "http://localhost:11434")
	v.SetDefault("local_inference.model", "llama3.2:3b")
	v.SetDefault("local_inference.timeout_seconds", 300)
	v.SetDefault("local_inference.context_size", 16384)

	// Traces
	v.SetDefault("trace.dir", DefaultTraceDir)
	v.SetDefault("trace.file", true)
	v.SetDefault("trace.sqlite", true)
	v.SetDefault("trace.postgres_dsn", "")
	v.SetDefault("trace.call_logs", true)

	v.SetDefault("database.path", DefaultDatabasePath)

	v.SetDefault("metrics.datadog", false)
	v.SetDefault("metrics.flush_every_seconds", 60)
}

// BindSensitiveEnvVars explicitly binds sensitive configuration to environment variables
func BindSensitiveEnvVars(v *viper.Viper) {
	// API keys: accept both the prefixed form and the vendor's conventional name
	v.BindEnv("gemini.api_key", "SAMARTH_GEMINI_API_KEY", "GEMINI_API_KEY")
	v.BindEnv("openrouter.api_key", "SAMARTH_OPENROUTER_API_KEY", "OPENROUTER_API_KEY")

	v.BindEnv("database.path", "SAMARTH_DATABASE_PATH")
	v.BindEnv("trace.postgres_dsn", "SAMARTH_TRACE_POSTGRES_DSN")

	v.BindEnv("local_inference.enabled", "SAMARTH_LOCAL_INFERENCE_ENABLED")
	v.BindEnv("local_inference.base_url", "SAMARTH_LOCAL_INFERENCE_BASE_URL")
	v.BindEnv("local_inference.model", "SAMARTH_LOCAL_INFERENCE_MODEL")
}

// GetDatabasePath returns the configured database path
func (c *Config) GetDatabasePath() string {
	if c.Database.Path == "" {
		return DefaultDatabasePath
	}
	return c.Database.Path
}

// GetMaxResults returns the evidence row cap, falling back to the default for unset values
func (c *Config) GetMaxResults() int {
	if c.Query.MaxResults <= 0 {
		return DefaultMaxResults
	}
	return c.Query.MaxResults
}

// GetSampleRows returns the schema sample size
func (c *Config) GetSampleRows() int {
	if c.Query.SampleRows <= 0 {
		return DefaultSampleRows
	}
	return c.Query.SampleRows
}

// GetTraceDir returns the trace directory
func (c *Config) GetTraceDir() string {
	if c.Trace.Dir == "" {
		return DefaultTraceDir
	}
	return c.Trace.Dir
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf("Config{Data: %s, Model: %s, MaxResults: %d, Database: %s}",
		c.Data.Dir, c.Model.Provider, c.GetMaxResults(), c.GetDatabasePath())
}
