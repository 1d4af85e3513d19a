// Package am holds samarth's configuration ("I am").
//
// Values cascade from defaults through system, user and project am.toml files
// to SAMARTH_* environment variables. See load.go for the precedence rules.
package am

// Config represents the samarth configuration
type Config struct {
	Data           DataConfig           `mapstructure:"data"`
	Query          QueryConfig          `mapstructure:"query"`
	Model          ModelConfig          `mapstructure:"model"`
	Gemini         GeminiConfig         `mapstructure:"gemini"`
	OpenRouter     OpenRouterConfig     `mapstructure:"openrouter"`
	LocalInference LocalInferenceConfig `mapstructure:"local_inference"`
	Trace          TraceConfig          `mapstructure:"trace"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Metrics        MetricsConfig        `mapstructure:"metrics"`
}

// DataConfig locates the datasets loaded into the registry at startup
type DataConfig struct {
	Dir     string `mapstructure:"dir"`     // directory of CSV files
	Catalog string `mapstructure:"catalog"` // optional TOML catalog (descriptions, keywords, citations)
}

// QueryConfig bounds query synthesis and execution
type QueryConfig struct {
	MaxResults  int `mapstructure:"max_results"`   // evidence row cap (default: 20)
	SampleRows  int `mapstructure:"sample_rows"`   // sample rows per dataset in the schema prompt (default: 3)
	MaxJoinRows int `mapstructure:"max_join_rows"` // join output guard, 0 = unlimited
}

// ModelConfig selects and wraps the generative model
type ModelConfig struct {
	Provider          string `mapstructure:"provider"`            // gemini, openrouter, local, auto
	DegradeErrors     bool   `mapstructure:"degrade_errors"`      // turn transport errors into "Error ..." text
	TimeoutSeconds    int    `mapstructure:"timeout_seconds"`     // per call, 0 = no timeout
	RequestsPerMinute int    `mapstructure:"requests_per_minute"` // 0 = unlimited
}

// GeminiConfig configures the Google Gemini REST client
type GeminiConfig struct {
	APIKey      string   `mapstructure:"api_key"`
	Model       string   `mapstructure:"model"`
	Endpoint    string   `mapstructure:"endpoint"`
	Temperature *float64 `mapstructure:"temperature"`
	MaxTokens   *int     `mapstructure:"max_tokens"`
}

// OpenRouterConfig configures the OpenRouter.ai client
type OpenRouterConfig struct {
	APIKey      string   `mapstructure:"api_key"`
	Model       string   `mapstructure:"model"`
	Temperature *float64 `mapstructure:"temperature"`
	MaxTokens   *int     `mapstructure:"max_tokens"`
}

// LocalInferenceConfig configures local model inference (Ollama, LocalAI)
type LocalInferenceConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BaseURL        string `mapstructure:"base_url"`
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	ContextSize    int    `mapstructure:"context_size"` // 0 = model default
}

// TraceConfig configures where question traces and per-call logs are written
type TraceConfig struct {
	Dir         string `mapstructure:"dir"`          // TRACE_*.json and call logs
	File        bool   `mapstructure:"file"`         // write TRACE_*.json files
	SQLite      bool   `mapstructure:"sqlite"`       // write traces into database.path
	PostgresDSN string `mapstructure:"postgres_dsn"` // optional Postgres trace store
	CallLogs    bool   `mapstructure:"call_logs"`    // write <call_id>_INPUT/OUTPUT files
}

// DatabaseConfig configures the SQLite database
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// MetricsConfig configures pipeline metrics export
type MetricsConfig struct {
	Datadog           bool     `mapstructure:"datadog"`
	Tags              []string `mapstructure:"tags"`
	FlushEverySeconds int      `mapstructure:"flush_every_seconds"`
}

// File and directory permission constants
const (
	DefaultDirPermissions  = 0755 // rwxr-xr-x
	DefaultFilePermissions = 0644 // rw-r--r--
)
