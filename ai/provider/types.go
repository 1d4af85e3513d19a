package provider

// Provider names a text generation backend
type Provider string

const (
	// ProviderGemini calls the Google Gemini REST API directly
	ProviderGemini Provider = "gemini"
	// ProviderOpenRouter uses the OpenRouter.ai gateway
	ProviderOpenRouter Provider = "openrouter"
	// ProviderLocal uses an OpenAI-compatible local server (Ollama, LocalAI)
	ProviderLocal Provider = "local"
	// ProviderAuto selects based on configuration
	ProviderAuto Provider = "auto"
)

// DefaultPriority is the order auto-selection walks
var DefaultPriority = []Provider{ProviderLocal, ProviderGemini, ProviderOpenRouter}

// ProviderConfig represents configuration for selecting providers
type ProviderConfig struct {
	// Default provider to use when enabled
	DefaultProvider Provider

	// Priority order when the default is not enabled
	ProviderPriority []Provider

	// Per-provider enable flags
	Providers map[Provider]bool
}

// IsProviderEnabled checks if a specific provider is enabled
func (pc *ProviderConfig) IsProviderEnabled(provider Provider) bool {
	if pc.Providers == nil {
		return false
	}
	return pc.Providers[provider]
}

// GetActiveProvider returns the default if enabled, else the first enabled
// provider in priority order, else OpenRouter.
func (pc *ProviderConfig) GetActiveProvider() Provider {
	if pc.IsProviderEnabled(pc.DefaultProvider) {
		return pc.DefaultProvider
	}

	for _, provider := range pc.ProviderPriority {
		if pc.IsProviderEnabled(provider) {
			return provider
		}
	}

	return ProviderOpenRouter
}
