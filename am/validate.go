package am

import "github.com/teranos/samarth/errors"

var validProviders = map[string]bool{
	"auto":       true,
	"gemini":     true,
	"openrouter": true,
	"local":      true,
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Data.Dir == "" {
		return errors.New("data.dir cannot be empty")
	}

	// Query bounds: 0 = use default, negative = invalid
	if c.Query.MaxResults < 0 {
		return errors.Newf("query.max_results must be >= 0, got %d", c.Query.MaxResults)
	}
	if c.Query.SampleRows < 0 {
		return errors.Newf("query.sample_rows must be >= 0, got %d", c.Query.SampleRows)
	}
	if c.Query.MaxJoinRows < 0 {
		return errors.Newf("query.max_join_rows must be >= 0, got %d", c.Query.MaxJoinRows)
	}

	if !validProviders[c.Model.Provider] {
		return errors.WithHint(
			errors.Newf("model.provider %q is not supported", c.Model.Provider),
			"use one of: auto, gemini, openrouter, local",
		)
	}
	if c.Model.TimeoutSeconds < 0 {
		return errors.Newf("model.timeout_seconds must be >= 0, got %d", c.Model.TimeoutSeconds)
	}
	if c.Model.RequestsPerMinute < 0 {
		return errors.Newf("model.requests_per_minute must be >= 0, got %d", c.Model.RequestsPerMinute)
	}

	// Explicit provider choice requires its credentials
	switch c.Model.Provider {
	case "gemini":
		if c.Gemini.APIKey == "" {
			return errors.WithHint(errors.New("gemini.api_key is required when model.provider = \"gemini\""),
				"set GEMINI_API_KEY")
		}
	case "openrouter":
		if c.OpenRouter.APIKey == "" {
			return errors.WithHint(errors.New("openrouter.api_key is required when model.provider = \"openrouter\""),
				"set OPENROUTER_API_KEY")
		}
	}

	if c.Model.Provider == "local" || c.LocalInference.Enabled {
		if c.LocalInference.BaseURL == "" {
			return errors.New("local_inference.base_url cannot be empty when enabled")
		}
		if c.LocalInference.Model == "" {
			return errors.New("local_inference.model cannot be empty when enabled")
		}
		if c.LocalInference.TimeoutSeconds <= 0 {
			return errors.Newf("local_inference.timeout_seconds must be > 0, got %d", c.LocalInference.TimeoutSeconds)
		}
	}

	if c.Gemini.Temperature != nil && (*c.Gemini.Temperature < 0 || *c.Gemini.Temperature > 2) {
		return errors.Newf("gemini.temperature must be within [0, 2], got %f", *c.Gemini.Temperature)
	}
	if c.OpenRouter.Temperature != nil && (*c.OpenRouter.Temperature < 0 || *c.OpenRouter.Temperature > 2) {
		return errors.Newf("openrouter.temperature must be within [0, 2], got %f", *c.OpenRouter.Temperature)
	}

	if c.Metrics.FlushEverySeconds < 0 {
		return errors.Newf("metrics.flush_every_seconds must be >= 0, got %d", c.Metrics.FlushEverySeconds)
	}

	return nil
}
