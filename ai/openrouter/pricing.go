package openrouter

// ModelPricing is USD per million tokens
type ModelPricing struct {
	PromptPrice     float64
	CompletionPrice float64
}

// Cost prices one call
func (p ModelPricing) Cost(promptTokens, completionTokens int) float64 {
	return float64(promptTokens)/1_000_000.0*p.PromptPrice +
		float64(completionTokens)/1_000_000.0*p.CompletionPrice
}

// Models a question is likely to be routed to. Query synthesis favours
// cheap fast models, so the small tiers are listed first.
var modelPricing = map[string]ModelPricing{
	"openai/gpt-4o-mini":                {PromptPrice: 0.15, CompletionPrice: 0.60},
	"openai/gpt-4.1-mini":               {PromptPrice: 0.40, CompletionPrice: 1.60},
	"google/gemini-2.5-flash":           {PromptPrice: 0.30, CompletionPrice: 2.50},
	"google/gemini-2.5-flash-lite":      {PromptPrice: 0.10, CompletionPrice: 0.40},
	"google/gemini-2.0-flash-001":       {PromptPrice: 0.10, CompletionPrice: 0.40},
	"anthropic/claude-3-haiku":          {PromptPrice: 0.25, CompletionPrice: 1.25},
	"meta-llama/llama-3.1-8b-instruct":  {PromptPrice: 0.055, CompletionPrice: 0.055},
	"meta-llama/llama-3.1-70b-instruct": {PromptPrice: 0.52, CompletionPrice: 0.75},

	"openai/gpt-4o":               {PromptPrice: 2.50, CompletionPrice: 10.00},
	"google/gemini-2.5-pro":       {PromptPrice: 1.25, CompletionPrice: 10.00},
	"anthropic/claude-3.5-sonnet": {PromptPrice: 3.00, CompletionPrice: 15.00},
}

// DefaultPricingFallback is charged per call when the model is not priced
const DefaultPricingFallback = 0.01

// CalculateCost prices a call in USD
func CalculateCost(model string, promptTokens, completionTokens int) float64 {
	pricing, ok := modelPricing[model]
	if !ok {
		return DefaultPricingFallback
	}
	return pricing.Cost(promptTokens, completionTokens)
}
