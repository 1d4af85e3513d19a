package gemini

import "github.com/teranos/samarth/ai/openrouter"

// USD per million tokens, prompt then completion
var modelPricing = map[string]openrouter.ModelPricing{
	"gemini-2.5-flash":      {PromptPrice: 0.30, CompletionPrice: 2.50},
	"gemini-2.5-flash-lite": {PromptPrice: 0.10, CompletionPrice: 0.40},
	"gemini-2.5-pro":        {PromptPrice: 1.25, CompletionPrice: 10.00},
	"gemini-2.0-flash":      {PromptPrice: 0.10, CompletionPrice: 0.40},
}

// CalculateCost prices a call, falling back to the OpenRouter table for
// "google/" prefixed names and to a flat fee for unknown models.
func CalculateCost(model string, promptTokens, completionTokens int) float64 {
	pricing, ok := modelPricing[model]
	if !ok {
		return openrouter.CalculateCost("google/"+model, promptTokens, completionTokens)
	}
	return pricing.Cost(promptTokens, completionTokens)
}
