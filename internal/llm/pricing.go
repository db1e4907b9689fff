package llm

import "strings"

// perMillion holds USD prices per million input/output tokens.
type perMillion struct {
	in, out float64
}

// Published Anthropic API prices. Unknown models fall back to Sonnet rates;
// the figure only feeds the user-visible running cost in /status.
var modelPricing = map[string]perMillion{
	"claude-opus":   {15.0, 75.0},
	"claude-sonnet": {3.0, 15.0},
	"claude-haiku":  {0.80, 4.0},
}

// EstimateCostUSD converts token usage into an approximate USD cost for the
// given model.
func EstimateCostUSD(model string, usage TokenUsage) float64 {
	price := modelPricing["claude-sonnet"]
	for prefix, p := range modelPricing {
		if strings.HasPrefix(model, prefix) {
			price = p
			break
		}
	}
	in := float64(usage.InputTokens+usage.CacheRead+usage.CacheWrite) * price.in
	out := float64(usage.OutputTokens) * price.out
	return (in + out) / 1e6
}
