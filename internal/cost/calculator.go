// Package cost estimates the provider spend attributed to an enrichment
// attempt for the usage transaction log.
package cost

// Rates holds per-provider pricing configuration.
type Rates struct {
	// BaseUSD covers the standard provider set for one attempt (reviews,
	// profile search, research, social discovery).
	BaseUSD float64 `yaml:"base_usd" mapstructure:"base_usd"`
	// PremiumUSD is added when the premium contact-lookup provider was
	// actually invoked. It is the dominant cost driver.
	PremiumUSD float64 `yaml:"premium_usd" mapstructure:"premium_usd"`
	// ResearchPerQuery prices one deep-research sub-call.
	ResearchPerQuery float64 `yaml:"research_per_query" mapstructure:"research_per_query"`
	// InsightPerMTokIn/Out price the summary step's token usage.
	InsightPerMTokIn  float64 `yaml:"insight_per_mtok_in" mapstructure:"insight_per_mtok_in"`
	InsightPerMTokOut float64 `yaml:"insight_per_mtok_out" mapstructure:"insight_per_mtok_out"`
}

// Calculator computes cost estimates for enrichment attempts.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Attempt returns the flat estimate for one enrichment attempt: the base
// rate plus the premium increment if the contact-lookup provider ran.
// "Ran" means actually invoked, not merely eligible.
func (c *Calculator) Attempt(usedPremium bool) float64 {
	cost := c.rates.BaseUSD
	if usedPremium {
		cost += c.rates.PremiumUSD
	}
	return cost
}

// Research prices n deep-research sub-calls.
func (c *Calculator) Research(queries int) float64 {
	return float64(queries) * c.rates.ResearchPerQuery
}

// Insight prices the summary step's token usage.
func (c *Calculator) Insight(inputTokens, outputTokens int64) float64 {
	in := (float64(inputTokens) / 1e6) * c.rates.InsightPerMTokIn
	out := (float64(outputTokens) / 1e6) * c.rates.InsightPerMTokOut
	return in + out
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		BaseUSD:           0.05,
		PremiumUSD:        0.10,
		ResearchPerQuery:  0.005,
		InsightPerMTokIn:  0.80,
		InsightPerMTokOut: 4.00,
	}
}
