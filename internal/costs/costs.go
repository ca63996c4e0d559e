// Package costs assigns a definitive USD cost to normalized usage records.
package costs

import (
	"github.com/aitop/aitop/internal/model"
	"github.com/aitop/aitop/internal/pricing"
)

// CostedRecord is a usage record with its resolved cost attached. A nil
// CostUSD means the cost could not be resolved: the record still counts
// toward token totals but is excluded from cost sums.
type CostedRecord struct {
	model.UsageRecord
	CostUSD *float64
}

// Calculate attaches a cost to every record. Precedence:
//  1. a source-reported cost strictly greater than zero is used verbatim
//     (sources sometimes embed provider discounts the catalog cannot know);
//  2. otherwise the cost is computed from the resolved per-token rates;
//  3. otherwise the cost is left unresolved.
//
// The input records are not mutated.
func Calculate(records []model.UsageRecord, catalog *pricing.Catalog) []CostedRecord {
	out := make([]CostedRecord, len(records))
	for i, r := range records {
		out[i] = CostedRecord{UsageRecord: r, CostUSD: resolve(r, catalog)}
	}
	return out
}

func resolve(r model.UsageRecord, catalog *pricing.Catalog) *float64 {
	if r.ReportedCostUSD > 0 {
		cost := r.ReportedCostUSD
		return &cost
	}
	if p, ok := catalog.Resolve(r.Model); ok {
		cost := Compute(r.Usage, p)
		return &cost
	}
	return nil
}

// Compute returns the token-weighted cost for one record. No intermediate
// rounding; rounding is a rendering concern.
func Compute(usage model.TokenUsage, p model.ModelPricing) float64 {
	cost := float64(usage.InputTokens) * p.InputCostPerToken
	cost += float64(usage.OutputTokens) * p.OutputCostPerToken
	cost += float64(usage.CacheReadInputTokens) * p.CacheReadCostPerToken
	cost += float64(usage.CacheCreationInputTokens) * p.CacheCreationCostPerToken
	return cost
}
