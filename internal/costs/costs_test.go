package costs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aitop/aitop/internal/model"
	"github.com/aitop/aitop/internal/pricing"
)

func offlineCatalog(t *testing.T) *pricing.Catalog {
	t.Helper()
	catalog, err := pricing.Load(true)
	require.NoError(t, err)
	return catalog
}

func usageRecord(m string, reported float64, usage model.TokenUsage) model.UsageRecord {
	return model.UsageRecord{
		Timestamp:       time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		SessionID:       "s1",
		Model:           m,
		Usage:           usage,
		ReportedCostUSD: reported,
	}
}

func TestReportedCostTakesPrecedence(t *testing.T) {
	catalog := offlineCatalog(t)

	records := []model.UsageRecord{
		usageRecord("claude-sonnet-4-5", 0.05, model.TokenUsage{InputTokens: 1_000_000}),
	}

	costed := Calculate(records, catalog)
	require.Len(t, costed, 1)
	require.NotNil(t, costed[0].CostUSD)
	assert.Equal(t, 0.05, *costed[0].CostUSD)
}

func TestZeroReportedCostComputesFromPricing(t *testing.T) {
	catalog := offlineCatalog(t)

	// 50 input at $3/MTok plus 100 output at $15/MTok.
	records := []model.UsageRecord{
		usageRecord("claude-sonnet-4-5", 0, model.TokenUsage{InputTokens: 50, OutputTokens: 100}),
	}

	costed := Calculate(records, catalog)
	require.NotNil(t, costed[0].CostUSD)
	assert.InDelta(t, 0.00165, *costed[0].CostUSD, 1e-12)
}

func TestCacheTokensPriced(t *testing.T) {
	catalog := offlineCatalog(t)

	records := []model.UsageRecord{
		usageRecord("claude-sonnet-4-5", 0, model.TokenUsage{
			InputTokens:              10,
			OutputTokens:             10,
			CacheCreationInputTokens: 100,
			CacheReadInputTokens:     1000,
		}),
	}

	costed := Calculate(records, catalog)
	require.NotNil(t, costed[0].CostUSD)
	want := 10*3e-06 + 10*1.5e-05 + 100*3.75e-06 + 1000*3e-07
	assert.InDelta(t, want, *costed[0].CostUSD, 1e-12)
}

func TestUnresolvableModelLeavesCostNil(t *testing.T) {
	catalog := offlineCatalog(t)

	records := []model.UsageRecord{
		usageRecord("some-internal-model", 0, model.TokenUsage{InputTokens: 50, OutputTokens: 100}),
	}

	costed := Calculate(records, catalog)
	require.Len(t, costed, 1)
	assert.Nil(t, costed[0].CostUSD)
	// Tokens are untouched; the record still counts toward totals.
	assert.Equal(t, int64(50), costed[0].Usage.InputTokens)
}

func TestReportedCostWinsOverCatalog(t *testing.T) {
	catalog := offlineCatalog(t)

	records := []model.UsageRecord{
		usageRecord("unknown-model", 0.42, model.TokenUsage{InputTokens: 1}),
	}

	costed := Calculate(records, catalog)
	require.NotNil(t, costed[0].CostUSD)
	assert.Equal(t, 0.42, *costed[0].CostUSD)
}

func TestCalculateDoesNotMutateInput(t *testing.T) {
	catalog := offlineCatalog(t)

	records := []model.UsageRecord{
		usageRecord("claude-sonnet-4-5", 0, model.TokenUsage{InputTokens: 50, OutputTokens: 100}),
	}
	before := records[0]

	Calculate(records, catalog)
	assert.Equal(t, before, records[0])
}

func TestCompute(t *testing.T) {
	p := model.ModelPricing{
		InputCostPerToken:  0.000003,
		OutputCostPerToken: 0.000015,
	}
	got := Compute(model.TokenUsage{InputTokens: 50, OutputTokens: 100}, p)
	assert.InDelta(t, 0.00165, got, 1e-12)
}
