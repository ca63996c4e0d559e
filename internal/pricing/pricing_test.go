package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOffline(t *testing.T) {
	catalog, err := Load(true)
	require.NoError(t, err)
	assert.Greater(t, catalog.Len(), 0)

	p, ok := catalog.Resolve("claude-sonnet-4-5")
	require.True(t, ok)
	assert.Equal(t, 3e-06, p.InputCostPerToken)
	assert.Equal(t, 1.5e-05, p.OutputCostPerToken)
}

func TestResolveAlias(t *testing.T) {
	catalog, err := Load(true)
	require.NoError(t, err)

	// Dotted spelling used by some logs, absent from the catalog itself.
	aliased, ok := catalog.Resolve("claude-sonnet-4.5")
	require.True(t, ok)
	assert.Greater(t, aliased.InputCostPerToken, 0.0)

	canonical, ok := catalog.Resolve("claude-sonnet-4-5")
	require.True(t, ok)
	assert.Equal(t, canonical, aliased)
}

func TestResolveMiss(t *testing.T) {
	catalog, err := Load(true)
	require.NoError(t, err)

	_, ok := catalog.Resolve("totally-made-up-model")
	assert.False(t, ok)

	// Second lookup hits the memoized miss.
	_, ok = catalog.Resolve("totally-made-up-model")
	assert.False(t, ok)
}

func TestResolveCachesHits(t *testing.T) {
	catalog, err := Load(true)
	require.NoError(t, err)

	first, ok := catalog.Resolve("claude-opus-4-5")
	require.True(t, ok)
	second, ok := catalog.Resolve("claude-opus-4-5")
	require.True(t, ok)
	assert.Equal(t, first, second)
}

func TestParseCatalogFiltersProviders(t *testing.T) {
	data := []byte(`{
		"claude-test": {"input_cost_per_token": 1e-06, "output_cost_per_token": 2e-06, "litellm_provider": "anthropic"},
		"some-embedding-model": {"input_cost_per_token": 1e-07, "litellm_provider": "voyage"},
		"free-model": {"litellm_provider": "anthropic"}
	}`)

	catalog, err := parseCatalog(data)
	require.NoError(t, err)

	_, ok := catalog.Resolve("claude-test")
	assert.True(t, ok)
	_, ok = catalog.Resolve("some-embedding-model")
	assert.False(t, ok)
	_, ok = catalog.Resolve("free-model")
	assert.False(t, ok)
}

func TestParseCatalogRejectsGarbage(t *testing.T) {
	_, err := parseCatalog([]byte(`not json`))
	assert.Error(t, err)
}
