// Package pricing owns the model pricing catalog: per-token rates keyed by
// canonical model name, acquired once per run from either the LiteLLM
// catalog (online) or an embedded snapshot (offline).
package pricing

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/aitop/aitop/internal/model"
)

const catalogURL = "https://raw.githubusercontent.com/BerriAI/litellm/main/model_prices_and_context_window.json"

// ErrFetch marks an online catalog fetch failure. Distinct from a model
// simply being absent from the catalog; callers may fall back to offline
// mode as a separate explicit path.
var ErrFetch = errors.New("pricing catalog fetch failed")

// snapshot.json is a trimmed copy of the LiteLLM catalog, parsed with the
// same schema as the network response.
//
//go:embed snapshot.json
var snapshot []byte

// catalogEntry is the per-model pricing structure used by LiteLLM.
type catalogEntry struct {
	InputCostPerToken  float64 `json:"input_cost_per_token"`
	OutputCostPerToken float64 `json:"output_cost_per_token"`
	CacheCreationCost  float64 `json:"cache_creation_input_token_cost"`
	CacheReadCost      float64 `json:"cache_read_input_token_cost"`
	Provider           string  `json:"litellm_provider"`
}

// providers we keep from the full catalog; everything else is dead weight
// for coding-assistant logs.
var keepProviders = map[string]bool{
	"anthropic": true,
	"openai":    true,
	"gemini":    true,
}

// aliases maps model names as they appear in logs to their canonical
// catalog spelling. Hand-curated; extend as tools invent new spellings.
var aliases = map[string]string{
	"claude-opus-4.5":   "claude-opus-4-5",
	"claude-opus-4.1":   "claude-opus-4-1",
	"claude-sonnet-4.5": "claude-sonnet-4-5",
	"claude-haiku-4.5":  "claude-haiku-4-5",
	"claude-3.5-sonnet": "claude-3-5-sonnet-20241022",
	"claude-3.5-haiku":  "claude-3-5-haiku-20241022",
}

// Catalog is an immutable model→pricing mapping plus a per-run resolution
// cache. Construct it once at startup and pass it to the cost calculator.
type Catalog struct {
	models map[string]model.ModelPricing

	mu       sync.RWMutex
	resolved map[string]*model.ModelPricing // nil value caches a miss
}

// Load builds the catalog exactly once per run. Offline mode parses the
// embedded snapshot and never touches the network; online mode fetches the
// full LiteLLM catalog and fails with ErrFetch on any network or decode
// problem.
func Load(offline bool) (*Catalog, error) {
	if offline {
		return parseCatalog(snapshot)
	}
	return fetchCatalog()
}

func fetchCatalog() (*Catalog, error) {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(catalogURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrFetch, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}

	catalog, err := parseCatalog(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	return catalog, nil
}

func parseCatalog(data []byte) (*Catalog, error) {
	var raw map[string]catalogEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing pricing catalog: %w", err)
	}

	models := make(map[string]model.ModelPricing, len(raw))
	for name, entry := range raw {
		if !keepProviders[entry.Provider] {
			continue
		}
		if entry.InputCostPerToken == 0 && entry.OutputCostPerToken == 0 {
			continue
		}
		models[name] = model.ModelPricing{
			InputCostPerToken:         entry.InputCostPerToken,
			OutputCostPerToken:        entry.OutputCostPerToken,
			CacheCreationCostPerToken: entry.CacheCreationCost,
			CacheReadCostPerToken:     entry.CacheReadCost,
		}
	}

	return &Catalog{
		models:   models,
		resolved: make(map[string]*model.ModelPricing),
	}, nil
}

// Len returns the number of models in the catalog.
func (c *Catalog) Len() int { return len(c.models) }

// Resolve looks up pricing for a model name: exact match first, then the
// alias table. A miss is not an error; downstream cost computation treats
// it as an unresolvable cost. Results, including misses, are cached for
// the rest of the run.
func (c *Catalog) Resolve(name string) (model.ModelPricing, bool) {
	c.mu.RLock()
	cached, ok := c.resolved[name]
	c.mu.RUnlock()
	if ok {
		if cached == nil {
			return model.ModelPricing{}, false
		}
		return *cached, true
	}

	pricing, found := c.lookup(name)

	c.mu.Lock()
	if found {
		p := pricing
		c.resolved[name] = &p
	} else {
		c.resolved[name] = nil
	}
	c.mu.Unlock()

	return pricing, found
}

func (c *Catalog) lookup(name string) (model.ModelPricing, bool) {
	if p, ok := c.models[name]; ok {
		return p, true
	}
	if canonical, ok := aliases[name]; ok {
		if p, ok := c.models[canonical]; ok {
			return p, true
		}
	}
	return model.ModelPricing{}, false
}
