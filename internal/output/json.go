package output

import (
	"encoding/json"
	"os"
	"time"

	"github.com/aitop/aitop/internal/aggregate"
)

// JSONReport is the JSON output structure for period reports.
type JSONReport struct {
	Results []JSONBucket `json:"results"`
	Total   JSONBucket   `json:"total"`
}

// JSONBucket is a single row. CostUSD is null when no member record had a
// resolvable cost; unpriced_records counts records excluded from the sum.
type JSONBucket struct {
	Key                      string                    `json:"key"`
	InputTokens              int64                     `json:"input_tokens"`
	OutputTokens             int64                     `json:"output_tokens"`
	CacheCreationInputTokens int64                     `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int64                     `json:"cache_read_input_tokens"`
	CostUSD                  *float64                  `json:"cost_usd"`
	Records                  int                       `json:"records"`
	UnpricedRecords          int                       `json:"unpriced_records,omitempty"`
	Models                   map[string]JSONModelStat  `json:"models"`
	Session                  *JSONSessionMeta          `json:"session,omitempty"`
}

// JSONModelStat is the per-model breakdown inside one bucket.
type JSONModelStat struct {
	Provider                 string   `json:"provider,omitempty"`
	InputTokens              int64    `json:"input_tokens"`
	OutputTokens             int64    `json:"output_tokens"`
	CacheCreationInputTokens int64    `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int64    `json:"cache_read_input_tokens"`
	CostUSD                  *float64 `json:"cost_usd"`
	Records                  int      `json:"records"`
}

// JSONSessionMeta carries joined session metadata when available.
type JSONSessionMeta struct {
	ParentID  string `json:"parent_id,omitempty"`
	Title     string `json:"title,omitempty"`
	ProjectID string `json:"project_id,omitempty"`
	Directory string `json:"directory,omitempty"`
}

// JSONBlock is one billing block in JSON output.
type JSONBlock struct {
	SessionID                string                   `json:"session_id"`
	StartTime                time.Time                `json:"start_time"`
	EndTime                  time.Time                `json:"end_time"`
	Active                   bool                     `json:"active"`
	InputTokens              int64                    `json:"input_tokens"`
	OutputTokens             int64                    `json:"output_tokens"`
	CacheCreationInputTokens int64                    `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int64                    `json:"cache_read_input_tokens"`
	CostUSD                  *float64                 `json:"cost_usd"`
	Records                  int                      `json:"records"`
	Models                   map[string]JSONModelStat `json:"models"`
}

// PrintJSON writes period buckets with a total row to stdout.
func PrintJSON(buckets []aggregate.Bucket) error {
	report := JSONReport{Results: make([]JSONBucket, len(buckets))}
	for i, b := range buckets {
		report.Results[i] = toJSONBucket(b)
	}
	total := aggregate.Total(buckets)
	report.Total = toJSONBucket(total)

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

// PrintBlocksJSON writes billing blocks to stdout.
func PrintBlocksJSON(blocks []aggregate.Block) error {
	out := make([]JSONBlock, len(blocks))
	for i, b := range blocks {
		out[i] = JSONBlock{
			SessionID:                b.SessionID,
			StartTime:                b.StartTime,
			EndTime:                  b.EndTime,
			Active:                   b.Active,
			InputTokens:              b.Usage.InputTokens,
			OutputTokens:             b.Usage.OutputTokens,
			CacheCreationInputTokens: b.Usage.CacheCreationInputTokens,
			CacheReadInputTokens:     b.Usage.CacheReadInputTokens,
			CostUSD:                  b.Cost,
			Records:                  len(b.Entries),
			Models:                   toJSONModels(b.Models),
		}
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

func toJSONBucket(b aggregate.Bucket) JSONBucket {
	out := JSONBucket{
		Key:                      b.Key,
		InputTokens:              b.Usage.InputTokens,
		OutputTokens:             b.Usage.OutputTokens,
		CacheCreationInputTokens: b.Usage.CacheCreationInputTokens,
		CacheReadInputTokens:     b.Usage.CacheReadInputTokens,
		CostUSD:                  b.Cost,
		Records:                  b.Records,
		UnpricedRecords:          b.Unpriced,
		Models:                   toJSONModels(b.Models),
	}
	if b.Meta != nil {
		out.Session = &JSONSessionMeta{
			ParentID:  b.Meta.ParentID,
			Title:     b.Meta.Title,
			ProjectID: b.Meta.ProjectID,
			Directory: b.Meta.Directory,
		}
	}
	return out
}

func toJSONModels(models map[string]*aggregate.ModelStat) map[string]JSONModelStat {
	out := make(map[string]JSONModelStat, len(models))
	for name, stat := range models {
		var cost *float64
		if stat.Unpriced < stat.Records {
			c := stat.Cost
			cost = &c
		}
		out[name] = JSONModelStat{
			Provider:                 stat.Provider,
			InputTokens:              stat.Usage.InputTokens,
			OutputTokens:             stat.Usage.OutputTokens,
			CacheCreationInputTokens: stat.Usage.CacheCreationInputTokens,
			CacheReadInputTokens:     stat.Usage.CacheReadInputTokens,
			CostUSD:                  cost,
			Records:                  stat.Records,
		}
	}
	return out
}
