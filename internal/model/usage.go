package model

import "time"

// UsageRecord represents a single billable assistant turn, normalized from
// one raw log entry regardless of which tool produced it.
type UsageRecord struct {
	Timestamp   time.Time
	SessionID   string
	ProjectPath string
	Model       string
	Provider    string
	Usage       TokenUsage

	// ReportedCostUSD is a cost the source itself attached to the entry.
	// Zero means absent; some tools emit 0 as a default.
	ReportedCostUSD float64

	// RecordID is a stable identifier used for deduplication across
	// overlapping sources. Empty means the record is never deduplicated.
	RecordID string
}

// TokenUsage contains token counts from a single API response
type TokenUsage struct {
	InputTokens              int64
	OutputTokens             int64
	CacheCreationInputTokens int64
	CacheReadInputTokens     int64
}

// Add accumulates another usage into u.
func (u *TokenUsage) Add(o TokenUsage) {
	u.InputTokens += o.InputTokens
	u.OutputTokens += o.OutputTokens
	u.CacheCreationInputTokens += o.CacheCreationInputTokens
	u.CacheReadInputTokens += o.CacheReadInputTokens
}

// Total returns the sum of all token categories.
func (u TokenUsage) Total() int64 {
	return u.InputTokens + u.OutputTokens + u.CacheCreationInputTokens + u.CacheReadInputTokens
}

// ModelPricing contains pricing info for a model (per token, not per million)
type ModelPricing struct {
	InputCostPerToken         float64
	OutputCostPerToken        float64
	CacheCreationCostPerToken float64
	CacheReadCostPerToken     float64
}

// SessionMetadata is optional enrichment for a session, loaded from sources
// that keep a session table. Joined by SessionID only when a report needs it.
type SessionMetadata struct {
	ID        string
	ParentID  string // empty for top-level sessions
	Title     string
	ProjectID string
	Directory string
}
