package aggregate

import (
	"sort"
	"time"

	"github.com/aitop/aitop/internal/costs"
	"github.com/aitop/aitop/internal/model"
)

// Billing window policy. A block spans [start, start+duration) with an
// end-exclusive boundary; a gap longer than the idle threshold closes the
// current block even when the window has room left.
const (
	DefaultBlockDuration = 5 * time.Hour
	DefaultIdleThreshold = 5 * time.Hour
)

// Block is one fixed-width billing window of a session's activity.
type Block struct {
	SessionID string
	StartTime time.Time
	EndTime   time.Time
	Active    bool
	Usage     model.TokenUsage
	Cost      *float64
	Unpriced  int
	Entries   []costs.CostedRecord
	Models    map[string]*ModelStat
}

// BlockOptions configures the windowing policy. Zero durations use the
// defaults; a zero Now uses the wall clock (tests inject a fixed time).
type BlockOptions struct {
	Duration      time.Duration
	IdleThreshold time.Duration
	Now           time.Time
}

// Blocks groups records into per-session billing windows. Records need not
// arrive sorted; each session's blocks come out strictly ordered and
// non-overlapping, and every record lands in exactly one block. The result
// is ordered by start time across sessions.
func Blocks(records []costs.CostedRecord, opts BlockOptions) []Block {
	duration := opts.Duration
	if duration <= 0 {
		duration = DefaultBlockDuration
	}
	idle := opts.IdleThreshold
	if idle <= 0 {
		idle = DefaultIdleThreshold
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	bySession := make(map[string][]costs.CostedRecord)
	for _, r := range records {
		bySession[r.SessionID] = append(bySession[r.SessionID], r)
	}

	var blocks []Block
	for sessionID, recs := range bySession {
		blocks = append(blocks, sessionBlocks(sessionID, recs, duration, idle, now)...)
	}

	sort.Slice(blocks, func(i, j int) bool {
		if blocks[i].StartTime.Equal(blocks[j].StartTime) {
			return blocks[i].SessionID < blocks[j].SessionID
		}
		return blocks[i].StartTime.Before(blocks[j].StartTime)
	})
	return blocks
}

func sessionBlocks(sessionID string, recs []costs.CostedRecord, duration, idle time.Duration, now time.Time) []Block {
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].Timestamp.Before(recs[j].Timestamp)
	})

	var blocks []Block
	var current *Block
	var prev time.Time

	for _, r := range recs {
		ts := r.Timestamp
		if current != nil {
			inWindow := ts.Before(current.EndTime)
			withinIdle := ts.Sub(prev) <= idle
			if !inWindow || !withinIdle {
				blocks = append(blocks, *current)
				current = nil
			}
		}
		if current == nil {
			current = &Block{
				SessionID: sessionID,
				StartTime: ts,
				EndTime:   ts.Add(duration),
				Models:    make(map[string]*ModelStat),
			}
		}
		current.addEntry(r)
		prev = ts
	}

	if current != nil {
		// Only the most recently opened block can still be active.
		if !now.Before(current.StartTime) && now.Before(current.EndTime) {
			current.Active = true
		}
		blocks = append(blocks, *current)
	}
	return blocks
}

func (b *Block) addEntry(r costs.CostedRecord) {
	b.Entries = append(b.Entries, r)
	b.Usage.Add(r.Usage)

	ms, ok := b.Models[r.Model]
	if !ok {
		ms = &ModelStat{Provider: r.Provider}
		b.Models[r.Model] = ms
	}
	ms.Usage.Add(r.Usage)
	ms.Records++

	if r.CostUSD != nil {
		if b.Cost == nil {
			b.Cost = new(float64)
		}
		*b.Cost += *r.CostUSD
		ms.Cost += *r.CostUSD
	} else {
		b.Unpriced++
		ms.Unpriced++
	}
}
