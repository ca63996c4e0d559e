package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aitop/aitop/internal/costs"
	"github.com/aitop/aitop/internal/model"
)

func blockRecord(ts time.Time, session string, tokens int64, cost *float64) costs.CostedRecord {
	return costed(ts, session, "claude-sonnet-4-5", model.TokenUsage{InputTokens: tokens, OutputTokens: tokens}, cost)
}

func TestBlocksSingleRecord(t *testing.T) {
	start := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	records := []costs.CostedRecord{blockRecord(start, "s1", 10, usd(0.05))}

	blocks := Blocks(records, BlockOptions{Now: start.Add(24 * time.Hour)})
	require.Len(t, blocks, 1)

	b := blocks[0]
	assert.Equal(t, "s1", b.SessionID)
	assert.Equal(t, start, b.StartTime)
	assert.Equal(t, start.Add(DefaultBlockDuration), b.EndTime)
	assert.False(t, b.Active)
	require.Len(t, b.Entries, 1)
	require.NotNil(t, b.Cost)
	assert.Equal(t, 0.05, *b.Cost)
}

func TestBlocksSplitOnWindowBoundary(t *testing.T) {
	start := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	records := []costs.CostedRecord{
		blockRecord(start, "s1", 10, nil),
		// Exactly at the window edge. The boundary is end exclusive, so this
		// opens a new block.
		blockRecord(start.Add(5*time.Hour), "s1", 10, nil),
	}

	blocks := Blocks(records, BlockOptions{Now: start.Add(48 * time.Hour)})
	require.Len(t, blocks, 2)
	assert.Equal(t, start, blocks[0].StartTime)
	assert.Equal(t, start.Add(5*time.Hour), blocks[1].StartTime)
}

func TestBlocksRecordsWithinWindowJoin(t *testing.T) {
	start := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	records := []costs.CostedRecord{
		blockRecord(start, "s1", 10, usd(0.01)),
		blockRecord(start.Add(2*time.Hour), "s1", 10, usd(0.02)),
		blockRecord(start.Add(4*time.Hour+59*time.Minute), "s1", 10, usd(0.03)),
	}

	blocks := Blocks(records, BlockOptions{Now: start.Add(48 * time.Hour)})
	require.Len(t, blocks, 1)
	assert.Len(t, blocks[0].Entries, 3)
	require.NotNil(t, blocks[0].Cost)
	assert.InDelta(t, 0.06, *blocks[0].Cost, 1e-12)
}

func TestBlocksIdleGapSplits(t *testing.T) {
	start := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	records := []costs.CostedRecord{
		blockRecord(start, "s1", 10, nil),
		// Still inside a 5h window, but past the 1h idle threshold.
		blockRecord(start.Add(90*time.Minute), "s1", 10, nil),
	}

	blocks := Blocks(records, BlockOptions{
		IdleThreshold: time.Hour,
		Now:           start.Add(48 * time.Hour),
	})
	require.Len(t, blocks, 2)
	assert.Equal(t, start.Add(90*time.Minute), blocks[1].StartTime)
}

func TestBlocksUnsortedInputOrderedOutput(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	records := []costs.CostedRecord{
		blockRecord(start.Add(12*time.Hour), "s1", 10, nil),
		blockRecord(start, "s1", 10, nil),
		blockRecord(start.Add(6*time.Hour), "s2", 10, nil),
	}

	blocks := Blocks(records, BlockOptions{Now: start.Add(48 * time.Hour)})
	require.Len(t, blocks, 3)

	for i := 1; i < len(blocks); i++ {
		assert.False(t, blocks[i].StartTime.Before(blocks[i-1].StartTime))
	}
	for _, b := range blocks {
		assert.Equal(t, b.StartTime.Add(DefaultBlockDuration), b.EndTime)
	}
}

func TestBlocksNonOverlappingPerSession(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	var records []costs.CostedRecord
	for i := 0; i < 20; i++ {
		records = append(records, blockRecord(start.Add(time.Duration(i)*90*time.Minute), "s1", 5, nil))
	}

	blocks := Blocks(records, BlockOptions{Now: start.Add(100 * time.Hour)})
	require.NotEmpty(t, blocks)

	for i := 1; i < len(blocks); i++ {
		assert.False(t, blocks[i].StartTime.Before(blocks[i-1].EndTime),
			"block %d starts before block %d ends", i, i-1)
	}
}

func TestBlocksTokenConservation(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	records := []costs.CostedRecord{
		blockRecord(start, "s1", 10, usd(0.1)),
		blockRecord(start.Add(7*time.Hour), "s1", 20, nil),
		blockRecord(start.Add(time.Hour), "s2", 30, usd(0.3)),
	}

	var want model.TokenUsage
	for _, r := range records {
		want.Add(r.Usage)
	}

	blocks := Blocks(records, BlockOptions{Now: start.Add(48 * time.Hour)})

	var got model.TokenUsage
	entries := 0
	for _, b := range blocks {
		got.Add(b.Usage)
		entries += len(b.Entries)
	}
	assert.Equal(t, want, got)
	assert.Equal(t, len(records), entries)
}

func TestBlocksActiveFlag(t *testing.T) {
	start := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	records := []costs.CostedRecord{blockRecord(start, "s1", 10, nil)}

	active := Blocks(records, BlockOptions{Now: start.Add(2 * time.Hour)})
	require.Len(t, active, 1)
	assert.True(t, active[0].Active)

	// Now at the end boundary: the window is closed.
	expired := Blocks(records, BlockOptions{Now: start.Add(DefaultBlockDuration)})
	require.Len(t, expired, 1)
	assert.False(t, expired[0].Active)
}

func TestBlocksSessionsTrackedIndependently(t *testing.T) {
	start := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	records := []costs.CostedRecord{
		blockRecord(start, "s1", 10, nil),
		blockRecord(start.Add(time.Minute), "s2", 10, nil),
	}

	blocks := Blocks(records, BlockOptions{Now: start.Add(48 * time.Hour)})
	require.Len(t, blocks, 2)
	assert.Equal(t, "s1", blocks[0].SessionID)
	assert.Equal(t, "s2", blocks[1].SessionID)
}

func TestBlocksCustomDuration(t *testing.T) {
	start := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	records := []costs.CostedRecord{
		blockRecord(start, "s1", 10, nil),
		blockRecord(start.Add(45*time.Minute), "s1", 10, nil),
	}

	blocks := Blocks(records, BlockOptions{
		Duration: 30 * time.Minute,
		Now:      start.Add(48 * time.Hour),
	})
	require.Len(t, blocks, 2)
	assert.Equal(t, start.Add(30*time.Minute), blocks[0].EndTime)
}

func TestBlocksEmptyInput(t *testing.T) {
	blocks := Blocks(nil, BlockOptions{})
	assert.Empty(t, blocks)
}
