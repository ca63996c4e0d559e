// Package dedup removes duplicate usage records observed through
// overlapping log sources.
package dedup

import "github.com/aitop/aitop/internal/model"

// Deduplicate drops records whose RecordID was already seen, keeping the
// first occurrence. Records without a RecordID pass through unchanged. The
// result preserves input order, so the operation is idempotent.
func Deduplicate(records []model.UsageRecord) []model.UsageRecord {
	seen := make(map[string]struct{}, len(records))
	out := make([]model.UsageRecord, 0, len(records))

	for _, r := range records {
		if r.RecordID != "" {
			if _, ok := seen[r.RecordID]; ok {
				continue
			}
			seen[r.RecordID] = struct{}{}
		}
		out = append(out, r)
	}
	return out
}
