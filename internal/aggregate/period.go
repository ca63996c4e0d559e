// Package aggregate groups costed usage records into report buckets:
// calendar periods, sessions, and fixed-width billing blocks.
package aggregate

import (
	"sort"
	"time"

	"github.com/aitop/aitop/internal/costs"
	"github.com/aitop/aitop/internal/model"
)

// Options for period aggregation
type Options struct {
	Since    time.Time
	Until    time.Time
	Timezone *time.Location
}

// ModelStat holds the sums for one model inside a bucket.
type ModelStat struct {
	Provider string
	Usage    model.TokenUsage
	Cost     float64
	Unpriced int
	Records  int
}

// Bucket is one row of a period report. Cost is nil only when no member
// record had a resolvable cost; unpriced records still contribute tokens.
type Bucket struct {
	Key      string
	Usage    model.TokenUsage
	Cost     *float64
	Unpriced int
	Records  int
	Models   map[string]*ModelStat
	Meta     *model.SessionMetadata
}

// Filter drops records outside the requested date range, interpreting
// timestamps in the report timezone.
func Filter(records []costs.CostedRecord, opts Options) []costs.CostedRecord {
	var filtered []costs.CostedRecord
	for _, r := range records {
		ts := r.Timestamp
		if opts.Timezone != nil {
			ts = ts.In(opts.Timezone)
		}
		if !opts.Since.IsZero() && ts.Before(opts.Since) {
			continue
		}
		if !opts.Until.IsZero() && ts.After(opts.Until) {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered
}

// ByDay aggregates usage per calendar day, ascending.
func ByDay(records []costs.CostedRecord, opts Options) []Bucket {
	return byTimeKey(records, opts, "2006-01-02")
}

// ByMonth aggregates usage per calendar month, ascending.
func ByMonth(records []costs.CostedRecord, opts Options) []Bucket {
	return byTimeKey(records, opts, "2006-01")
}

func byTimeKey(records []costs.CostedRecord, opts Options, layout string) []Bucket {
	grouped := make(map[string]*Bucket)

	for _, r := range records {
		ts := r.Timestamp
		if opts.Timezone != nil {
			ts = ts.In(opts.Timezone)
		}
		key := ts.Format(layout)

		b, ok := grouped[key]
		if !ok {
			b = newBucket(key)
			grouped[key] = b
		}
		b.add(r)
	}

	results := make([]Bucket, 0, len(grouped))
	for _, b := range grouped {
		results = append(results, *b)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Key < results[j].Key
	})
	return results
}

// BySession aggregates usage per session, ordered by each session's first
// activity. Metadata, when available, is joined by session ID.
func BySession(records []costs.CostedRecord, meta map[string]model.SessionMetadata) []Bucket {
	grouped := make(map[string]*Bucket)
	firstSeen := make(map[string]time.Time)

	for _, r := range records {
		key := r.SessionID
		if key == "" {
			key = "unknown"
		}

		b, ok := grouped[key]
		if !ok {
			b = newBucket(key)
			if m, found := meta[key]; found {
				mc := m
				b.Meta = &mc
			}
			grouped[key] = b
			firstSeen[key] = r.Timestamp
		}
		if r.Timestamp.Before(firstSeen[key]) {
			firstSeen[key] = r.Timestamp
		}
		b.add(r)
	}

	results := make([]Bucket, 0, len(grouped))
	for _, b := range grouped {
		results = append(results, *b)
	}
	sort.Slice(results, func(i, j int) bool {
		ti, tj := firstSeen[results[i].Key], firstSeen[results[j].Key]
		if ti.Equal(tj) {
			return results[i].Key < results[j].Key
		}
		return ti.Before(tj)
	})
	return results
}

// Total collapses buckets into a single summary row.
func Total(buckets []Bucket) Bucket {
	total := *newBucket("total")

	for _, b := range buckets {
		total.Usage.Add(b.Usage)
		total.Records += b.Records
		total.Unpriced += b.Unpriced
		if b.Cost != nil {
			addCost(&total, *b.Cost)
		}

		for name, stat := range b.Models {
			ms, ok := total.Models[name]
			if !ok {
				ms = &ModelStat{Provider: stat.Provider}
				total.Models[name] = ms
			}
			ms.Usage.Add(stat.Usage)
			ms.Cost += stat.Cost
			ms.Unpriced += stat.Unpriced
			ms.Records += stat.Records
		}
	}
	return total
}

func newBucket(key string) *Bucket {
	return &Bucket{Key: key, Models: make(map[string]*ModelStat)}
}

func (b *Bucket) add(r costs.CostedRecord) {
	b.Usage.Add(r.Usage)
	b.Records++

	ms, ok := b.Models[r.Model]
	if !ok {
		ms = &ModelStat{Provider: r.Provider}
		b.Models[r.Model] = ms
	}
	ms.Usage.Add(r.Usage)
	ms.Records++

	if r.CostUSD != nil {
		addCost(b, *r.CostUSD)
		ms.Cost += *r.CostUSD
	} else {
		b.Unpriced++
		ms.Unpriced++
	}
}

func addCost(b *Bucket, cost float64) {
	if b.Cost == nil {
		b.Cost = new(float64)
	}
	*b.Cost += cost
}

// ModelNames returns the bucket's models sorted by name.
func (b *Bucket) ModelNames() []string {
	names := make([]string, 0, len(b.Models))
	for name := range b.Models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
