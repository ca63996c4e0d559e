// Package output renders report buckets and billing blocks for the
// terminal, and exposes the matching JSON contract.
package output

import (
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"golang.org/x/term"

	"github.com/aitop/aitop/internal/aggregate"
)

const (
	compactThreshold = 100 // terminal width below which compact mode kicks in
	defaultWidth     = 120
)

// TableOptions controls table display behavior
type TableOptions struct {
	ForceCompact bool
	Breakdown    bool
}

func terminalWidth() int {
	if cols := os.Getenv("COLUMNS"); cols != "" {
		if width, err := strconv.Atoi(cols); err == nil && width > 0 {
			return width
		}
	}
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		return width
	}
	return defaultWidth
}

func useCompact(opts TableOptions) bool {
	return opts.ForceCompact || terminalWidth() < compactThreshold
}

// FormatNumber formats a number with thousand separators
func FormatNumber(n int64) string {
	str := strconv.FormatInt(n, 10)
	negative := n < 0
	if negative {
		str = str[1:]
	}

	result := ""
	for i, c := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result += ","
		}
		result += string(c)
	}

	if negative {
		return "-" + result
	}
	return result
}

// FormatCost renders a resolved cost as currency; unresolved costs render
// as a dash so they stay distinguishable from free usage.
func FormatCost(cost *float64) string {
	if cost == nil {
		return "-"
	}
	return fmt.Sprintf("$%.2f", *cost)
}

func shortenSessionID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// PrintTable prints period buckets as a formatted table with a total row.
func PrintTable(buckets []aggregate.Bucket, title string, opts TableOptions) {
	if len(buckets) == 0 {
		fmt.Println("No usage data found.")
		return
	}

	compact := useCompact(opts)
	isSessionView := title == "Session"

	table := tablewriter.NewTable(os.Stdout)
	if compact {
		table.Header([]string{title, "Input", "Output", "Cost"})
	} else {
		table.Header([]string{title, "Input", "Output", "Cache Create", "Cache Read", "Cost"})
	}

	for _, b := range buckets {
		key := b.Key
		if isSessionView {
			if b.Meta != nil && b.Meta.Title != "" {
				key = fmt.Sprintf("%s (%s)", shortenSessionID(b.Key), b.Meta.Title)
			} else {
				key = shortenSessionID(b.Key)
			}
		}
		table.Append(bucketRow(key, &b, compact))

		if opts.Breakdown {
			for _, name := range b.ModelNames() {
				stat := b.Models[name]
				table.Append(modelRow(name, stat, compact))
			}
		}
	}

	if len(buckets) > 1 {
		total := aggregate.Total(buckets)
		table.Footer(bucketRow("Total", &total, compact))
	}

	table.Render()

	if unpriced := countUnpriced(buckets); unpriced > 0 {
		fmt.Printf("\n%d record(s) had no resolvable pricing and are excluded from cost totals.\n", unpriced)
	}
}

// PrintBlocksTable prints billing blocks, flagging the active one.
func PrintBlocksTable(blocks []aggregate.Block, opts TableOptions) {
	if len(blocks) == 0 {
		fmt.Println("No usage data found.")
		return
	}

	compact := useCompact(opts)

	table := tablewriter.NewTable(os.Stdout)
	if compact {
		table.Header([]string{"Block Start", "Session", "Tokens", "Cost"})
	} else {
		table.Header([]string{"Block Start", "Block End", "Session", "Input", "Output", "Cost", "Active"})
	}

	for _, b := range blocks {
		start := b.StartTime.Local().Format("2006-01-02 15:04")
		if compact {
			table.Append([]string{
				start,
				shortenSessionID(b.SessionID),
				FormatNumber(b.Usage.Total()),
				FormatCost(b.Cost),
			})
			continue
		}

		active := ""
		if b.Active {
			active = "yes"
		}
		table.Append([]string{
			start,
			b.EndTime.Local().Format("2006-01-02 15:04"),
			shortenSessionID(b.SessionID),
			FormatNumber(b.Usage.InputTokens),
			FormatNumber(b.Usage.OutputTokens),
			FormatCost(b.Cost),
			active,
		})
	}

	table.Render()
}

func bucketRow(key string, b *aggregate.Bucket, compact bool) []string {
	if compact {
		return []string{
			key,
			FormatNumber(b.Usage.InputTokens),
			FormatNumber(b.Usage.OutputTokens),
			FormatCost(b.Cost),
		}
	}
	return []string{
		key,
		FormatNumber(b.Usage.InputTokens),
		FormatNumber(b.Usage.OutputTokens),
		FormatNumber(b.Usage.CacheCreationInputTokens),
		FormatNumber(b.Usage.CacheReadInputTokens),
		FormatCost(b.Cost),
	}
}

func modelRow(name string, stat *aggregate.ModelStat, compact bool) []string {
	var costPtr *float64
	if stat.Unpriced < stat.Records {
		c := stat.Cost
		costPtr = &c
	}
	if compact {
		return []string{
			"  " + name,
			FormatNumber(stat.Usage.InputTokens),
			FormatNumber(stat.Usage.OutputTokens),
			FormatCost(costPtr),
		}
	}
	return []string{
		"  " + name,
		FormatNumber(stat.Usage.InputTokens),
		FormatNumber(stat.Usage.OutputTokens),
		FormatNumber(stat.Usage.CacheCreationInputTokens),
		FormatNumber(stat.Usage.CacheReadInputTokens),
		FormatCost(costPtr),
	}
}

func countUnpriced(buckets []aggregate.Bucket) int {
	n := 0
	for _, b := range buckets {
		n += b.Unpriced
	}
	return n
}
