// aitop reports token usage and cost across AI coding assistants from
// their local logs.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/aitop/aitop/internal/aggregate"
	"github.com/aitop/aitop/internal/config"
	"github.com/aitop/aitop/internal/costs"
	"github.com/aitop/aitop/internal/dedup"
	"github.com/aitop/aitop/internal/model"
	"github.com/aitop/aitop/internal/output"
	"github.com/aitop/aitop/internal/pricing"
	"github.com/aitop/aitop/internal/source"
)

const version = "0.1.0"

func main() {
	if err := rootCommand().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func reportFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "since", Usage: "Start date filter (YYYYMMDD)"},
		&cli.StringFlag{Name: "until", Usage: "End date filter (YYYYMMDD)"},
		&cli.StringFlag{Name: "timezone", Usage: "Timezone for date grouping (e.g. America/New_York)"},
		&cli.BoolFlag{Name: "json", Usage: "Output as JSON"},
		&cli.BoolFlag{Name: "breakdown", Usage: "Show per-model breakdown"},
		&cli.BoolFlag{Name: "compact", Aliases: []string{"c"}, Usage: "Force compact table output"},
		&cli.BoolFlag{Name: "offline", Usage: "Use the embedded pricing snapshot (no network)"},
	}
}

func rootCommand() *cli.Command {
	return &cli.Command{
		Name:            "aitop",
		Usage:           "Token usage and cost reports for AI coding assistants",
		Version:         version,
		HideHelpCommand: true,
		DefaultCommand:  "daily",
		Commands: []*cli.Command{
			reportCommand("daily", "Show daily usage report (default)"),
			reportCommand("monthly", "Show monthly usage report"),
			reportCommand("session", "Show usage by session"),
			reportCommand("blocks", "Show usage by 5-hour billing blocks"),
			configCommand(),
		},
	}
}

func reportCommand(kind, usage string) *cli.Command {
	return &cli.Command{
		Name:  kind,
		Usage: usage,
		Flags: reportFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runReport(cmd, kind)
		},
	}
}

func runReport(cmd *cli.Command, kind string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	opts, err := parseOptions(cmd, cfg)
	if err != nil {
		return err
	}

	loaders := source.Detect(source.Paths{
		ClaudeDir:  cfg.ClaudeDir,
		OpenCodeDB: cfg.OpenCodeDB,
	})
	if len(loaders) == 0 {
		fmt.Println("No usage data found. Supported tools: claude, opencode.")
		return nil
	}

	records, err := source.LoadAll(loaders)
	if err != nil {
		return err
	}
	records = dedup.Deduplicate(records)
	if len(records) == 0 {
		fmt.Println("No usage data found.")
		return nil
	}

	catalog, err := loadCatalog(cmd.Bool("offline") || cfg.Offline)
	if err != nil {
		return err
	}

	costed := aggregate.Filter(costs.Calculate(records, catalog), opts)
	if len(costed) == 0 {
		fmt.Println("No usage data found for the specified date range.")
		return nil
	}

	tableOpts := output.TableOptions{
		ForceCompact: cmd.Bool("compact"),
		Breakdown:    cmd.Bool("breakdown"),
	}

	switch kind {
	case "daily":
		return render(aggregate.ByDay(costed, opts), "Date", cmd.Bool("json"), tableOpts)
	case "monthly":
		return render(aggregate.ByMonth(costed, opts), "Month", cmd.Bool("json"), tableOpts)
	case "session":
		meta, err := sessionMetadata(loaders)
		if err != nil {
			return err
		}
		return render(aggregate.BySession(costed, meta), "Session", cmd.Bool("json"), tableOpts)
	case "blocks":
		blocks := aggregate.Blocks(costed, aggregate.BlockOptions{})
		if cmd.Bool("json") {
			return output.PrintBlocksJSON(blocks)
		}
		output.PrintBlocksTable(blocks, tableOpts)
		return nil
	}
	return fmt.Errorf("unknown report: %s", kind)
}

// loadCatalog builds the pricing catalog once for the run. When the online
// fetch fails we fall back to the embedded snapshot as a separate explicit
// path, with a warning.
func loadCatalog(offline bool) (*pricing.Catalog, error) {
	catalog, err := pricing.Load(offline)
	if err != nil && !offline && errors.Is(err, pricing.ErrFetch) {
		fmt.Fprintf(os.Stderr, "Warning: %v; using embedded pricing snapshot\n", err)
		return pricing.Load(true)
	}
	return catalog, err
}

func parseOptions(cmd *cli.Command, cfg *config.Config) (aggregate.Options, error) {
	var opts aggregate.Options

	if since := cmd.String("since"); since != "" {
		t, err := time.Parse("20060102", since)
		if err != nil {
			return opts, fmt.Errorf("invalid --since date %q, use YYYYMMDD", since)
		}
		opts.Since = t
	}

	if until := cmd.String("until"); until != "" {
		t, err := time.Parse("20060102", until)
		if err != nil {
			return opts, fmt.Errorf("invalid --until date %q, use YYYYMMDD", until)
		}
		// Include the entire day
		opts.Until = t.Add(24*time.Hour - time.Second)
	}

	tz := cmd.String("timezone")
	if tz == "" {
		tz = cfg.Timezone
	}
	if tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return opts, fmt.Errorf("invalid timezone %q", tz)
		}
		opts.Timezone = loc
	}

	return opts, nil
}

func sessionMetadata(loaders []source.Loader) (map[string]model.SessionMetadata, error) {
	meta := make(map[string]model.SessionMetadata)
	for _, l := range loaders {
		ss, ok := l.(source.SessionSource)
		if !ok {
			continue
		}
		sessions, err := ss.Sessions()
		if err != nil {
			return nil, fmt.Errorf("loading %s sessions: %w", l.Tool(), err)
		}
		for _, s := range sessions {
			meta[s.ID] = s
		}
	}
	return meta, nil
}

func render(buckets []aggregate.Bucket, title string, asJSON bool, tableOpts output.TableOptions) error {
	if asJSON {
		return output.PrintJSON(buckets)
	}
	output.PrintTable(buckets, title, tableOpts)
	return nil
}

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Show or update configuration",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "show", Usage: "Show current configuration"},
			&cli.BoolFlag{Name: "offline", Usage: "Default to the embedded pricing snapshot"},
			&cli.StringFlag{Name: "timezone", Usage: "Default timezone for date grouping"},
			&cli.StringFlag{Name: "claude-dir", Usage: "Claude Code data directory override"},
			&cli.StringFlag{Name: "opencode-db", Usage: "OpenCode database path override"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			if cmd.Bool("show") {
				fmt.Printf("Offline: %v\n", cfg.Offline)
				fmt.Printf("Timezone: %s\n", cfg.Timezone)
				fmt.Printf("Claude dir: %s\n", cfg.ClaudeDir)
				fmt.Printf("OpenCode DB: %s\n", cfg.OpenCodeDB)
				return nil
			}

			changed := false
			if cmd.IsSet("offline") {
				cfg.Offline = cmd.Bool("offline")
				changed = true
			}
			if cmd.IsSet("timezone") {
				cfg.Timezone = cmd.String("timezone")
				changed = true
			}
			if cmd.IsSet("claude-dir") {
				cfg.ClaudeDir = cmd.String("claude-dir")
				changed = true
			}
			if cmd.IsSet("opencode-db") {
				cfg.OpenCodeDB = cmd.String("opencode-db")
				changed = true
			}

			if !changed {
				return fmt.Errorf("nothing to update; use --show to view the current configuration")
			}

			if err := config.Save(cfg); err != nil {
				return fmt.Errorf("saving config: %w", err)
			}
			fmt.Println("Configuration saved.")
			return nil
		},
	}
}
