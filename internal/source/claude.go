package source

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aitop/aitop/internal/model"
)

// rawEntry represents the raw JSON structure of one line in a Claude Code
// transcript JSONL file
type rawEntry struct {
	Type      string  `json:"type"`
	SessionID string  `json:"sessionId"`
	Timestamp string  `json:"timestamp"`
	CWD       string  `json:"cwd"`
	UUID      string  `json:"uuid"`
	RequestID string  `json:"requestId"`
	CostUSD   float64 `json:"costUSD"`
	Message   struct {
		ID    string `json:"id"`
		Role  string `json:"role"`
		Model string `json:"model"`
		Usage struct {
			InputTokens              int64 `json:"input_tokens"`
			OutputTokens             int64 `json:"output_tokens"`
			CacheCreationInputTokens int64 `json:"cache_creation_input_tokens"`
			CacheReadInputTokens     int64 `json:"cache_read_input_tokens"`
		} `json:"usage"`
	} `json:"message"`
}

// ClaudeLoader reads Claude Code's per-project JSONL transcripts.
type ClaudeLoader struct {
	dir string
}

// NewClaudeLoader resolves the Claude data directory: explicit override,
// then CLAUDE_CONFIG_DIR, then ~/.claude.
func NewClaudeLoader(dir string) *ClaudeLoader {
	if dir == "" {
		dir = os.Getenv("CLAUDE_CONFIG_DIR")
	}
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".claude")
		}
	}
	return &ClaudeLoader{dir: dir}
}

func (l *ClaudeLoader) Tool() string { return "claude" }

func (l *ClaudeLoader) Detect() bool {
	info, err := os.Stat(filepath.Join(l.dir, "projects"))
	return err == nil && info.IsDir()
}

// Load parses every JSONL file under <dir>/projects. A missing directory
// yields no records; malformed or non-billable lines are skipped.
func (l *ClaudeLoader) Load() ([]model.UsageRecord, error) {
	files, err := l.findTranscripts()
	if err != nil {
		return nil, err
	}

	var records []model.UsageRecord
	for _, file := range files {
		recs, err := parseTranscript(file)
		if err != nil {
			return nil, fmt.Errorf("reading transcript %s: %w", file, err)
		}
		records = append(records, recs...)
	}
	return records, nil
}

func (l *ClaudeLoader) findTranscripts() ([]string, error) {
	projectsDir := filepath.Join(l.dir, "projects")
	if _, err := os.Stat(projectsDir); os.IsNotExist(err) {
		return nil, nil
	}

	var files []string
	err := filepath.Walk(projectsDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".jsonl" {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", projectsDir, err)
	}
	return files, nil
}

// parseTranscript parses a single JSONL file and returns its usage records.
// The file handle is closed before returning on every path.
func parseTranscript(path string) ([]model.UsageRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var records []model.UsageRecord
	scanner := bufio.NewScanner(file)

	// Increase buffer size for large lines
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var raw rawEntry
		if err := json.Unmarshal(line, &raw); err != nil {
			// Skip malformed lines
			continue
		}

		rec, ok := normalizeEntry(raw)
		if !ok {
			continue
		}
		records = append(records, rec)
	}

	return records, scanner.Err()
}

// normalizeEntry validates one raw line and converts it to a UsageRecord.
// Non-assistant turns and turns with no billable tokens are dropped.
func normalizeEntry(raw rawEntry) (model.UsageRecord, bool) {
	if raw.Type != "assistant" || raw.Message.Model == "" {
		return model.UsageRecord{}, false
	}
	if raw.Message.Role != "" && raw.Message.Role != "assistant" {
		return model.UsageRecord{}, false
	}

	usage := raw.Message.Usage
	if usage.InputTokens < 0 || usage.OutputTokens < 0 ||
		usage.CacheCreationInputTokens < 0 || usage.CacheReadInputTokens < 0 {
		return model.UsageRecord{}, false
	}
	if usage.InputTokens == 0 && usage.OutputTokens == 0 {
		return model.UsageRecord{}, false
	}

	timestamp, err := time.Parse(time.RFC3339, raw.Timestamp)
	if err != nil {
		return model.UsageRecord{}, false
	}

	return model.UsageRecord{
		Timestamp:   timestamp,
		SessionID:   raw.SessionID,
		ProjectPath: raw.CWD,
		Model:       raw.Message.Model,
		Provider:    "anthropic",
		Usage: model.TokenUsage{
			InputTokens:              usage.InputTokens,
			OutputTokens:             usage.OutputTokens,
			CacheCreationInputTokens: usage.CacheCreationInputTokens,
			CacheReadInputTokens:     usage.CacheReadInputTokens,
		},
		ReportedCostUSD: raw.CostUSD,
		RecordID:        transcriptRecordID(raw),
	}, true
}

// transcriptRecordID builds the dedup key for a transcript line. The same
// API response can appear in more than one file (resumed sessions), so the
// message ID plus request ID identifies the underlying event. Lines with
// neither are never deduplicated.
func transcriptRecordID(raw rawEntry) string {
	switch {
	case raw.Message.ID != "" && raw.RequestID != "":
		return raw.Message.ID + ":" + raw.RequestID
	case raw.RequestID != "":
		return raw.RequestID
	case raw.Message.ID != "":
		return raw.Message.ID
	}
	return ""
}
