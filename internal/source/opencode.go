package source

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	_ "github.com/mattn/go-sqlite3"

	"github.com/aitop/aitop/internal/model"
)

// messagePayload is the JSON usage document OpenCode stores per assistant
// message row.
type messagePayload struct {
	Role     string  `json:"role"`
	Model    string  `json:"model"`
	Provider string  `json:"provider"`
	Cost     float64 `json:"cost"`
	Time     struct {
		Created int64 `json:"created"` // unix milliseconds
	} `json:"time"`
	Tokens struct {
		Input  int64 `json:"input"`
		Output int64 `json:"output"`
		Cache  struct {
			Read  int64 `json:"read"`
			Write int64 `json:"write"`
		} `json:"cache"`
	} `json:"tokens"`
}

// OpenCodeLoader reads usage from OpenCode's embedded SQLite store.
type OpenCodeLoader struct {
	dbPath string
}

// NewOpenCodeLoader resolves the database path: explicit override, then
// OPENCODE_DATA_DIR, then the XDG data directory.
func NewOpenCodeLoader(dbPath string) *OpenCodeLoader {
	if dbPath == "" {
		if dir := os.Getenv("OPENCODE_DATA_DIR"); dir != "" {
			dbPath = filepath.Join(dir, "opencode.db")
		}
	}
	if dbPath == "" {
		dbPath = filepath.Join(xdg.DataHome, "opencode", "opencode.db")
	}
	return &OpenCodeLoader{dbPath: dbPath}
}

func (l *OpenCodeLoader) Tool() string { return "opencode" }

func (l *OpenCodeLoader) Detect() bool {
	info, err := os.Stat(l.dbPath)
	return err == nil && !info.IsDir()
}

// Load queries all assistant message rows. A missing database file yields no
// records; an unopenable or unreadable database is an error. The connection
// is closed before returning on every path.
func (l *OpenCodeLoader) Load() ([]model.UsageRecord, error) {
	if _, err := os.Stat(l.dbPath); os.IsNotExist(err) {
		return nil, nil
	}

	db, err := l.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query(`SELECT id, session_id, data FROM messages WHERE role = 'assistant'`)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var records []model.UsageRecord
	for rows.Next() {
		var id, sessionID string
		var data []byte
		if err := rows.Scan(&id, &sessionID, &data); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}

		rec, ok := normalizeMessage(id, sessionID, data)
		if !ok {
			continue
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading messages: %w", err)
	}

	return records, nil
}

// Sessions loads the session table for metadata joins.
func (l *OpenCodeLoader) Sessions() ([]model.SessionMetadata, error) {
	if _, err := os.Stat(l.dbPath); os.IsNotExist(err) {
		return nil, nil
	}

	db, err := l.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query(`SELECT id, parent_id, title, project_id, directory FROM sessions`)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var sessions []model.SessionMetadata
	for rows.Next() {
		var s model.SessionMetadata
		var parentID sql.NullString
		if err := rows.Scan(&s.ID, &parentID, &s.Title, &s.ProjectID, &s.Directory); err != nil {
			return nil, fmt.Errorf("scanning session row: %w", err)
		}
		s.ParentID = parentID.String
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading sessions: %w", err)
	}

	return sessions, nil
}

func (l *OpenCodeLoader) open() (*sql.DB, error) {
	db, err := sql.Open("sqlite3", l.dbPath+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", l.dbPath, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening database %s: %w", l.dbPath, err)
	}
	return db, nil
}

// normalizeMessage validates one message payload and converts it to a
// UsageRecord. Invalid payloads are skipped, not fatal.
func normalizeMessage(id, sessionID string, data []byte) (model.UsageRecord, bool) {
	var payload messagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return model.UsageRecord{}, false
	}

	if payload.Role != "" && payload.Role != "assistant" {
		return model.UsageRecord{}, false
	}
	if payload.Model == "" || payload.Time.Created <= 0 {
		return model.UsageRecord{}, false
	}

	t := payload.Tokens
	if t.Input < 0 || t.Output < 0 || t.Cache.Read < 0 || t.Cache.Write < 0 {
		return model.UsageRecord{}, false
	}
	if t.Input == 0 && t.Output == 0 {
		return model.UsageRecord{}, false
	}

	return model.UsageRecord{
		Timestamp: time.UnixMilli(payload.Time.Created).UTC(),
		SessionID: sessionID,
		Model:     payload.Model,
		Provider:  payload.Provider,
		Usage: model.TokenUsage{
			InputTokens:              t.Input,
			OutputTokens:             t.Output,
			CacheCreationInputTokens: t.Cache.Write,
			CacheReadInputTokens:     t.Cache.Read,
		},
		ReportedCostUSD: payload.Cost,
		RecordID:        id,
	}, true
}
