// Package source loads usage records from the local data directories of
// supported AI coding assistants. Each tool gets its own Loader; a missing
// data directory means the tool is not installed and yields no records.
package source

import "github.com/aitop/aitop/internal/model"

// Loader produces normalized usage records for one tool's log format.
type Loader interface {
	// Tool returns the short name of the assistant this loader reads.
	Tool() string
	// Detect reports whether the tool's data directory exists.
	Detect() bool
	// Load reads all usage records. An absent data source yields an empty
	// result and a nil error; an unreadable or corrupt source is an error.
	Load() ([]model.UsageRecord, error)
}

// SessionSource is implemented by loaders whose backing store also keeps
// session metadata.
type SessionSource interface {
	Sessions() ([]model.SessionMetadata, error)
}

// Paths carries per-tool location overrides from the config file. Zero
// values fall back to environment variables, then the tool defaults.
type Paths struct {
	ClaudeDir  string
	OpenCodeDB string
}

// Detect probes all known loaders and returns the ones whose data exists.
func Detect(paths Paths) []Loader {
	all := []Loader{
		NewClaudeLoader(paths.ClaudeDir),
		NewOpenCodeLoader(paths.OpenCodeDB),
	}

	var found []Loader
	for _, l := range all {
		if l.Detect() {
			found = append(found, l)
		}
	}
	return found
}

// LoadAll loads records from every detected source. Loader errors are fatal:
// a present-but-unreadable source indicates a data integrity problem, not
// "nothing to report".
func LoadAll(loaders []Loader) ([]model.UsageRecord, error) {
	var records []model.UsageRecord
	for _, l := range loaders {
		recs, err := l.Load()
		if err != nil {
			return nil, err
		}
		records = append(records, recs...)
	}
	return records, nil
}
