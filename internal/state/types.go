package state

import "time"

// Config configures persistence.
//
// Driver values:
//   - "file": JSON files in Dir (posted_ids.json, existing_titles.json, progress.json)
//   - "sqlite": single SQLite database file (optional build tag)
//
// If Driver is empty, "file" is assumed.
type Config struct {
	Driver      string
	Dir         string        // file driver: working directory for state files
	Path        string        // sqlite driver: database path
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// FailedEntry records one item that failed with a non-rate-limit error.
type FailedEntry struct {
	Index int    `json:"index"`
	Title string `json:"title"`
	Error string `json:"error"`
}

// Cursor is the persisted progress checkpoint.
//
// LastProcessed is the index of the last attempted item, -1 before any work.
// It only moves forward within a run; a resumed run starts at LastProcessed+1.
type Cursor struct {
	LastProcessed int           `json:"lastProcessed"`
	Failed        []FailedEntry `json:"failed"`
}

// FreshCursor is the cursor of a job that has processed nothing yet.
func FreshCursor() Cursor {
	return Cursor{LastProcessed: -1}
}
