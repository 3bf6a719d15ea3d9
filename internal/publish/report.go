package publish

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"blogpush/internal/state"
)

const failedPostsFile = "failed_posts.json"

// Report is the end-of-run (and abort-time) summary artifact.
type Report struct {
	Timestamp           time.Time `json:"timestamp"`
	TerminationReason   string    `json:"terminationReason"`
	TotalPostsAttempted int       `json:"totalPostsAttempted"`
	SuccessfulPosts     int       `json:"successfulPosts"`
	FailedPosts         int       `json:"failedPosts"`
	PostedIDsCount      int       `json:"postedIdsCount"`
	ExistingTitlesCount int       `json:"existingTitlesCount"`
}

// writeReport writes report_<timestamp>.json into dir and returns its path.
func writeReport(dir string, r Report) (string, error) {
	name := "report_" + r.Timestamp.UTC().Format("20060102T150405") + ".json"
	path := filepath.Join(dir, name)
	return path, writeArtifact(path, r)
}

// writeFailed writes the failed-items side file. Only called when failures
// occurred.
func writeFailed(dir string, entries []state.FailedEntry) (string, error) {
	path := filepath.Join(dir, failedPostsFile)
	return path, writeArtifact(path, entries)
}

func writeArtifact(path string, v any) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
