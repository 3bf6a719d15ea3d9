package state

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"blogpush/pkg/logx"
)

const (
	postedIDsFile = "posted_ids.json"
	titlesFile    = "existing_titles.json"
	cursorFile    = "progress.json"
)

// fileStore persists each set as a JSON file in one directory.
//
// Every write goes through a temp file plus atomic rename so a reader (or a
// crashed run) never observes a half-written file. Single-writer: no two job
// instances are assumed to share a state directory.
type fileStore struct {
	dir string
	log logx.Logger

	mu sync.Mutex
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &fileStore{dir: dir, log: log}, nil
}

func (s *fileStore) Close() error { return nil }

func (s *fileStore) LoadPostedIDs(ctx context.Context) (map[string]struct{}, error) {
	return s.loadSet(ctx, postedIDsFile)
}

func (s *fileStore) SavePostedIDs(ctx context.Context, ids map[string]struct{}) error {
	return s.saveSet(ctx, postedIDsFile, ids)
}

func (s *fileStore) LoadTitles(ctx context.Context) (map[string]struct{}, error) {
	return s.loadSet(ctx, titlesFile)
}

func (s *fileStore) SaveTitles(ctx context.Context, titles map[string]struct{}) error {
	return s.saveSet(ctx, titlesFile, titles)
}

func (s *fileStore) LoadCursor(ctx context.Context) (Cursor, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	var c Cursor
	b, err := os.ReadFile(filepath.Join(s.dir, cursorFile))
	if errors.Is(err, os.ErrNotExist) {
		return FreshCursor(), nil
	}
	if err != nil {
		return Cursor{}, err
	}
	if err := json.Unmarshal(b, &c); err != nil {
		return Cursor{}, err
	}
	if c.LastProcessed < -1 {
		c.LastProcessed = -1
	}
	return c, nil
}

func (s *fileStore) SaveCursor(ctx context.Context, c Cursor) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSONAtomic(filepath.Join(s.dir, cursorFile), c)
}

func (s *fileStore) loadSet(ctx context.Context, name string) (map[string]struct{}, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	out := map[string]struct{}{}
	b, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	var items []string
	if err := json.Unmarshal(b, &items); err != nil {
		return nil, err
	}
	for _, it := range items {
		out[it] = struct{}{}
	}
	return out, nil
}

func (s *fileStore) saveSet(ctx context.Context, name string, set map[string]struct{}) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]string, 0, len(set))
	for k := range set {
		items = append(items, k)
	}
	// Stable output keeps diffs between runs readable.
	sort.Strings(items)
	return writeJSONAtomic(filepath.Join(s.dir, name), items)
}

func writeJSONAtomic(path string, v any) error {
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
