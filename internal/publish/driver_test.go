package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"blogpush/internal/hosting"
	"blogpush/internal/state"
	"blogpush/pkg/logx"
)

func writePosts(t *testing.T, dir string, posts []hosting.Post) string {
	t.Helper()
	b, err := json.Marshal(posts)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "posts.json")
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func openStore(t *testing.T, dir string) state.Store {
	t.Helper()
	st, err := state.Open(state.Config{Dir: dir}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func newTestDriver(t *testing.T, dir string, fc *fakeClient, n Notifier) (*Driver, state.Store) {
	t.Helper()
	cfg := fastConfig(dir)
	cfg.PostsFile = filepath.Join(dir, "posts.json")
	st := openStore(t, dir)
	return NewDriver(fc, st, n, cfg, logx.Nop()), st
}

func readStrings(t *testing.T, path string) []string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var out []string
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatal(err)
	}
	return out
}

func readCursorFile(t *testing.T, dir string) state.Cursor {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(dir, "progress.json"))
	if err != nil {
		t.Fatal(err)
	}
	var c state.Cursor
	if err := json.Unmarshal(b, &c); err != nil {
		t.Fatal(err)
	}
	return c
}

// Scenario A: single candidate, empty prior state.
func TestDriverPublishesSingleCandidate(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writePosts(t, dir, []hosting.Post{{Title: "X", Content: "hello"}})
	fc := &fakeClient{}
	d, _ := newTestDriver(t, dir, fc, nil)

	sum, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Published != 1 || sum.Failed != 0 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	if calls := fc.insertCalls(); len(calls) != 1 || calls[0] != "X" {
		t.Fatalf("insert calls = %v, want [X]", calls)
	}
	if ids := readStrings(t, filepath.Join(dir, "posted_ids.json")); len(ids) != 1 || ids[0] != "X" {
		t.Fatalf("posted_ids.json = %v, want [X]", ids)
	}
	if sum.ReportPath == "" {
		t.Fatal("expected a report path")
	}
	if _, err := os.Stat(sum.ReportPath); err != nil {
		t.Fatalf("report not written: %v", err)
	}
}

// Scenario B: candidate already in the posted-identifier set.
func TestDriverSkipsAlreadyPosted(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writePosts(t, dir, []hosting.Post{{Title: "X"}})
	fc := &fakeClient{}
	d, st := newTestDriver(t, dir, fc, nil)

	if err := st.SavePostedIDs(context.Background(), map[string]struct{}{"X": {}}); err != nil {
		t.Fatal(err)
	}

	sum, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Skipped != 1 || sum.Published != 0 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	if calls := fc.insertCalls(); len(calls) != 0 {
		t.Fatalf("insert calls = %v, want none", calls)
	}
}

// Scenario C: every insert hits the quota; the whole run aborts.
func TestDriverAbortsOnQuotaExhaustion(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writePosts(t, dir, []hosting.Post{{Title: "X"}, {Title: "Y"}})
	fc := &fakeClient{insertFn: func(hosting.Post) (*hosting.InsertedPost, error) {
		return nil, quotaErr()
	}}
	n := &fakeNotifier{}
	d, _ := newTestDriver(t, dir, fc, n)

	_, err := d.Run(context.Background())
	if !errors.Is(err, ErrRateLimitExhausted) {
		t.Fatalf("Run error = %v, want ErrRateLimitExhausted", err)
	}
	// Only the first item should have been attempted, MaxRetries times.
	if calls := fc.insertCalls(); len(calls) != 5 {
		t.Fatalf("insert calls = %d, want 5", len(calls))
	}

	reports, err := filepath.Glob(filepath.Join(dir, "report_*.json"))
	if err != nil || len(reports) != 1 {
		t.Fatalf("expected exactly one report, got %v (err=%v)", reports, err)
	}
	b, err := os.ReadFile(reports[0])
	if err != nil {
		t.Fatal(err)
	}
	var r Report
	if err := json.Unmarshal(b, &r); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(r.TerminationReason, "rate limit") {
		t.Fatalf("terminationReason = %q, want it to mention the rate limit", r.TerminationReason)
	}
	if len(n.messages()) == 0 {
		t.Fatal("expected an abort notification")
	}
}

// Scenario D: item 2 of 3 fails with a non-rate-limit error; the others succeed.
func TestDriverRecordsItemLocalFailure(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writePosts(t, dir, []hosting.Post{{Title: "A"}, {Title: "B"}, {Title: "C"}})
	fc := &fakeClient{insertFn: func(p hosting.Post) (*hosting.InsertedPost, error) {
		if p.Title == "B" {
			return nil, fatalErr()
		}
		return &hosting.InsertedPost{ID: "id-" + p.Title, URL: "u"}, nil
	}}
	n := &fakeNotifier{}
	d, _ := newTestDriver(t, dir, fc, n)

	sum, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v (partial failure must not be fatal)", err)
	}
	if sum.Published != 2 || sum.Failed != 1 {
		t.Fatalf("unexpected summary: %+v", sum)
	}

	c := readCursorFile(t, dir)
	if len(c.Failed) != 1 || c.Failed[0].Index != 1 || c.Failed[0].Title != "B" {
		t.Fatalf("progress.json failed = %+v, want one entry for index 1", c.Failed)
	}
	if c.LastProcessed != 2 {
		t.Fatalf("lastProcessed = %d, want 2", c.LastProcessed)
	}

	failed := filepath.Join(dir, "failed_posts.json")
	if _, err := os.Stat(failed); err != nil {
		t.Fatalf("failed_posts.json not written: %v", err)
	}
	if len(n.messages()) == 0 {
		t.Fatal("expected a failure notification")
	}
}

// Scenario E: a prior run left lastProcessed=1 of 5; resume covers 2..4 only.
func TestDriverResumesFromCursor(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writePosts(t, dir, []hosting.Post{
		{Title: "P0"}, {Title: "P1"}, {Title: "P2"}, {Title: "P3"}, {Title: "P4"},
	})
	fc := &fakeClient{}
	d, st := newTestDriver(t, dir, fc, nil)

	if err := st.SaveCursor(context.Background(), state.Cursor{LastProcessed: 1}); err != nil {
		t.Fatal(err)
	}

	sum, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{"P2", "P3", "P4"}
	got := fc.insertCalls()
	if len(got) != len(want) {
		t.Fatalf("insert calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("insert calls = %v, want %v", got, want)
		}
	}
	if sum.Attempted != 3 {
		t.Fatalf("attempted = %d, want 3", sum.Attempted)
	}
}

// Idempotent resume: a re-run with the posted set intact publishes nothing.
func TestDriverIdempotentRerun(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writePosts(t, dir, []hosting.Post{{Title: "A"}, {Title: "B"}})
	fc := &fakeClient{}
	d, _ := newTestDriver(t, dir, fc, nil)

	if _, err := d.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if calls := fc.insertCalls(); len(calls) != 2 {
		t.Fatalf("first run insert calls = %v", calls)
	}

	// Simulate a fresh invocation whose cursor was lost: dedup must still
	// prevent re-publication.
	if err := os.Remove(filepath.Join(dir, "progress.json")); err != nil {
		t.Fatal(err)
	}
	d2, _ := newTestDriver(t, dir, fc, nil)
	sum, err := d2.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if calls := fc.insertCalls(); len(calls) != 2 {
		t.Fatalf("re-run issued new inserts: %v", calls)
	}
	if sum.Skipped != 2 {
		t.Fatalf("re-run skipped = %d, want 2", sum.Skipped)
	}
}

// Remote titles count as duplicates even when never published locally.
func TestDriverSkipsRemotelyObservedTitle(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writePosts(t, dir, []hosting.Post{{Title: "seen"}, {Title: "new"}})
	fc := &fakeClient{remote: []string{"seen"}}
	d, _ := newTestDriver(t, dir, fc, nil)

	sum, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Skipped != 1 || sum.Published != 1 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	if calls := fc.insertCalls(); len(calls) != 1 || calls[0] != "new" {
		t.Fatalf("insert calls = %v, want [new]", calls)
	}
	// The refreshed cache must have been persisted.
	titles := readStrings(t, filepath.Join(dir, "existing_titles.json"))
	if len(titles) == 0 {
		t.Fatal("existing_titles.json not persisted after refresh")
	}
}

func TestDriverInputLoadErrorIsFatal(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	fc := &fakeClient{}
	d, _ := newTestDriver(t, dir, fc, nil)

	_, err := d.Run(context.Background())
	if !errors.Is(err, ErrInputLoad) {
		t.Fatalf("Run error = %v, want ErrInputLoad", err)
	}
	if calls := fc.insertCalls(); len(calls) != 0 {
		t.Fatal("no partial processing on input load failure")
	}
}

// countingStore records every persisted cursor value.
type countingStore struct {
	state.Store
	mu    sync.Mutex
	saved []state.Cursor
}

func (c *countingStore) SaveCursor(ctx context.Context, cur state.Cursor) error {
	c.mu.Lock()
	c.saved = append(c.saved, cur)
	c.mu.Unlock()
	return c.Store.SaveCursor(ctx, cur)
}

func (c *countingStore) cursors() []state.Cursor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]state.Cursor(nil), c.saved...)
}

// Cancellation mid-item must leave the item unprocessed: no failed entry, the
// cursor still before it, so a resumed run re-attempts the same index.
func TestDriverCancelledItemIsReattempted(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writePosts(t, dir, []hosting.Post{{Title: "A"}, {Title: "B"}})
	ctx, cancel := context.WithCancel(context.Background())
	fc := &fakeClient{insertFn: func(p hosting.Post) (*hosting.InsertedPost, error) {
		cancel()
		return nil, context.Canceled
	}}
	d, _ := newTestDriver(t, dir, fc, nil)

	_, err := d.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v, want context.Canceled", err)
	}

	c := readCursorFile(t, dir)
	if c.LastProcessed != -1 {
		t.Fatalf("lastProcessed = %d, want -1 (interrupted item not passed)", c.LastProcessed)
	}
	if len(c.Failed) != 0 {
		t.Fatalf("failed = %+v, want none for a shutdown", c.Failed)
	}

	// A fresh run picks the same item up and publishes it.
	fc2 := &fakeClient{}
	d2, _ := newTestDriver(t, dir, fc2, nil)
	if _, err := d2.Run(context.Background()); err != nil {
		t.Fatalf("resumed run: %v", err)
	}
	calls := fc2.insertCalls()
	if len(calls) != 2 || calls[0] != "A" {
		t.Fatalf("resumed insert calls = %v, want [A B]", calls)
	}
}

// Skipped candidates make no remote call and must not consume hourly-bucket
// slots: a long already-published prefix traverses instantly.
func TestDriverSkipsDoNotChargeHourlyBucket(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writePosts(t, dir, []hosting.Post{{Title: "A"}, {Title: "B"}, {Title: "C"}})
	fc := &fakeClient{}
	cfg := fastConfig(dir)
	cfg.PostsFile = filepath.Join(dir, "posts.json")
	cfg.HourlyCeiling = 1
	st := openStore(t, dir)
	if err := st.SavePostedIDs(context.Background(), map[string]struct{}{
		"A": {}, "B": {}, "C": {},
	}); err != nil {
		t.Fatal(err)
	}
	d := NewDriver(fc, st, nil, cfg, logx.Nop())

	// With a ceiling of 1, charging the bucket per candidate would need two
	// bucket refills (~2h); the deadline proves no slot is consumed.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	sum, err := d.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Skipped != 3 || sum.Published != 0 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	if calls := fc.insertCalls(); len(calls) != 0 {
		t.Fatalf("insert calls = %v, want none", calls)
	}
}

// The cursor is persisted every CheckpointEvery advanced items, not only at
// the end of the run.
func TestDriverCheckpointCadence(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	posts := make([]hosting.Post, 12)
	for i := range posts {
		posts[i] = hosting.Post{Title: fmt.Sprintf("post-%02d", i)}
	}
	writePosts(t, dir, posts)
	fc := &fakeClient{}
	cfg := fastConfig(dir)
	cfg.PostsFile = filepath.Join(dir, "posts.json")
	cs := &countingStore{Store: openStore(t, dir)}
	d := NewDriver(fc, cs, nil, cfg, logx.Nop())

	if _, err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var marks []int
	for _, c := range cs.cursors() {
		marks = append(marks, c.LastProcessed)
	}
	// CheckpointEvery=5 over 12 items: intermediate persists at 4 and 9,
	// final one at 11.
	want := []int{4, 9, 11}
	if len(marks) != len(want) {
		t.Fatalf("persisted cursors = %v, want %v", marks, want)
	}
	for i := range want {
		if marks[i] != want[i] {
			t.Fatalf("persisted cursors = %v, want %v", marks, want)
		}
	}
}

func TestDriverCursorMonotonic(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writePosts(t, dir, []hosting.Post{
		{Title: "A"}, {Title: "B"}, {Title: "C"}, {Title: "D"},
		{Title: "E"}, {Title: "F"}, {Title: "G"},
	})
	fc := &fakeClient{}
	d, st := newTestDriver(t, dir, fc, nil)

	if _, err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	c, err := st.LoadCursor(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if c.LastProcessed != 6 {
		t.Fatalf("lastProcessed = %d, want 6", c.LastProcessed)
	}
}
