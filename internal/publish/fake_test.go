package publish

import (
	"context"
	"sync"
	"time"

	"blogpush/internal/hosting"
)

// fakeClient scripts InsertPost responses per title and serves a fixed,
// single-page remote listing.
type fakeClient struct {
	mu      sync.Mutex
	inserts []string

	remote   []string
	insertFn func(p hosting.Post) (*hosting.InsertedPost, error)
}

func (f *fakeClient) ListPosts(ctx context.Context, pageToken string) (*hosting.PostList, error) {
	_ = pageToken
	out := &hosting.PostList{}
	for _, t := range f.remote {
		out.Items = append(out.Items, hosting.PostRef{Title: t})
	}
	return out, nil
}

func (f *fakeClient) InsertPost(ctx context.Context, p hosting.Post) (*hosting.InsertedPost, error) {
	f.mu.Lock()
	f.inserts = append(f.inserts, p.Title)
	f.mu.Unlock()
	if f.insertFn != nil {
		return f.insertFn(p)
	}
	return &hosting.InsertedPost{ID: "id-" + p.Title, URL: "https://blog.example/" + p.Title}, nil
}

func (f *fakeClient) insertCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.inserts...)
}

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (n *fakeNotifier) Send(ctx context.Context, text string) {
	_ = ctx
	n.mu.Lock()
	n.msgs = append(n.msgs, text)
	n.mu.Unlock()
}

func (n *fakeNotifier) messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.msgs...)
}

// fastConfig keeps every wait microscopic so tests never sleep for real.
func fastConfig(dir string) Config {
	return Config{
		Dir:             dir,
		MaxRetries:      5,
		BaseDelay:       time.Millisecond,
		QuotaCooldown:   time.Millisecond,
		RetryAfter429:   time.Millisecond,
		Tier2Delay:      time.Millisecond,
		Tier3Delay:      time.Millisecond,
		CheckpointEvery: 5,
	}
}
