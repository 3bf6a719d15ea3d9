package publish

import (
	"context"
	"errors"
	"time"
)

// ErrRateLimitExhausted is the job-fatal condition: the retry budget ran out
// while the failure was still quota/rate-classified. The whole run stops so
// no further quota is burned.
var ErrRateLimitExhausted = errors.New("publish: rate limit retry budget exhausted")

// ErrInputLoad wraps a candidate-list read failure. Fatal before any work.
var ErrInputLoad = errors.New("publish: candidate list unreadable")

// Config controls the publishing pipeline.
//
// All zero fields fall back to the documented defaults via withDefaults.
type Config struct {
	// PostsFile is the candidate list (JSON array of {title, content, labels}).
	PostsFile string
	// Dir is the working directory for report artifacts
	// (failed_posts.json, report_<timestamp>.json).
	Dir string

	// MaxRetries bounds publish attempts per item.
	MaxRetries int
	// BaseDelay seeds both the pacing step function and the exponential
	// retry backoff.
	BaseDelay time.Duration
	// QuotaCooldown is the fixed wait after a quota-exhaustion failure.
	QuotaCooldown time.Duration
	// RetryAfter429 is the fixed wait after an HTTP 429.
	RetryAfter429 time.Duration

	// HourlyCeiling is the maximum successful publishes per rolling hour.
	HourlyCeiling int
	// Tier2At/Tier3At are the posted-count thresholds where pacing widens.
	Tier2At    int
	Tier3At    int
	Tier2Delay time.Duration
	Tier3Delay time.Duration

	// CheckpointEvery is how many advanced items may pass between cursor
	// persists.
	CheckpointEvery int

	// RefreshTitles forces a remote listing even when the local title cache
	// is non-empty.
	RefreshTitles bool
}

func (c Config) withDefaults() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 5
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 10 * time.Second
	}
	if c.QuotaCooldown <= 0 {
		c.QuotaCooldown = time.Hour
	}
	if c.RetryAfter429 <= 0 {
		c.RetryAfter429 = 60 * time.Second
	}
	if c.HourlyCeiling <= 0 {
		c.HourlyCeiling = 50
	}
	if c.Tier2At <= 0 {
		c.Tier2At = 40
	}
	if c.Tier3At <= 0 {
		c.Tier3At = 45
	}
	if c.Tier2Delay <= 0 {
		c.Tier2Delay = 30 * time.Second
	}
	if c.Tier3Delay <= 0 {
		c.Tier3Delay = 33 * time.Second
	}
	if c.CheckpointEvery <= 0 {
		c.CheckpointEvery = 5
	}
	if c.Dir == "" {
		c.Dir = "."
	}
	return c
}

// Notifier is the best-effort chat notification collaborator.
// Implementations must never let a delivery failure escape.
type Notifier interface {
	Send(ctx context.Context, text string)
}
