package publish

import (
	"context"
	"errors"
	"time"

	"blogpush/internal/hosting"
	"blogpush/pkg/logx"
)

// Executor publishes one candidate with a bounded retry loop.
//
// It reads the dedup sets through the isDup callback and proposes state
// changes via the returned Outcome; committing them is the driver's job.
type Executor struct {
	client hosting.Client
	gov    *Governor
	cfg    Config
	log    logx.Logger
}

func NewExecutor(client hosting.Client, gov *Governor, cfg Config, log logx.Logger) *Executor {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Executor{client: client, gov: gov, cfg: cfg.withDefaults(), log: log}
}

// Attempt publishes post, retrying quota/rate/transient failures up to the
// configured budget. Fatal failures propagate on the first occurrence; a
// context ending anywhere in the sequence yields OutcomeAborted so the item
// stays unprocessed. A skip touches neither the remote nor the hourly bucket;
// every insert attempt charges the bucket first.
func (e *Executor) Attempt(ctx context.Context, post hosting.Post, isDup func(string) bool) Outcome {
	if isDup(post.Title) {
		return Outcome{Kind: OutcomeSkipped}
	}

	var (
		lastErr  error
		lastKind hosting.Kind
	)
	for attempt := 1; attempt <= e.cfg.MaxRetries; attempt++ {
		if err := e.gov.Reserve(ctx); err != nil {
			return Outcome{Kind: OutcomeAborted, Attempts: attempt - 1, Err: err}
		}
		ins, err := e.client.InsertPost(ctx, post)
		if err == nil {
			e.log.Info("post published",
				logx.String("title", post.Title),
				logx.String("url", ins.URL),
				logx.Int("attempt", attempt))
			return Outcome{Kind: OutcomeSuccess, URL: ins.URL, ID: ins.ID, Attempts: attempt}
		}

		// A shutdown mid-insert is not a publish failure.
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Outcome{Kind: OutcomeAborted, Attempts: attempt, Err: err}
		}

		lastErr = err
		lastKind = hosting.KindOf(err)
		if lastKind == hosting.KindFatal {
			return Outcome{Kind: OutcomeFatalFailure, Attempts: attempt, Class: lastKind, Err: err}
		}
		if attempt >= e.cfg.MaxRetries {
			break
		}

		wait := e.retryWait(lastKind, attempt)
		e.log.Warn("publish attempt failed; backing off",
			logx.String("title", post.Title),
			logx.String("class", lastKind.String()),
			logx.Int("attempt", attempt),
			logx.Duration("wait", wait),
			logx.Err(err))
		if err := sleepCtx(ctx, wait); err != nil {
			return Outcome{Kind: OutcomeAborted, Attempts: attempt, Err: err}
		}
	}

	return Outcome{Kind: OutcomeRetryableFailure, Attempts: e.cfg.MaxRetries, Class: lastKind, Err: lastErr}
}

// retryWait computes the backoff before attempt+1:
// quota exhaustion gets the long fixed cooldown, an explicit 429 the short
// fixed one, anything else exponential backoff from BaseDelay.
func (e *Executor) retryWait(kind hosting.Kind, attempt int) time.Duration {
	switch kind {
	case hosting.KindQuota:
		return e.cfg.QuotaCooldown
	case hosting.KindTooManyRequests:
		return e.cfg.RetryAfter429
	}
	d := e.cfg.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	return d
}
