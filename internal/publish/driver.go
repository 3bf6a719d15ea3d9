package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"blogpush/internal/hosting"
	"blogpush/internal/state"
	"blogpush/pkg/logx"
)

// Driver is the top-level control loop: it owns the in-memory sets and the
// cursor for the duration of one run, and commits the executor's proposed
// updates at the defined checkpoints.
type Driver struct {
	cfg      Config
	client   hosting.Client
	store    state.Store
	gov      *Governor
	exec     *Executor
	notifier Notifier
	log      logx.Logger

	now func() time.Time
}

func NewDriver(client hosting.Client, store state.Store, notifier Notifier, cfg Config, log logx.Logger) *Driver {
	if log.IsZero() {
		log = logx.Nop()
	}
	cfg = cfg.withDefaults()
	gov := NewGovernor(cfg)
	return &Driver{
		cfg:      cfg,
		client:   client,
		store:    store,
		gov:      gov,
		exec:     NewExecutor(client, gov, cfg, log),
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

// Summary is the reportable outcome of one run.
type Summary struct {
	Attempted  int
	Published  int
	Skipped    int
	Failed     int
	Reason     string
	ReportPath string
}

// runState is the mutable per-run state, owned by the driver and threaded
// explicitly through each step.
type runState struct {
	posts     []hosting.Post
	postedIDs map[string]struct{}
	titles    map[string]struct{}
	cursor    state.Cursor

	attempted int
	published int
	skipped   int

	sinceCheckpoint int
}

// Run executes one batch run. It returns a nil error when the iteration
// completed, even if individual items failed; ErrRateLimitExhausted (or a
// startup/input error) otherwise. A report file is written on every path,
// including unexpected failures.
func (d *Driver) Run(ctx context.Context) (Summary, error) {
	st, err := d.startUp(ctx)
	if err != nil {
		return Summary{Reason: err.Error()}, err
	}

	sum, err := d.runLoop(ctx, st)
	if err != nil {
		// Abort path: the operator still gets a report describing what was
		// accomplished.
		sum.Reason = err.Error()
		d.finishReport(st, &sum)
		d.notify(ctx, fmt.Sprintf("publish run aborted: %s (published=%d failed=%d)", sum.Reason, sum.Published, sum.Failed))
		return sum, err
	}

	sum.Reason = "completed"
	if len(st.cursor.Failed) > 0 {
		if path, ferr := writeFailed(d.cfg.Dir, st.cursor.Failed); ferr != nil {
			d.log.Error("failed-items file write failed", logx.Err(ferr))
		} else {
			d.log.Info("failed-items file written", logx.String("path", path), logx.Int("count", len(st.cursor.Failed)))
		}
	}
	d.finishReport(st, &sum)
	d.notify(ctx, fmt.Sprintf("publish run completed: published=%d skipped=%d failed=%d", sum.Published, sum.Skipped, sum.Failed))
	return sum, nil
}

// startUp loads the candidate list and all persisted state. Any failure here
// is fatal before the main loop starts.
func (d *Driver) startUp(ctx context.Context) (*runState, error) {
	posts, err := loadPosts(d.cfg.PostsFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInputLoad, err)
	}

	postedIDs, err := d.store.LoadPostedIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load posted ids: %w", err)
	}
	titles, err := d.store.LoadTitles(ctx)
	if err != nil {
		return nil, fmt.Errorf("load title cache: %w", err)
	}
	cursor, err := d.store.LoadCursor(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cursor: %w", err)
	}

	st := &runState{posts: posts, postedIDs: postedIDs, titles: titles, cursor: cursor}

	// The title cache is eventually-consistent by contract: refresh it from
	// the remote listing when empty (or when forced), but a listing failure
	// only degrades dedup, it never blocks publication.
	if len(titles) == 0 || d.cfg.RefreshTitles {
		if err := d.refreshTitles(ctx, st); err != nil {
			d.log.Warn("remote title refresh failed; continuing with local cache",
				logx.Int("cached", len(titles)), logx.Err(err))
		}
	}

	d.log.Info("run starting",
		logx.Int("posts", len(posts)),
		logx.Int("start_index", cursor.LastProcessed+1),
		logx.Int("posted_ids", len(postedIDs)),
		logx.Int("known_titles", len(st.titles)))
	return st, nil
}

func (d *Driver) refreshTitles(ctx context.Context, st *runState) error {
	pageToken := ""
	pages := 0
	for {
		page, err := d.client.ListPosts(ctx, pageToken)
		if err != nil {
			return err
		}
		for _, it := range page.Items {
			st.titles[it.Title] = struct{}{}
		}
		pages++
		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}
	d.log.Debug("title cache refreshed", logx.Int("pages", pages), logx.Int("titles", len(st.titles)))
	return d.store.SaveTitles(ctx, st.titles)
}

func (d *Driver) runLoop(ctx context.Context, st *runState) (Summary, error) {
	last := len(st.posts) - 1
	for i := st.cursor.LastProcessed + 1; i <= last; i++ {
		if err := ctx.Err(); err != nil {
			return d.summary(st), err
		}
		post := st.posts[i]
		st.attempted++

		out := d.exec.Attempt(ctx, post, func(title string) bool {
			return ShouldSkip(title, st.postedIDs, st.titles)
		})

		switch out.Kind {
		case OutcomeSkipped:
			st.skipped++
			d.log.Debug("post skipped (already known)", logx.Int("index", i), logx.String("title", post.Title))
			d.advance(ctx, st, i)

		case OutcomeSuccess:
			st.published++
			st.postedIDs[post.Title] = struct{}{}
			st.titles[post.Title] = struct{}{}
			if err := d.store.SavePostedIDs(ctx, st.postedIDs); err != nil {
				return d.summary(st), fmt.Errorf("persist posted ids: %w", err)
			}
			if err := d.store.SaveTitles(ctx, st.titles); err != nil {
				return d.summary(st), fmt.Errorf("persist title cache: %w", err)
			}
			d.advance(ctx, st, i)
			// Pace the next request; never a trailing wait after the final item.
			if i < last {
				if err := d.gov.Pace(ctx, st.published); err != nil {
					return d.summary(st), err
				}
			}

		case OutcomeAborted:
			// Shutdown mid-item: the cursor stays before this index so a
			// resumed run re-attempts it. Not recorded as a failure.
			st.attempted--
			d.log.Info("run interrupted; item left for next run",
				logx.Int("index", i), logx.String("title", post.Title), logx.Err(out.Err))
			// Persist past the cancellation that triggered the abort.
			d.checkpoint(context.WithoutCancel(ctx), st)
			return d.summary(st), fmt.Errorf("run interrupted: %w", out.Err)

		default:
			if out.jobFatal() {
				d.log.Error("rate limit retry budget exhausted; aborting run",
					logx.Int("index", i),
					logx.String("title", post.Title),
					logx.Int("attempts", out.Attempts),
					logx.Err(out.Err))
				d.checkpoint(ctx, st)
				return d.summary(st), fmt.Errorf("%w: %v", ErrRateLimitExhausted, out.Err)
			}

			// Item-local failure: record it, persist immediately, move on.
			// The failed index counts as attempted, so a resumed run will
			// not re-attempt it.
			st.cursor.Failed = append(st.cursor.Failed, state.FailedEntry{
				Index: i,
				Title: post.Title,
				Error: out.Err.Error(),
			})
			st.cursor.LastProcessed = i
			st.sinceCheckpoint = 0
			if err := d.store.SaveCursor(ctx, st.cursor); err != nil {
				d.log.Error("cursor persist failed", logx.Err(err))
			}
			d.log.Warn("post failed; continuing",
				logx.Int("index", i), logx.String("title", post.Title), logx.Err(out.Err))
			d.notify(ctx, fmt.Sprintf("post %q failed: %v", post.Title, out.Err))
		}
	}

	d.checkpoint(ctx, st)
	return d.summary(st), nil
}

// advance moves the cursor past index i and persists it every CheckpointEvery
// advanced items (and always on the last item, via the final checkpoint call).
func (d *Driver) advance(ctx context.Context, st *runState, i int) {
	st.cursor.LastProcessed = i
	st.sinceCheckpoint++
	if st.sinceCheckpoint >= d.cfg.CheckpointEvery {
		d.checkpoint(ctx, st)
	}
}

func (d *Driver) checkpoint(ctx context.Context, st *runState) {
	st.sinceCheckpoint = 0
	if err := d.store.SaveCursor(ctx, st.cursor); err != nil {
		d.log.Error("cursor persist failed", logx.Err(err))
	}
}

func (d *Driver) summary(st *runState) Summary {
	return Summary{
		Attempted: st.attempted,
		Published: st.published,
		Skipped:   st.skipped,
		Failed:    len(st.cursor.Failed),
	}
}

func (d *Driver) finishReport(st *runState, sum *Summary) {
	r := Report{
		Timestamp:           d.now(),
		TerminationReason:   sum.Reason,
		TotalPostsAttempted: sum.Attempted,
		SuccessfulPosts:     sum.Published,
		FailedPosts:         sum.Failed,
		PostedIDsCount:      len(st.postedIDs),
		ExistingTitlesCount: len(st.titles),
	}
	path, err := writeReport(d.cfg.Dir, r)
	if err != nil {
		d.log.Error("report write failed", logx.Err(err))
		return
	}
	sum.ReportPath = path
	d.log.Info("report written", logx.String("path", path), logx.String("reason", sum.Reason))
}

func (d *Driver) notify(ctx context.Context, text string) {
	if d.notifier == nil {
		return
	}
	d.notifier.Send(ctx, text)
}

// loadPosts reads the candidate list. The input is read once at job start and
// never mutated.
func loadPosts(path string) ([]hosting.Post, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var posts []hosting.Post
	if err := json.Unmarshal(b, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}
