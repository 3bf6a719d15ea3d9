package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"blogpush/internal/config"
	"blogpush/internal/hosting"
	"blogpush/internal/notify"
	"blogpush/internal/publish"
	"blogpush/internal/state"
	"blogpush/internal/trigger"
	"blogpush/pkg/logx"
)

func main() {
	var (
		cfgPath  string
		schedule string
		once     bool
	)
	flag.StringVar(&cfgPath, "config", "./blogpush.yaml", "path to config file (yaml or json)")
	flag.StringVar(&schedule, "schedule", "", "run on a schedule (cron spec or interval); overrides the config file")
	flag.BoolVar(&once, "once", false, "force a single run even when the config sets a schedule")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	os.Exit(run(ctx, cfgPath, schedule, once))
}

func run(ctx context.Context, cfgPath, schedule string, once bool) int {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal: config:", err)
		return 1
	}

	// Required credentials fail fast, before any work.
	creds, tg, err := config.LoadEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		return 1
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console || !cfg.Logging.File.Enabled,
		File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
	})
	defer logSvc.Close()

	client, err := buildClient(ctx, cfg, creds, log)
	if err != nil {
		log.Error("hosting client init failed", logx.Err(err))
		return 1
	}

	var notifier *notify.Service
	if tg.Enabled() {
		sender, err := notify.NewTelegramSender(tg.Token)
		if err != nil {
			log.Warn("telegram init failed; notifications disabled", logx.Err(err))
		} else {
			notifier = notify.New(notify.Config{
				Enabled:    true,
				Token:      tg.Token,
				ChatID:     tg.ChatID,
				RatePerSec: cfg.Notify.RatePerSec,
				QueueSize:  cfg.Notify.QueueSize,
			}, sender, log)
			notifier.Start(ctx)
			defer func() {
				stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
				notifier.Stop(stopCtx)
				stopCancel()
			}()
		}
	} else {
		log.Warn("telegram env not set; notifications disabled")
	}

	// Daemon mode keeps the latest config snapshot; one-shot just uses it once.
	var current atomic.Pointer[config.Config]
	current.Store(cfg)

	runOnce := func(ctx context.Context) error {
		return runJob(ctx, current.Load(), client, notifier, log)
	}

	spec := schedule
	if spec == "" {
		spec = cfg.Schedule
	}
	if spec != "" && !once {
		d, err := trigger.NewDaemon(spec, runOnce, cfgPath, func(c *config.Config) {
			current.Store(c)
			logSvc.Apply(logx.Config{
				Level:   c.Logging.Level,
				Console: c.Logging.Console || !c.Logging.File.Enabled,
				File:    logx.FileConfig{Enabled: c.Logging.File.Enabled, Path: c.Logging.File.Path},
			})
		}, log)
		if err != nil {
			log.Error("invalid schedule", logx.Err(err))
			return 1
		}
		if err := d.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("daemon stopped", logx.Err(err))
			return 1
		}
		return 0
	}

	if err := runOnce(ctx); err != nil {
		log.Error("run failed", logx.Err(err))
		return 1
	}
	return 0
}

func buildClient(ctx context.Context, cfg *config.Config, creds config.Credentials, log logx.Logger) (hosting.Client, error) {
	timeout, err := config.ParseDurationOrDefault("hosting.timeout", cfg.Hosting.Timeout, 30*time.Second)
	if err != nil {
		return nil, err
	}
	return hosting.New(ctx, hosting.Config{
		APIBase:      cfg.Hosting.APIBase,
		BlogID:       creds.BlogID,
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RefreshToken: creds.RefreshToken,
		TokenURL:     creds.TokenURL,
		PageSize:     cfg.Hosting.PageSize,
		Timeout:      timeout,
	}, log)
}

// runJob opens the state store, runs one batch, and closes the store again.
// Per-run open keeps daemon mode honest about single-writer ownership.
func runJob(ctx context.Context, cfg *config.Config, client hosting.Client, notifier *notify.Service, log logx.Logger) error {
	jobCfg, err := jobConfig(cfg)
	if err != nil {
		return err
	}

	busy, err := config.ParseDurationField("state.busy_timeout", cfg.State.BusyTimeout)
	if err != nil {
		return err
	}
	stateDir := cfg.State.Dir
	if stateDir == "" {
		stateDir = jobCfg.Dir
	}
	store, err := state.Open(state.Config{
		Driver:      cfg.State.Driver,
		Dir:         stateDir,
		Path:        cfg.State.Path,
		BusyTimeout: busy,
	}, log)
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	defer store.Close()

	var n publish.Notifier
	if notifier != nil {
		n = notifier
	}
	driver := publish.NewDriver(client, store, n, jobCfg, log)
	sum, err := driver.Run(ctx)
	if err != nil {
		return err
	}
	log.Info("run summary",
		logx.Int("attempted", sum.Attempted),
		logx.Int("published", sum.Published),
		logx.Int("skipped", sum.Skipped),
		logx.Int("failed", sum.Failed),
		logx.String("report", sum.ReportPath))
	return nil
}

func jobConfig(cfg *config.Config) (publish.Config, error) {
	base, err := config.ParseDurationField("job.base_delay", cfg.Job.BaseDelay)
	if err != nil {
		return publish.Config{}, err
	}
	quota, err := config.ParseDurationField("job.quota_cooldown", cfg.Job.QuotaCooldown)
	if err != nil {
		return publish.Config{}, err
	}
	after429, err := config.ParseDurationField("job.retry_after_429", cfg.Job.RetryAfter429)
	if err != nil {
		return publish.Config{}, err
	}

	postsFile := cfg.Job.PostsFile
	if postsFile == "" {
		postsFile = "./posts.json"
	}
	return publish.Config{
		PostsFile:       postsFile,
		Dir:             cfg.Job.Dir,
		MaxRetries:      cfg.Job.MaxRetries,
		BaseDelay:       base,
		QuotaCooldown:   quota,
		RetryAfter429:   after429,
		HourlyCeiling:   cfg.Job.HourlyCeiling,
		CheckpointEvery: cfg.Job.CheckpointEvery,
		RefreshTitles:   cfg.Job.RefreshTitles,
	}, nil
}
