package trigger

import (
	"context"
	"time"

	sd "github.com/coreos/go-systemd/v22/daemon"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"blogpush/internal/config"
	"blogpush/pkg/logx"
)

// Runner executes one batch run. A run error does not stop the daemon: the
// whole point of scheduled re-runs is to resume after quota exhaustion.
type Runner func(ctx context.Context) error

// Daemon invokes the job on a schedule. It also watches the config file so
// tunables apply between runs, and keeps systemd informed when running under
// it (readiness plus optional watchdog pings).
type Daemon struct {
	sched   cron.Schedule
	run     Runner
	cfgPath string
	onCfg   func(*config.Config)
	log     logx.Logger
}

func NewDaemon(spec string, run Runner, cfgPath string, onCfg func(*config.Config), log logx.Logger) (*Daemon, error) {
	sched, err := ParseSchedule(spec)
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Daemon{sched: sched, run: run, cfgPath: cfgPath, onCfg: onCfg, log: log}, nil
}

// Run blocks until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	if sent, err := sd.SdNotify(false, sd.SdNotifyReady); err == nil && sent {
		d.log.Debug("systemd readiness notified")
	}

	g, gctx := errgroup.WithContext(ctx)

	if d.onCfg != nil {
		g.Go(func() error {
			return config.Watch(gctx, d.cfgPath, d.log, d.onCfg)
		})
	}
	g.Go(func() error {
		return d.watchdogLoop(gctx)
	})
	g.Go(func() error {
		return d.scheduleLoop(gctx)
	})

	return g.Wait()
}

func (d *Daemon) scheduleLoop(ctx context.Context) error {
	for {
		next := d.sched.Next(time.Now())
		wait := time.Until(next)
		d.log.Info("next run scheduled", logx.Time("at", next), logx.Duration("in", wait))

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			if !t.Stop() {
				<-t.C
			}
			return ctx.Err()
		case <-t.C:
		}

		start := time.Now()
		if err := d.run(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			d.log.Error("scheduled run failed", logx.Err(err), logx.Duration("dur", time.Since(start)))
		} else {
			d.log.Info("scheduled run finished", logx.Duration("dur", time.Since(start)))
		}
	}
}

// watchdogLoop pings the systemd watchdog at half the configured interval.
// No-op when the watchdog is not armed.
func (d *Daemon) watchdogLoop(ctx context.Context) error {
	interval, err := sd.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	t := time.NewTicker(interval / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			_, _ = sd.SdNotify(false, sd.SdNotifyWatchdog)
		}
	}
}
