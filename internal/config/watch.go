package config

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"blogpush/pkg/logx"
)

// Watch re-reads the config file on filesystem changes and hands each
// successfully parsed, actually-changed config to onChange. It blocks until
// ctx is done. Used by daemon mode so tunables apply between runs without a
// restart.
func Watch(ctx context.Context, path string, log logx.Logger, onChange func(*Config)) error {
	if log.IsZero() {
		log = logx.Nop()
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// Watch the directory, not the file: editors replace files via rename and
	// the direct watch would go stale.
	dir := filepath.Dir(path)
	file := filepath.Base(path)
	if err := w.Add(dir); err != nil {
		return err
	}

	// Debounce to avoid reacting to partial writes. lastHash is guarded by
	// timerMu because the reload callback runs on the timer goroutine.
	var (
		timerMu  sync.Mutex
		timer    *time.Timer
		lastHash uint64
	)
	if cfg, err := Load(path); err == nil {
		lastHash = hashConfig(cfg)
	}
	reload := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(250*time.Millisecond, func() {
			cfg, err := Load(path)
			if err != nil {
				log.Warn("config reload failed", logx.String("path", path), logx.Err(err))
				return
			}
			h := hashConfig(cfg)
			timerMu.Lock()
			same := h != 0 && h == lastHash
			lastHash = h
			timerMu.Unlock()
			if same {
				return
			}
			log.Info("config reloaded", logx.String("path", path))
			onChange(cfg)
		})
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != file {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				reload()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("config watch error", logx.Err(err))
		}
	}
}

func hashConfig(cfg *Config) uint64 {
	if cfg == nil {
		return 0
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}
