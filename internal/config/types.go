package config

// Config is the file-backed configuration (YAML or JSON, strict decode).
// Credentials never live here; they come from the environment (env.go).
type Config struct {
	Logging LoggingConfig `json:"logging"`
	Job     JobConfig     `json:"job"`
	Hosting HostingConfig `json:"hosting,omitempty"`
	Notify  NotifyConfig  `json:"notify,omitempty"`
	State   StateConfig   `json:"state,omitempty"`

	// Schedule enables daemon mode: a cron spec ("0 * * * *") or an
	// interval ("@every 2h"). Empty means one-shot.
	Schedule string `json:"schedule,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// JobConfig tunes the publishing pipeline.
//
// All durations are Go duration strings (e.g. "10s", "1h").
// Defaults (when fields are omitted/zero):
//   - posts_file: "./posts.json"
//   - dir: "."
//   - max_retries: 5
//   - base_delay: "10s"
//   - quota_cooldown: "1h"
//   - retry_after_429: "60s"
//   - hourly_ceiling: 50 (pacing widens at 40 and 45 successful posts)
//   - checkpoint_every: 5
type JobConfig struct {
	PostsFile string `json:"posts_file,omitempty"`
	Dir       string `json:"dir,omitempty"`

	MaxRetries    int    `json:"max_retries,omitempty"`
	BaseDelay     string `json:"base_delay,omitempty"`
	QuotaCooldown string `json:"quota_cooldown,omitempty"`
	RetryAfter429 string `json:"retry_after_429,omitempty"`

	HourlyCeiling   int  `json:"hourly_ceiling,omitempty"`
	CheckpointEvery int  `json:"checkpoint_every,omitempty"`
	RefreshTitles   bool `json:"refresh_titles,omitempty"`
}

// HostingConfig tunes the content-hosting client. The blog identity and
// OAuth credentials are environment-only.
type HostingConfig struct {
	APIBase  string `json:"api_base,omitempty"`
	PageSize int    `json:"page_size,omitempty"` // listing page size, default 500
	Timeout  string `json:"timeout,omitempty"`   // per-call HTTP timeout
}

// NotifyConfig tunes the chat notifier. The bot token and chat id are
// environment-only; their absence disables notifications with a warning.
type NotifyConfig struct {
	RatePerSec int `json:"rate_per_sec,omitempty"`
	QueueSize  int `json:"queue_size,omitempty"`
}

// StateConfig selects the persistence driver.
//
// Example:
//
//	"state": { "driver": "file", "dir": "." }
type StateConfig struct {
	Driver      string `json:"driver,omitempty"`
	Dir         string `json:"dir,omitempty"`
	Path        string `json:"path,omitempty"`         // sqlite database path
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}
