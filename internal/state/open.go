package state

import (
	"context"
	"errors"
	"strings"

	"blogpush/pkg/logx"
)

// Store is the persistence API used by the batch driver.
//
// The three sets it owns are the posted-identifier set (titles this job has
// published in any run), the existing-title cache (titles observed on the
// remote service), and the progress cursor.
type Store interface {
	LoadPostedIDs(ctx context.Context) (map[string]struct{}, error)
	SavePostedIDs(ctx context.Context, ids map[string]struct{}) error

	LoadTitles(ctx context.Context) (map[string]struct{}, error)
	SaveTitles(ctx context.Context, titles map[string]struct{}) error

	LoadCursor(ctx context.Context) (Cursor, error)
	SaveCursor(ctx context.Context, c Cursor) error

	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown state driver: " + driver)
	}
}
