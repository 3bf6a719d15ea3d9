//go:build sqlite
// +build sqlite

package state

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"blogpush/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) LoadPostedIDs(ctx context.Context) (map[string]struct{}, error) {
	return s.loadSet(ctx, "posted_ids")
}

func (s *sqliteStore) SavePostedIDs(ctx context.Context, ids map[string]struct{}) error {
	return s.saveSet(ctx, "posted_ids", ids)
}

func (s *sqliteStore) LoadTitles(ctx context.Context) (map[string]struct{}, error) {
	return s.loadSet(ctx, "existing_titles")
}

func (s *sqliteStore) SaveTitles(ctx context.Context, titles map[string]struct{}) error {
	return s.saveSet(ctx, "existing_titles", titles)
}

func (s *sqliteStore) LoadCursor(ctx context.Context) (Cursor, error) {
	c := FreshCursor()
	err := s.db.QueryRowContext(ctx, `SELECT last_processed FROM cursor WHERE id = 1`).Scan(&c.LastProcessed)
	if errors.Is(err, sql.ErrNoRows) {
		return c, nil
	}
	if err != nil {
		return Cursor{}, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT idx, title, err FROM failed_entries ORDER BY idx`)
	if err != nil {
		return Cursor{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var fe FailedEntry
		if err := rows.Scan(&fe.Index, &fe.Title, &fe.Error); err != nil {
			return Cursor{}, err
		}
		c.Failed = append(c.Failed, fe)
	}
	return c, rows.Err()
}

func (s *sqliteStore) SaveCursor(ctx context.Context, c Cursor) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO cursor(id, last_processed) VALUES(1, ?)
		 ON CONFLICT(id) DO UPDATE SET last_processed=excluded.last_processed`,
		c.LastProcessed,
	); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM failed_entries`); err != nil {
		return err
	}
	for _, fe := range c.Failed {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO failed_entries(idx, title, err) VALUES(?,?,?)`,
			fe.Index, fe.Title, fe.Error,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) loadSet(ctx context.Context, table string) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT title FROM `+table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]struct{}{}
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out[t] = struct{}{}
	}
	return out, rows.Err()
}

func (s *sqliteStore) saveSet(ctx context.Context, table string, set map[string]struct{}) error {
	// Titles are only ever added, so upserting the current set is enough;
	// rows are never deleted.
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for t := range set {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO `+table+`(title) VALUES(?) ON CONFLICT(title) DO NOTHING`, t,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}
