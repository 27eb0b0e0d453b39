package meta

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens (or creates) a metadata database.
// Use ":memory:" for an in-memory database, or a file path for persistent storage.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// one connection keeps ":memory:" databases shared
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS source_paths (
		path TEXT PRIMARY KEY,
		origin TEXT NOT NULL,
		recorded_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS restricted_access (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL,
		access TEXT NOT NULL,
		UNIQUE(path, access)
	);
	CREATE INDEX IF NOT EXISTS idx_restricted_path ON restricted_access(path);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordSourcePath stores the origin of a copied file, replacing any earlier origin.
func (s *SQLiteStore) RecordSourcePath(ctx context.Context, target, origin string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO source_paths (path, origin, recorded_at) VALUES (?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET origin = excluded.origin, recorded_at = excluded.recorded_at`,
		target, origin, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert source path: %w", err)
	}
	return nil
}

// RecordRestrictedAccess adds access groups for file. Existing groups are kept.
func (s *SQLiteStore) RecordRestrictedAccess(ctx context.Context, file string, access []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	for _, a := range access {
		if a == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO restricted_access (path, access) VALUES (?, ?)", file, a); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert restricted access: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) SourcePath(ctx context.Context, file string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var origin string
	err := s.db.QueryRowContext(ctx, "SELECT origin FROM source_paths WHERE path = ?", file).Scan(&origin)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query source path: %w", err)
	}
	return origin, true, nil
}

func (s *SQLiteStore) RestrictedAccess(ctx context.Context, file string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.restrictedAccess(ctx, file)
}

func (s *SQLiteStore) restrictedAccess(ctx context.Context, file string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT access FROM restricted_access WHERE path = ? ORDER BY id", file)
	if err != nil {
		return nil, fmt.Errorf("query restricted access: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, fmt.Errorf("scan restricted access: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Files lists every file with metadata, ordered by path.
func (s *SQLiteStore) Files(ctx context.Context) ([]FileMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.path, COALESCE(sp.origin, '')
		FROM (SELECT path FROM source_paths UNION SELECT path FROM restricted_access) p
		LEFT JOIN source_paths sp ON sp.path = p.path
		ORDER BY p.path`)
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	var out []FileMeta
	for rows.Next() {
		var fm FileMeta
		if err := rows.Scan(&fm.Path, &fm.SourcePath); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan file: %w", err)
		}
		out = append(out, fm)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()
	for i := range out {
		if out[i].RestrictedAccess, err = s.restrictedAccess(ctx, out[i].Path); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
