package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/trendzee/live-trends/internal/models"
	"modernc.org/sqlite"
)

// unicodeLower folds case with Go's Unicode tables; the builtin lower()
// only folds ASCII
const unicodeLower = "unicode_lower"

func init() {
	sqlite.MustRegisterDeterministicScalarFunction(unicodeLower, 1, func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
		switch v := args[0].(type) {
		case string:
			return strings.ToLower(v), nil
		case []byte:
			return strings.ToLower(string(v)), nil
		default:
			return v, nil
		}
	})
}

// SQLiteStore persists trends in an embedded SQLite database
type SQLiteStore struct {
	db *sql.DB
}

// Ensure SQLiteStore implements TrendStore
var _ TrendStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database at path and applies the
// schema. Use ":memory:" for a throwaway database.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}

	// A single connection serializes writers and keeps ":memory:" databases
	// shared across calls
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logrus.Infof("Opened sqlite trend store at %s", path)
	return store, nil
}

func (s *SQLiteStore) init(ctx context.Context) error {
	stmts := []string{
		`PRAGMA journal_mode = WAL;`,
		`PRAGMA busy_timeout = 5000;`,
		`CREATE TABLE IF NOT EXISTS trends (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			category TEXT NOT NULL,
			platform TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			score REAL NOT NULL DEFAULT 0,
			velocity TEXT NOT NULL,
			likes INTEGER NOT NULL DEFAULT 0,
			shares INTEGER NOT NULL DEFAULT 0,
			comments INTEGER NOT NULL DEFAULT 0,
			source TEXT NOT NULL,
			external_url TEXT NOT NULL DEFAULT '',
			source_id TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_trends_source_id ON trends(source_id) WHERE source_id <> '';`,
		`CREATE INDEX IF NOT EXISTS idx_trends_score ON trends(score DESC, created_at DESC);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, c models.Candidate, now time.Time) (models.Trend, bool, error) {
	if c.SourceID == "" {
		return models.Trend{}, false, ErrNoSourceID
	}

	t := models.Trend{}
	t.Apply(c)
	t.CreatedAt, t.UpdatedAt = now, now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Trend{}, false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// a row another writer inserted first is updated, never re-inserted
	created := true
	err = tx.QueryRowContext(ctx, `INSERT INTO trends (
			title, category, platform, description, score, velocity,
			likes, shares, comments, source, external_url, source_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source_id) WHERE source_id <> '' DO NOTHING
		RETURNING id`,
		t.Title, t.Category, t.Platform, t.Description, t.Score, t.Velocity,
		t.Likes, t.Shares, t.Comments, t.Source, t.ExternalURL, t.SourceID,
		now.UnixNano(), now.UnixNano()).Scan(&t.ID)

	if errors.Is(err, sql.ErrNoRows) {
		created = false
		var createdAt int64
		err = tx.QueryRowContext(ctx, `UPDATE trends SET
				title = ?, category = ?, platform = ?, description = ?, score = ?, velocity = ?,
				likes = ?, shares = ?, comments = ?, source = ?, external_url = ?, updated_at = ?
			WHERE source_id = ?
			RETURNING id, created_at`,
			t.Title, t.Category, t.Platform, t.Description, t.Score, t.Velocity,
			t.Likes, t.Shares, t.Comments, t.Source, t.ExternalURL, now.UnixNano(), t.SourceID).Scan(&t.ID, &createdAt)
		if err != nil {
			return models.Trend{}, false, fmt.Errorf("update trend: %w", err)
		}
		t.CreatedAt = time.Unix(0, createdAt)
	} else if err != nil {
		return models.Trend{}, false, fmt.Errorf("insert trend: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.Trend{}, false, fmt.Errorf("commit upsert: %w", err)
	}
	return t, created, nil
}

func (s *SQLiteStore) Insert(ctx context.Context, t models.Trend) (models.Trend, error) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}

	res, err := s.db.ExecContext(ctx, `INSERT INTO trends (
			title, category, platform, description, score, velocity,
			likes, shares, comments, source, external_url, source_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Title, t.Category, t.Platform, t.Description, t.Score, t.Velocity,
		t.Likes, t.Shares, t.Comments, t.Source, t.ExternalURL, t.SourceID,
		t.CreatedAt.UnixNano(), t.UpdatedAt.UnixNano())
	if err != nil {
		return models.Trend{}, fmt.Errorf("insert trend: %w", err)
	}

	if t.ID, err = res.LastInsertId(); err != nil {
		return models.Trend{}, fmt.Errorf("insert trend: %w", err)
	}
	return t, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id int64) (models.Trend, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+trendColumns+` FROM trends WHERE id = ?`, id)
	t, err := scanSQLiteTrend(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Trend{}, ErrNotFound
	}
	if err != nil {
		return models.Trend{}, fmt.Errorf("get trend %d: %w", id, err)
	}
	return t, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM trends WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete trend %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete trend %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) DeleteNonManual(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM trends WHERE source <> ?`, models.SourceManual)
	if err != nil {
		return 0, fmt.Errorf("delete non-manual trends: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete non-manual trends: %w", err)
	}
	return int(n), nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM trends`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count trends: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) Query(ctx context.Context, f Filter) ([]models.Trend, error) {
	query, args := sqliteDialect.buildQuery(f)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query trends: %w", err)
	}
	defer rows.Close()

	trends := []models.Trend{}
	for rows.Next() {
		t, err := scanSQLiteTrend(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trend: %w", err)
		}
		trends = append(trends, t)
	}
	return trends, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSQLiteTrend(row rowScanner) (models.Trend, error) {
	var t models.Trend
	var createdAt, updatedAt int64
	err := row.Scan(&t.ID, &t.Title, &t.Category, &t.Platform, &t.Description, &t.Score, &t.Velocity,
		&t.Likes, &t.Shares, &t.Comments, &t.Source, &t.ExternalURL, &t.SourceID, &createdAt, &updatedAt)
	if err != nil {
		return models.Trend{}, err
	}
	t.CreatedAt = time.Unix(0, createdAt)
	t.UpdatedAt = time.Unix(0, updatedAt)
	return t, nil
}
