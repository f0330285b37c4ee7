package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/sirupsen/logrus"
	"github.com/trendzee/live-trends/internal/models"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS trends (
		id BIGSERIAL PRIMARY KEY,
		title TEXT NOT NULL,
		category TEXT NOT NULL,
		platform TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		score DOUBLE PRECISION NOT NULL DEFAULT 0,
		velocity TEXT NOT NULL,
		likes BIGINT NOT NULL DEFAULT 0,
		shares BIGINT NOT NULL DEFAULT 0,
		comments BIGINT NOT NULL DEFAULT 0,
		source TEXT NOT NULL,
		external_url TEXT NOT NULL DEFAULT '',
		source_id TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS trends_source_id_key ON trends (source_id) WHERE source_id <> '';
	CREATE INDEX IF NOT EXISTS trends_score_idx ON trends (score DESC, created_at DESC);
`

// PostgresStore persists trends in PostgreSQL
type PostgresStore struct {
	db *pgxpool.Pool
}

// Ensure PostgresStore implements TrendStore
var _ TrendStore = (*PostgresStore)(nil)

// NewPostgresStore connects to databaseURL and applies the schema
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.Connect(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	logrus.Info("Connected to postgres trend store")
	return &PostgresStore{db: pool}, nil
}

// Upsert relies on ON CONFLICT so concurrent runs never observe a
// half-written row; xmax = 0 only holds for freshly inserted tuples
func (s *PostgresStore) Upsert(ctx context.Context, c models.Candidate, now time.Time) (models.Trend, bool, error) {
	if c.SourceID == "" {
		return models.Trend{}, false, ErrNoSourceID
	}

	query := `
		INSERT INTO trends (
			title, category, platform, description, score, velocity,
			likes, shares, comments, source, external_url, source_id,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12,
			$13, $13
		)
		ON CONFLICT (source_id) WHERE source_id <> '' DO UPDATE
		SET
			title = EXCLUDED.title,
			category = EXCLUDED.category,
			platform = EXCLUDED.platform,
			description = EXCLUDED.description,
			score = EXCLUDED.score,
			velocity = EXCLUDED.velocity,
			likes = EXCLUDED.likes,
			shares = EXCLUDED.shares,
			comments = EXCLUDED.comments,
			source = EXCLUDED.source,
			external_url = EXCLUDED.external_url,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, (xmax = 0) AS inserted
	`

	t := models.Trend{UpdatedAt: now}
	t.Apply(c)

	var created bool
	err := s.db.QueryRow(ctx, query,
		t.Title, string(t.Category), string(t.Platform), t.Description, t.Score, string(t.Velocity),
		t.Likes, t.Shares, t.Comments, string(t.Source), t.ExternalURL, t.SourceID,
		now,
	).Scan(&t.ID, &t.CreatedAt, &created)
	if err != nil {
		return models.Trend{}, false, fmt.Errorf("upsert trend: %w", err)
	}

	return t, created, nil
}

func (s *PostgresStore) Insert(ctx context.Context, t models.Trend) (models.Trend, error) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}

	query := `
		INSERT INTO trends (
			title, category, platform, description, score, velocity,
			likes, shares, comments, source, external_url, source_id,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id
	`

	err := s.db.QueryRow(ctx, query,
		t.Title, string(t.Category), string(t.Platform), t.Description, t.Score, string(t.Velocity),
		t.Likes, t.Shares, t.Comments, string(t.Source), t.ExternalURL, t.SourceID,
		t.CreatedAt, t.UpdatedAt,
	).Scan(&t.ID)
	if err != nil {
		return models.Trend{}, fmt.Errorf("insert trend: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (models.Trend, error) {
	row := s.db.QueryRow(ctx, `SELECT `+trendColumns+` FROM trends WHERE id = $1`, id)
	t, err := scanPostgresTrend(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Trend{}, ErrNotFound
	}
	if err != nil {
		return models.Trend{}, fmt.Errorf("get trend %d: %w", id, err)
	}
	return t, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM trends WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete trend %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteNonManual(ctx context.Context) (int, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM trends WHERE source <> $1`, string(models.SourceManual))
	if err != nil {
		return 0, fmt.Errorf("delete non-manual trends: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM trends`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count trends: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) Query(ctx context.Context, f Filter) ([]models.Trend, error) {
	query, args := postgresDialect.buildQuery(f)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query trends: %w", err)
	}
	defer rows.Close()

	trends := []models.Trend{}
	for rows.Next() {
		t, err := scanPostgresTrend(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trend: %w", err)
		}
		trends = append(trends, t)
	}
	return trends, rows.Err()
}

func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

func scanPostgresTrend(row pgx.Row) (models.Trend, error) {
	var t models.Trend
	var category, platform, velocity, source string
	err := row.Scan(&t.ID, &t.Title, &category, &platform, &t.Description, &t.Score, &velocity,
		&t.Likes, &t.Shares, &t.Comments, &source, &t.ExternalURL, &t.SourceID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return models.Trend{}, err
	}
	t.Category = models.Category(category)
	t.Platform = models.Platform(platform)
	t.Velocity = models.Velocity(velocity)
	t.Source = models.Source(source)
	return t, nil
}
