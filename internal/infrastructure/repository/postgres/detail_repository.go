package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/steam-game-recommender/internal/core/domain"
)

// DetailRepository keeps the latest detail record fetched for each store item.
type DetailRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewDetailRepository(db *sql.DB) *DetailRepository {
	return &DetailRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *DetailRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101601)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS item_details (
	app_id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	payload JSONB NOT NULL,
	fetched_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_item_details_fetched_at ON item_details(fetched_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// GetDetails returns domain.ErrItemNotFound when no record newer than maxAge exists.
func (r *DetailRepository) GetDetails(ctx context.Context, id string, maxAge time.Duration) (*domain.ItemDetails, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT payload
FROM item_details
WHERE app_id = $1 AND fetched_at >= $2
`, id, r.now().Add(-maxAge))

	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrItemNotFound, "get item details", fmt.Errorf("app %s", id))
		}
		return nil, fmt.Errorf("scan item details: %w", err)
	}

	var details domain.ItemDetails
	if err := json.Unmarshal(payload, &details); err != nil {
		return nil, fmt.Errorf("unmarshal item details: %w", err)
	}
	return &details, nil
}

func (r *DetailRepository) PutDetails(ctx context.Context, details domain.ItemDetails) error {
	payload, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("marshal item details: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO item_details (app_id, name, payload, fetched_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (app_id) DO UPDATE
SET name = EXCLUDED.name, payload = EXCLUDED.payload, fetched_at = EXCLUDED.fetched_at
`, details.ID, details.Name, payload, r.now())
	if err != nil {
		return fmt.Errorf("upsert item details: %w", err)
	}
	return nil
}
