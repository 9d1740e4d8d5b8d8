package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marwilc/graph-p2p-backend/internal/models"
)

// PostgresBackend stores one row per raw PricePoint, scoped by direction.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

func NewPostgresBackend(pool *pgxpool.Pool) *PostgresBackend {
	return &PostgresBackend{pool: pool}
}

// EnsureSchema creates the series table if it does not exist yet.
func (b *PostgresBackend) EnsureSchema(ctx context.Context) error {
	_, err := b.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS price_points (
			id         BIGSERIAL PRIMARY KEY,
			direction  TEXT NOT NULL,
			day        DATE NOT NULL,
			price      DOUBLE PRECISION NOT NULL,
			observed   TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS price_points_dir_day_idx
			ON price_points (direction, day);
	`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (b *PostgresBackend) All(ctx context.Context, direction models.TradeDirection) ([]models.PricePoint, error) {
	rows, err := b.pool.Query(ctx,
		`SELECT day, price, observed FROM price_points
		 WHERE direction = $1 ORDER BY observed ASC`,
		string(direction),
	)
	if err != nil {
		return nil, fmt.Errorf("query series: %w", err)
	}
	defer rows.Close()

	var out []models.PricePoint
	for rows.Next() {
		var p models.PricePoint
		var day time.Time
		if err := rows.Scan(&day, &p.Price, &p.Timestamp); err != nil {
			return nil, fmt.Errorf("scan point: %w", err)
		}
		p.Date = day.Format(models.DayFormat)
		p.TradeDirection = direction
		out = append(out, p)
	}
	return out, rows.Err()
}

func (b *PostgresBackend) Append(ctx context.Context, point models.PricePoint) error {
	_, err := b.pool.Exec(ctx,
		`INSERT INTO price_points (direction, day, price, observed)
		 VALUES ($1, $2, $3, $4)`,
		string(point.TradeDirection), point.Date, point.Price, point.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert point: %w", err)
	}
	return nil
}

func (b *PostgresBackend) Prune(ctx context.Context, direction models.TradeDirection, cutoff time.Time) (int, error) {
	tag, err := b.pool.Exec(ctx,
		`DELETE FROM price_points WHERE direction = $1 AND observed < $2`,
		string(direction), cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("prune series: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
