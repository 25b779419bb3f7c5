package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/PortNumber53/membership-metrics/internal/models"
)

const (
	defaultPageSize = 200
	baselinesTable  = "mrr_baselines"
)

// ErrBaselineNotFound is returned when no baseline is stored for a month.
var ErrBaselineNotFound = errors.New("baseline not found")

// Store provides database-backed accessors for operator-entered data.
type Store struct {
	db *sql.DB
}

// New creates a Store using the provided sql.DB connection.
func New(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("db cannot be nil")
	}
	return &Store{db: db}, nil
}

// BaselineFor returns the baseline stored for month.
func (s *Store) BaselineFor(ctx context.Context, month models.Month) (decimal.Decimal, error) {
	query := fmt.Sprintf(`SELECT amount FROM %s WHERE month = $1`, baselinesTable)

	var amount decimal.Decimal
	err := s.db.QueryRowContext(ctx, query, month.Start()).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, ErrBaselineNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("query %s: %w", baselinesTable, err)
	}
	return amount, nil
}

// SetBaseline inserts or replaces the baseline for month.
func (s *Store) SetBaseline(ctx context.Context, month models.Month, amount decimal.Decimal, note string) error {
	query := fmt.Sprintf(`
INSERT INTO %s (month, amount, note)
VALUES ($1, $2, $3)
ON CONFLICT (month) DO UPDATE
SET amount = EXCLUDED.amount,
    note = EXCLUDED.note,
    updated_at = NOW()
`, baselinesTable)

	if _, err := s.db.ExecContext(ctx, query, month.Start(), amount, note); err != nil {
		return fmt.Errorf("upsert %s: %w", baselinesTable, err)
	}
	log.Printf("[store] Baseline for %s set to %s", month, amount.StringFixed(2))
	return nil
}

// ListBaselines returns up to limit baselines, most recent month first.
func (s *Store) ListBaselines(ctx context.Context, limit int) ([]models.Baseline, error) {
	if limit <= 0 || limit > defaultPageSize {
		limit = defaultPageSize
	}

	query := fmt.Sprintf(`
SELECT month, amount, note, updated_at
FROM %s
ORDER BY month DESC
LIMIT $1
`, baselinesTable)

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", baselinesTable, err)
	}
	defer rows.Close()

	baselines := []models.Baseline{}
	for rows.Next() {
		var (
			month time.Time
			b     models.Baseline
		)
		if err := rows.Scan(&month, &b.Amount, &b.Note, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan %s: %w", baselinesTable, err)
		}
		b.Month = models.MonthOf(month)
		baselines = append(baselines, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", baselinesTable, err)
	}
	return baselines, nil
}
