package store

import (
	"context"
	"errors"
	"log"

	"github.com/shopspring/decimal"

	"github.com/PortNumber53/membership-metrics/internal/models"
)

// BaselineReader looks up a stored baseline for a month.
type BaselineReader interface {
	BaselineFor(ctx context.Context, month models.Month) (decimal.Decimal, error)
}

// Baseline sources reported by Resolve.
const (
	SourceDatabase = "database"
	SourceConfig   = "config"
)

// BaselineResolver picks the opening balance for a reconciliation window:
// the stored baseline for the window's first month when there is one, else
// the configured default. A nil reader always yields the default.
type BaselineResolver struct {
	reader   BaselineReader
	fallback decimal.Decimal
}

func NewBaselineResolver(reader BaselineReader, fallback decimal.Decimal) *BaselineResolver {
	return &BaselineResolver{reader: reader, fallback: fallback}
}

// Resolve returns the baseline for month and where it came from. Lookup
// errors other than a missing row are logged and the default is used.
func (r *BaselineResolver) Resolve(ctx context.Context, month models.Month) (decimal.Decimal, string) {
	if r.reader == nil {
		return r.fallback, SourceConfig
	}
	amount, err := r.reader.BaselineFor(ctx, month)
	switch {
	case err == nil:
		return amount, SourceDatabase
	case errors.Is(err, ErrBaselineNotFound):
		return r.fallback, SourceConfig
	default:
		log.Printf("[store] Baseline lookup for %s failed, using configured default: %v", month, err)
		return r.fallback, SourceConfig
	}
}
