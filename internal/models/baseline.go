package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Baseline is an operator-entered opening MRR for a month, in major units.
type Baseline struct {
	Month     Month           `json:"month"`
	Amount    decimal.Decimal `json:"amount"`
	Note      string          `json:"note,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}
