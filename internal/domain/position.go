package domain

import (
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Position represents the single open spot position tracked in memory.
type Position struct {
	Symbol     string
	Quantity   decimal.Decimal
	EntryPrice decimal.Decimal
	OpenedAt   time.Time
}

// NewPosition constructs a position opened by the engine.
func NewPosition(symbol string, quantity, entryPrice decimal.Decimal, openedAt time.Time) (*Position, error) {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return nil, errors.New("position quantity must be greater than zero")
	}
	if entryPrice.LessThanOrEqual(decimal.Zero) {
		return nil, errors.New("entry price must be greater than zero")
	}

	return &Position{
		Symbol:     symbol,
		Quantity:   quantity,
		EntryPrice: entryPrice,
		OpenedAt:   openedAt,
	}, nil
}

// ProfitPercent returns the realized percentage profit at the given exit price.
func (p *Position) ProfitPercent(exitPrice decimal.Decimal) decimal.Decimal {
	if p.EntryPrice.IsZero() {
		return decimal.Zero
	}
	return exitPrice.Sub(p.EntryPrice).Div(p.EntryPrice).Mul(decimal.NewFromInt(100))
}
