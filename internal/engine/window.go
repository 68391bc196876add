package engine

import (
	"github.com/shopspring/decimal"

	"pullback-trading-bot/internal/domain"
)

// priceWindow is a bounded chronological FIFO of observed close prices.
// The oldest point is evicted once capacity is exceeded. Duplicate sample
// times are allowed.
type priceWindow struct {
	capacity int
	points   []domain.PricePoint
}

func newPriceWindow(capacity int) *priceWindow {
	return &priceWindow{
		capacity: capacity,
		points:   make([]domain.PricePoint, 0, capacity),
	}
}

func (w *priceWindow) Append(p domain.PricePoint) {
	w.points = append(w.points, p)
	if len(w.points) > w.capacity {
		w.points = w.points[1:]
	}
}

func (w *priceWindow) Len() int {
	return len(w.points)
}

// Closes returns the close prices in chronological order.
func (w *priceWindow) Closes() []decimal.Decimal {
	closes := make([]decimal.Decimal, len(w.points))
	for i, p := range w.points {
		closes[i] = p.Price
	}
	return closes
}
