package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kline single OHLCV candlestick.
type Kline struct {
	OpenTime  time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
	CloseTime time.Time
}

// PricePoint one observed close price with its sample time.
type PricePoint struct {
	Price decimal.Decimal
	Time  time.Time
}
