package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Side of a market order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Credentials exchange API credentials, immutable for the lifetime of a run.
// Never log the secret key or the full API key.
type Credentials struct {
	APIKey    string
	SecretKey string
}

// Empty reports whether either credential part is missing.
func (c Credentials) Empty() bool {
	return c.APIKey == "" || c.SecretKey == ""
}

// Balance quote-asset balance used to size orders.
type Balance struct {
	Total     decimal.Decimal `json:"total"`
	Available decimal.Decimal `json:"available"`
	Locked    decimal.Decimal `json:"locked"`
}

// TradeRecord an executed order, persisted to the trade journal.
type TradeRecord struct {
	Symbol        string          `json:"symbol"`
	Side          Side            `json:"side"`
	Quantity      decimal.Decimal `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
	ProfitPercent decimal.Decimal `json:"profit_percent"`
	OrderID       string          `json:"order_id"`
	Time          time.Time       `json:"time"`
}

// String returns a human-readable representation.
func (t *TradeRecord) String() string {
	return fmt.Sprintf("%s %s %s at %s", t.Side, t.Quantity.String(), t.Symbol, t.Price.String())
}

// TradeRecordEntry bundles a trade record with the journal index it originated from.
type TradeRecordEntry struct {
	Index uint64      `json:"index"`
	Trade TradeRecord `json:"trade"`
}

// RunState point-in-time snapshot of the engine, safe to hand to callers.
type RunState struct {
	Running           bool            `json:"running"`
	Pair              string          `json:"pair"`
	Position          *Position       `json:"position,omitempty"`
	MaxPriceSinceFlat decimal.Decimal `json:"max_price_since_flat"`
	EntryPrice        decimal.Decimal `json:"entry_price"`
	StopLossPrice     decimal.Decimal `json:"stop_loss_price"`
	TrailingStopPrice decimal.Decimal `json:"trailing_stop_price"`
	RecentEvents      []BotEvent      `json:"recent_events"`
}
