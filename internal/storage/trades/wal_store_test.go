package trades

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"pullback-trading-bot/internal/domain"
)

func testTrade(symbol string, side domain.Side, price string) domain.TradeRecord {
	return domain.TradeRecord{
		Symbol:   symbol,
		Side:     side,
		Quantity: decimal.RequireFromString("0.5"),
		Price:    decimal.RequireFromString(price),
		OrderID:  "42",
		Time:     time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestWALStoreRoundTrip(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	require.EqualValues(t, 0, store.CurrentIndex())

	require.NoError(t, store.Save(testTrade("BTCUSDT", domain.SideBuy, "94")))
	require.NoError(t, store.Save(testTrade("BTCUSDT", domain.SideSell, "94.5")))
	require.EqualValues(t, 2, store.CurrentIndex())

	entries, err := store.TradesAfter(0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.EqualValues(t, 1, entries[0].Index)
	require.Equal(t, domain.SideBuy, entries[0].Trade.Side)
	require.True(t, entries[0].Trade.Price.Equal(decimal.RequireFromString("94")))
	require.Equal(t, domain.SideSell, entries[1].Trade.Side)
}

func TestWALStoreTradesAfterSkipsConsumed(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Save(testTrade("ETHUSDT", domain.SideBuy, "2000")))
	require.NoError(t, store.Save(testTrade("ETHUSDT", domain.SideSell, "2100")))

	entries, err := store.TradesAfter(1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.EqualValues(t, 2, entries[0].Index)

	entries, err = store.TradesAfter(2)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestWALStoreRejectsTradeWithoutSymbol(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	require.Error(t, store.Save(domain.TradeRecord{}))
}

func TestWALStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := NewWALStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Save(testTrade("BTCUSDT", domain.SideBuy, "94")))
	require.NoError(t, store.Close())

	reopened, err := NewWALStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	entries, err := reopened.TradesAfter(0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "BTCUSDT", entries[0].Trade.Symbol)
}
