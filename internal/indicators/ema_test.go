package indicators

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func prices(values ...float64) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		out[i] = decimal.NewFromFloat(v)
	}
	return out
}

func TestEmaSeedIsSimpleMean(t *testing.T) {
	series := prices(10, 11, 12, 13, 14, 15, 16, 17, 18, 19)

	for _, period := range []int{2, 3, 5, 9} {
		ema, err := Ema(series, period)
		require.NoError(t, err)

		sum := decimal.Zero
		for i := 0; i < period; i++ {
			sum = sum.Add(series[i])
		}
		mean := sum.Div(decimal.NewFromInt(int64(period)))

		require.True(t, ema.Values[period-1].Equal(mean),
			"period %d: seed %s, want mean %s", period, ema.Values[period-1], mean)
	}
}

func TestEmaRecurrence(t *testing.T) {
	series := prices(100, 102, 101, 103, 105, 104, 106)
	period := 3

	ema, err := Ema(series, period)
	require.NoError(t, err)

	k := decimal.NewFromInt(2).Div(decimal.NewFromInt(int64(period) + 1))
	oneMinusK := decimal.NewFromInt(1).Sub(k)
	for i := period; i < len(series); i++ {
		want := series[i].Mul(k).Add(ema.Values[i-1].Mul(oneMinusK))
		require.True(t, ema.Values[i].Equal(want), "index %d", i)
	}
}

func TestEmaConstantSeriesStaysFlat(t *testing.T) {
	series := make([]decimal.Decimal, 30)
	for i := range series {
		series[i] = decimal.NewFromInt(100)
	}

	ema, err := Ema(series, 9)
	require.NoError(t, err)
	for i := 8; i < len(series); i++ {
		require.True(t, ema.Values[i].Equal(decimal.NewFromInt(100)), "index %d", i)
	}
}

func TestEmaAlignment(t *testing.T) {
	series := prices(1, 2, 3, 4, 5)

	ema, err := Ema(series, 3)
	require.NoError(t, err)

	require.Len(t, ema.Values, len(series))
	require.False(t, ema.Defined(0))
	require.False(t, ema.Defined(1))
	require.True(t, ema.Defined(2))
	require.Equal(t, 3, ema.DefinedCount())

	last, ok := ema.Last()
	require.True(t, ok)
	require.True(t, last.GreaterThan(decimal.Zero))

	prev, ok := ema.Prev()
	require.True(t, ok)
	require.True(t, last.GreaterThan(prev), "rising series must have rising ema")
}

func TestEmaShortSeriesUndefined(t *testing.T) {
	ema, err := Ema(prices(1, 2), 5)
	require.NoError(t, err)
	require.Equal(t, 0, ema.DefinedCount())

	_, ok := ema.Last()
	require.False(t, ok)
	_, ok = ema.Prev()
	require.False(t, ok)
}

func TestEmaInvalidPeriod(t *testing.T) {
	_, err := Ema(prices(1, 2, 3), 0)
	require.Error(t, err)
}

func TestEmaReproducibleFromWindowAlone(t *testing.T) {
	window := prices(10, 20, 30, 40, 50, 60)

	first, err := Ema(window, 3)
	require.NoError(t, err)
	second, err := Ema(window, 3)
	require.NoError(t, err)

	for i := range first.Values {
		require.True(t, first.Values[i].Equal(second.Values[i]), "index %d", i)
	}
}
