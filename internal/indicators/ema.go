// Package indicators computes technical indicators for the trading engine.
package indicators

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Series holds indicator values aligned 1:1 with the input price series.
// Entries before index Period-1 are undefined; the first defined value is
// the simple mean of the first Period prices.
type Series struct {
	Period int
	Values []decimal.Decimal
}

// Ema computes the exponential moving average of prices over period.
// The whole series is recomputed from its input on every call, including the
// seed mean, so the result is a pure function of the current window.
func Ema(prices []decimal.Decimal, period int) (Series, error) {
	if period < 1 {
		return Series{}, errors.Errorf("ema period must be positive, got %d", period)
	}

	s := Series{
		Period: period,
		Values: make([]decimal.Decimal, len(prices)),
	}
	if len(prices) < period {
		return s, nil
	}

	sum := decimal.Zero
	for i := 0; i < period; i++ {
		sum = sum.Add(prices[i])
	}
	s.Values[period-1] = sum.Div(decimal.NewFromInt(int64(period)))

	k := decimal.NewFromInt(2).Div(decimal.NewFromInt(int64(period) + 1))
	oneMinusK := decimal.NewFromInt(1).Sub(k)
	for i := period; i < len(prices); i++ {
		s.Values[i] = prices[i].Mul(k).Add(s.Values[i-1].Mul(oneMinusK))
	}

	return s, nil
}

// DefinedCount returns the number of defined values in the series.
func (s Series) DefinedCount() int {
	if s.Period < 1 {
		return 0
	}
	n := len(s.Values) - s.Period + 1
	if n < 0 {
		return 0
	}
	return n
}

// Defined reports whether the value at index i is defined.
func (s Series) Defined(i int) bool {
	return i >= s.Period-1 && i < len(s.Values)
}

// Last returns the most recent value, if defined.
func (s Series) Last() (decimal.Decimal, bool) {
	i := len(s.Values) - 1
	if !s.Defined(i) {
		return decimal.Zero, false
	}
	return s.Values[i], true
}

// Prev returns the value one step before the most recent, if defined.
func (s Series) Prev() (decimal.Decimal, bool) {
	i := len(s.Values) - 2
	if i < 0 || !s.Defined(i) {
		return decimal.Zero, false
	}
	return s.Values[i], true
}
