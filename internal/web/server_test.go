package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pullback-trading-bot/config"
	"pullback-trading-bot/internal/domain"
	"pullback-trading-bot/internal/engine"
)

type fakeBot struct {
	startErr error
	stopErr  error
	state    domain.RunState
	logs     []domain.BotEvent
}

func (b *fakeBot) Start(context.Context, config.Config) error { return b.startErr }
func (b *fakeBot) Stop() error                                { return b.stopErr }
func (b *fakeBot) Status() domain.RunState                    { return b.state }
func (b *fakeBot) RecentLogs(n int) []domain.BotEvent {
	if n <= 0 || n > len(b.logs) {
		return b.logs
	}
	return b.logs[len(b.logs)-n:]
}

type fakeTradeReader struct {
	entries []domain.TradeRecordEntry
	err     error
}

func (r *fakeTradeReader) TradesAfter(index uint64) ([]domain.TradeRecordEntry, error) {
	if r.err != nil {
		return nil, r.err
	}
	var out []domain.TradeRecordEntry
	for _, e := range r.entries {
		if e.Index > index {
			out = append(out, e)
		}
	}
	return out, nil
}

func newTestServer(bot *fakeBot, trades tradeReader) *Server {
	return NewServer(":0", config.Config{}, bot, trades, nil, zap.NewNop())
}

func TestHandleStart(t *testing.T) {
	cases := []struct {
		name     string
		startErr error
		want     int
	}{
		{"ok", nil, http.StatusOK},
		{"already running", engine.ErrAlreadyRunning, http.StatusConflict},
		{"bad credentials", engine.ErrInvalidCredentials, http.StatusUnauthorized},
		{"upstream failure", errors.New("exchange down"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(&fakeBot{startErr: tc.startErr}, nil)
			rec := httptest.NewRecorder()
			s.handleStart(rec, httptest.NewRequest(http.MethodPost, "/api/bot/start", nil))
			require.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestHandleStartRejectsGet(t *testing.T) {
	s := newTestServer(&fakeBot{}, nil)
	rec := httptest.NewRecorder()
	s.handleStart(rec, httptest.NewRequest(http.MethodGet, "/api/bot/start", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleStop(t *testing.T) {
	s := newTestServer(&fakeBot{}, nil)
	rec := httptest.NewRecorder()
	s.handleStop(rec, httptest.NewRequest(http.MethodPost, "/api/bot/stop", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	s = newTestServer(&fakeBot{stopErr: engine.ErrNotRunning}, nil)
	rec = httptest.NewRecorder()
	s.handleStop(rec, httptest.NewRequest(http.MethodPost, "/api/bot/stop", nil))
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleStatus(t *testing.T) {
	bot := &fakeBot{state: domain.RunState{
		Running:           true,
		Pair:              "BTC_USDT",
		MaxPriceSinceFlat: decimal.NewFromInt(100),
	}}
	s := newTestServer(bot, nil)

	rec := httptest.NewRecorder()
	s.handleStatus(rec, httptest.NewRequest(http.MethodGet, "/api/bot/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var state domain.RunState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	require.True(t, state.Running)
	require.Equal(t, "BTC_USDT", state.Pair)
	require.True(t, state.MaxPriceSinceFlat.Equal(decimal.NewFromInt(100)))
}

func TestHandleLogs(t *testing.T) {
	bot := &fakeBot{logs: []domain.BotEvent{
		{Level: domain.EventInfo, Message: "first"},
		{Level: domain.EventBuy, Message: "second"},
	}}
	s := newTestServer(bot, nil)

	rec := httptest.NewRecorder()
	s.handleLogs(rec, httptest.NewRequest(http.MethodGet, "/api/bot/logs?n=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var events []domain.BotEvent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 1)
	require.Equal(t, "second", events[0].Message)

	rec = httptest.NewRecorder()
	s.handleLogs(rec, httptest.NewRequest(http.MethodGet, "/api/bot/logs?n=oops", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleTrades(t *testing.T) {
	reader := &fakeTradeReader{entries: []domain.TradeRecordEntry{
		{Index: 1, Trade: domain.TradeRecord{Symbol: "BTCUSDT", Side: domain.SideBuy}},
		{Index: 2, Trade: domain.TradeRecord{Symbol: "BTCUSDT", Side: domain.SideSell}},
	}}
	s := newTestServer(&fakeBot{}, reader)

	rec := httptest.NewRecorder()
	s.handleTrades(rec, httptest.NewRequest(http.MethodGet, "/api/trades?after=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []domain.TradeRecordEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	require.Equal(t, domain.SideSell, entries[0].Trade.Side)

	rec = httptest.NewRecorder()
	s.handleTrades(rec, httptest.NewRequest(http.MethodGet, "/api/trades?after=abc", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleTradesWithoutJournal(t *testing.T) {
	s := newTestServer(&fakeBot{}, nil)
	rec := httptest.NewRecorder()
	s.handleTrades(rec, httptest.NewRequest(http.MethodGet, "/api/trades", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
