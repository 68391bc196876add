// Package engine implements the bot's decision/execution core: the polling
// loop, the entry/exit state machine and order execution.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pullback-trading-bot/config"
	"pullback-trading-bot/internal/domain"
	"pullback-trading-bot/internal/indicators"
)

var (
	// ErrAlreadyRunning is returned by Start while a run is active.
	ErrAlreadyRunning = errors.New("bot is already running")
	// ErrNotRunning is returned by Stop when there is no active run.
	ErrNotRunning = errors.New("bot is not running")
	// ErrInvalidCredentials is returned by Start when the exchange rejects
	// the supplied credentials.
	ErrInvalidCredentials = errors.New("invalid exchange credentials")
)

const (
	windowCapacity   = 100
	eventLogCapacity = 100
	fastEmaPeriod    = 9
	slowEmaPeriod    = 21
	seedInterval     = "1m"
	statusEventCount = 10
)

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
	// balanceUseFraction of the available quote balance is spent on an entry.
	balanceUseFraction = decimal.RequireFromString("0.95")
	// hardStopFraction fixes the stop loss at 5% below the entry price,
	// independent of configuration.
	hardStopFraction = decimal.RequireFromString("0.95")
)

// MarketData provides exchange market and account reads.
type MarketData interface {
	CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	Klines(ctx context.Context, symbol, interval string, limit int) ([]domain.Kline, error)
	// ValidateCredentials makes one signed zero-side-effect read with the
	// candidate credentials and reports whether the exchange accepts them.
	ValidateCredentials(ctx context.Context, creds domain.Credentials) (bool, error)
	// SetCredentials installs credentials for subsequent signed calls. The
	// engine only installs credentials that passed validation.
	SetCredentials(creds domain.Credentials)
	AccountBalance(ctx context.Context, asset string) (domain.Balance, error)
}

// Trader places orders on the exchange.
type Trader interface {
	PlaceMarketOrder(ctx context.Context, symbol string, side domain.Side, quantity decimal.Decimal) (string, error)
}

// CredentialProvider supplies the credentials for a run.
type CredentialProvider interface {
	Current() (domain.Credentials, error)
}

// CredentialProviderFunc adapts a function to the CredentialProvider interface.
type CredentialProviderFunc func() (domain.Credentials, error)

// Current implements CredentialProvider.
func (f CredentialProviderFunc) Current() (domain.Credentials, error) { return f() }

// EventSink receives bot events for downstream broadcast. Publishing is
// best-effort: a failing or panicking sink never aborts a tick.
type EventSink interface {
	Publish(event domain.BotEvent)
}

// TradeJournal records executed orders.
type TradeJournal interface {
	Save(trade domain.TradeRecord) error
}

// Engine owns all mutable bot state. A single worker goroutine evaluates the
// strategy on a fixed schedule; external reads take snapshots.
type Engine struct {
	logger  *zap.Logger
	market  MarketData
	trader  Trader
	creds   CredentialProvider
	sink    EventSink
	journal TradeJournal
	now     func() time.Time

	lifecycleMu sync.Mutex
	running     bool
	starting    bool
	cancel      context.CancelFunc

	stateMu      sync.Mutex
	cfg          config.Config
	window       *priceWindow
	emaFast      indicators.Series
	emaSlow      indicators.Series
	position     *domain.Position
	maxPrice     decimal.Decimal
	entryPrice   decimal.Decimal
	stopLoss     decimal.Decimal
	trailingStop decimal.Decimal

	events *eventLog
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock injects the clock used for event and position timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithJournal attaches a trade journal.
func WithJournal(journal TradeJournal) Option {
	return func(e *Engine) { e.journal = journal }
}

// New creates a stopped engine with the given collaborators.
func New(logger *zap.Logger, market MarketData, trader Trader, creds CredentialProvider, sink EventSink, opts ...Option) *Engine {
	e := &Engine{
		logger: logger,
		market: market,
		trader: trader,
		creds:  creds,
		sink:   sink,
		now:    time.Now,
		window: newPriceWindow(windowCapacity),
		events: newEventLog(eventLogCapacity),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start validates the configuration and credentials, seeds the price window
// from recent candles and begins the polling schedule. It is rejected with
// ErrAlreadyRunning while a run is active and leaves the engine stopped on
// any failure.
func (e *Engine) Start(ctx context.Context, cfg config.Config) error {
	e.lifecycleMu.Lock()
	if e.running || e.starting {
		e.lifecycleMu.Unlock()
		return ErrAlreadyRunning
	}
	e.starting = true
	e.lifecycleMu.Unlock()

	err := e.start(ctx, cfg)

	e.lifecycleMu.Lock()
	e.starting = false
	e.running = err == nil
	e.lifecycleMu.Unlock()

	if err != nil {
		e.emit(domain.EventError, fmt.Sprintf("failed to start bot: %v", err))
		return err
	}
	e.emit(domain.EventSuccess, "bot started")
	return nil
}

func (e *Engine) start(ctx context.Context, cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid config")
	}

	creds, err := e.creds.Current()
	if err != nil {
		return errors.Wrap(err, "credentials unavailable")
	}
	ok, err := e.market.ValidateCredentials(ctx, creds)
	if err != nil {
		return errors.Wrap(err, "credential validation")
	}
	if !ok {
		return ErrInvalidCredentials
	}
	e.market.SetCredentials(creds)

	symbol := cfg.Pair.Symbol()
	klines, err := e.market.Klines(ctx, symbol, seedInterval, windowCapacity)
	if err != nil {
		return errors.Wrapf(err, "seed price history for %s", symbol)
	}

	e.stateMu.Lock()
	e.cfg = cfg
	e.window = newPriceWindow(windowCapacity)
	for _, k := range klines {
		e.window.Append(domain.PricePoint{Price: k.Close, Time: k.CloseTime})
	}
	e.recomputeEmas()
	e.position = nil
	e.maxPrice = decimal.Zero
	e.entryPrice = decimal.Zero
	e.stopLoss = decimal.Zero
	e.trailingStop = decimal.Zero
	e.stateMu.Unlock()

	e.emit(domain.EventInfo, fmt.Sprintf("historical data loaded for %s", cfg.Pair.String()))

	runCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	go e.run(runCtx, cfg.PollInterval)

	return nil
}

// Stop cancels the polling schedule. An open position, if any, is left open
// on the exchange: the engine never force-liquidates on stop. An in-flight
// tick is allowed to finish and whatever state it produces is kept.
func (e *Engine) Stop() error {
	e.lifecycleMu.Lock()
	if !e.running {
		e.lifecycleMu.Unlock()
		return ErrNotRunning
	}
	e.running = false
	cancel := e.cancel
	e.lifecycleMu.Unlock()

	cancel()
	e.emit(domain.EventInfo, "bot stopped")
	return nil
}

// Running reports whether a run is active.
func (e *Engine) Running() bool {
	e.lifecycleMu.Lock()
	defer e.lifecycleMu.Unlock()
	return e.running
}

// Status returns a point-in-time snapshot of the run state.
func (e *Engine) Status() domain.RunState {
	running := e.Running()

	e.stateMu.Lock()
	var position *domain.Position
	if e.position != nil {
		copied := *e.position
		position = &copied
	}
	state := domain.RunState{
		Running:           running,
		Pair:              e.cfg.Pair.String(),
		Position:          position,
		MaxPriceSinceFlat: e.maxPrice,
		EntryPrice:        e.entryPrice,
		StopLossPrice:     e.stopLoss,
		TrailingStopPrice: e.trailingStop,
	}
	e.stateMu.Unlock()

	state.RecentEvents = e.events.Last(statusEventCount)
	return state
}

// RecentLogs returns up to n most recent events, oldest first.
func (e *Engine) RecentLogs(n int) []domain.BotEvent {
	return e.events.Last(n)
}

func (e *Engine) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.logger.Info("trading loop started", zap.Duration("poll_interval", interval))
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("trading loop stopped")
			return
		case <-ticker.C:
			// In-flight exchange calls are allowed to finish after Stop;
			// the resulting state is applied as-is.
			e.tick(context.Background())
		}
	}
}

// tick runs one strategy evaluation. Any upstream failure is logged and the
// tick skipped; the loop keeps running and retries next period.
func (e *Engine) tick(ctx context.Context) {
	e.stateMu.Lock()
	symbol := e.cfg.Pair.Symbol()
	e.stateMu.Unlock()

	price, err := e.market.CurrentPrice(ctx, symbol)
	if err != nil {
		e.logger.Error("market analysis failed", zap.String("symbol", symbol), zap.Error(err))
		e.emit(domain.EventError, fmt.Sprintf("market analysis failed: %v", err))
		return
	}

	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	e.window.Append(domain.PricePoint{Price: price, Time: e.now()})
	e.recomputeEmas()

	if price.GreaterThan(e.maxPrice) {
		e.maxPrice = price
	}

	if e.position == nil {
		if e.shouldBuy(price) {
			e.executeBuy(ctx, price)
		}
		return
	}
	if e.shouldSell(price) {
		e.executeSell(ctx, price)
	} else if e.cfg.TrailingStopEnabled {
		e.updateTrailingStop(price)
	}
}

func (e *Engine) recomputeEmas() {
	closes := e.window.Closes()
	e.emaFast, _ = indicators.Ema(closes, fastEmaPeriod)
	e.emaSlow, _ = indicators.Ema(closes, slowEmaPeriod)
}

// shouldBuy evaluates the entry rule: a sufficient pullback from the maximum
// price since flat, the optional fast-over-slow EMA filter, and a
// continuation check requiring both EMAs above their previous-tick values.
// The continuation check runs even when the EMA filter is disabled.
func (e *Engine) shouldBuy(price decimal.Decimal) bool {
	if e.maxPrice.LessThanOrEqual(decimal.Zero) {
		return false
	}

	pullback := e.maxPrice.Sub(price).Div(e.maxPrice).Mul(hundred)
	if pullback.LessThan(e.cfg.PullbackPercent) {
		return false
	}

	fast, fastOK := e.emaFast.Last()
	slow, slowOK := e.emaSlow.Last()
	if e.cfg.UseEmaFilter {
		if !fastOK || !slowOK || fast.LessThanOrEqual(slow) {
			return false
		}
	}

	// Skipped until two samples of each EMA exist.
	if e.emaFast.DefinedCount() >= 2 && e.emaSlow.DefinedCount() >= 2 {
		prevFast, _ := e.emaFast.Prev()
		prevSlow, _ := e.emaSlow.Prev()
		if fast.LessThanOrEqual(prevFast) || slow.LessThanOrEqual(prevSlow) {
			return false
		}
	}

	return true
}

// shouldSell evaluates the exit rule: profit target reached, the fixed stop
// loss hit, or the trailing stop hit when enabled.
func (e *Engine) shouldSell(price decimal.Decimal) bool {
	profit := e.position.ProfitPercent(price)
	if profit.GreaterThanOrEqual(e.cfg.ProfitTargetPercent) {
		return true
	}
	if price.LessThanOrEqual(e.stopLoss) {
		return true
	}
	if e.cfg.TrailingStopEnabled && price.LessThanOrEqual(e.trailingStop) {
		return true
	}
	return false
}

// updateTrailingStop raises (never lowers) the trailing stop once price moved
// above the entry.
func (e *Engine) updateTrailingStop(price decimal.Decimal) {
	if !price.GreaterThan(e.entryPrice) {
		return
	}
	candidate := price.Mul(one.Sub(e.cfg.TrailingStopPercent.Div(hundred)))
	if candidate.GreaterThan(e.trailingStop) {
		e.trailingStop = candidate
		e.emit(domain.EventInfo, fmt.Sprintf("trailing stop raised to %s", candidate.StringFixed(2)))
	}
}

// executeBuy sizes the order at 95% of the available quote balance and opens
// the position. On any failure the machine stays flat so the next tick
// re-evaluates the same entry with fresh market data.
func (e *Engine) executeBuy(ctx context.Context, price decimal.Decimal) {
	symbol := e.cfg.Pair.Symbol()

	balance, err := e.market.AccountBalance(ctx, e.cfg.Pair.To)
	if err != nil {
		e.logger.Error("buy skipped, balance unavailable", zap.Error(err))
		e.emit(domain.EventError, fmt.Sprintf("buy failed: %v", err))
		return
	}

	quantity := balance.Available.Mul(balanceUseFraction).Div(price).RoundFloor(6)
	if quantity.LessThanOrEqual(decimal.Zero) {
		e.emit(domain.EventError, fmt.Sprintf("buy skipped: insufficient %s balance", e.cfg.Pair.To))
		return
	}

	orderID, err := e.trader.PlaceMarketOrder(ctx, symbol, domain.SideBuy, quantity)
	if err != nil {
		e.logger.Error("buy order failed", zap.String("symbol", symbol), zap.Error(err))
		e.emit(domain.EventError, fmt.Sprintf("buy order failed: %v", err))
		return
	}

	position, err := domain.NewPosition(symbol, quantity, price, e.now())
	if err != nil {
		e.emit(domain.EventError, fmt.Sprintf("buy not recorded: %v", err))
		return
	}
	e.position = position
	e.entryPrice = price
	e.stopLoss = price.Mul(hardStopFraction)
	e.trailingStop = price.Mul(one.Sub(e.cfg.TrailingStopPercent.Div(hundred)))

	e.recordTrade(domain.TradeRecord{
		Symbol:   symbol,
		Side:     domain.SideBuy,
		Quantity: quantity,
		Price:    price,
		OrderID:  orderID,
		Time:     e.now(),
	})
	e.emit(domain.EventBuy, fmt.Sprintf("BUY executed: %s %s at %s",
		quantity.StringFixed(6), symbol, price.StringFixed(2)))
}

// executeSell closes the full held quantity. On failure the position is kept
// so the next tick re-evaluates the same exit.
func (e *Engine) executeSell(ctx context.Context, price decimal.Decimal) {
	symbol := e.position.Symbol
	quantity := e.position.Quantity

	orderID, err := e.trader.PlaceMarketOrder(ctx, symbol, domain.SideSell, quantity)
	if err != nil {
		e.logger.Error("sell order failed", zap.String("symbol", symbol), zap.Error(err))
		e.emit(domain.EventError, fmt.Sprintf("sell order failed: %v", err))
		return
	}

	profit := e.position.ProfitPercent(price)

	e.recordTrade(domain.TradeRecord{
		Symbol:        symbol,
		Side:          domain.SideSell,
		Quantity:      quantity,
		Price:         price,
		ProfitPercent: profit,
		OrderID:       orderID,
		Time:          e.now(),
	})
	e.emit(domain.EventSell, fmt.Sprintf("SELL executed: %s %s at %s (%s%% profit)",
		quantity.StringFixed(6), symbol, price.StringFixed(2), profit.StringFixed(2)))

	e.position = nil
	e.entryPrice = decimal.Zero
	e.stopLoss = decimal.Zero
	e.trailingStop = decimal.Zero
	// the next entry search starts from the exit price, not the old max
	e.maxPrice = price
}

func (e *Engine) recordTrade(trade domain.TradeRecord) {
	if e.journal == nil {
		return
	}
	if err := e.journal.Save(trade); err != nil {
		e.logger.Error("failed to journal trade", zap.String("symbol", trade.Symbol), zap.Error(err))
	}
}

// emit appends the event to the bounded log and publishes it to the sink.
// Sink failures must never propagate back into the engine.
func (e *Engine) emit(level domain.EventLevel, message string) {
	event := domain.BotEvent{Time: e.now(), Level: level, Message: message}
	e.events.Append(event)
	e.logger.Info(message, zap.String("level", string(level)))

	if e.sink == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("event sink panicked", zap.Any("panic", r))
		}
	}()
	e.sink.Publish(event)
}
