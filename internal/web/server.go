// Package web exposes the bot over HTTP: run control, status and log reads,
// the trade journal and a websocket event stream.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"pullback-trading-bot/config"
	"pullback-trading-bot/internal/domain"
	"pullback-trading-bot/internal/engine"
)

type bot interface {
	Start(ctx context.Context, cfg config.Config) error
	Stop() error
	Status() domain.RunState
	RecentLogs(n int) []domain.BotEvent
}

type tradeReader interface {
	TradesAfter(index uint64) ([]domain.TradeRecordEntry, error)
}

// Server exposes HTTP endpoints for controlling and observing the bot.
type Server struct {
	addr   string
	cfg    config.Config
	bot    bot
	trades tradeReader
	hub    *Hub
	logger *zap.Logger
}

// NewServer creates a new web server instance.
func NewServer(addr string, cfg config.Config, bot bot, trades tradeReader, hub *Hub, logger *zap.Logger) *Server {
	return &Server{addr: addr, cfg: cfg, bot: bot, trades: trades, hub: hub, logger: logger}
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/bot/start", s.handleStart)
	mux.HandleFunc("/api/bot/stop", s.handleStop)
	mux.HandleFunc("/api/bot/status", s.handleStatus)
	mux.HandleFunc("/api/bot/logs", s.handleLogs)
	mux.HandleFunc("/api/trades", s.handleTrades)
	if s.hub != nil {
		mux.HandleFunc("/ws", s.hub.ServeWS)
	}

	server := &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	err := s.bot.Start(r.Context(), s.cfg)
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
	case errors.Is(err, engine.ErrAlreadyRunning):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, engine.ErrInvalidCredentials):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	default:
		s.logger.Error("failed to start bot", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	err := s.bot.Stop()
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
	case errors.Is(err, engine.ErrNotRunning):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		s.logger.Error("failed to stop bot", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.bot.Status())
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	n := 0
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			http.Error(w, "invalid 'n' param", http.StatusBadRequest)
			return
		}
		n = parsed
	}
	s.writeJSON(w, http.StatusOK, s.bot.RecentLogs(n))
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	if s.trades == nil {
		http.Error(w, "trade journal not available", http.StatusServiceUnavailable)
		return
	}

	var after uint64
	if raw := r.URL.Query().Get("after"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			http.Error(w, "invalid 'after' param", http.StatusBadRequest)
			return
		}
		after = parsed
	}

	entries, err := s.trades.TradesAfter(after)
	if err != nil {
		s.logger.Error("failed to read trade journal", zap.Error(err))
		http.Error(w, "failed to read trade journal", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []domain.TradeRecordEntry{}
	}
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}
