// Command bot runs the pullback spot-trading bot.
// It trades a single pair on Binance: buys a configured pullback from the
// recent maximum price and sells on a profit target, a fixed stop loss or an
// optional trailing stop.
//
// Usage:
//
//	bot setup                (interactive configuration wizard)
//	bot --config config.yaml
//	bot                      (uses CLI arguments)
//
// Required environment variables (a .env file is also read):
//
//	BINANCE_API_KEY, BINANCE_API_SECRET
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pullback-trading-bot/config"
	"pullback-trading-bot/internal/domain"
	"pullback-trading-bot/internal/engine"
	"pullback-trading-bot/internal/exchange"
	"pullback-trading-bot/internal/setup"
	"pullback-trading-bot/internal/storage/trades"
	"pullback-trading-bot/internal/web"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "setup" {
		if err := setup.RunTUI(); err != nil {
			log.Fatal(err)
		}
		return
	}

	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Get()
	if err != nil {
		logger.Fatal("failed to get configuration", zap.Error(err))
	}

	client := exchange.NewClient(cfg.BaseURL)

	journal, err := trades.NewWALStore("")
	if err != nil {
		logger.Fatal("failed to open trade journal", zap.Error(err))
	}
	defer journal.Close()

	hub := web.NewHub(logger)
	defer hub.Close()

	creds := engine.CredentialProviderFunc(func() (domain.Credentials, error) {
		c := domain.Credentials{
			APIKey:    os.Getenv("BINANCE_API_KEY"),
			SecretKey: os.Getenv("BINANCE_API_SECRET"),
		}
		if c.Empty() {
			return domain.Credentials{}, errors.New("BINANCE_API_KEY and BINANCE_API_SECRET environment variables must be set")
		}
		return c, nil
	})

	bot := engine.New(logger, client, client, creds, hub, engine.WithJournal(journal))
	server := web.NewServer(cfg.ListenAddr, cfg, bot, journal, hub, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// the run can also be controlled later via POST /api/bot/start and /stop
	if err := bot.Start(ctx, cfg); err != nil {
		logger.Warn("bot not started", zap.Error(err))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		if err := bot.Stop(); err != nil && !errors.Is(err, engine.ErrNotRunning) {
			return err
		}
		return nil
	})

	logger.Info("started",
		zap.String("pair", cfg.Pair.String()),
		zap.String("listen", cfg.ListenAddr))

	if err := g.Wait(); err != nil {
		logger.Error(err.Error())
	}
}
