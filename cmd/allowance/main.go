package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/allowance/internal/backup"
	"github.com/dukerupert/allowance/internal/config"
	"github.com/dukerupert/allowance/internal/database"
	"github.com/dukerupert/allowance/internal/ledger"
	"github.com/dukerupert/allowance/internal/live"
	"github.com/dukerupert/allowance/internal/logging"
	"github.com/dukerupert/allowance/internal/middleware"
	"github.com/dukerupert/allowance/internal/notify"
	"github.com/dukerupert/allowance/internal/report"
	"github.com/dukerupert/allowance/internal/server"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.Setup(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("allowance service stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	hub := live.NewHub(logger.With("component", "live"))
	publishers := notify.Multi{hub}
	if cfg.AMQPURL != "" {
		amqpPub, err := notify.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger.With("component", "notify"))
		if err != nil {
			return err
		}
		defer amqpPub.Close()
		publishers = append(publishers, amqpPub)
	}

	loc := cfg.Location()
	engine := ledger.New(db, logger.With("component", "ledger"),
		ledger.WithPublisher(publishers),
		ledger.WithRetries(cfg.TxRetries),
		ledger.WithClock(func() time.Time { return time.Now().In(loc) }),
	)
	views := report.New(db, loc)

	snapshots := backup.NewManager(cfg.Backup(), db, logger.With("component", "backup"))
	if !snapshots.Enabled() {
		logger.Info("encrypted snapshots disabled")
	}

	hash, err := middleware.HashPassphrase(cfg.Passphrase, bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	srv := server.New(db, engine, views, snapshots, server.Config{
		PassphraseHash: hash,
		CORSOrigins:    cfg.CORSOrigins,
		TrustProxy:     cfg.TrustProxy,
		Live:           hub,
	}, logger)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("allowance service starting", "addr", httpServer.Addr, "timezone", loc.String())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		srv.RateLimiter().RunCleanup(ctx, 10*time.Minute)
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
