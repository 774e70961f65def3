package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vliewarden/backend/internal/config"
	"github.com/vliewarden/backend/internal/database"
	"github.com/vliewarden/backend/internal/logger"
	"github.com/vliewarden/backend/internal/server"
	"github.com/vliewarden/backend/internal/votes"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Mode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	db, err := database.New(cfg.Database, log)
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}
	defer db.Close()

	var ledgerOpts []votes.Option
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			log.Warn("Redis unavailable, tallies will be read from Postgres", "addr", cfg.Redis.Addr, "error", err)
		} else {
			ledgerOpts = append(ledgerOpts, votes.WithCache(votes.NewRedisTallyCache(rdb, cfg.Redis.TallyTTL)))
			log.Info("Redis tally cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.TallyTTL.String())
		}
		cancel()
	}
	ledger := votes.NewLedger(db.GetDB(), log, ledgerOpts...)

	httpServer := server.New(cfg, log, db, ledger).HTTPServer()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("Server starting", "addr", httpServer.Addr, "mode", cfg.Mode)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server stopped unexpectedly", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", "error", err)
	}
}
