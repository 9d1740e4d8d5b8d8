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

	"github.com/marwilc/graph-p2p-backend/internal/api"
	"github.com/marwilc/graph-p2p-backend/internal/config"
	"github.com/marwilc/graph-p2p-backend/internal/db"
	"github.com/marwilc/graph-p2p-backend/internal/external"
	"github.com/marwilc/graph-p2p-backend/internal/notifications"
	"github.com/marwilc/graph-p2p-backend/internal/poller"
	"github.com/marwilc/graph-p2p-backend/internal/store"
)

const banner = `
╔══════════════════════════════════════╗
║     Graph P2P Rate Tracker v0.1      ║
║          USDT/VES · Binance          ║
╚══════════════════════════════════════╝
`

func main() {
	fmt.Print(banner)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	cfg.Print()

	// Storage backend: postgres when configured, then redis, else memory.
	var backend store.Backend
	var cleanup []func()

	switch {
	case cfg.DBHost != "":
		fmt.Printf("\n[DB] Connecting to %s:%d/%s ...\n", cfg.DBHost, cfg.DBPort, cfg.DBName)
		pool, err := db.Connect(cfg.DSN())
		if err != nil {
			fmt.Fprintf(os.Stderr, "[DB] Connection failed: %v\n", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)

		pg := store.NewPostgresBackend(pool)
		if err := pg.EnsureSchema(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "[DB] Schema setup failed: %v\n", err)
			os.Exit(1)
		}
		backend = pg

	case cfg.RedisAddr != "":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			fmt.Fprintf(os.Stderr, "[STORE] Redis ping failed: %v\n", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, func() { rdb.Close() })
		backend = store.NewRedisBackend(rdb)
		fmt.Printf("[STORE] Redis connected (%s)\n", cfg.RedisAddr)

	default:
		fmt.Println("[STORE] Using in-memory backend — history will not survive restarts")
		backend = store.NewMemoryBackend()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	series := store.NewTimeSeries(backend, time.Duration(cfg.RetentionDays)*24*time.Hour)

	client := external.NewP2PClient(external.P2POptions{
		SearchURL: cfg.BinanceP2PURL,
		Fiat:      cfg.Fiat,
		Asset:     cfg.Asset,
		Rows:      cfg.ListingRows,
		Timeout:   time.Duration(cfg.FetchTimeoutSeconds) * time.Second,
	})

	alerter := notifications.NewAlerter(cfg.WebhookURL, cfg.BotName, cfg.PriceAlertPercent)

	poll := poller.New(poller.Config{
		Fetcher:      client,
		Series:       series,
		Interval:     time.Duration(cfg.PollIntervalSeconds) * time.Second,
		FetchTimeout: time.Duration(cfg.FetchTimeoutSeconds) * time.Second,
		OnMerge:      alerter.PriceMerged,
	})

	// Graceful shutdown context
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. API server
	srv := api.NewServer(client, poll, cfg.APIPort, cfg.APIKey, cfg.CORSAllowOrigin)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "[API] Server error: %v\n", err)
			os.Exit(1)
		}
	}()

	// 2. Poller bound to the configured parameter set
	poll.Bind(cfg.TradeDirection, cfg.PayTypes)

	fmt.Println("\nAll services started successfully")

	// Wait for shutdown signal
	<-ctx.Done()
	fmt.Println("\nShutting down gracefully...")

	poll.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "[API] Shutdown error: %v\n", err)
	}
	fmt.Println("[API] Server closed")
	fmt.Println("Shutdown complete")
}
