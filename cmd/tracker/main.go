package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/leaopedro/top-coins-price-tracker/configs"
	"github.com/leaopedro/top-coins-price-tracker/internal/aggregator"
	"github.com/leaopedro/top-coins-price-tracker/internal/coingecko"
	"github.com/leaopedro/top-coins-price-tracker/internal/pipeline"
	"github.com/leaopedro/top-coins-price-tracker/internal/rpc"
	"github.com/leaopedro/top-coins-price-tracker/internal/store"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if err := run(logger); err != nil {
		logger.Error("Startup error", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	single := flag.Bool("single", false, "run one ingestion cycle then exit")
	intervalArg := flag.String("interval", "", "override the cycle interval, in milliseconds")
	flag.Parse()

	cfg := configs.AppLoad()

	interval := cfg.Pipeline.Interval
	if *intervalArg != "" {
		ms, err := strconv.Atoi(*intervalArg)
		if err != nil || ms <= 0 {
			return fmt.Errorf("invalid --interval value %q: must be a number in milliseconds", *intervalArg)
		}
		interval = time.Duration(ms) * time.Millisecond
	}

	st, err := store.Open(cfg.StoragePath, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	client := coingecko.NewClient(coingecko.Config{
		BaseURL:      cfg.Coingecko.BaseURL,
		APIKey:       cfg.Coingecko.APIKey,
		VsCurrency:   cfg.Coingecko.VsCurrency,
		TopNCoins:    cfg.Coingecko.TopNCoins,
		RequestDelay: cfg.Coingecko.RequestDelay,
	}, logger)
	agg := aggregator.New(client, aggregator.Config{
		VsCurrency:    cfg.Coingecko.VsCurrency,
		TopNExchanges: cfg.Coingecko.TopNExchanges,
	}, logger)
	pipe := pipeline.New(agg, st, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Top coins price tracker running")

	if *single {
		if err := pipe.RunCycle(ctx); err != nil {
			logger.Error("Cycle failed", "error", err)
		}
		if err := st.Close(); err != nil {
			return err
		}
		logger.Info("Single run complete")
		return nil
	}

	server := rpc.NewServer(rpc.Config{Addr: cfg.RPCAddr}, st, st, logger)
	if err := server.Start(); err != nil {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("Failed to close store", "error", closeErr)
		}
		return fmt.Errorf("start rpc server: %w", err)
	}
	logger.Info("Server key", "publicKey", server.PublicKeyHex())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		pipe.Run(ctx, interval)
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")

	// Stop the loop first, then the transport, then the store; a
	// failure at one step must not skip the rest.
	wg.Wait()
	var errs []error
	if err := server.Stop(); err != nil {
		errs = append(errs, err)
	}
	if err := st.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
