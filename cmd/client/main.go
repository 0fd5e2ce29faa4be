package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/leaopedro/top-coins-price-tracker/internal/rpc"
)

const requestTimeout = 30 * time.Second

func main() {
	addr := flag.String("addr", "127.0.0.1:40001", "server address")
	flag.Parse()

	serverKey := flag.Arg(0)
	if len(serverKey) != 64 {
		fmt.Fprintln(os.Stderr, "Usage: client [--addr host:port] <server_public_key_hex>")
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	client, err := rpc.Dial(ctx, *addr, serverKey)
	if err != nil {
		logger.Error("Failed to connect", "addr", *addr, "error", err)
		os.Exit(1)
	}
	defer client.Close()

	latest, err := client.GetLatestPrices(ctx, []string{"BTC", "ETH"})
	if err != nil {
		logger.Error("Failed to get latest prices", "error", err)
	} else {
		fmt.Println("Latest Prices:")
		printJSON(latest)
	}

	now := time.Now()
	history, err := client.GetHistoricalPrices(ctx, []string{"BTC"}, now.Add(-time.Hour), now)
	if err != nil {
		logger.Error("Failed to get historical prices", "error", err)
		os.Exit(1)
	}
	fmt.Println("\nHistorical Prices (BTC):")
	printJSON(history)
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, "encode error:", err)
		return
	}
	fmt.Println(string(out))
}
