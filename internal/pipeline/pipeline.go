// Package pipeline drives ingestion cycles: fetch candidate assets,
// aggregate one observation per asset, persist the batch.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/leaopedro/top-coins-price-tracker/internal/aggregator"
	"github.com/leaopedro/top-coins-price-tracker/internal/coingecko"
	"github.com/leaopedro/top-coins-price-tracker/internal/model"
)

// ObservationWriter persists whole batches of observations.
// *store.Store satisfies it.
type ObservationWriter interface {
	AppendBatch(ctx context.Context, observations []model.PriceObservation) (int, error)
}

// Source lists candidate assets and builds observations for them.
// *aggregator.Aggregator satisfies it.
type Source interface {
	ListTopAssets(ctx context.Context) ([]coingecko.Asset, error)
	Observe(ctx context.Context, asset coingecko.Asset) (*model.PriceObservation, error)
}

var _ Source = (*aggregator.Aggregator)(nil)

// Pipeline runs ingestion cycles, either once or on a recurring timer.
type Pipeline struct {
	source Source
	writer ObservationWriter
	logger *slog.Logger
}

// New builds a Pipeline.
func New(source Source, writer ObservationWriter, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		source: source,
		writer: writer,
		logger: logger.With("component", "pipeline"),
	}
}

// RunCycle executes one ingestion cycle. Assets are observed
// sequentially; the external source's rate limit is respected by the
// client's own pacing, not by parallel fan-out. A cycle that fetches
// nothing is a normal outcome. Per-asset failures skip the asset; the
// rest of the batch still persists.
func (p *Pipeline) RunCycle(ctx context.Context) error {
	p.logger.Info("Fetching data...")

	assets, err := p.source.ListTopAssets(ctx)
	if err != nil {
		return err
	}
	if len(assets) == 0 {
		p.logger.Info("No assets fetched this cycle")
		return nil
	}

	observations := make([]model.PriceObservation, 0, len(assets))
	for _, asset := range assets {
		obs, err := p.source.Observe(ctx, asset)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Error("Failed to observe asset", "asset", asset.ID, "error", err)
			continue
		}
		if obs == nil {
			p.logger.Warn("No usable ticker for asset", "asset", asset.ID)
			continue
		}
		p.logger.Info("Processed asset",
			"name", obs.Name, "symbol", obs.Symbol, "averagePrice", obs.AveragePrice)
		observations = append(observations, *obs)
	}

	if len(observations) == 0 {
		p.logger.Info("Nothing to persist this cycle")
		return nil
	}

	n, err := p.writer.AppendBatch(ctx, observations)
	if err != nil {
		return err
	}
	p.logger.Info("Stored observations", "count", n)
	return nil
}

// Run executes cycles until ctx is cancelled: the first immediately,
// then one per interval. Cycle failures are logged and never stop the
// loop; the next cycle runs on schedule regardless. No retry or backoff
// is applied between cycles.
func (p *Pipeline) Run(ctx context.Context, interval time.Duration) {
	p.logger.Info("Pipeline loop started", "interval", interval)

	if err := p.RunCycle(ctx); err != nil && ctx.Err() == nil {
		p.logger.Error("Cycle failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Pipeline loop stopped")
			return
		case <-ticker.C:
			if err := p.RunCycle(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("Cycle failed", "error", err)
			}
		}
	}
}
