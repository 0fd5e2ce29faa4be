// Package aggregator turns a noisy set of exchange tickers into one
// reference price per asset.
package aggregator

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/leaopedro/top-coins-price-tracker/internal/coingecko"
	"github.com/leaopedro/top-coins-price-tracker/internal/model"
)

// TickerSource provides the external price data the aggregator
// consumes. *coingecko.Client satisfies it; tests inject fixed lists.
type TickerSource interface {
	ListTopAssets(ctx context.Context) ([]coingecko.Asset, error)
	FetchTickers(ctx context.Context, assetID string) ([]coingecko.Ticker, error)
}

// Config holds aggregation parameters.
type Config struct {
	// VsCurrency is the quote currency tickers must be denominated in.
	VsCurrency string

	// TopNExchanges caps how many qualifying tickers contribute to the
	// average.
	TopNExchanges int
}

// Aggregator fetches candidate assets and their tickers and reduces
// them to canonical price observations.
type Aggregator struct {
	source TickerSource
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// New builds an Aggregator over the given ticker source.
func New(source TickerSource, cfg Config, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		source: source,
		cfg:    cfg,
		logger: logger.With("component", "aggregator"),
		now:    time.Now,
	}
}

// ListTopAssets returns the candidate assets, ordered by descending
// market cap as reported by the source.
func (a *Aggregator) ListTopAssets(ctx context.Context) ([]coingecko.Asset, error) {
	return a.source.ListTopAssets(ctx)
}

// Observe fetches the asset's tickers and builds its observation.
// A nil observation with nil error means no usable ticker existed and
// nothing should be persisted for the asset this cycle.
func (a *Aggregator) Observe(ctx context.Context, asset coingecko.Asset) (*model.PriceObservation, error) {
	tickers, err := a.source.FetchTickers(ctx, asset.ID)
	if err != nil {
		return nil, err
	}
	return a.BuildObservation(asset, tickers, a.now()), nil
}

// BuildObservation applies the selection algorithm to a fixed ticker
// list:
//
//  1. keep tickers quoted in the configured currency, with a numeric
//     last price and a green trust score;
//  2. take up to TopNExchanges of them in source order (the source
//     orders by descending volume) and average their prices;
//  3. with zero green-trust survivors, fall back to the first ticker
//     with the right quote currency and a numeric price regardless of
//     trust;
//  4. with no such ticker either, return nil.
//
// The transformation is deterministic and side-effect free.
func (a *Aggregator) BuildObservation(asset coingecko.Asset, tickers []coingecko.Ticker, now time.Time) *model.PriceObservation {
	obs := &model.PriceObservation{
		ID:        asset.ID,
		Symbol:    strings.ToUpper(asset.Symbol),
		Name:      asset.Name,
		Timestamp: now.UTC(),
	}

	var top []coingecko.Ticker
	for _, t := range tickers {
		if !a.usableTicker(t) || t.TrustScore != coingecko.TrustScoreGreen {
			continue
		}
		top = append(top, t)
		if len(top) == a.cfg.TopNExchanges {
			break
		}
	}

	if len(top) == 0 {
		for _, t := range tickers {
			if a.usableTicker(t) {
				top = append(top, t)
				break
			}
		}
	}
	if len(top) == 0 {
		return nil
	}

	sum := 0.0
	for _, t := range top {
		sum += *t.Last
		obs.SourceExchanges = append(obs.SourceExchanges, model.SourceExchange{
			Name:   t.Market.Name,
			Price:  *t.Last,
			Volume: t.ConvertedVolume.USD,
		})
	}
	obs.AveragePrice = sum / float64(len(top))

	return obs
}

func (a *Aggregator) usableTicker(t coingecko.Ticker) bool {
	return strings.EqualFold(t.Target, a.cfg.VsCurrency) && t.Last != nil
}
