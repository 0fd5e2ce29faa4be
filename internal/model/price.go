// Package model defines the domain models shared across the application.
package model

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrMalformedValue is returned when a stored value cannot be decoded
// into a PriceObservation. Scans skip such entries instead of aborting,
// since the store namespace also holds non-observation keys.
var ErrMalformedValue = errors.New("malformed stored value")

// SourceExchange is one exchange ticker that contributed to an
// observation's average price.
type SourceExchange struct {
	// Name is the exchange display name as reported by the price source.
	Name string `json:"name"`

	// Price is the last trade price on this exchange in quote currency.
	Price float64 `json:"price"`

	// Volume is the 24h traded volume converted to quote currency.
	Volume float64 `json:"volume"`
}

// PriceObservation is one canonical price record for one asset at one
// instant. Observations are immutable once created: the pipeline builds
// them, the store persists them, and nothing mutates or deletes them.
type PriceObservation struct {
	// ID is the price source's asset identifier (e.g. "bitcoin").
	ID string `json:"id"`

	// Symbol is the short uppercase asset ticker (e.g. "BTC").
	Symbol string `json:"symbol"`

	// Name is the asset display name. Informational, not a key field.
	Name string `json:"name"`

	// Timestamp is the instant of observation in UTC.
	Timestamp time.Time `json:"timestamp"`

	// AveragePrice is the reference price in quote currency: the mean of
	// the source exchange prices, or the single fallback price.
	AveragePrice float64 `json:"averagePrice"`

	// SourceExchanges lists the tickers behind AveragePrice, in the
	// order they contributed. Never empty for a persisted observation.
	SourceExchanges []SourceExchange `json:"sourceExchanges"`
}

// DecodeObservation decodes a stored value into a PriceObservation.
// Values that do not unmarshal, or that lack the fields every persisted
// observation carries, yield ErrMalformedValue.
func DecodeObservation(raw []byte) (PriceObservation, error) {
	var obs PriceObservation
	if err := json.Unmarshal(raw, &obs); err != nil {
		return PriceObservation{}, ErrMalformedValue
	}
	if obs.Symbol == "" || len(obs.SourceExchanges) == 0 {
		return PriceObservation{}, ErrMalformedValue
	}
	return obs, nil
}
