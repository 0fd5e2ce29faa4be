// Package store persists price observations in an ordered key-value
// database and answers the two query shapes the tracker needs:
// latest-per-symbol and time-range-per-symbol.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/leaopedro/top-coins-price-tracker/internal/keycodec"
	"github.com/leaopedro/top-coins-price-tracker/internal/model"
)

// ErrClosed is returned by every operation invoked before Open or after
// Close.
var ErrClosed = errors.New("store is not open")

// Store wraps a LevelDB database holding observation keys built by the
// keycodec, interleaved with a few reserved literal keys (identity
// seeds). It is safe for concurrent use: LevelDB serves concurrent
// readers during an in-flight write batch, and a batch becomes visible
// atomically at its flush boundary. Open and Close are serialized
// against all other operations.
type Store struct {
	mu     sync.RWMutex
	db     *leveldb.DB
	logger *slog.Logger
}

// Open opens (creating if necessary) the database at path. It must be
// called exactly once before first use.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	logger.Info("Store opened", "path", path)
	return &Store{db: db, logger: logger.With("component", "store")}, nil
}

// Close releases the database. Further operations return ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return ErrClosed
	}
	err := s.db.Close()
	s.db = nil
	s.logger.Info("Store closed")
	return err
}

// AppendBatch stages one put per observation and flushes them in a
// single atomic write. If the flush fails no key from the batch is
// persisted; the caller may retry the whole batch. Returns the number
// of observations written.
func (s *Store) AppendBatch(ctx context.Context, observations []model.PriceObservation) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return 0, ErrClosed
	}
	if len(observations) == 0 {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	batch := new(leveldb.Batch)
	for _, obs := range observations {
		key, err := keycodec.Encode(obs.Symbol, obs.Timestamp)
		if err != nil {
			return 0, err
		}
		value, err := json.Marshal(obs)
		if err != nil {
			return 0, err
		}
		batch.Put(key, value)
	}

	if err := s.db.Write(batch, nil); err != nil {
		return 0, err
	}
	return len(observations), nil
}

// GetLatest returns the most recent observation per symbol. An empty
// symbols slice means every symbol present in the store. Requested
// symbols with no data are omitted from the result.
//
// The scan walks keys in descending order; the first key seen per
// symbol is its latest. With a finite target set the scan stops as soon
// as every requested symbol is satisfied.
func (s *Store) GetLatest(ctx context.Context, symbols []string) (map[string]model.PriceObservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrClosed
	}

	targets := make(map[string]bool, len(symbols))
	for _, symbol := range symbols {
		upper, err := normalizeSymbol(symbol)
		if err != nil {
			return nil, err
		}
		targets[upper] = true
	}
	fetchAll := len(targets) == 0

	results := make(map[string]model.PriceObservation)

	iter := s.db.NewIterator(nil, nil)
	defer iter.Release()

	for ok := iter.Last(); ok; ok = iter.Prev() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		symbol, err := keycodec.DecodeSymbol(iter.Key())
		if err != nil {
			// Reserved keys (identity seeds) share the namespace.
			continue
		}
		if _, seen := results[symbol]; seen {
			continue
		}
		if !fetchAll && !targets[symbol] {
			continue
		}

		obs, err := model.DecodeObservation(iter.Value())
		if err != nil {
			s.logger.Warn("Skipping malformed stored value", "key", string(iter.Key()))
			continue
		}
		results[symbol] = obs

		if !fetchAll && len(results) == len(targets) {
			break
		}
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}

	return results, nil
}

// GetRange returns, for each symbol, every observation with a timestamp
// in [from, to] inclusive, in ascending chronological order. Symbols
// with no data in range map to an empty slice, not an absent key.
func (s *Store) GetRange(ctx context.Context, symbols []string, from, to time.Time) (map[string][]model.PriceObservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrClosed
	}

	results := make(map[string][]model.PriceObservation, len(symbols))
	for _, symbol := range symbols {
		upper, err := normalizeSymbol(symbol)
		if err != nil {
			return nil, err
		}

		start, err := keycodec.Encode(upper, from)
		if err != nil {
			return nil, err
		}
		end, err := keycodec.Encode(upper, to)
		if err != nil {
			return nil, err
		}
		// The iterator limit is exclusive; appending a zero byte makes
		// the bound at `to` inclusive without admitting any other key,
		// since timestamps are fixed width.
		limit := append(end, 0x00)

		results[upper] = []model.PriceObservation{}

		iter := s.db.NewIterator(&util.Range{Start: start, Limit: limit}, nil)
		for iter.Next() {
			if err := ctx.Err(); err != nil {
				iter.Release()
				return nil, err
			}
			obs, err := model.DecodeObservation(iter.Value())
			if err != nil {
				s.logger.Warn("Skipping malformed stored value", "key", string(iter.Key()))
				continue
			}
			results[upper] = append(results[upper], obs)
		}
		err = iter.Error()
		iter.Release()
		if err != nil {
			return nil, err
		}
	}

	return results, nil
}

// GetSeed reads a reserved literal key. Returns (nil, nil) when the
// key does not exist.
func (s *Store) GetSeed(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrClosed
	}

	value, err := s.db.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// PutSeed writes a reserved literal key.
func (s *Store) PutSeed(key string, value []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return ErrClosed
	}
	return s.db.Put([]byte(key), value, nil)
}

func normalizeSymbol(symbol string) (string, error) {
	prefix, err := keycodec.SymbolPrefix(symbol)
	if err != nil {
		return "", err
	}
	return string(prefix[:len(prefix)-1]), nil
}
