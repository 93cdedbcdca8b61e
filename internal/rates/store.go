// Package rates keeps an exchange-rate table fresh: it loads the last
// persisted table, fetches new rates from the provider on a schedule and
// degrades to retained or static rates when the provider is unavailable.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"myfinance/internal/core"
	"myfinance/internal/storage"
)

// CacheEntry is the persisted result of the last successful fetch.
type CacheEntry struct {
	Timestamp time.Time
	Rates     core.RateTable
}

// Store persists a single CacheEntry. Load never fails: unreadable or
// malformed data is reported as absent.
type Store interface {
	Load(ctx context.Context) (CacheEntry, bool)
	Save(ctx context.Context, entry CacheEntry) error
}

type cacheRecord struct {
	Timestamp *float64           `json:"timestamp"`
	Rates     map[string]float64 `json:"rates"`
}

// KVStore stores the cache entry in one storage slot as
// {"timestamp": <epoch ms>, "rates": {...}}.
type KVStore struct {
	kv     storage.KV
	key    string
	logger *slog.Logger
}

func NewKVStore(kv storage.KV, logger *slog.Logger) *KVStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &KVStore{kv: kv, key: storage.KeyExchangeRates, logger: logger}
}

func (s *KVStore) Load(ctx context.Context) (CacheEntry, bool) {
	raw, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to read cached rates", "error", err)
		return CacheEntry{}, false
	}
	if !ok {
		return CacheEntry{}, false
	}
	entry, err := decodeEntry(raw)
	if err != nil {
		s.logger.WarnContext(ctx, "Ignoring malformed cached rates", "error", err)
		return CacheEntry{}, false
	}
	return entry, true
}

func (s *KVStore) Save(ctx context.Context, entry CacheEntry) error {
	raw, err := encodeEntry(entry)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, s.key, raw); err != nil {
		return fmt.Errorf("save rates: %w", err)
	}
	return nil
}

func encodeEntry(entry CacheEntry) ([]byte, error) {
	ts := float64(entry.Timestamp.UnixMilli())
	rec := cacheRecord{Timestamp: &ts, Rates: make(map[string]float64, len(entry.Rates))}
	for c, v := range entry.Rates {
		rec.Rates[string(c)] = v
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode rates: %w", err)
	}
	return raw, nil
}

func decodeEntry(raw []byte) (CacheEntry, error) {
	var rec cacheRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return CacheEntry{}, fmt.Errorf("decode rates: %w", err)
	}
	if rec.Timestamp == nil || math.IsNaN(*rec.Timestamp) || math.IsInf(*rec.Timestamp, 0) {
		return CacheEntry{}, fmt.Errorf("decode rates: missing timestamp")
	}
	if rec.Rates == nil {
		return CacheEntry{}, fmt.Errorf("decode rates: missing rate table")
	}

	table := make(core.RateTable, len(core.CurrencyOrder))
	for _, c := range core.CurrencyOrder {
		if v, ok := rec.Rates[string(c)]; ok {
			table[c] = v
		}
	}
	return CacheEntry{
		Timestamp: time.UnixMilli(int64(*rec.Timestamp)),
		Rates:     table,
	}, nil
}
