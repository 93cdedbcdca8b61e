package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"myfinance/internal/core"
)

const maxBodyBytes = 1 << 20

var (
	ErrProviderStatus = errors.New("provider returned non-success status")
	ErrProviderResult = errors.New("provider reported failure")
)

// FetchResult is the outcome of one provider call. Err is set on hard
// failure; otherwise Rates holds all known currencies and Filled lists
// the ones taken from the fallback table.
type FetchResult struct {
	Rates  core.RateTable
	Filled []core.Currency
	Err    error
}

func (r FetchResult) OK() bool {
	return r.Err == nil
}

// Fetcher retrieves a fresh rate table.
type Fetcher interface {
	Fetch(ctx context.Context) FetchResult
}

type providerEnvelope struct {
	Result string              `json:"result"`
	Rates  map[string]*float64 `json:"rates"`
}

// HTTPFetcher issues one GET per Fetch against an open.er-api.com style endpoint.
type HTTPFetcher struct {
	client   *http.Client
	endpoint string
	logger   *slog.Logger
}

func NewHTTPFetcher(endpoint string, timeout time.Duration, logger *slog.Logger) *HTTPFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPFetcher{
		client:   &http.Client{Timeout: timeout},
		endpoint: endpoint,
		logger:   logger,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context) FetchResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.endpoint, nil)
	if err != nil {
		return FetchResult{Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return FetchResult{Err: fmt.Errorf("fetch rates: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return FetchResult{Err: fmt.Errorf("%w: %d", ErrProviderStatus, resp.StatusCode)}
	}

	var env providerEnvelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&env); err != nil {
		return FetchResult{Err: fmt.Errorf("decode rates: %w", err)}
	}
	if env.Result != "success" {
		return FetchResult{Err: fmt.Errorf("%w: result=%q", ErrProviderResult, env.Result)}
	}

	table, filled := Normalize(env.Rates)
	if len(filled) > 0 {
		f.logger.DebugContext(ctx, "Filled missing rates from fallback", "filled", filled)
	}
	return FetchResult{Rates: table, Filled: filled}
}

// Normalize projects a provider rate map onto the known currencies.
// Reported values are kept as they are, zero included. A currency that is
// absent or null takes its fallback value and is listed in filled.
func Normalize(remote map[string]*float64) (core.RateTable, []core.Currency) {
	fallback := core.FallbackRates()
	table := make(core.RateTable, len(core.CurrencyOrder))
	var filled []core.Currency
	for _, c := range core.CurrencyOrder {
		v := remote[string(c)]
		if v == nil {
			table[c] = fallback[c]
			filled = append(filled, c)
			continue
		}
		table[c] = *v
	}
	return table, filled
}
