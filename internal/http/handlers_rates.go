package http

import (
	"fmt"
	"net/http"
	"time"

	"myfinance/internal/core"
	applog "myfinance/internal/log"
)

type ratesResponse struct {
	Rates       core.RateTable  `json:"rates"`
	LastUpdated *time.Time      `json:"lastUpdated,omitempty"`
	Loading     bool            `json:"loading"`
	Outcome     string          `json:"outcome"`
	Filled      []core.Currency `json:"filled,omitempty"`
	Error       string          `json:"error,omitempty"`
}

type convertResponse struct {
	Amount    float64       `json:"amount"`
	From      core.Currency `json:"from"`
	To        core.Currency `json:"to"`
	Result    float64       `json:"result"`
	Formatted string        `json:"formatted"`
}

func (s *Server) ratesBody() ratesResponse {
	snap := s.rates.Snapshot()
	body := ratesResponse{
		Rates:   snap.Rates,
		Loading: snap.Loading,
		Outcome: string(snap.Outcome),
		Filled:  snap.Filled,
	}
	if !snap.LastUpdated.IsZero() {
		t := snap.LastUpdated
		body.LastUpdated = &t
	}
	if snap.Err != nil {
		body.Error = snap.Err.Error()
	}
	return body
}

func (s *Server) handleRates(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(s.ratesBody()).Write(w)
}

// handleRefreshRates runs one refresh cycle inside the request.
func (s *Server) handleRefreshRates(w http.ResponseWriter, r *http.Request) {
	outcome := s.rates.Refresh(r.Context())
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Manual rates refresh",
		applog.FieldOperation, applog.OpRefresh, applog.FieldOutcome, outcome)
	NewJSONResponse().Data(s.ratesBody()).Write(w)
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	amount, err := core.ParseAmount(q.Get("amount"))
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	from, err := core.ParseCurrency(q.Get("from"))
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	to, err := core.ParseCurrency(q.Get("to"))
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}

	result := core.Convert(amount, from, to, s.rates.Snapshot().Rates)
	if !core.Finite(result) {
		ErrorFor(fmt.Errorf("%w: result out of range", core.ErrInvalidAmount)).Write(w)
		return
	}
	NewJSONResponse().Data(convertResponse{
		Amount:    amount,
		From:      from,
		To:        to,
		Result:    core.Round2(result),
		Formatted: core.Format(result, to),
	}).Write(w)
}
