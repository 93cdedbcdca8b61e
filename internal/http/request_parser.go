// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for decoding and validating request data.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"myfinance/internal/core"
	"myfinance/internal/rates"
	"myfinance/internal/reports"
)

const maxBodyBytes = 64 << 10

// DecodeJSON reads a single JSON object from the request body into dst.
// Unknown fields and trailing data are rejected.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

// AmountField accepts a JSON number or a string such as "1,234.50".
type AmountField string

func (a *AmountField) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*a = AmountField(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return core.ErrInvalidAmount
	}
	*a = AmountField(n.String())
	return nil
}

// Parse returns the amount as a positive number.
func (a AmountField) Parse() (float64, error) {
	return core.ParseAmount(string(a))
}

// StatisticsParams holds the parsed statistics query.
type StatisticsParams struct {
	Period     reports.Period
	Date       time.Time
	Comparison reports.Comparison
}

// ParseStatisticsParams reads period, date and comparison from the query,
// defaulting to the current month compared with the previous one.
func ParseStatisticsParams(query url.Values, today time.Time) (StatisticsParams, error) {
	period, err := reports.ParsePeriod(query.Get("period"))
	if err != nil {
		return StatisticsParams{}, err
	}
	cmp, err := reports.ParseComparison(query.Get("comparison"))
	if err != nil {
		return StatisticsParams{}, err
	}
	date := core.DateOf(today).Time
	if v := strings.TrimSpace(query.Get("date")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return StatisticsParams{}, err
		}
		date = d.Time
	}
	return StatisticsParams{Period: period, Date: date, Comparison: cmp}, nil
}

// sanitizeInput removes control characters except tab and newlines and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// statisticsCacheKey identifies one statistics result. The rate part covers
// the timestamp, the outcome and the table itself, since a cold refresher
// can move to the fallback table without a timestamp.
func statisticsCacheKey(p StatisticsParams, revision uint64, snap rates.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%s|%s|%d|%d|%s",
		p.Period, p.Date.Format(core.DateLayout), p.Comparison, revision,
		snap.LastUpdated.UnixNano(), snap.Outcome)
	if snap.Rates == nil {
		b.WriteString("|cold")
	}
	for _, c := range core.CurrencyOrder {
		if v, ok := snap.Rates[c]; ok {
			fmt.Fprintf(&b, "|%s=%g", c, v)
		}
	}
	return b.String()
}
