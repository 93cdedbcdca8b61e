package http

import (
	"encoding/json"
	"net/url"
	"testing"
	"time"

	"myfinance/internal/core"
	"myfinance/internal/rates"
	"myfinance/internal/reports"
)

func TestAmountFieldUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    float64
		wantErr bool
	}{
		{"number", `12.5`, 12.5, false},
		{"string", `"12.50"`, 12.5, false},
		{"thousands separator", `"1,234.50"`, 1234.5, false},
		{"zero", `0`, 0, true},
		{"empty string", `""`, 0, true},
		{"text", `"abc"`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a AmountField
			if err := json.Unmarshal([]byte(tt.input), &a); err != nil {
				t.Fatalf("unmarshal error = %v", err)
			}
			got, err := a.Parse()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("Parse() = %v, want %v", got, tt.want)
			}
		})
	}

	var a AmountField
	if err := json.Unmarshal([]byte(`true`), &a); err == nil {
		t.Error("expected error for boolean amount")
	}
}

func TestParseStatisticsParams(t *testing.T) {
	today := time.Date(2026, 10, 15, 18, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		query   string
		want    StatisticsParams
		wantErr bool
	}{
		{
			name:  "defaults",
			query: "",
			want: StatisticsParams{
				Period:     reports.Month,
				Date:       time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC),
				Comparison: reports.ComparePrevious,
			},
		},
		{
			name:  "explicit",
			query: "period=year&date=2025-03-09&comparison=sameLastYear",
			want: StatisticsParams{
				Period:     reports.Year,
				Date:       time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC),
				Comparison: reports.CompareSameLastYear,
			},
		},
		{name: "bad period", query: "period=week", wantErr: true},
		{name: "bad comparison", query: "comparison=next", wantErr: true},
		{name: "bad date", query: "date=yesterday", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			got, err := ParseStatisticsParams(q, today)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got.Period != tt.want.Period || got.Comparison != tt.want.Comparison || !got.Date.Equal(tt.want.Date) {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestStatisticsCacheKey(t *testing.T) {
	p := StatisticsParams{
		Period:     reports.Month,
		Date:       time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		Comparison: reports.ComparePrevious,
	}
	snap := rates.Snapshot{
		Rates:       core.RateTable{core.USD: 1, core.EUR: 0.9, core.UAH: 40},
		LastUpdated: time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC),
		Outcome:     rates.OutcomeLive,
	}

	base := statisticsCacheKey(p, 3, snap)
	if base != statisticsCacheKey(p, 3, snap) {
		t.Error("key is not stable")
	}
	if base == statisticsCacheKey(p, 4, snap) {
		t.Error("key ignores revision")
	}

	later := snap
	later.LastUpdated = snap.LastUpdated.Add(time.Second)
	if base == statisticsCacheKey(p, 3, later) {
		t.Error("key ignores rate timestamp")
	}

	retained := snap
	retained.Outcome = rates.OutcomeRetained
	if base == statisticsCacheKey(p, 3, retained) {
		t.Error("key ignores outcome")
	}

	cold := rates.Snapshot{Loading: true, Outcome: rates.OutcomeNone}
	fallback := rates.Snapshot{Rates: core.FallbackRates(), Outcome: rates.OutcomeFallback}
	if statisticsCacheKey(p, 3, cold) == statisticsCacheKey(p, 3, fallback) {
		t.Error("key does not change when the fallback table arrives")
	}

	p.Comparison = reports.CompareSameLastYear
	if base == statisticsCacheKey(p, 3, snap) {
		t.Error("key ignores comparison")
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"  coffee  ", "coffee"},
		{"a\x00b\x07c", "abc"},
		{"line\nbreak\ttab", "line\nbreak\ttab"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := sanitizeInput(tt.input); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
