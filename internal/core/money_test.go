package core

import (
	"errors"
	"math"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out float64
		ok  bool
	}{
		{"1", 1, true},
		{"1.23", 1.23, true},
		{"1,000", 1000, true},
		{"1,234.50", 1234.5, true},
		{" 2.50 ", 2.5, true},
		{"0.01", 0.01, true},
		{"-1", 0, false},
		{"0", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %v, got %v (err=%v)", tc.in, tc.out, got, err)
			}
		} else if !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("%q expected ErrInvalidAmount, got %v", tc.in, err)
		}
	}
}

func TestRound2(t *testing.T) {
	cases := map[float64]float64{
		1.005:  1.01,
		-1.005: -1.01,
		2.344:  2.34,
		10:     10,
	}
	for in, want := range cases {
		if got := Round2(in); got != want {
			t.Fatalf("Round2(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestRound2NonFinite(t *testing.T) {
	if got := Round2(math.Inf(1)); !math.IsInf(got, 1) {
		t.Fatalf("Round2(+Inf) = %v", got)
	}
	if got := Round2(math.Inf(-1)); !math.IsInf(got, -1) {
		t.Fatalf("Round2(-Inf) = %v", got)
	}
	if got := Round2(math.NaN()); !math.IsNaN(got) {
		t.Fatalf("Round2(NaN) = %v", got)
	}
}
