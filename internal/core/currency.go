package core

import (
	"strings"
)

const (
	UAH Currency = "UAH"
	USD Currency = "USD"
	EUR Currency = "EUR"
)

// BaseCurrency is the currency every rate table is quoted against.
const BaseCurrency = USD

type (
	Currency string

	// RateTable maps a currency to the number of its units per one USD.
	RateTable map[Currency]float64
)

// CurrencyOrder is the display order used by selectors and secondary lookups.
var CurrencyOrder = []Currency{UAH, USD, EUR}

func (c Currency) Valid() bool {
	for _, known := range CurrencyOrder {
		if c == known {
			return true
		}
	}
	return false
}

func (c Currency) String() string {
	return string(c)
}

// ParseCurrency accepts a currency code in any case.
func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", ErrUnknownCurrency
	}
	return c, nil
}

// CurrencyOrDefault returns s as a currency when it is exactly a known code,
// otherwise UAH.
func CurrencyOrDefault(s string) Currency {
	c := Currency(s)
	if !c.Valid() {
		return UAH
	}
	return c
}

// SecondaryCurrency returns the first currency in display order that is not primary.
func SecondaryCurrency(primary Currency) Currency {
	for _, c := range CurrencyOrder {
		if c != primary {
			return c
		}
	}
	return USD
}

// FallbackRates returns the static table used when the provider is unavailable.
func FallbackRates() RateTable {
	return RateTable{
		USD: 1,
		EUR: 0.93,
		UAH: 37.1,
	}
}

// IdentityRates returns a table where every currency is worth one USD.
func IdentityRates() RateTable {
	return RateTable{
		USD: 1,
		EUR: 1,
		UAH: 1,
	}
}

func (t RateTable) Clone() RateTable {
	if t == nil {
		return nil
	}
	out := make(RateTable, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// Complete reports whether every known currency has a positive rate.
func (t RateTable) Complete() bool {
	for _, c := range CurrencyOrder {
		if t[c] <= 0 {
			return false
		}
	}
	return true
}

// Convert converts amount between currencies through the USD base.
// A nil table or identical currencies return amount unchanged. Missing
// entries count as 1 and a zero source rate leaves the amount unchanged.
func Convert(amount float64, from, to Currency, rates RateTable) float64 {
	if from == to || rates == nil {
		return amount
	}
	fromRate, ok := rates[from]
	if !ok {
		fromRate = 1
	}
	toRate, ok := rates[to]
	if !ok {
		toRate = 1
	}
	if fromRate == 0 {
		return amount
	}
	return amount * toRate / fromRate
}
