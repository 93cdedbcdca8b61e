package core

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

type currencyStyle struct {
	tag    language.Tag
	symbol string
	prefix bool
}

var currencyStyles = map[Currency]currencyStyle{
	USD: {tag: language.AmericanEnglish, symbol: "$", prefix: true},
	EUR: {tag: language.German, symbol: "€"},
	UAH: {tag: language.Ukrainian, symbol: "₴"},
}

const (
	nbsp     = "\u00a0"
	infinity = "∞"
	notANum  = "NaN"
)

// Format renders amount in the locale attached to c with exactly two
// fraction digits, e.g. "$1,000.00", "1.000,00 €" or "1 000,00 ₴".
func Format(amount float64, c Currency) string {
	style, ok := currencyStyles[c]
	if !ok {
		style = currencyStyle{tag: language.AmericanEnglish, symbol: string(c) + nbsp, prefix: true}
	}

	var digits string
	switch {
	case math.IsNaN(amount):
		digits = notANum
	case math.IsInf(amount, 0):
		digits = infinity
	default:
		abs, _ := decimal.NewFromFloat(math.Abs(amount)).Round(2).Float64()
		p := message.NewPrinter(style.tag)
		digits = p.Sprintf("%v", number.Decimal(abs,
			number.MinFractionDigits(2),
			number.MaxFractionDigits(2),
		))
	}

	var b strings.Builder
	// The sign follows the unrounded amount, so -0.001 renders as "-$0.00".
	if amount < 0 {
		b.WriteString("-")
	}
	if style.prefix {
		b.WriteString(style.symbol)
		b.WriteString(digits)
	} else {
		b.WriteString(digits)
		b.WriteString(nbsp)
		b.WriteString(style.symbol)
	}
	return b.String()
}

// FormatCount renders n as an en-US grouped integer, rounding half away from zero.
func FormatCount(n float64) string {
	switch {
	case math.IsNaN(n):
		return notANum
	case math.IsInf(n, 1):
		return infinity
	case math.IsInf(n, -1):
		return "-" + infinity
	}
	rounded := decimal.NewFromFloat(n).Round(0)
	p := message.NewPrinter(language.AmericanEnglish)
	digits := p.Sprintf("%v", number.Decimal(rounded.Abs().IntPart(), number.MaxFractionDigits(0)))
	if rounded.IsNegative() {
		return "-" + digits
	}
	return digits
}
