package services

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/currency"

	"github.com/codyseavey/game-tracker/internal/config"
)

// CurrencyNormalizer converts store prices into the display currency using a
// static rate table. It performs no I/O and never fails: unknown codes use the
// default rate.
type CurrencyNormalizer struct {
	display     string
	symbol      string
	defaultRate float64
	rates       map[string]float64
}

// NewCurrencyNormalizer creates a normalizer from configuration
func NewCurrencyNormalizer(cfg config.CurrencyConfig) *CurrencyNormalizer {
	rates := make(map[string]float64, len(cfg.Rates))
	for code, rate := range cfg.Rates {
		if rate > 0 && !math.IsInf(rate, 0) {
			rates[canonicalCurrency(code)] = rate
		}
	}

	n := &CurrencyNormalizer{
		display:     canonicalCurrency(cfg.Display),
		symbol:      cfg.Symbol,
		defaultRate: cfg.DefaultRate,
		rates:       rates,
	}
	if n.display == "" {
		n.display = "EUR"
	}
	if n.symbol == "" {
		n.symbol = "€"
	}
	if n.defaultRate <= 0 || math.IsInf(n.defaultRate, 0) || math.IsNaN(n.defaultRate) {
		n.defaultRate = 0.92
	}
	// The display currency always converts 1:1
	n.rates[n.display] = 1.0
	return n
}

// Normalize converts amount (major units) from sourceCurrency into the display currency
func (n *CurrencyNormalizer) Normalize(amount float64, sourceCurrency string) float64 {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0
	}
	return amount * n.Rate(sourceCurrency)
}

// Rate returns the conversion rate for a currency code, or the default rate
func (n *CurrencyNormalizer) Rate(sourceCurrency string) float64 {
	if rate, ok := n.rates[canonicalCurrency(sourceCurrency)]; ok {
		return rate
	}
	return n.defaultRate
}

// Format renders an amount in the display currency with exactly two decimals, e.g. "€9.19"
func (n *CurrencyNormalizer) Format(amount float64) string {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		amount = 0
	}
	// Anything that rounds to zero renders as "0.00", never "-0.00"
	if math.Abs(amount) < 0.005 {
		amount = 0
	}
	return fmt.Sprintf("%s%.2f", n.symbol, amount)
}

// DisplayCurrency returns the ISO code all prices are converted into
func (n *CurrencyNormalizer) DisplayCurrency() string {
	return n.display
}

// canonicalCurrency upper-cases and validates an ISO 4217 code.
// Unrecognized codes are returned trimmed and upper-cased so they still
// miss the rate table and fall back to the default rate.
func canonicalCurrency(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return ""
	}
	if unit, err := currency.ParseISO(code); err == nil {
		return unit.String()
	}
	return code
}
