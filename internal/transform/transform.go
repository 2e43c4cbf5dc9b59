// Package transform enriches extracted records with derived currency values.
//
// The stage is pure: no I/O, no clock, fully deterministic for a given
// RecordSet and rate table. That is what lets it be tested exhaustively
// against malformed inputs without network or disk access.
package transform

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"banketl/internal/domain"
	"banketl/internal/rates"
)

// TargetCurrencies are the derived columns added to every record, in output
// column order.
var TargetCurrencies = []string{"GBP", "EUR", "INR"}

// ParseError reports a record whose market-cap text is not numeric after
// normalization. It names the offending record.
type ParseError struct {
	Name string
	Raw  string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("record %q: market cap %q is not numeric: %v", e.Name, e.Raw, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// MissingRateError reports a required currency absent from the rate table.
type MissingRateError struct {
	Currency string
}

func (e *MissingRateError) Error() string {
	return fmt.Sprintf("no exchange rate for %s", e.Currency)
}

// Enrich normalizes each record's market-cap text and derives the GBP, EUR,
// and INR values. The returned dataset has exactly one entry per input
// record, in the same order; on any failure no partial dataset is returned.
//
// Derived values are value_usd * rate rounded to 2 decimal places using
// round half away from zero (math.Round on the scaled value). The USD value
// itself keeps full parsed precision.
func Enrich(recs domain.RecordSet, tbl rates.Table) (domain.EnrichedDataset, error) {
	// All three rates must exist before any arithmetic, so a missing rate
	// can never yield a partially enriched dataset.
	required := make(map[string]float64, len(TargetCurrencies))
	for _, ccy := range TargetCurrencies {
		r, ok := tbl.Rate(ccy)
		if !ok {
			return nil, &MissingRateError{Currency: ccy}
		}
		required[ccy] = r
	}

	out := make(domain.EnrichedDataset, 0, len(recs))
	for _, rec := range recs {
		usd, err := ParseNumeric(rec.MarketCapUSD)
		if err != nil {
			return nil, &ParseError{Name: rec.Name, Raw: rec.MarketCapUSD, Err: err}
		}
		out = append(out, domain.EnrichedRecord{
			Name: rec.Name,
			USD:  usd,
			GBP:  round2(usd * required["GBP"]),
			EUR:  round2(usd * required["EUR"]),
			INR:  round2(usd * required["INR"]),
		})
	}
	return out, nil
}

// ParseNumeric parses a market-cap string as written in the source document:
// thousands separators (commas) and NBSP/space padding are stripped before
// the float parse.
func ParseNumeric(s string) (float64, error) {
	clean := strings.NewReplacer(",", "", "\u00a0", "", " ", "").Replace(s)
	if clean == "" {
		return 0, fmt.Errorf("empty value")
	}
	return strconv.ParseFloat(clean, 64)
}

// round2 rounds to 2 decimal places, half away from zero.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
