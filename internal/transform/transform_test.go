package transform

import (
	"errors"
	"reflect"
	"testing"

	"banketl/internal/domain"
	"banketl/internal/rates"
)

var testRates = rates.Table{"GBP": 0.8, "EUR": 0.93, "INR": 82.5}

// TestEnrich_KnownScenario pins the end-to-end arithmetic: thousands
// separator stripped, exact derived values.
func TestEnrich_KnownScenario(t *testing.T) {
	in := domain.RecordSet{{Name: "Bank A", MarketCapUSD: "1,000.00"}}

	got, err := Enrich(in, testRates)
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}

	want := domain.EnrichedDataset{
		{Name: "Bank A", USD: 1000.0, GBP: 800.0, EUR: 930.0, INR: 82500.0},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Enrich() = %#v, want %#v", got, want)
	}
}

// TestEnrich_LengthAndOrderPreserved checks the no-record-dropped invariant.
func TestEnrich_LengthAndOrderPreserved(t *testing.T) {
	in := domain.RecordSet{
		{Name: "A", MarketCapUSD: "1.00"},
		{Name: "B", MarketCapUSD: "2.50"},
		{Name: "A", MarketCapUSD: "3.00"}, // duplicate names are legal
	}

	got, err := Enrich(in, testRates)
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if len(got) != len(in) {
		t.Fatalf("len = %d, want %d", len(got), len(in))
	}
	for i := range in {
		if got[i].Name != in[i].Name {
			t.Fatalf("order changed at %d: %q != %q", i, got[i].Name, in[i].Name)
		}
	}
}

// TestEnrich_ExactRounding verifies the declared rounding mode (half away
// from zero) and exact equality of derived fields.
func TestEnrich_ExactRounding(t *testing.T) {
	in := domain.RecordSet{{Name: "X", MarketCapUSD: "3.456"}}
	tbl := rates.Table{"GBP": 1, "EUR": 1, "INR": 10}

	got, err := Enrich(in, tbl)
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	r := got[0]
	if r.USD != 3.456 {
		t.Fatalf("USD = %v, want full precision 3.456", r.USD)
	}
	if r.GBP != 3.46 || r.EUR != 3.46 {
		t.Fatalf("GBP/EUR = %v/%v, want 3.46 (half away from zero)", r.GBP, r.EUR)
	}
	if r.INR != 34.56 {
		t.Fatalf("INR = %v, want 34.56", r.INR)
	}
}

func TestEnrich_MissingRate(t *testing.T) {
	in := domain.RecordSet{{Name: "Bank A", MarketCapUSD: "1.00"}}
	tbl := rates.Table{"GBP": 0.8, "INR": 82.5} // EUR absent

	got, err := Enrich(in, tbl)
	if got != nil {
		t.Fatalf("partial dataset returned: %#v", got)
	}
	var mre *MissingRateError
	if !errors.As(err, &mre) {
		t.Fatalf("error %T is not *MissingRateError: %v", err, err)
	}
	if mre.Currency != "EUR" {
		t.Fatalf("Currency = %q, want EUR", mre.Currency)
	}
}

func TestEnrich_ParseErrorNamesRecord(t *testing.T) {
	in := domain.RecordSet{
		{Name: "Good", MarketCapUSD: "10.00"},
		{Name: "Bad", MarketCapUSD: "n/a"},
	}

	got, err := Enrich(in, testRates)
	if got != nil {
		t.Fatalf("partial dataset returned: %#v", got)
	}
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("error %T is not *ParseError: %v", err, err)
	}
	if pe.Name != "Bad" || pe.Raw != "n/a" {
		t.Fatalf("ParseError = %+v, want record Bad / raw n/a", pe)
	}
}

func TestParseNumeric(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{in: "432.92", want: 432.92},
		{in: "1,948.00", want: 1948},
		{in: "12,345,678.9", want: 12345678.9},
		{in: "1 000.5", want: 1000.5},
		{in: " 55 ", want: 55},
		{in: "-3.5", want: -3.5},
		{in: "", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "12..3", wantErr: true},
		{in: ",", wantErr: true},
	}

	for _, tc := range tests {
		got, err := ParseNumeric(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseNumeric(%q) = %v, want error", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseNumeric(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseNumeric(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
