// Package domain defines the business objects that flow through the bank
// market-cap pipeline: the raw records produced by extraction and the
// currency-enriched records persisted by the sinks.
package domain

// ExtractColumns is the column set produced by extraction. Position matters:
// the extractor reads the bank name and the market-cap text by cell position.
var ExtractColumns = []string{"Name", "MC_USD_Billion"}

// FinalColumns is the column set of the enriched dataset, in the order used
// by both the CSV sink and the relational sink.
var FinalColumns = []string{
	"Name",
	"MC_USD_Billion",
	"MC_GBP_Billion",
	"MC_EUR_Billion",
	"MC_INR_Billion",
}

// RawRecord is one bank as extracted from the source document. MarketCapUSD
// is kept as written (it may contain thousands separators); parsing happens
// in the transform stage so malformed values can be reported per record.
type RawRecord struct {
	Name         string
	MarketCapUSD string
}

// RecordSet is an ordered sequence of raw records. Order is document order,
// which is rank order; duplicates are not rejected because the source does
// not guarantee uniqueness.
type RecordSet []RawRecord

// EnrichedRecord is a RawRecord after numeric normalization and currency
// derivation. USD carries the parsed value at full precision; the derived
// currencies are rounded to 2 decimal places.
type EnrichedRecord struct {
	Name string
	USD  float64
	GBP  float64
	EUR  float64
	INR  float64
}

// Row returns the record's values aligned with FinalColumns.
func (r EnrichedRecord) Row() []any {
	return []any{r.Name, r.USD, r.GBP, r.EUR, r.INR}
}

// EnrichedDataset is an ordered sequence of enriched records. It preserves
// the rank order of the RecordSet it was built from and is the unit written
// to both sinks.
type EnrichedDataset []EnrichedRecord

// Rows returns the dataset as positional rows aligned with FinalColumns.
func (d EnrichedDataset) Rows() [][]any {
	out := make([][]any, len(d))
	for i, r := range d {
		out[i] = r.Row()
	}
	return out
}
