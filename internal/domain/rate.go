package domain

import "time"

// RateSource identifies which provider produced a rate row. Aggregated rows
// use SourceAggregated; provider rows use the lower-cased provider name.
type RateSource string

const (
	SourceCoinbase   RateSource = "coinbase"
	SourceBinance    RateSource = "binance"
	SourceCoinGecko  RateSource = "coingecko"
	SourceAggregated RateSource = "aggregated"
)

// ProviderQuote is one provider's raw observation within an aggregation
// cycle, before persistence.
type ProviderQuote struct {
	Provider string
	Rate     float64
}

// Rate is one row of the exchange_rates history: either a single provider
// quote or an aggregated consensus. Bid, Ask, SpreadPercent, ConfidenceScore
// and ProviderBreakdown are only set on aggregated rows. Rows are immutable
// once written.
type Rate struct {
	ID                string
	Pair              Pair
	Rate              float64
	Bid               *float64
	Ask               *float64
	SpreadPercent     *float64
	Source            RateSource
	ConfidenceScore   *float64
	ProviderBreakdown map[string]float64
	ValidUntil        *time.Time
	CreatedAt         time.Time
}

// Stale reports whether the row is past its ValidUntil horizon.
func (r Rate) Stale(now time.Time) bool {
	return r.ValidUntil != nil && now.After(*r.ValidUntil)
}
