package application

import (
	"math"
	"sort"

	"cryptorates-service/internal/domain"
)

// outlierThreshold is the maximum relative deviation from the median a
// quote may have before it is excluded from aggregation.
const outlierThreshold = 0.05

type outlier struct {
	Quote     domain.ProviderQuote
	Deviation float64
}

// filterOutliers removes quotes deviating more than outlierThreshold from
// the median. With fewer than 3 quotes there is no reliable outlier signal,
// so everything passes through.
func filterOutliers(quotes []domain.ProviderQuote) (valid []domain.ProviderQuote, rejected []outlier) {
	if len(quotes) < 3 {
		return quotes, nil
	}
	med := medianRate(quotes)
	for _, q := range quotes {
		dev := math.Abs(q.Rate-med) / med
		if dev > outlierThreshold {
			rejected = append(rejected, outlier{Quote: q, Deviation: dev})
			continue
		}
		valid = append(valid, q)
	}
	return valid, rejected
}

func medianRate(quotes []domain.ProviderQuote) float64 {
	rates := make([]float64, len(quotes))
	for i, q := range quotes {
		rates[i] = q.Rate
	}
	sort.Float64s(rates)
	mid := len(rates) / 2
	if len(rates)%2 != 0 {
		return rates[mid]
	}
	return (rates[mid-1] + rates[mid]) / 2
}

// spreadPercent is the distance between the highest and lowest quote as a
// percentage of the lowest. Zero when fewer than two quotes exist.
func spreadPercent(quotes []domain.ProviderQuote) float64 {
	if len(quotes) < 2 {
		return 0
	}
	min, max := quotes[0].Rate, quotes[0].Rate
	for _, q := range quotes[1:] {
		if q.Rate < min {
			min = q.Rate
		}
		if q.Rate > max {
			max = q.Rate
		}
	}
	if min == 0 {
		return 0
	}
	return (max - min) / min * 100
}

func minMaxRates(quotes []domain.ProviderQuote) (min, max float64) {
	min, max = quotes[0].Rate, quotes[0].Rate
	for _, q := range quotes[1:] {
		if q.Rate < min {
			min = q.Rate
		}
		if q.Rate > max {
			max = q.Rate
		}
	}
	return min, max
}

// weightedAverage computes sum(rate*weight)/sum(weight) with per-provider
// weights and a default for unknown providers. Zero total weight yields 0.
func weightedAverage(quotes []domain.ProviderQuote, weights map[string]float64, defaultWeight float64) float64 {
	var sum, total float64
	for _, q := range quotes {
		w, ok := weights[q.Provider]
		if !ok {
			w = defaultWeight
		}
		sum += q.Rate * w
		total += w
	}
	if total == 0 {
		return 0
	}
	return sum / total
}

// confidenceScore grades an aggregation cycle in [0,1]: the share of
// registered providers that contributed a surviving quote, penalized when
// the spread is wide.
func confidenceScore(validCount, totalProviders int, spread float64) float64 {
	if totalProviders == 0 {
		return 0
	}
	score := float64(validCount) / float64(totalProviders)
	switch {
	case spread > 5.0:
		score *= 0.5
	case spread > 1.0:
		score *= 0.8
	}
	return math.Min(math.Max(score, 0), 1)
}
