package provider

import (
	"context"
	"fmt"
	"strings"

	"cryptorates-service/internal/application"
	"cryptorates-service/internal/domain"
	"cryptorates-service/internal/infrastructure/httpx"
)

const CoinGeckoName = "CoinGecko"

// CoinGecko reads the public simple-price endpoint. CoinGecko keys coins by
// slug rather than ticker, so crypto codes go through coinGeckoIDs.
type CoinGecko struct {
	BaseURL string
	Client  *httpx.Client
}

var _ application.RateProvider = (*CoinGecko)(nil)

func NewCoinGecko(client *httpx.Client) *CoinGecko {
	return &CoinGecko{BaseURL: "https://api.coingecko.com", Client: client}
}

func (p *CoinGecko) Name() string { return CoinGeckoName }

var coinGeckoIDs = map[string]string{
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"SOL":  "solana",
	"USDC": "usd-coin",
	"USDT": "tether",
	"XRP":  "ripple",
}

func (p *CoinGecko) GetRate(ctx context.Context, pairKey string) (float64, error) {
	pair, ok := domain.ParsePair(pairKey)
	if !ok {
		return 0, fmt.Errorf("coingecko: %w: %q", domain.ErrInvalidPair, pairKey)
	}
	id, ok := coinGeckoIDs[pair.Crypto]
	if !ok {
		return 0, fmt.Errorf("coingecko: unknown coin %s", pair.Crypto)
	}
	vs := strings.ToLower(pair.Fiat)
	url := fmt.Sprintf("%s/api/v3/simple/price?ids=%s&vs_currencies=%s", p.BaseURL, id, vs)

	body := map[string]map[string]float64{}
	if err := p.Client.GetJSON(ctx, url, &body); err != nil {
		return 0, fmt.Errorf("coingecko: %w", err)
	}
	rate, ok := body[id][vs]
	if !ok {
		return 0, fmt.Errorf("coingecko: missing price for %s", pairKey)
	}
	if rate <= 0 {
		return 0, fmt.Errorf("coingecko: non-positive rate %v for %s", rate, pairKey)
	}
	return rate, nil
}
