package provider

import (
	"context"
	"fmt"
	"strconv"

	"cryptorates-service/internal/application"
	"cryptorates-service/internal/domain"
	"cryptorates-service/internal/infrastructure/httpx"
)

const CoinbaseName = "Coinbase"

// Coinbase reads the spot price endpoint of the public Coinbase API.
type Coinbase struct {
	BaseURL string
	Client  *httpx.Client
}

var _ application.RateProvider = (*Coinbase)(nil)

func NewCoinbase(client *httpx.Client) *Coinbase {
	return &Coinbase{BaseURL: "https://api.coinbase.com", Client: client}
}

func (p *Coinbase) Name() string { return CoinbaseName }

type coinbaseSpotResp struct {
	Data struct {
		Amount   string `json:"amount"`
		Base     string `json:"base"`
		Currency string `json:"currency"`
	} `json:"data"`
}

func (p *Coinbase) GetRate(ctx context.Context, pairKey string) (float64, error) {
	pair, ok := domain.ParsePair(pairKey)
	if !ok {
		return 0, fmt.Errorf("coinbase: %w: %q", domain.ErrInvalidPair, pairKey)
	}
	url := fmt.Sprintf("%s/v2/prices/%s-%s/spot", p.BaseURL, pair.Crypto, pair.Fiat)

	var body coinbaseSpotResp
	if err := p.Client.GetJSON(ctx, url, &body); err != nil {
		return 0, fmt.Errorf("coinbase: %w", err)
	}
	rate, err := strconv.ParseFloat(body.Data.Amount, 64)
	if err != nil {
		return 0, fmt.Errorf("coinbase: parse amount %q: %w", body.Data.Amount, err)
	}
	if rate <= 0 {
		return 0, fmt.Errorf("coinbase: non-positive rate %v for %s", rate, pairKey)
	}
	return rate, nil
}
