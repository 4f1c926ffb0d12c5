package provider

import (
	"context"
	"fmt"
	"strconv"

	"cryptorates-service/internal/application"
	"cryptorates-service/internal/domain"
	"cryptorates-service/internal/infrastructure/httpx"
)

const BinanceName = "Binance"

// Binance reads the public ticker price endpoint. Binance has no direct
// fiat markets for most currencies, so fiat codes are mapped to their
// stablecoin ticker where one exists (USD -> USDT).
type Binance struct {
	BaseURL string
	Client  *httpx.Client
}

var _ application.RateProvider = (*Binance)(nil)

func NewBinance(client *httpx.Client) *Binance {
	return &Binance{BaseURL: "https://api.binance.com", Client: client}
}

func (p *Binance) Name() string { return BinanceName }

var binanceFiatSymbols = map[string]string{
	"USD": "USDT",
	"EUR": "EUR",
	"GBP": "GBP",
	"TRY": "TRY",
}

type binanceTickerResp struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

func (p *Binance) GetRate(ctx context.Context, pairKey string) (float64, error) {
	pair, ok := domain.ParsePair(pairKey)
	if !ok {
		return 0, fmt.Errorf("binance: %w: %q", domain.ErrInvalidPair, pairKey)
	}
	quote, ok := binanceFiatSymbols[pair.Fiat]
	if !ok {
		return 0, fmt.Errorf("binance: no market for fiat %s", pair.Fiat)
	}
	url := fmt.Sprintf("%s/api/v3/ticker/price?symbol=%s%s", p.BaseURL, pair.Crypto, quote)

	var body binanceTickerResp
	if err := p.Client.GetJSON(ctx, url, &body); err != nil {
		return 0, fmt.Errorf("binance: %w", err)
	}
	rate, err := strconv.ParseFloat(body.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("binance: parse price %q: %w", body.Price, err)
	}
	if rate <= 0 {
		return 0, fmt.Errorf("binance: non-positive rate %v for %s", rate, pairKey)
	}
	return rate, nil
}
