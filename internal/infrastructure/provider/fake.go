package provider

import (
	"context"

	"cryptorates-service/internal/application"
)

// Ensure Fake implements application.RateProvider.
var _ application.RateProvider = (*Fake)(nil)

// Fake returns a fixed rate; useful for local runs without network access.
type Fake struct {
	name string
	rate float64
}

func NewFake(name string, rate float64) *Fake { return &Fake{name: name, rate: rate} }

func (f *Fake) Name() string { return f.name }

func (f *Fake) GetRate(context.Context, string) (float64, error) {
	return f.rate, nil
}
