package domain

import (
	"regexp"
	"strings"
)

// Pair identifies what is being priced: a crypto currency against a fiat one.
type Pair struct {
	Crypto string
	Fiat   string
}

var codeRe = regexp.MustCompile(`^[A-Z]{2,6}$`)

func NewPair(crypto, fiat string) Pair {
	return Pair{Crypto: strings.ToUpper(crypto), Fiat: strings.ToUpper(fiat)}
}

// Key returns the canonical pair key, e.g. "BTC-USD".
func (p Pair) Key() string { return p.Crypto + "-" + p.Fiat }

func (p Pair) Valid() bool {
	return codeRe.MatchString(p.Crypto) && codeRe.MatchString(p.Fiat) && p.Crypto != p.Fiat
}

// ParsePair parses a canonical pair key like "BTC-USD".
func ParsePair(key string) (Pair, bool) {
	crypto, fiat, ok := strings.Cut(key, "-")
	if !ok {
		return Pair{}, false
	}
	p := NewPair(crypto, fiat)
	if !p.Valid() {
		return Pair{}, false
	}
	return p, true
}
