package domain

import (
	"fmt"
	"strings"
)

// Pair spot trading pair used for the optional price line, e.g. BTC_USDT.
type Pair struct {
	// From base currency symbol.
	From string
	// To quote currency symbol.
	To string
}

// ParsePair parses BASE_QUOTE notation.
func ParsePair(s string) (Pair, error) {
	parts := strings.Split(strings.TrimSpace(s), "_")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Pair{}, fmt.Errorf("invalid pair %q, expected BASE_QUOTE", s)
	}
	return Pair{From: strings.ToUpper(parts[0]), To: strings.ToUpper(parts[1])}, nil
}

// String returns BASE_QUOTE.
func (p Pair) String() string {
	return fmt.Sprintf("%s_%s", p.From, p.To)
}

// Symbol returns the exchange symbol, e.g. BTCUSDT.
func (p Pair) Symbol() string {
	return p.From + p.To
}

// Display returns BASE/QUOTE for human readable output.
func (p Pair) Display() string {
	return p.From + "/" + p.To
}
