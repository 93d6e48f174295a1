// Package pricer reads spot prices for the optional price line of the post.
package pricer

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/fgi/internal/domain"
)

// Pricer returns the last traded price of a spot pair.
type Pricer interface {
	GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error)
}
