package internal

import (
	"context"
	"fmt"

	binance "github.com/adshao/go-binance/v2"
	bybit "github.com/hirokisan/bybit/v2"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/fgi/config"
	"github.com/vadiminshakov/fgi/internal/domain"
	"github.com/vadiminshakov/fgi/internal/services/pricer"
)

type priceService interface {
	GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error)
}

// serviceProvider creates exchange-specific services.
type serviceProvider interface {
	Pricer() (priceService, error)
}

// newExchangeClient creates the exchange client for the price line.
func newExchangeClient(conf config.PriceConfig) (any, error) {
	switch conf.Exchange {
	case config.ExchangeBinance:
		return binance.NewClient(conf.APIKey, conf.APISecret), nil
	case config.ExchangeBybit:
		client := bybit.NewClient()
		if conf.APIKey != "" && conf.APISecret != "" {
			client = client.WithAuth(conf.APIKey, conf.APISecret)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported platform: %s", conf.Exchange)
	}
}

// newServiceProvider dispatches on the client type.
func newServiceProvider(client any) (serviceProvider, error) {
	switch c := client.(type) {
	case *binance.Client:
		return &binanceProvider{client: c}, nil
	case *bybit.Client:
		return &bybitProvider{client: c}, nil
	default:
		return nil, fmt.Errorf("unsupported client type: %T", client)
	}
}

type binanceProvider struct {
	client *binance.Client
}

func (p *binanceProvider) Pricer() (priceService, error) {
	return pricer.NewBinancePricer(p.client), nil
}

type bybitProvider struct {
	client *bybit.Client
}

func (p *bybitProvider) Pricer() (priceService, error) {
	return pricer.NewBybitPricer(p.client), nil
}
