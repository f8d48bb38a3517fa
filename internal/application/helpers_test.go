package application

import (
	"archie-core-marketplace-layer/internal/domain"
	"archie-core-marketplace-layer/internal/infrastructure/httpexec"

	"github.com/rs/zerolog"
)

func testClient() *MarketplaceClient {
	exec := httpexec.NewExecutor(httpexec.Options{Limiter: httpexec.Unpaced{}, Retry: httpexec.NoRetry()}, zerolog.Nop())
	return NewMarketplaceClient(exec, zerolog.Nop())
}

func shopifyAccount(id, baseURL string) *domain.Account {
	return &domain.Account{
		ID:          id,
		Name:        "Storefront " + id,
		Marketplace: domain.MarketplaceShopify,
		Active:      true,
		Credentials: map[string]string{
			"store_url":    "https://" + id + ".myshopify.com",
			"access_token": "shpat_" + id,
		},
		Settings: map[string]any{"base_url": baseURL},
	}
}

func ebayAccount(id string) *domain.Account {
	return &domain.Account{
		ID:          id,
		Marketplace: domain.MarketplaceEbay,
		Active:      true,
		Credentials: map[string]string{
			"environment":   "sandbox",
			"client_id":     "app",
			"client_secret": "cert",
			"dev_id":        "dev",
		},
		Settings: map[string]any{"base_url": "http://unused.invalid"},
	}
}

func miraklAccount(id, apiURL string) *domain.Account {
	return &domain.Account{
		ID:          id,
		Marketplace: domain.MarketplaceMirakl,
		Operator:    "decathlon",
		Active:      true,
		Credentials: map[string]string{
			"api_url": apiURL,
			"api_key": "key-" + id,
		},
	}
}
