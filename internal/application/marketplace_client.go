package application

import (
	"fmt"

	"archie-core-marketplace-layer/internal/domain"
	"archie-core-marketplace-layer/internal/infrastructure/amazon"
	"archie-core-marketplace-layer/internal/infrastructure/ebay"
	"archie-core-marketplace-layer/internal/infrastructure/httpexec"
	"archie-core-marketplace-layer/internal/infrastructure/mirakl"
	"archie-core-marketplace-layer/internal/infrastructure/shopify"
	"archie-core-marketplace-layer/internal/ports"

	"github.com/rs/zerolog"
)

type adapterConstructor func(account *domain.Account, exec *httpexec.Executor, logger zerolog.Logger) ports.Adapter

type marketplaceEntry struct {
	construct    adapterConstructor
	requirements func() domain.Requirements
	capabilities func() domain.Capabilities
	rateLimits   func() domain.RateLimits
}

var registry = map[domain.Marketplace]marketplaceEntry{
	domain.MarketplaceShopify: {
		construct: func(acc *domain.Account, exec *httpexec.Executor, logger zerolog.Logger) ports.Adapter {
			return shopify.NewAdapter(acc, exec, logger)
		},
		requirements: shopify.Requirements,
		capabilities: shopify.Capabilities,
		rateLimits:   shopify.RateLimits,
	},
	domain.MarketplaceEbay: {
		construct: func(acc *domain.Account, exec *httpexec.Executor, logger zerolog.Logger) ports.Adapter {
			return ebay.NewAdapter(acc, exec, logger)
		},
		requirements: ebay.Requirements,
		capabilities: ebay.Capabilities,
		rateLimits:   ebay.RateLimits,
	},
	domain.MarketplaceAmazon: {
		construct: func(acc *domain.Account, exec *httpexec.Executor, logger zerolog.Logger) ports.Adapter {
			return amazon.NewAdapter(acc, exec, logger)
		},
		requirements: amazon.Requirements,
		capabilities: amazon.Capabilities,
		rateLimits:   amazon.RateLimits,
	},
	domain.MarketplaceMirakl: {
		construct: func(acc *domain.Account, exec *httpexec.Executor, logger zerolog.Logger) ports.Adapter {
			return mirakl.NewAdapter(acc, exec, logger)
		},
		requirements: mirakl.Requirements,
		capabilities: mirakl.Capabilities,
		rateLimits:   mirakl.RateLimits,
	},
}

// MarketplaceInfo is the static description of one marketplace
type MarketplaceInfo struct {
	Marketplace  domain.Marketplace  `json:"marketplace"`
	Capabilities domain.Capabilities `json:"capabilities"`
	RateLimits   domain.RateLimits   `json:"rate_limits"`
	Requirements domain.Requirements `json:"requirements"`
}

// SupportedMarketplaces lists every marketplace an adapter exists for
func SupportedMarketplaces() []domain.Marketplace {
	return domain.AllMarketplaces()
}

// RequiredCredentials describes the credential fields of a marketplace
func RequiredCredentials(name string) (domain.Requirements, error) {
	entry, _, err := lookup(name)
	if err != nil {
		return domain.Requirements{}, err
	}
	return entry.requirements(), nil
}

// DocsURL returns the API documentation link of a marketplace
func DocsURL(name string) (string, error) {
	req, err := RequiredCredentials(name)
	if err != nil {
		return "", err
	}
	return req.DocsURL, nil
}

// CapabilityMatrix returns the static metadata of every supported marketplace
func CapabilityMatrix() []MarketplaceInfo {
	out := make([]MarketplaceInfo, 0, len(registry))
	for _, m := range SupportedMarketplaces() {
		entry := registry[m]
		out = append(out, MarketplaceInfo{
			Marketplace:  m,
			Capabilities: entry.capabilities(),
			RateLimits:   entry.rateLimits(),
			Requirements: entry.requirements(),
		})
	}
	return out
}

func lookup(name string) (marketplaceEntry, domain.Marketplace, error) {
	m, err := domain.ParseMarketplace(name)
	if err != nil {
		return marketplaceEntry{}, "", err
	}
	entry, ok := registry[m]
	if !ok {
		return marketplaceEntry{}, "", &domain.ConfigurationError{Marketplace: name, Reason: fmt.Sprintf("no adapter registered for %q", name)}
	}
	return entry, m, nil
}

// MarketplaceClient builds account-bound adapters sharing one executor
type MarketplaceClient struct {
	executor *httpexec.Executor
	logger   zerolog.Logger
}

// NewMarketplaceClient creates a new marketplace client
func NewMarketplaceClient(executor *httpexec.Executor, logger zerolog.Logger) *MarketplaceClient {
	return &MarketplaceClient{
		executor: executor,
		logger:   logger,
	}
}

// For starts building an adapter for the named marketplace.
// An unknown name is reported by Build.
func (c *MarketplaceClient) For(name string) ClientBuilder {
	return ClientBuilder{client: c, name: name}
}

// ForAccount builds the adapter matching the account's marketplace
func (c *MarketplaceClient) ForAccount(account *domain.Account) (ports.Adapter, error) {
	if account == nil {
		return nil, &domain.ConfigurationError{Reason: "an account is required to build an adapter"}
	}
	return c.For(string(account.Marketplace)).WithAccount(account).Build()
}

// ClientBuilder is an immutable adapter configuration. Every With call returns a copy.
type ClientBuilder struct {
	client  *MarketplaceClient
	name    string
	account *domain.Account
	sandbox *bool
	retry   *httpexec.RetryPolicy
}

// WithAccount binds the account the adapter acts for
func (b ClientBuilder) WithAccount(account *domain.Account) ClientBuilder {
	b.account = account
	return b
}

// WithSandbox forces the sandbox environment on or off
func (b ClientBuilder) WithSandbox(sandbox bool) ClientBuilder {
	b.sandbox = &sandbox
	return b
}

// WithRetry overrides the executor's retry policy for this adapter
func (b ClientBuilder) WithRetry(p httpexec.RetryPolicy) ClientBuilder {
	b.retry = &p
	return b
}

// Build validates the configuration and constructs the adapter
func (b ClientBuilder) Build() (ports.Adapter, error) {
	entry, m, err := lookup(b.name)
	if err != nil {
		return nil, err
	}
	if b.account == nil {
		return nil, &domain.ConfigurationError{Marketplace: b.name, Reason: "an account is required to build an adapter"}
	}
	if b.account.Marketplace != m {
		return nil, &domain.ConfigurationError{
			Marketplace: b.name,
			Reason:      fmt.Sprintf("account %s belongs to %s, not %s", b.account.ID, b.account.Marketplace, m),
		}
	}

	account := b.account
	if b.sandbox != nil {
		account = withSandboxSetting(account, *b.sandbox)
	}

	exec := b.client.executor
	if b.retry != nil {
		exec = exec.WithRetry(*b.retry)
	}

	return entry.construct(account, exec, b.client.logger), nil
}

func withSandboxSetting(account *domain.Account, sandbox bool) *domain.Account {
	cp := *account
	cp.Settings = make(map[string]any, len(account.Settings)+1)
	for k, v := range account.Settings {
		cp.Settings[k] = v
	}
	cp.Settings["sandbox"] = sandbox
	if !sandbox && cp.Credentials["environment"] == "sandbox" {
		cp.Credentials = make(map[string]string, len(account.Credentials))
		for k, v := range account.Credentials {
			cp.Credentials[k] = v
		}
		cp.Credentials["environment"] = "production"
	}
	return &cp
}
