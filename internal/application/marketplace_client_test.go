package application

import (
	"errors"
	"testing"

	"archie-core-marketplace-layer/internal/domain"
	"archie-core-marketplace-layer/internal/infrastructure/httpexec"
	"archie-core-marketplace-layer/internal/ports"
)

var _ ports.AdapterFactory = (*MarketplaceClient)(nil)

func TestBuildRejectsUnknownMarketplace(t *testing.T) {
	_, err := testClient().For("etsy").WithAccount(shopifyAccount("s", "")).Build()

	var cfgErr *domain.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected a configuration error, got %v", err)
	}
}

func TestBuildRequiresMatchingAccount(t *testing.T) {
	client := testClient()

	if _, err := client.For("shopify").Build(); err == nil {
		t.Error("expected an error without an account")
	}
	if _, err := client.For("ebay").WithAccount(shopifyAccount("s", "")).Build(); err == nil {
		t.Error("expected an error for a marketplace mismatch")
	}

	adapter, err := client.For(" Shopify ").WithAccount(shopifyAccount("s", "")).Build()
	if err != nil {
		t.Fatal(err)
	}
	if adapter.Marketplace() != domain.MarketplaceShopify || adapter.AccountID() != "s" {
		t.Errorf("adapter = %s/%s", adapter.Marketplace(), adapter.AccountID())
	}
}

func TestForAccountPicksAdapter(t *testing.T) {
	client := testClient()
	for _, acc := range []*domain.Account{shopifyAccount("s", ""), ebayAccount("e"), miraklAccount("m", "https://m.example.com")} {
		adapter, err := client.ForAccount(acc)
		if err != nil {
			t.Fatalf("%s: %v", acc.ID, err)
		}
		if adapter.Marketplace() != acc.Marketplace {
			t.Errorf("%s: marketplace = %s", acc.ID, adapter.Marketplace())
		}
	}
	if _, err := client.ForAccount(nil); err == nil {
		t.Error("expected an error for a nil account")
	}
}

func TestBuilderWithDoesNotMutate(t *testing.T) {
	base := testClient().For("ebay")
	withAcc := base.WithAccount(ebayAccount("e"))
	withSandbox := withAcc.WithSandbox(false).WithRetry(httpexec.NoRetry())

	if base.account != nil || base.sandbox != nil || base.retry != nil {
		t.Error("base builder was modified")
	}
	if withAcc.sandbox != nil || withAcc.retry != nil {
		t.Error("account builder was modified")
	}
	if withSandbox.sandbox == nil || *withSandbox.sandbox || withSandbox.retry == nil {
		t.Error("overrides not applied")
	}
	if _, err := withSandbox.Build(); err != nil {
		t.Fatal(err)
	}
}

func TestSandboxOverrideCopiesAccount(t *testing.T) {
	acc := ebayAccount("e")
	cp := withSandboxSetting(acc, false)

	if cp.Credentials["environment"] != "production" || cp.Settings["sandbox"] != false {
		t.Errorf("copy = %+v %+v", cp.Credentials, cp.Settings)
	}
	if acc.Credentials["environment"] != "sandbox" {
		t.Error("original credentials were modified")
	}
	if _, ok := acc.Settings["sandbox"]; ok {
		t.Error("original settings were modified")
	}
}

func TestStaticHelpers(t *testing.T) {
	if len(SupportedMarketplaces()) != 4 {
		t.Errorf("supported = %v", SupportedMarketplaces())
	}

	matrix := CapabilityMatrix()
	if len(matrix) != 4 {
		t.Fatalf("matrix = %d entries", len(matrix))
	}
	for _, info := range matrix {
		if len(info.Capabilities.Operations) == 0 || info.Requirements.DocsURL == "" {
			t.Errorf("%s: incomplete metadata %+v", info.Marketplace, info)
		}
	}

	req, err := RequiredCredentials("MIRAKL")
	if err != nil {
		t.Fatal(err)
	}
	keys := req.RequiredKeys()
	if len(keys) != 3 || keys[0] != "api_url" || keys[1] != "api_key" || keys[2] != "operator" {
		t.Errorf("mirakl required keys = %v", keys)
	}

	if url, err := DocsURL("amazon"); err != nil || url == "" {
		t.Errorf("docs url = %q, %v", url, err)
	}
	if _, err := RequiredCredentials("unknown"); err == nil {
		t.Error("expected an error for an unknown marketplace")
	}
}
