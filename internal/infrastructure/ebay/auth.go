package ebay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"archie-core-marketplace-layer/internal/domain"
	"archie-core-marketplace-layer/internal/infrastructure/httpexec"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	productionTokenURL = "https://api.ebay.com/identity/v1/oauth2/token"
	sandboxTokenURL    = "https://api.sandbox.ebay.com/identity/v1/oauth2/token"

	scopePublic      = "https://api.ebay.com/oauth/api_scope"
	scopeInventory   = "https://api.ebay.com/oauth/api_scope/sell.inventory"
	scopeFulfillment = "https://api.ebay.com/oauth/api_scope/sell.fulfillment"
)

// tokenProvider hands out OAuth2 access tokens for one account.
// Accounts with a refresh_token get a user token for the Sell APIs, the others an application token.
type tokenProvider struct {
	mu     sync.Mutex
	source oauth2.TokenSource
	build  func() oauth2.TokenSource
}

func newTokenProvider(clientID, clientSecret, refreshToken, tokenURL string, httpClient *http.Client) *tokenProvider {
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
	endpoint := oauth2.Endpoint{TokenURL: tokenURL, AuthStyle: oauth2.AuthStyleInHeader}

	build := func() oauth2.TokenSource {
		if refreshToken != "" {
			cfg := &oauth2.Config{
				ClientID:     clientID,
				ClientSecret: clientSecret,
				Endpoint:     endpoint,
				Scopes:       []string{scopeInventory, scopeFulfillment},
			}
			return cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
		}
		cfg := &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
			Scopes:       []string{scopePublic},
			AuthStyle:    oauth2.AuthStyleInHeader,
		}
		return cfg.TokenSource(ctx)
	}
	return &tokenProvider{build: build}
}

// Token returns a cached token, fetching a new one when it is missing or expired
func (p *tokenProvider) Token() (*oauth2.Token, error) {
	p.mu.Lock()
	if p.source == nil {
		p.source = p.build()
	}
	src := p.source
	p.mu.Unlock()

	return src.Token()
}

// classifyTokenError maps a token endpoint failure onto the error taxonomy
func classifyTokenError(err error) *domain.Error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		status := retrieveErr.Response.StatusCode
		kind := httpexec.KindForStatus(status)
		if status == http.StatusBadRequest && retrieveErr.ErrorCode == "invalid_client" {
			kind = domain.ErrAuthenticationFailed
		}
		e := domain.NewError(kind, fmt.Sprintf("failed to obtain access token: %s", tokenErrorMessage(retrieveErr)))
		e.Status = status
		return e
	}
	return domain.NewError(domain.ErrException, fmt.Sprintf("failed to obtain access token: %v", err))
}

func tokenErrorMessage(err *oauth2.RetrieveError) string {
	if err.ErrorDescription != "" {
		return err.ErrorDescription
	}
	if err.ErrorCode != "" {
		return err.ErrorCode
	}
	return http.StatusText(err.Response.StatusCode)
}
