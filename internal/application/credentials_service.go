package application

import (
	"context"
	"fmt"

	"archie-core-marketplace-layer/internal/domain"
	"archie-core-marketplace-layer/internal/ports"

	"github.com/rs/zerolog"
)

// CredentialStatus is the masked view of an account's credentials
type CredentialStatus struct {
	AccountID   string                   `json:"account_id"`
	Marketplace domain.Marketplace       `json:"marketplace"`
	Operator    string                   `json:"operator,omitempty"`
	Credentials map[string]string        `json:"credentials"`
	Missing     []string                 `json:"missing,omitempty"`
	Complete    bool                     `json:"complete"`
	Fields      []domain.CredentialField `json:"fields"`
	DocsURL     string                   `json:"docs_url"`
}

// CredentialsService reports whether stored accounts carry the credentials their marketplace needs
type CredentialsService struct {
	accounts ports.AccountRepository
	logger   zerolog.Logger
}

// NewCredentialsService creates a new credentials service
func NewCredentialsService(accounts ports.AccountRepository, logger zerolog.Logger) *CredentialsService {
	return &CredentialsService{
		accounts: accounts,
		logger:   logger.With().Str("component", "credentials").Logger(),
	}
}

// Status resolves the account's credentials and checks them against the marketplace requirements.
// Secret values never leave the service unmasked.
func (s *CredentialsService) Status(ctx context.Context, accountID string) (*CredentialStatus, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}

	req, err := RequiredCredentials(string(account.Marketplace))
	if err != nil {
		return nil, err
	}

	creds := domain.ResolveCredentials(account)
	missing := creds.ValidateRequired(req.RequiredKeys()...)
	if len(missing) > 0 {
		s.logger.Debug().
			Str("accountId", account.ID).
			Strs("missing", missing).
			Msg("Account credentials incomplete")
	}

	return &CredentialStatus{
		AccountID:   account.ID,
		Marketplace: account.Marketplace,
		Operator:    creds.Operator(),
		Credentials: creds.Masked(),
		Missing:     missing,
		Complete:    len(missing) == 0,
		Fields:      req.Fields,
		DocsURL:     req.DocsURL,
	}, nil
}
