package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"archie-core-marketplace-layer/internal/domain"
	"archie-core-marketplace-layer/internal/ports"

	"github.com/rs/zerolog"
)

// ErrAccountNotFound is returned when an account id does not resolve
var ErrAccountNotFound = errors.New("account not found")

// ConnectionService runs connection tests against stored accounts
type ConnectionService struct {
	accounts ports.AccountRepository
	adapters ports.AdapterFactory
	logger   zerolog.Logger
}

// NewConnectionService creates a new connection service
func NewConnectionService(
	accounts ports.AccountRepository,
	adapters ports.AdapterFactory,
	logger zerolog.Logger,
) *ConnectionService {
	return &ConnectionService{
		accounts: accounts,
		adapters: adapters,
		logger:   logger.With().Str("component", "connection").Logger(),
	}
}

// Test calls the account's marketplace and records the outcome on the account
func (s *ConnectionService) Test(ctx context.Context, accountID string) (domain.ConnectionTestResult, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return domain.ConnectionTestResult{}, fmt.Errorf("failed to load account: %w", err)
	}
	if account == nil {
		return domain.ConnectionTestResult{}, ErrAccountNotFound
	}

	adapter, err := s.adapters.ForAccount(account)
	if err != nil {
		return domain.ConnectionTestResult{}, err
	}

	result := adapter.TestConnection(ctx)

	record := domain.ConnectionTestRecord{
		TestedAt: time.Now().UTC(),
		Success:  result.Success,
		Message:  result.Message,
	}
	if err := s.accounts.RecordConnectionTest(ctx, account.ID, record); err != nil {
		s.logger.Error().Err(err).Str("accountId", account.ID).Msg("Failed to record connection test")
		return result, fmt.Errorf("failed to record connection test: %w", err)
	}

	s.logger.Info().
		Str("accountId", account.ID).
		Str("marketplace", string(account.Marketplace)).
		Bool("success", result.Success).
		Dur("responseTime", result.ResponseTime).
		Msg("Connection test completed")

	return result, nil
}
