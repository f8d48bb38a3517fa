package ports

import (
	"context"
	"time"

	"archie-core-marketplace-layer/internal/domain"
)

// AccountRepository defines read access to marketplace accounts.
// Lookups return (nil, nil) when the account does not exist.
type AccountRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	ListActive(ctx context.Context) ([]*domain.Account, error)
	Save(ctx context.Context, account *domain.Account) error

	// RecordConnectionTest is the only mutation the integration layer performs on an account
	RecordConnectionTest(ctx context.Context, id string, record domain.ConnectionTestRecord) error
}

// SchemaRepository defines persistence for discovered field definitions and value lists.
// Upserts are keyed by natural key so repeated discovery never creates duplicates.
type SchemaRepository interface {
	UpsertValueLists(ctx context.Context, lists []domain.ValueList) error
	UpsertFieldDefinitions(ctx context.Context, fields []domain.FieldDefinition) error

	// DeactivateMissingFields sets active=false on the channel's active fields not listed in keep.
	// Definitions are never deleted.
	DeactivateMissingFields(ctx context.Context, channel domain.ChannelKey, keep []domain.FieldKey) (int, error)

	// MarkValueListsFailed flags every stored list of the channel as failed with the sync error
	MarkValueListsFailed(ctx context.Context, channel domain.ChannelKey, syncError string) (int, error)

	// A nil channel lists every channel
	ListFieldDefinitions(ctx context.Context, channel *domain.ChannelKey) ([]domain.FieldDefinition, error)
	ListValueLists(ctx context.Context, channel *domain.ChannelKey) ([]domain.ValueList, error)

	// LastVerifiedAt returns the most recent verification time of an active field in the channel, or nil
	LastVerifiedAt(ctx context.Context, channel domain.ChannelKey) (*time.Time, error)
}
