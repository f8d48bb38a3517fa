package entity

import (
	"time"

	"archie-core-marketplace-layer/internal/domain"
)

// MongoAccountDoc represents a marketplace account in MongoDB
type MongoAccountDoc struct {
	ID          string            `bson:"_id"`
	Name        string            `bson:"name"`
	Marketplace string            `bson:"marketplace"`
	Operator    string            `bson:"operator,omitempty"`
	Credentials map[string]string `bson:"credentials"`
	Settings    map[string]any    `bson:"settings,omitempty"`
	Active      bool              `bson:"active"`

	LastTestAt      *time.Time `bson:"lastTestAt,omitempty"`
	LastTestSuccess *bool      `bson:"lastTestSuccess,omitempty"`
	LastTestMessage string     `bson:"lastTestMessage,omitempty"`

	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// ToDomain converts the MongoDB document to a domain entity
func (d *MongoAccountDoc) ToDomain() *domain.Account {
	return &domain.Account{
		ID:              d.ID,
		Name:            d.Name,
		Marketplace:     domain.Marketplace(d.Marketplace),
		Operator:        d.Operator,
		Credentials:     d.Credentials,
		Settings:        d.Settings,
		Active:          d.Active,
		LastTestAt:      d.LastTestAt,
		LastTestSuccess: d.LastTestSuccess,
		LastTestMessage: d.LastTestMessage,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

// MongoAccountDocFromDomain converts a domain entity to a MongoDB document
func MongoAccountDocFromDomain(account *domain.Account) *MongoAccountDoc {
	return &MongoAccountDoc{
		ID:              account.ID,
		Name:            account.Name,
		Marketplace:     string(account.Marketplace),
		Operator:        account.Operator,
		Credentials:     account.Credentials,
		Settings:        account.Settings,
		Active:          account.Active,
		LastTestAt:      account.LastTestAt,
		LastTestSuccess: account.LastTestSuccess,
		LastTestMessage: account.LastTestMessage,
		CreatedAt:       account.CreatedAt,
		UpdatedAt:       account.UpdatedAt,
	}
}
