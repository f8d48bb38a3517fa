package repository

import (
	"context"
	"fmt"
	"time"

	"archie-core-marketplace-layer/internal/domain"
	"archie-core-marketplace-layer/internal/infrastructure/repository/entity"
	"archie-core-marketplace-layer/internal/ports"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoAccountRepository implements AccountRepository using MongoDB
type MongoAccountRepository struct {
	collection *mongo.Collection
}

// NewMongoAccountRepository creates a new MongoDB account repository
func NewMongoAccountRepository(db *mongo.Database) ports.AccountRepository {
	return &MongoAccountRepository{
		collection: db.Collection("marketplace_accounts"),
	}
}

// GetByID retrieves an account by its id
func (r *MongoAccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	var doc entity.MongoAccountDoc
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return doc.ToDomain(), nil
}

// ListActive retrieves every active account ordered by id
func (r *MongoAccountRepository) ListActive(ctx context.Context) ([]*domain.Account, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"active": true}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer cursor.Close(ctx)

	var accounts []*domain.Account
	for cursor.Next(ctx) {
		var doc entity.MongoAccountDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode account: %w", err)
		}
		accounts = append(accounts, doc.ToDomain())
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	return accounts, nil
}

// Save saves or updates an account
func (r *MongoAccountRepository) Save(ctx context.Context, account *domain.Account) error {
	doc := entity.MongoAccountDocFromDomain(account)
	doc.UpdatedAt = time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}

	opts := options.Update().SetUpsert(true)
	filter := bson.M{"_id": account.ID}
	update := bson.M{"$set": doc}

	_, err := r.collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}

	return nil
}

// RecordConnectionTest stores the outcome of the latest connection test
func (r *MongoAccountRepository) RecordConnectionTest(ctx context.Context, id string, record domain.ConnectionTestRecord) error {
	update := bson.M{"$set": bson.M{
		"lastTestAt":      record.TestedAt,
		"lastTestSuccess": record.Success,
		"lastTestMessage": record.Message,
	}}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to record connection test: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("account not found")
	}
	return nil
}
