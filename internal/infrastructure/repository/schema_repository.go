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

// MongoSchemaRepository implements SchemaRepository using MongoDB
type MongoSchemaRepository struct {
	fieldsCollection     *mongo.Collection
	valueListsCollection *mongo.Collection
}

// NewMongoSchemaRepository creates a new MongoDB schema repository and ensures its unique indexes
func NewMongoSchemaRepository(ctx context.Context, db *mongo.Database) (ports.SchemaRepository, error) {
	r := &MongoSchemaRepository{
		fieldsCollection:     db.Collection("field_definitions"),
		valueListsCollection: db.Collection("value_lists"),
	}

	fieldIndex := mongo.IndexModel{
		Keys: bson.D{
			{Key: "channelType", Value: 1},
			{Key: "channelSubtype", Value: 1},
			{Key: "category", Value: 1},
			{Key: "fieldCode", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	}
	if _, err := r.fieldsCollection.Indexes().CreateOne(ctx, fieldIndex); err != nil {
		return nil, fmt.Errorf("failed to create field definition index: %w", err)
	}

	listIndex := mongo.IndexModel{
		Keys: bson.D{
			{Key: "channelType", Value: 1},
			{Key: "channelSubtype", Value: 1},
			{Key: "listCode", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	}
	if _, err := r.valueListsCollection.Indexes().CreateOne(ctx, listIndex); err != nil {
		return nil, fmt.Errorf("failed to create value list index: %w", err)
	}

	return r, nil
}

// UpsertValueLists saves value lists by natural key, keeping the first discovery time
func (r *MongoSchemaRepository) UpsertValueLists(ctx context.Context, lists []domain.ValueList) error {
	if len(lists) == 0 {
		return nil
	}

	models := make([]mongo.WriteModel, 0, len(lists))
	for _, vl := range lists {
		doc := entity.MongoValueListDocFromDomain(vl)
		filter := bson.M{
			"channelType":    doc.ChannelType,
			"channelSubtype": doc.ChannelSubtype,
			"listCode":       doc.ListCode,
		}
		update := bson.M{
			"$set": bson.M{
				"name":         doc.Name,
				"description":  doc.Description,
				"values":       doc.Values,
				"valueCount":   doc.ValueCount,
				"lastSyncedAt": doc.LastSyncedAt,
				"syncStatus":   doc.SyncStatus,
				"syncError":    doc.SyncError,
			},
			"$setOnInsert": bson.M{"discoveredAt": doc.DiscoveredAt},
		}
		models = append(models, mongo.NewUpdateOneModel().SetFilter(filter).SetUpdate(update).SetUpsert(true))
	}

	_, err := r.valueListsCollection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return fmt.Errorf("failed to upsert value lists: %w", err)
	}
	return nil
}

// UpsertFieldDefinitions saves field definitions by natural key, keeping the first discovery time
func (r *MongoSchemaRepository) UpsertFieldDefinitions(ctx context.Context, fields []domain.FieldDefinition) error {
	if len(fields) == 0 {
		return nil
	}

	models := make([]mongo.WriteModel, 0, len(fields))
	for _, f := range fields {
		doc := entity.MongoFieldDefinitionDocFromDomain(f)
		filter := bson.M{
			"channelType":    doc.ChannelType,
			"channelSubtype": doc.ChannelSubtype,
			"category":       doc.Category,
			"fieldCode":      doc.FieldCode,
		}
		update := bson.M{
			"$set": bson.M{
				"label":           doc.Label,
				"description":     doc.Description,
				"valueType":       doc.ValueType,
				"required":        doc.Required,
				"validationRules": doc.ValidationRules,
				"valueListCode":   doc.ValueListCode,
				"lastVerifiedAt":  doc.LastVerifiedAt,
				"active":          doc.Active,
			},
			"$setOnInsert": bson.M{"discoveredAt": doc.DiscoveredAt},
		}
		models = append(models, mongo.NewUpdateOneModel().SetFilter(filter).SetUpdate(update).SetUpsert(true))
	}

	_, err := r.fieldsCollection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return fmt.Errorf("failed to upsert field definitions: %w", err)
	}
	return nil
}

// DeactivateMissingFields marks the channel's active fields that are not in keep as inactive
func (r *MongoSchemaRepository) DeactivateMissingFields(ctx context.Context, channel domain.ChannelKey, keep []domain.FieldKey) (int, error) {
	filter := channelFilter(&channel)
	filter["active"] = true
	if len(keep) > 0 {
		kept := make(bson.A, 0, len(keep))
		for _, k := range keep {
			kept = append(kept, bson.M{"category": k.Category, "fieldCode": k.Code})
		}
		filter["$nor"] = kept
	}

	res, err := r.fieldsCollection.UpdateMany(ctx, filter, bson.M{"$set": bson.M{"active": false}})
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate field definitions: %w", err)
	}
	return int(res.ModifiedCount), nil
}

// MarkValueListsFailed records a sync failure on every value list of the channel
func (r *MongoSchemaRepository) MarkValueListsFailed(ctx context.Context, channel domain.ChannelKey, syncError string) (int, error) {
	update := bson.M{"$set": bson.M{
		"syncStatus": string(domain.SyncStatusFailed),
		"syncError":  syncError,
	}}
	res, err := r.valueListsCollection.UpdateMany(ctx, channelFilter(&channel), update)
	if err != nil {
		return 0, fmt.Errorf("failed to mark value lists failed: %w", err)
	}
	return int(res.ModifiedCount), nil
}

// ListFieldDefinitions retrieves field definitions, optionally restricted to one channel
func (r *MongoSchemaRepository) ListFieldDefinitions(ctx context.Context, channel *domain.ChannelKey) ([]domain.FieldDefinition, error) {
	opts := options.Find().SetSort(bson.D{{Key: "channelType", Value: 1}, {Key: "channelSubtype", Value: 1}, {Key: "fieldCode", Value: 1}})
	cursor, err := r.fieldsCollection.Find(ctx, channelFilter(channel), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list field definitions: %w", err)
	}
	defer cursor.Close(ctx)

	var fields []domain.FieldDefinition
	for cursor.Next(ctx) {
		var doc entity.MongoFieldDefinitionDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode field definition: %w", err)
		}
		fields = append(fields, doc.ToDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return fields, nil
}

// ListValueLists retrieves value lists, optionally restricted to one channel
func (r *MongoSchemaRepository) ListValueLists(ctx context.Context, channel *domain.ChannelKey) ([]domain.ValueList, error) {
	opts := options.Find().SetSort(bson.D{{Key: "channelType", Value: 1}, {Key: "channelSubtype", Value: 1}, {Key: "listCode", Value: 1}})
	cursor, err := r.valueListsCollection.Find(ctx, channelFilter(channel), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list value lists: %w", err)
	}
	defer cursor.Close(ctx)

	var lists []domain.ValueList
	for cursor.Next(ctx) {
		var doc entity.MongoValueListDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode value list: %w", err)
		}
		lists = append(lists, doc.ToDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return lists, nil
}

// LastVerifiedAt returns the latest verification time of an active field in the channel
func (r *MongoSchemaRepository) LastVerifiedAt(ctx context.Context, channel domain.ChannelKey) (*time.Time, error) {
	filter := channelFilter(&channel)
	filter["active"] = true
	opts := options.FindOne().SetSort(bson.D{{Key: "lastVerifiedAt", Value: -1}})

	var doc entity.MongoFieldDefinitionDoc
	err := r.fieldsCollection.FindOne(ctx, filter, opts).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last verification: %w", err)
	}
	t := doc.LastVerifiedAt
	return &t, nil
}

func channelFilter(channel *domain.ChannelKey) bson.M {
	if channel == nil {
		return bson.M{}
	}
	return bson.M{
		"channelType":    string(channel.Type),
		"channelSubtype": channel.Subtype,
	}
}
