package entity

import (
	"time"

	"archie-core-marketplace-layer/internal/domain"
)

// MongoFieldDefinitionDoc represents a discovered field definition in MongoDB.
// (channelType, channelSubtype, category, fieldCode) is unique.
type MongoFieldDefinitionDoc struct {
	ChannelType     string            `bson:"channelType"`
	ChannelSubtype  string            `bson:"channelSubtype"`
	Category        string            `bson:"category"`
	FieldCode       string            `bson:"fieldCode"`
	Label           string            `bson:"label"`
	Description     string            `bson:"description,omitempty"`
	ValueType       string            `bson:"valueType"`
	Required        bool              `bson:"required"`
	ValidationRules map[string]string `bson:"validationRules,omitempty"`
	ValueListCode   string            `bson:"valueListCode,omitempty"`
	DiscoveredAt    time.Time         `bson:"discoveredAt"`
	LastVerifiedAt  time.Time         `bson:"lastVerifiedAt"`
	Active          bool              `bson:"active"`
}

// ToDomain converts the MongoDB document to a domain entity
func (d *MongoFieldDefinitionDoc) ToDomain() domain.FieldDefinition {
	return domain.FieldDefinition{
		Channel:         domain.ChannelKey{Type: domain.Marketplace(d.ChannelType), Subtype: d.ChannelSubtype},
		Category:        d.Category,
		Code:            d.FieldCode,
		Label:           d.Label,
		Description:     d.Description,
		ValueType:       domain.ValueType(d.ValueType),
		Required:        d.Required,
		ValidationRules: d.ValidationRules,
		ValueListCode:   d.ValueListCode,
		DiscoveredAt:    d.DiscoveredAt,
		LastVerifiedAt:  d.LastVerifiedAt,
		Active:          d.Active,
	}
}

// MongoFieldDefinitionDocFromDomain converts a domain entity to a MongoDB document
func MongoFieldDefinitionDocFromDomain(f domain.FieldDefinition) *MongoFieldDefinitionDoc {
	return &MongoFieldDefinitionDoc{
		ChannelType:     string(f.Channel.Type),
		ChannelSubtype:  f.Channel.Subtype,
		Category:        f.Category,
		FieldCode:       f.Code,
		Label:           f.Label,
		Description:     f.Description,
		ValueType:       string(f.ValueType),
		Required:        f.Required,
		ValidationRules: f.ValidationRules,
		ValueListCode:   f.ValueListCode,
		DiscoveredAt:    f.DiscoveredAt,
		LastVerifiedAt:  f.LastVerifiedAt,
		Active:          f.Active,
	}
}

// MongoValueListDoc represents a discovered value list in MongoDB.
// (channelType, channelSubtype, listCode) is unique.
type MongoValueListDoc struct {
	ChannelType    string    `bson:"channelType"`
	ChannelSubtype string    `bson:"channelSubtype"`
	ListCode       string    `bson:"listCode"`
	Name           string    `bson:"name"`
	Description    string    `bson:"description,omitempty"`
	Values         []string  `bson:"values"`
	ValueCount     int       `bson:"valueCount"`
	DiscoveredAt   time.Time `bson:"discoveredAt"`
	LastSyncedAt   time.Time `bson:"lastSyncedAt"`
	SyncStatus     string    `bson:"syncStatus"`
	SyncError      string    `bson:"syncError,omitempty"`
}

// ToDomain converts the MongoDB document to a domain entity
func (d *MongoValueListDoc) ToDomain() domain.ValueList {
	return domain.ValueList{
		Channel:      domain.ChannelKey{Type: domain.Marketplace(d.ChannelType), Subtype: d.ChannelSubtype},
		Code:         d.ListCode,
		Name:         d.Name,
		Description:  d.Description,
		Values:       d.Values,
		ValueCount:   d.ValueCount,
		DiscoveredAt: d.DiscoveredAt,
		LastSyncedAt: d.LastSyncedAt,
		SyncStatus:   domain.SyncStatus(d.SyncStatus),
		SyncError:    d.SyncError,
	}
}

// MongoValueListDocFromDomain converts a domain entity to a MongoDB document
func MongoValueListDocFromDomain(vl domain.ValueList) *MongoValueListDoc {
	return &MongoValueListDoc{
		ChannelType:    string(vl.Channel.Type),
		ChannelSubtype: vl.Channel.Subtype,
		ListCode:       vl.Code,
		Name:           vl.Name,
		Description:    vl.Description,
		Values:         vl.Values,
		ValueCount:     vl.ValueCount,
		DiscoveredAt:   vl.DiscoveredAt,
		LastSyncedAt:   vl.LastSyncedAt,
		SyncStatus:     string(vl.SyncStatus),
		SyncError:      vl.SyncError,
	}
}
