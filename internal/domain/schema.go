package domain

import (
	"strings"
	"time"
)

// ChannelKey scopes schema records to a marketplace and, for multi-operator marketplaces, an operator
type ChannelKey struct {
	Type    Marketplace `json:"channel_type" bson:"channel_type"`
	Subtype string      `json:"channel_subtype" bson:"channel_subtype"`
}

func (k ChannelKey) String() string {
	if k.Subtype == "" {
		return string(k.Type)
	}
	return string(k.Type) + "/" + k.Subtype
}

// ValueType is the canonical value-type tag of a field definition
type ValueType string

const (
	ValueTypeText     ValueType = "text"
	ValueTypeLongText ValueType = "long_text"
	ValueTypeBoolean  ValueType = "boolean"
	ValueTypeInteger  ValueType = "integer"
	ValueTypeDecimal  ValueType = "decimal"
	ValueTypeList     ValueType = "list"
)

// NormalizeValueType maps a marketplace-native type name to a canonical tag. Unknown names map to text.
func NormalizeValueType(native string) ValueType {
	switch strings.ToLower(strings.TrimSpace(native)) {
	case "text", "string", "str", "varchar", "short_text", "single_line_text_field", "url", "email", "date", "datetime", "media":
		return ValueTypeText
	case "long_text", "longtext", "textarea", "html", "multi_line_text_field", "rich_text", "description":
		return ValueTypeLongText
	case "boolean", "bool", "checkbox", "yes_no":
		return ValueTypeBoolean
	case "integer", "int", "int32", "int64", "number_integer", "whole_number":
		return ValueTypeInteger
	case "decimal", "number", "float", "double", "number_decimal", "money", "price":
		return ValueTypeDecimal
	case "list", "enum", "select", "multi_select", "list_multiple_values", "value_list", "array":
		return ValueTypeList
	default:
		return ValueTypeText
	}
}

// SyncStatus is the synchronization state of a value list
type SyncStatus string

const (
	SyncStatusSynced  SyncStatus = "synced"
	SyncStatusFailed  SyncStatus = "failed"
	SyncStatusPending SyncStatus = "pending"
)

// FieldDefinition is the canonical record of one attribute a marketplace expects on a product.
// Its natural key is (channel type, channel subtype, category, code).
type FieldDefinition struct {
	Channel         ChannelKey        `json:"channel"`
	Category        string            `json:"category,omitempty"`
	Code            string            `json:"field_code"`
	Label           string            `json:"label"`
	Description     string            `json:"description,omitempty"`
	ValueType       ValueType         `json:"value_type"`
	Required        bool              `json:"required"`
	ValidationRules map[string]string `json:"validation_rules,omitempty"`
	ValueListCode   string            `json:"value_list_code,omitempty"`
	DiscoveredAt    time.Time         `json:"discovered_at"`
	LastVerifiedAt  time.Time         `json:"last_verified_at"`
	Active          bool              `json:"active"`
}

// FieldKey identifies a field definition inside one channel
type FieldKey struct {
	Category string
	Code     string
}

// Key returns the field's key inside its channel
func (f FieldDefinition) Key() FieldKey {
	return FieldKey{Category: f.Category, Code: f.Code}
}

// ValueList is the canonical record of allowed values for a constrained field.
// Its natural key is (channel type, channel subtype, code).
type ValueList struct {
	Channel      ChannelKey `json:"channel"`
	Code         string     `json:"list_code"`
	Name         string     `json:"name"`
	Description  string     `json:"description,omitempty"`
	Values       []string   `json:"values"`
	ValueCount   int        `json:"value_count"`
	DiscoveredAt time.Time  `json:"discovered_at"`
	LastSyncedAt time.Time  `json:"last_synced_at"`
	SyncStatus   SyncStatus `json:"sync_status"`
	SyncError    string     `json:"sync_error,omitempty"`
}

// RawField is a field entry as an adapter returns it, before normalization
type RawField struct {
	Code          string            `json:"code" yaml:"code"`
	Label         string            `json:"label" yaml:"label"`
	Description   string            `json:"description,omitempty" yaml:"description"`
	Type          string            `json:"type" yaml:"type"`
	Required      bool              `json:"required" yaml:"required"`
	Category      string            `json:"category,omitempty" yaml:"category"`
	ValueListCode string            `json:"value_list_code,omitempty" yaml:"value_list"`
	Validation    map[string]string `json:"validation,omitempty" yaml:"validation"`
}

// RawValueList is a value list as an adapter returns it, before normalization
type RawValueList struct {
	Code        string   `json:"code" yaml:"code"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description"`
	Values      []string `json:"values" yaml:"values"`
}

// FieldStats summarizes the stored field definitions
type FieldStats struct {
	Total     int            `json:"total"`
	Active    int            `json:"active"`
	Required  int            `json:"required"`
	Optional  int            `json:"optional"`
	ByChannel map[string]int `json:"by_channel"`
	// RecentlyVerified counts active fields verified inside the recency window the stats were computed with
	RecentlyVerified int        `json:"recently_verified"`
	LastVerifiedAt   *time.Time `json:"last_verified_at,omitempty"`
}

// ValueListStats summarizes the stored value lists
type ValueListStats struct {
	Total        int        `json:"total"`
	Synced       int        `json:"synced"`
	Failed       int        `json:"failed"`
	Pending      int        `json:"pending"`
	TotalValues  int        `json:"total_values"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
}
