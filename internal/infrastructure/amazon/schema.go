package amazon

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"archie-core-marketplace-layer/internal/domain"
)

// definitionResponse is the product type definition envelope.
// The JSON schema is either inline or behind a pre-signed link.
type definitionResponse struct {
	ProductType string `json:"productType"`
	Schema      struct {
		Link struct {
			Resource string `json:"resource"`
			Verb     string `json:"verb"`
		} `json:"link"`
		Checksum string `json:"checksum"`
	} `json:"schema"`
	InlineSchema json.RawMessage `json:"-"`
}

func (d *definitionResponse) UnmarshalJSON(data []byte) error {
	type plain definitionResponse
	var out plain
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	var inline struct {
		Schema json.RawMessage `json:"schema"`
	}
	if err := json.Unmarshal(data, &inline); err != nil {
		return err
	}
	if hasProperties(inline.Schema) {
		out.InlineSchema = inline.Schema
	}
	*d = definitionResponse(out)
	return nil
}

func hasProperties(raw json.RawMessage) bool {
	var s struct {
		Properties map[string]json.RawMessage `json:"properties"`
	}
	return json.Unmarshal(raw, &s) == nil && len(s.Properties) > 0
}

// jsonSchema is the subset of the product type JSON schema the discovery needs
type jsonSchema struct {
	Properties map[string]schemaProperty `json:"properties"`
	Required   []string                  `json:"required"`
}

type schemaProperty struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Type        json.RawMessage `json:"type"`
	Enum        []any           `json:"enum"`
	EnumNames   []string        `json:"enumNames"`
	MaxLength   *int            `json:"maxLength"`
	MinItems    *int            `json:"minItems"`
	Items       *struct {
		Properties map[string]schemaProperty `json:"properties"`
		Required   []string                  `json:"required"`
	} `json:"items"`
}

// typeName returns the first declared JSON schema type
func (p schemaProperty) typeName() string {
	var single string
	if err := json.Unmarshal(p.Type, &single); err == nil {
		return single
	}
	var many []string
	if err := json.Unmarshal(p.Type, &many); err == nil && len(many) > 0 {
		return many[0]
	}
	return ""
}

// leaf unwraps the Amazon attribute pattern array -> items -> properties.value
func (p schemaProperty) leaf() schemaProperty {
	if p.typeName() == "array" && p.Items != nil {
		if v, ok := p.Items.Properties["value"]; ok {
			if v.Title == "" {
				v.Title = p.Title
			}
			if v.Description == "" {
				v.Description = p.Description
			}
			return v
		}
	}
	return p
}

func parseSchema(raw []byte) (jsonSchema, error) {
	var s jsonSchema
	if err := json.Unmarshal(raw, &s); err != nil {
		return jsonSchema{}, fmt.Errorf("failed to parse product type schema: %w", err)
	}
	if len(s.Properties) == 0 {
		return jsonSchema{}, fmt.Errorf("product type schema has no properties")
	}
	return s, nil
}

// fields converts schema properties to raw fields, sorted by code
func (s jsonSchema) fields(productType string) []domain.RawField {
	required := make(map[string]bool, len(s.Required))
	for _, r := range s.Required {
		required[r] = true
	}

	codes := make([]string, 0, len(s.Properties))
	for code := range s.Properties {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	out := make([]domain.RawField, 0, len(codes))
	for _, code := range codes {
		prop := s.Properties[code]
		leaf := prop.leaf()

		f := domain.RawField{
			Code:        code,
			Label:       firstNonEmpty(prop.Title, leaf.Title, code),
			Description: firstNonEmpty(prop.Description, leaf.Description),
			Type:        leaf.typeName(),
			Required:    required[code],
			Category:    productType,
		}
		if len(leaf.Enum) > 0 {
			f.Type = "enum"
			f.ValueListCode = code
		}
		if leaf.MaxLength != nil {
			f.Validation = map[string]string{"max_length": fmt.Sprint(*leaf.MaxLength)}
		}
		out = append(out, f)
	}
	return out
}

// valueLists returns one list per enum-bearing property, sorted by code
func (s jsonSchema) valueLists() []domain.RawValueList {
	codes := make([]string, 0, len(s.Properties))
	for code := range s.Properties {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	var out []domain.RawValueList
	for _, code := range codes {
		prop := s.Properties[code]
		leaf := prop.leaf()
		if len(leaf.Enum) == 0 {
			continue
		}
		values := make([]string, 0, len(leaf.Enum))
		for _, v := range leaf.Enum {
			values = append(values, strings.TrimSpace(fmt.Sprint(v)))
		}
		out = append(out, domain.RawValueList{
			Code:        code,
			Name:        firstNonEmpty(prop.Title, leaf.Title, code),
			Description: firstNonEmpty(prop.Description, leaf.Description),
			Values:      values,
		})
	}
	return out
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}
