package marketplace

import (
	"fmt"

	"archie-core-marketplace-layer/internal/domain"

	"gopkg.in/yaml.v3"
)

// Catalog is the fixed field vocabulary of a marketplace without a discovery endpoint
type Catalog struct {
	Fields     []domain.RawField     `yaml:"fields"`
	ValueLists []domain.RawValueList `yaml:"value_lists"`
}

// LoadCatalog parses an embedded catalog document
func LoadCatalog(data []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("failed to parse catalog: %w", err)
	}
	for i, f := range c.Fields {
		if f.Code == "" {
			return Catalog{}, fmt.Errorf("catalog field %d has no code", i)
		}
	}
	return c, nil
}

// MustLoadCatalog parses an embedded catalog and panics when it is malformed
func MustLoadCatalog(data []byte) Catalog {
	c, err := LoadCatalog(data)
	if err != nil {
		panic(err)
	}
	return c
}

// FieldsCopy returns a copy callers may modify
func (c Catalog) FieldsCopy() []domain.RawField {
	return append([]domain.RawField(nil), c.Fields...)
}

// ValueListsCopy returns a copy callers may modify
func (c Catalog) ValueListsCopy() []domain.RawValueList {
	out := make([]domain.RawValueList, len(c.ValueLists))
	for i, vl := range c.ValueLists {
		vl.Values = append([]string(nil), vl.Values...)
		out[i] = vl
	}
	return out
}
