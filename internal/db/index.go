package db

import (
	"errors"
	"fmt"
	"regexp"
)

// Content is the synthesized full-text field every indexed document carries.
const Content = "__content"

// StorageType is the FT index source type.
type StorageType string

// StorageJSON indexes RedisJSON documents. It is the only source the
// entity index uses.
const StorageJSON StorageType = "JSON"

// IndexFieldType enumerates the schema field kinds the entity index needs.
type IndexFieldType int

const (
	// IndexFieldText is a full-text field.
	IndexFieldText IndexFieldType = iota + 1
	// IndexFieldTag is an exact-match field.
	IndexFieldTag
)

// IndexField is one SCHEMA entry: a JSON path, its alias and kind.
type IndexField struct {
	Name   string
	Alias  string
	Type   IndexFieldType
	Weight float64 // TEXT only
}

// IndexDefinition is the input of FT.CREATE.
type IndexDefinition struct {
	Name        string
	StorageType StorageType
	Prefixes    []string
	Fields      []IndexField
}

var identRegex = regexp.MustCompile(`^[a-zA-Z0-9_:.-]+$`)

// KeyPrefix returns the key prefix of documents indexed under (index, type).
func KeyPrefix(index, typ string) string {
	return index + ":" + typ + ":"
}

// DocKey returns the key of one indexed document.
func DocKey(ref DocRef) string {
	return KeyPrefix(ref.Index, ref.Type) + ref.ID
}

// IndexName returns the FT index name for (index, type).
func IndexName(index, typ string) string {
	return index + ":" + typ + ":idx"
}

// EntityIndex is the JSON index over documents stored under (index, type):
// full text over the synthesized content plus an exact tag on the id.
func EntityIndex(index, typ string) *IndexDefinition {
	return &IndexDefinition{
		Name:        IndexName(index, typ),
		StorageType: StorageJSON,
		Prefixes:    []string{KeyPrefix(index, typ)},
		Fields: []IndexField{
			{Name: "$." + Content, Alias: Content, Type: IndexFieldText},
			{Name: "$.id", Alias: "id", Type: IndexFieldTag},
		},
	}
}

// Validate checks names, aliases and weights.
func (idx *IndexDefinition) Validate() error {
	if !identRegex.MatchString(idx.Name) {
		return fmt.Errorf("invalid index name %q", idx.Name)
	}
	if len(idx.Fields) == 0 {
		return errors.New("at least one field is required")
	}
	seen := make(map[string]bool, len(idx.Fields))
	for i, f := range idx.Fields {
		if f.Name == "" {
			return fmt.Errorf("field %d: name is required", i)
		}
		key := f.Name
		if f.Alias != "" {
			key = f.Alias
		}
		if seen[key] {
			return fmt.Errorf("duplicate field %q", key)
		}
		seen[key] = true
		if f.Weight < 0 {
			return fmt.Errorf("field %q: negative weight", key)
		}
	}
	return nil
}
