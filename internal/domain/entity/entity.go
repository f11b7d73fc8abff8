// Package entity models schema-less Popolo documents (persons, organizations,
// memberships, posts) as open field maps with accessors for the fields the
// transform pipeline understands.
package entity

import (
	"fmt"
	"regexp"
	"strings"
)

// Recognized field names.
const (
	FieldID          = "id"
	FieldMongoID     = "_id"
	FieldImages      = "images"
	FieldImage       = "image"
	FieldOtherNames  = "other_names"
	FieldMemberships = "memberships"
	FieldURL         = "url"
	FieldHTMLURL     = "html_url"
)

var (
	idRegex           = regexp.MustCompile(`^[a-zA-Z0-9_.:-]+$`)
	collectionRegex   = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
	reservedDocuments = map[string]bool{"images": true, "search": true}
)

// MaxIDLength bounds document and image identifiers.
const MaxIDLength = 256

// Document is a stored entity: field name to JSON-compatible value.
// Values are nil, bool, float64/int/int64, string, []any or map[string]any.
type Document map[string]any

// ID returns the identifier, reading id first and _id second.
func (d Document) ID() string {
	return idOf(d)
}

// SetID stores the identifier under id and drops _id.
func (d Document) SetID(id string) {
	d[FieldID] = id
	delete(d, FieldMongoID)
}

// Images returns the image records in sequence order.
func (d Document) Images() []Image {
	raw, ok := d[FieldImages]
	if !ok {
		return nil
	}
	var out []Image
	switch v := raw.(type) {
	case []any:
		out = make([]Image, 0, len(v))
		for _, item := range v {
			if m, ok := asMap(item); ok {
				out = append(out, Image(m))
			}
		}
	case []map[string]any:
		out = make([]Image, 0, len(v))
		for _, m := range v {
			out = append(out, Image(m))
		}
	case []Image:
		out = append(out, v...)
	}
	return out
}

// SetImages replaces the images sequence. An empty slice clears the field.
func (d Document) SetImages(images []Image) {
	if len(images) == 0 {
		delete(d, FieldImages)
		return
	}
	seq := make([]any, len(images))
	for i, img := range images {
		seq[i] = map[string]any(img)
	}
	d[FieldImages] = seq
}

// Clone returns a deep copy.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return Document(CloneMap(d))
}

// Normalize returns a deep copy with _id folded into id, both for the
// document and for every image record. Image placement hints are dropped.
func Normalize(d Document) Document {
	out := d.Clone()
	if out == nil {
		out = Document{}
	}
	if id := out.ID(); id != "" {
		out.SetID(id)
	} else {
		delete(out, FieldMongoID)
	}
	if _, ok := out[FieldImages]; ok {
		images := out.Images()
		for i := range images {
			images[i] = images[i].normalized()
		}
		out.SetImages(images)
	}
	return out
}

// ValidateID checks a document or image identifier.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("id is required")
	}
	if len(id) > MaxIDLength {
		return fmt.Errorf("id too long (max %d)", MaxIDLength)
	}
	if !idRegex.MatchString(id) {
		return fmt.Errorf("id %q must contain only letters, digits, '_', '-', '.', ':'", id)
	}
	if reservedDocuments[id] {
		return fmt.Errorf("id %q is reserved", id)
	}
	return nil
}

// ValidateCollection checks a collection name.
func ValidateCollection(name string) error {
	if !collectionRegex.MatchString(name) {
		return fmt.Errorf("invalid collection name %q", name)
	}
	return nil
}

// CloneMap deep-copies a JSON-compatible map.
func CloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep-copies a JSON-compatible value.
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneMap(t)
	case Document:
		return Document(CloneMap(t))
	case Image:
		return Image(CloneMap(t))
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = CloneValue(item)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = CloneMap(item)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	default:
		return v
	}
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Document:
		return m, true
	case Image:
		return m, true
	default:
		return nil, false
	}
}

func idOf(m map[string]any) string {
	for _, key := range []string{FieldID, FieldMongoID} {
		switch v := m[key].(type) {
		case string:
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		case fmt.Stringer:
			if s := v.String(); s != "" {
				return s
			}
		case nil:
		default:
			return fmt.Sprint(v)
		}
	}
	return ""
}
