// Package fields implements per-request field visibility.
package fields

import (
	"strings"

	"github.com/kailas-cloud/popolodex/internal/domain/entity"
)

// All is the wildcard key of a Spec.
const All = "all"

// Spec maps a field name (or "all") to a bool, or to a nested Spec applied
// to the field's object value. A specific key always wins over "all".
type Spec map[string]any

// Visible resolves a key: specific entry, then "all", then visible.
// A nested spec counts as visible.
func (s Spec) Visible(key string) bool {
	if v, ok := s[key]; ok {
		return truthy(v)
	}
	if v, ok := s[All]; ok {
		return truthy(v)
	}
	return true
}

// Nested returns the sub-spec for key, if one is set.
func (s Spec) Nested(key string) (Spec, bool) {
	switch v := s[key].(type) {
	case Spec:
		return v, true
	case map[string]any:
		return Spec(v), true
	default:
		return nil, false
	}
}

// Merge overlays other on top of s. Nested specs are merged key by key.
func (s Spec) Merge(other Spec) Spec {
	if s == nil && other == nil {
		return nil
	}
	out := make(Spec, len(s)+len(other))
	for k, v := range s {
		out[k] = v
	}
	for k, v := range other {
		if sub, ok := other.Nested(k); ok {
			if base, ok := s.Nested(k); ok {
				out[k] = base.Merge(sub)
				continue
			}
		}
		out[k] = v
	}
	return out
}

// Filter copies the visible fields of src into dst and returns dst.
// A nil spec copies everything. src is never modified; copied values are
// deep copies.
func Filter(src, dst map[string]any, spec Spec) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for key, val := range src {
		if spec == nil {
			dst[key] = entity.CloneValue(val)
			continue
		}
		if !spec.Visible(key) {
			continue
		}
		if sub, ok := spec.Nested(key); ok {
			dst[key] = filterValue(val, sub)
			continue
		}
		dst[key] = entity.CloneValue(val)
	}
	return dst
}

func filterValue(val any, spec Spec) any {
	switch v := val.(type) {
	case map[string]any:
		return Filter(v, nil, spec)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = filterValue(item, spec)
		}
		return out
	default:
		return entity.CloneValue(val)
	}
}

// Parse reads a comma-separated query value into a Spec.
//
//	name,email        only name and email
//	-email            everything except email
//	all:false,name    only name
func Parse(raw string) Spec {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	spec := Spec{}
	hasPositive := false
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if name, val, ok := strings.Cut(part, ":"); ok {
			spec[strings.TrimSpace(name)] = parseBool(val)
			continue
		}
		if strings.HasPrefix(part, "-") {
			spec[strings.TrimPrefix(part, "-")] = false
			continue
		}
		spec[part] = true
		hasPositive = true
	}
	if _, ok := spec[All]; !ok && hasPositive {
		spec[All] = false
	}
	return spec
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "false", "0", "no", "off":
		return false
	default:
		return true
	}
}

// truthy treats a nested spec and anything but an explicit false as visible.
func truthy(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return parseBool(b)
	default:
		return true
	}
}
