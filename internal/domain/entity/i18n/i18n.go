// Package i18n resolves localized fields (locale code -> string) to a single
// string using a language preference list.
package i18n

import (
	"regexp"
	"strings"

	"golang.org/x/text/language"
)

// Options controls projection.
type Options struct {
	Langs   []string // requested languages, most preferred first
	Default string   // fallback when none of Langs is present
	All     bool     // keep every translation
}

// Locale keys are a two-letter language with an optional region or script.
var localeKey = regexp.MustCompile(`^[a-z]{2}([-_][A-Za-z]{2,4})?$`)

// Project walks value and replaces every localized field with the best
// translation. Non-map scalars are returned unchanged.
func Project(value any, opts Options) any {
	if opts.All {
		return value
	}
	return project(value, opts)
}

func project(value any, opts Options) any {
	switch v := value.(type) {
	case map[string]any:
		if IsLocalized(v) {
			return Resolve(v, opts.Langs, opts.Default)
		}
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = project(item, opts)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = project(item, opts)
		}
		return out
	default:
		return value
	}
}

// Resolve picks the first requested language present, then the default,
// then "".
func Resolve(m map[string]any, langs []string, def string) string {
	for _, l := range langs {
		if s, ok := lookup(m, l); ok {
			return s
		}
	}
	if def != "" {
		if s, ok := lookup(m, def); ok {
			return s
		}
	}
	return ""
}

func lookup(m map[string]any, lang string) (string, bool) {
	if lang == "" {
		return "", false
	}
	if v, ok := m[lang]; ok {
		s, isStr := v.(string)
		return s, isStr
	}
	return "", false
}

// IsLocalized reports whether m looks like a locale -> string mapping.
// Every key must be a valid locale code and every value a string.
func IsLocalized(m map[string]any) bool {
	if len(m) == 0 {
		return false
	}
	for k, v := range m {
		if _, ok := v.(string); !ok {
			return false
		}
		// "id" parses as Indonesian but marks a record.
		if k == "id" || !IsLocale(k) {
			return false
		}
	}
	return true
}

// IsLocale reports whether s is a locale code such as "en", "ru" or "pt-BR".
func IsLocale(s string) bool {
	if !localeKey.MatchString(s) {
		return false
	}
	_, err := language.Parse(strings.ReplaceAll(s, "_", "-"))
	return err == nil
}

// ParseLangs builds the preference list from an explicit comma-separated
// lang parameter, falling back to an Accept-Language header. A regional tag
// is followed by its base language ("pt-BR", "pt"); duplicates are dropped.
func ParseLangs(param, acceptLanguage string) []string {
	var tags []language.Tag
	if param = strings.TrimSpace(param); param != "" {
		for _, part := range strings.Split(param, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			tag, err := language.Parse(part)
			if err != nil {
				continue
			}
			tags = append(tags, tag)
		}
	} else if acceptLanguage != "" {
		parsed, _, err := language.ParseAcceptLanguage(acceptLanguage)
		if err == nil {
			tags = parsed
		}
	}

	seen := make(map[string]bool, len(tags))
	langs := make([]string, 0, len(tags))
	add := func(code string) {
		if code == "" || code == "und" || seen[code] {
			return
		}
		seen[code] = true
		langs = append(langs, code)
	}
	for _, tag := range tags {
		base, conf := tag.Base()
		if conf == language.No {
			continue
		}
		if full := tag.String(); full != base.String() {
			add(full)
		}
		add(base.String())
	}
	return langs
}
