// Package transform turns a stored entity document into the plain object
// served to API clients or submitted to the search engine.
package transform

import (
	"strings"
	"time"

	"github.com/kailas-cloud/popolodex/internal/domain/entity"
	"github.com/kailas-cloud/popolodex/internal/domain/entity/datewindow"
	"github.com/kailas-cloud/popolodex/internal/domain/entity/fields"
	"github.com/kailas-cloud/popolodex/internal/domain/entity/i18n"
)

// Options are the request-scoped transform settings.
type Options struct {
	Collection            string
	Fields                fields.Spec
	APIBaseURL            string
	BaseURL               string
	Langs                 []string
	DefaultLanguage       string
	ReturnAllTranslations bool
	At                    *time.Time
}

// Windowed sequences filtered when Options.At is set.
var windowed = []string{entity.FieldOtherNames, entity.FieldMemberships}

// Apply runs filter, links, i18n, date windows and images, in that order.
// doc is not modified.
func Apply(doc entity.Document, opts Options) map[string]any {
	id := doc.ID()

	out := fields.Filter(doc, nil, opts.Fields)
	if id != "" {
		if _, ok := out[entity.FieldMongoID]; ok {
			delete(out, entity.FieldMongoID)
			if opts.Fields.Visible(entity.FieldID) {
				out[entity.FieldID] = id
			}
		}
	}

	addLinks(out, id, opts)

	if projected, ok := i18n.Project(out, i18n.Options{
		Langs:   opts.Langs,
		Default: opts.DefaultLanguage,
		All:     opts.ReturnAllTranslations,
	}).(map[string]any); ok {
		out = projected
	}

	if opts.At != nil {
		filterWindows(out, *opts.At)
	}

	normalizeImages(out, id, opts)
	return out
}

func addLinks(out map[string]any, id string, opts Options) {
	if id == "" {
		return
	}
	if opts.APIBaseURL != "" && opts.Fields.Visible(entity.FieldURL) {
		out[entity.FieldURL] = joinURL(opts.APIBaseURL, opts.Collection, id)
	}
	if opts.BaseURL != "" && opts.Fields.Visible(entity.FieldHTMLURL) {
		out[entity.FieldHTMLURL] = joinURL(opts.BaseURL, opts.Collection, id)
	}
}

func filterWindows(out map[string]any, at time.Time) {
	for _, key := range windowed {
		if seq, ok := out[key].([]any); ok {
			out[key] = datewindow.Filter(seq, at)
		}
	}
}

// normalizeImages synthesizes missing image urls, strips storage-only keys
// and exposes the first image's url as "image".
func normalizeImages(out map[string]any, id string, opts Options) {
	seq, ok := out[entity.FieldImages].([]any)
	if !ok {
		delete(out, entity.FieldImage)
		return
	}

	base := opts.BaseURL
	if base == "" {
		base = opts.APIBaseURL
	}

	images := make([]any, 0, len(seq))
	for _, item := range seq {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		img := entity.Image(m)
		imageID := img.ID()
		if img.URL() == "" && imageID != "" {
			m[entity.FieldURL] = ImageURL(base, opts.Collection, imageID, id)
		}
		if imageID != "" {
			m[entity.FieldID] = imageID
		}
		delete(m, entity.FieldMongoID)
		delete(m, entity.ImageFieldIndex)
		images = append(images, m)
	}
	out[entity.FieldImages] = images

	if len(images) == 0 || !opts.Fields.Visible(entity.FieldImage) {
		delete(out, entity.FieldImage)
		return
	}
	if first, _ := images[0].(map[string]any)[entity.FieldURL].(string); first != "" {
		out[entity.FieldImage] = first
	} else {
		delete(out, entity.FieldImage)
	}
}

// ImageURL builds {base}/{collection}/images/{imageID}/{docID}. The
// collection segment is lowercased.
func ImageURL(base, collection, imageID, docID string) string {
	return joinURL(base, strings.ToLower(collection), "images", imageID, docID)
}

func joinURL(base string, parts ...string) string {
	return strings.TrimRight(base, "/") + "/" + strings.Join(parts, "/")
}
