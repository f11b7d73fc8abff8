package entity

import (
	"fmt"
	"strconv"
	"strings"
)

// Image record fields.
const (
	ImageFieldMIMEType = "mime_type"
	ImageFieldIndex    = "index"
)

// Placement hints for new images.
const (
	PlaceFirst = "first"
	PlaceLast  = "last"
)

// Image is one record of a document's images sequence. Arbitrary metadata
// keys are kept as-is.
type Image map[string]any

// ID returns the image identifier (id, then _id).
func (i Image) ID() string { return idOf(i) }

// URL returns the stored url, if any.
func (i Image) URL() string {
	s, _ := i[FieldURL].(string)
	return s
}

// MIMEType returns the stored mime type, if any.
func (i Image) MIMEType() string {
	s, _ := i[ImageFieldMIMEType].(string)
	return s
}

// normalized folds _id into id and drops the placement hint.
func (i Image) normalized() Image {
	out := Image(CloneMap(i))
	if id := out.ID(); id != "" {
		out[FieldID] = id
	}
	delete(out, FieldMongoID)
	delete(out, ImageFieldIndex)
	return out
}

// ParsePlacement validates an index hint: "first", "last", or a non-negative
// integer. Empty means "last".
func ParsePlacement(hint string) (string, error) {
	hint = strings.TrimSpace(hint)
	switch hint {
	case "", PlaceLast:
		return PlaceLast, nil
	case PlaceFirst:
		return PlaceFirst, nil
	}
	n, err := strconv.Atoi(hint)
	if err != nil || n < 0 {
		return "", fmt.Errorf("image index must be %q, %q or a non-negative integer, got %q", PlaceFirst, PlaceLast, hint)
	}
	return strconv.Itoa(n), nil
}

// PlacementOf reads the hint carried on an image record.
func PlacementOf(img Image) string {
	switch v := img[ImageFieldIndex].(type) {
	case string:
		return v
	case float64:
		return strconv.Itoa(int(v))
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return ""
	}
}

// InsertImage places img into images according to hint. Integer positions
// past the end append. The hint is never stored on the record.
func InsertImage(images []Image, img Image, hint string) ([]Image, error) {
	place, err := ParsePlacement(hint)
	if err != nil {
		return images, err
	}
	img = img.normalized()

	pos := len(images)
	switch place {
	case PlaceFirst:
		pos = 0
	case PlaceLast:
	default:
		n, _ := strconv.Atoi(place)
		if n < pos {
			pos = n
		}
	}

	out := make([]Image, 0, len(images)+1)
	out = append(out, images[:pos]...)
	out = append(out, img)
	out = append(out, images[pos:]...)
	return out, nil
}

// ReplaceImage swaps the record with the same id in place. The replacement
// keeps the original id.
func ReplaceImage(images []Image, id string, img Image) ([]Image, bool) {
	for i := range images {
		if images[i].ID() == id {
			repl := img.normalized()
			repl[FieldID] = id
			out := make([]Image, len(images))
			copy(out, images)
			out[i] = repl
			return out, true
		}
	}
	return images, false
}

// RemoveImage drops the record with the given id.
func RemoveImage(images []Image, id string) ([]Image, Image, bool) {
	for i := range images {
		if images[i].ID() == id {
			removed := images[i]
			out := make([]Image, 0, len(images)-1)
			out = append(out, images[:i]...)
			out = append(out, images[i+1:]...)
			return out, removed, true
		}
	}
	return images, nil, false
}

// FindImage returns the record with the given id.
func FindImage(images []Image, id string) (Image, bool) {
	for _, img := range images {
		if img.ID() == id {
			return img, true
		}
	}
	return nil, false
}
