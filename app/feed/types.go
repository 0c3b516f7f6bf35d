package feed

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Metadata struct {
	Title       string
	Link        string
	Description string
	ImageURL    string
	Language    string
}

// RawItem is a feed entry as the parser saw it. Nested values are
// map[string]any so override rules can address them with dotted paths such
// as "enclosure.url" or "itunes.duration".
type RawItem map[string]any

// Lookup walks a dotted path through nested maps.
func (r RawItem) Lookup(path string) (any, bool) {
	if strings.TrimSpace(path) == "" {
		return nil, false
	}

	var current any = map[string]any(r)
	for _, segment := range strings.Split(path, ".") {
		m, ok := asMap(current)
		if !ok || segment == "" {
			return nil, false
		}
		current, ok = m[segment]
		if !ok || current == nil {
			return nil, false
		}
	}

	return current, true
}

// String returns the value at path when it is scalar text with something
// other than whitespace in it.
func (r RawItem) String(path string) (string, bool) {
	value, ok := r.Lookup(path)
	if !ok {
		return "", false
	}
	text, ok := scalarText(value)
	if !ok || strings.TrimSpace(text) == "" {
		return "", false
	}
	return text, true
}

func asMap(value any) (map[string]any, bool) {
	switch m := value.(type) {
	case map[string]any:
		return m, true
	case RawItem:
		return map[string]any(m), true
	default:
		return nil, false
	}
}

func scalarText(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	case fmt.Stringer:
		return v.String(), true
	default:
		return "", false
	}
}

// PublishedAt returns the normalized publication instant of a raw item.
func PublishedAt(item RawItem) (time.Time, error) {
	iso, ok := item.String("isoDate")
	if !ok {
		return time.Time{}, ErrMissingPublishedDate
	}

	published, err := time.Parse(time.RFC3339, strings.TrimSpace(iso))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrMissingPublishedDate, err)
	}

	return published.UTC(), nil
}

// EpisodeField names a per-episode attribute that an override rule may
// replace.
type EpisodeField int

const (
	FieldTitle EpisodeField = iota + 1
	FieldLink
	FieldGUID
	FieldPubDate
	FieldDuration
)

var episodeFieldNames = map[string]EpisodeField{
	"title":           FieldTitle,
	"link":            FieldLink,
	"guid":            FieldGUID,
	"pubDate":         FieldPubDate,
	"publishedAt":     FieldPubDate,
	"duration":        FieldDuration,
	"durationSeconds": FieldDuration,
}

func ParseEpisodeField(name string) (EpisodeField, bool) {
	field, ok := episodeFieldNames[strings.TrimSpace(name)]
	return field, ok
}

func (f EpisodeField) String() string {
	switch f {
	case FieldTitle:
		return "title"
	case FieldLink:
		return "link"
	case FieldGUID:
		return "guid"
	case FieldPubDate:
		return "pubDate"
	case FieldDuration:
		return "duration"
	default:
		return fmt.Sprintf("EpisodeField(%d)", int(f))
	}
}

// EpisodeFields holds the overridable attributes of an episode under
// construction.
type EpisodeFields struct {
	Title    string
	Link     string
	GUID     string
	PubDate  time.Time
	Duration int
}
