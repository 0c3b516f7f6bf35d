package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

type OverrideRule struct {
	Field EpisodeField
	Path  string
}

// OverrideRules remap episode fields to other paths of the raw item, for
// feeds that publish the useful value somewhere non-standard.
type OverrideRules []OverrideRule

// ParseOverrideRules decodes a JSON object of {"<field>": "<dotted path>"}.
// A blank or null document yields no rules. Unknown keys and non-string
// paths are skipped and reported as ErrInvalidOverrideKey alongside the
// usable rules; a document that is not a JSON object is ErrMalformedOverride
// and yields nothing.
func ParseOverrideRules(data string) (OverrideRules, error) {
	if strings.TrimSpace(data) == "" {
		return nil, nil
	}

	var document map[string]any
	if err := json.Unmarshal([]byte(data), &document); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOverride, err)
	}

	keys := make([]string, 0, len(document))
	for key := range document {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	var rules OverrideRules
	var problems []error
	for _, key := range keys {
		field, ok := ParseEpisodeField(key)
		if !ok {
			problems = append(problems, fmt.Errorf("%w: %q", ErrInvalidOverrideKey, key))
			continue
		}

		path, ok := document[key].(string)
		if !ok || strings.TrimSpace(path) == "" {
			problems = append(problems, fmt.Errorf("%w: path for %q must be a non-empty string", ErrInvalidOverrideKey, key))
			continue
		}

		rules = append(rules, OverrideRule{Field: field, Path: strings.TrimSpace(path)})
	}

	return rules, errors.Join(problems...)
}

// Apply replaces each ruled field with the value found at its path. A
// missing path leaves the field absent (its zero value), so a required field
// redirected to nothing fails episode validation. A value that cannot be
// coerced leaves the field as it was. Both are reported as ErrOverrideValue.
func (rules OverrideRules) Apply(item RawItem, fields EpisodeFields) (EpisodeFields, error) {
	var problems []error
	for _, rule := range rules {
		value, ok := item.Lookup(rule.Path)
		if !ok {
			fields.clear(rule.Field)
			problems = append(problems, fmt.Errorf("%w: %s path %q not found", ErrOverrideValue, rule.Field, rule.Path))
			continue
		}

		if err := fields.set(rule.Field, value); err != nil {
			problems = append(problems, fmt.Errorf("%w: %s from %q: %v", ErrOverrideValue, rule.Field, rule.Path, err))
		}
	}

	return fields, errors.Join(problems...)
}

// ResolveOverrides parses rulesJSON and applies it to base. The returned
// fields are always usable; the error collects everything that was skipped.
func ResolveOverrides(rulesJSON string, item RawItem, base EpisodeFields) (EpisodeFields, error) {
	rules, err := ParseOverrideRules(rulesJSON)
	if errors.Is(err, ErrMalformedOverride) {
		return base, err
	}

	resolved, applyErr := rules.Apply(item, base)
	return resolved, errors.Join(err, applyErr)
}

func (f *EpisodeFields) set(field EpisodeField, value any) error {
	text, ok := scalarText(value)
	if !ok {
		return fmt.Errorf("value of type %T is not text", value)
	}
	text = strings.TrimSpace(text)

	switch field {
	case FieldTitle:
		f.Title = text
	case FieldLink:
		if text == "" {
			return errors.New("empty link")
		}
		f.Link = text
	case FieldGUID:
		if text == "" {
			return errors.New("empty guid")
		}
		f.GUID = text
	case FieldPubDate:
		published, err := dateparse.ParseIn(text, time.UTC)
		if err != nil {
			return err
		}
		f.PubDate = published.UTC()
	case FieldDuration:
		seconds, err := ParseDuration(text)
		if err != nil {
			return err
		}
		f.Duration = seconds
	default:
		return fmt.Errorf("unsupported field %s", field)
	}

	return nil
}

func (f *EpisodeFields) clear(field EpisodeField) {
	switch field {
	case FieldTitle:
		f.Title = ""
	case FieldLink:
		f.Link = ""
	case FieldGUID:
		f.GUID = ""
	case FieldPubDate:
		f.PubDate = time.Time{}
	case FieldDuration:
		f.Duration = 0
	}
}
