package feed

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
)

type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

func (p *Parser) Run(data []byte) (*Metadata, []RawItem, error) {
	feed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	metadata := &Metadata{
		Title:       strings.TrimSpace(feed.Title),
		Link:        feed.Link,
		Description: feed.Description,
		Language:    feed.Language,
	}

	if feed.Image != nil {
		metadata.ImageURL = feed.Image.URL
	}

	items := make([]RawItem, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		items = append(items, p.rawItem(item))
	}

	return metadata, items, nil
}

func (p *Parser) rawItem(item *gofeed.Item) RawItem {
	raw := RawItem{}
	setText(raw, "title", item.Title)
	setText(raw, "link", item.Link)
	setText(raw, "guid", item.GUID)
	setText(raw, "description", item.Description)
	setText(raw, "content", item.Content)
	setText(raw, "pubDate", item.Published)
	setText(raw, "updated", item.Updated)

	switch {
	case item.PublishedParsed != nil:
		raw["isoDate"] = item.PublishedParsed.UTC().Format(time.RFC3339)
	case item.UpdatedParsed != nil:
		raw["isoDate"] = item.UpdatedParsed.UTC().Format(time.RFC3339)
	}

	if item.Author != nil {
		author := map[string]any{}
		setText(author, "name", item.Author.Name)
		setText(author, "email", item.Author.Email)
		if len(author) > 0 {
			raw["author"] = author
		}
	}

	if item.Image != nil {
		image := map[string]any{}
		setText(image, "url", item.Image.URL)
		setText(image, "title", item.Image.Title)
		if len(image) > 0 {
			raw["image"] = image
		}
	}

	// RSS 2.0 allows a single enclosure per item; only the first one counts.
	if len(item.Enclosures) > 0 && item.Enclosures[0] != nil {
		enclosure := map[string]any{}
		setText(enclosure, "url", item.Enclosures[0].URL)
		setText(enclosure, "length", item.Enclosures[0].Length)
		setText(enclosure, "type", item.Enclosures[0].Type)
		if len(enclosure) > 0 {
			raw["enclosure"] = enclosure
		}
	}

	if item.ITunesExt != nil {
		if itunes := itunesFields(item.ITunesExt); len(itunes) > 0 {
			raw["itunes"] = itunes
		}
	}

	for namespace, elements := range item.Extensions {
		if namespace == "" || namespace == "itunes" {
			continue
		}
		if fields := extensionFields(elements); len(fields) > 0 {
			raw[namespace] = fields
		}
	}

	return raw
}

func itunesFields(itunes *ext.ITunesItemExtension) map[string]any {
	fields := map[string]any{}
	setText(fields, "author", itunes.Author)
	setText(fields, "duration", itunes.Duration)
	setText(fields, "explicit", itunes.Explicit)
	setText(fields, "subtitle", itunes.Subtitle)
	setText(fields, "summary", itunes.Summary)
	setText(fields, "image", itunes.Image)
	setText(fields, "episode", itunes.Episode)
	setText(fields, "season", itunes.Season)
	setText(fields, "episodeType", itunes.EpisodeType)
	return fields
}

// extensionFields flattens namespaced elements such as <podcast:transcript>
// into "namespace.element" values. An element carrying attributes becomes a
// map of those attributes with its text under "value".
func extensionFields(elements map[string][]ext.Extension) map[string]any {
	fields := map[string]any{}
	for name, occurrences := range elements {
		if len(occurrences) == 0 {
			continue
		}
		first := occurrences[0]
		if len(first.Attrs) == 0 {
			setText(fields, name, first.Value)
			continue
		}

		element := map[string]any{}
		for attr, value := range first.Attrs {
			setText(element, attr, value)
		}
		setText(element, "value", first.Value)
		fields[name] = element
	}
	return fields
}

func setText(target map[string]any, key, value string) {
	if value = strings.TrimSpace(value); value != "" {
		target[key] = value
	}
}
