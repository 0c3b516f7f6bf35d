package feed

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lysyi3m/podcast-log/app/database"
)

// EpisodeBuilder turns raw items of one feed into episode records, applying
// that feed's override rules.
type EpisodeBuilder struct {
	feed   database.Feed
	rules  OverrideRules
	logger *slog.Logger
}

func NewEpisodeBuilder(feed database.Feed, logger *slog.Logger) *EpisodeBuilder {
	builder := &EpisodeBuilder{
		feed:   feed,
		logger: logger,
	}

	rules, err := ParseOverrideRules(feed.DataOverride)
	switch {
	case errors.Is(err, ErrMalformedOverride):
		logger.Warn("Ignoring malformed feed overrides", "feed_id", feed.ID, "error", err)
	case err != nil:
		logger.Warn("Some feed overrides were skipped", "feed_id", feed.ID, "error", err)
	}
	builder.rules = rules

	return builder
}

func (b *EpisodeBuilder) Build(item RawItem) (database.Episode, error) {
	title, _ := item.String("title")
	link, _ := item.String("link")
	guid, _ := item.String("guid")

	fields := EpisodeFields{
		Title: strings.TrimSpace(title),
		Link:  strings.TrimSpace(link),
	}
	fields.GUID = cmp.Or(strings.TrimSpace(guid), fields.Link)

	if published, err := PublishedAt(item); err == nil {
		fields.PubDate = published
	}

	duration, err := NormalizeDuration(item)
	if err != nil {
		b.logger.Debug("Episode has no usable duration", "feed_id", b.feed.ID, "guid", fields.GUID, "error", err)
	}
	fields.Duration = duration

	if len(b.rules) > 0 {
		fields, err = b.rules.Apply(item, fields)
		if err != nil {
			b.logger.Warn("Feed overrides partially applied", "feed_id", b.feed.ID, "guid", fields.GUID, "error", err)
		}
	}

	switch {
	case fields.GUID == "":
		return database.Episode{}, fmt.Errorf("%w: missing guid", ErrIncompleteEpisode)
	case fields.Link == "":
		return database.Episode{}, fmt.Errorf("%w: missing link for %s", ErrIncompleteEpisode, fields.GUID)
	case fields.PubDate.IsZero():
		return database.Episode{}, fmt.Errorf("%w: missing publication date for %s", ErrIncompleteEpisode, fields.GUID)
	}

	return database.Episode{
		FeedID:   b.feed.ID,
		Title:    fields.Title,
		Link:     fields.Link,
		GUID:     fields.GUID,
		PubDate:  fields.PubDate,
		Duration: fields.Duration,
		Recorded: false,
	}, nil
}
