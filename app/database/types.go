package database

import (
	"time"
)

type Feed struct {
	ID           int64
	Title        string
	Topic        string // empty when no topic was given at registration
	Link         string // RSS/Atom feed URL
	Earliest     time.Time
	LastCheck    *time.Time
	DataOverride string // JSON object mapping episode field -> dotted item path
	CreatedAt    time.Time
}

type FeedInsert struct {
	Title        string
	Topic        string
	Link         string
	Earliest     time.Time
	DataOverride string
}

type Episode struct {
	ID       int64
	FeedID   int64
	Title    string
	Link     string
	GUID     string
	PubDate  time.Time
	Duration int // seconds
	Recorded bool
}

type EpisodeWithFeed struct {
	Episode
	FeedTitle string
	FeedTopic string
}

// EpisodeFilter narrows SearchEpisodes. Nil fields are not applied.
type EpisodeFilter struct {
	FeedID   *int64
	DateFrom *time.Time
	DateTo   *time.Time
	Recorded *bool
}

type EpisodeStats struct {
	Total      int
	Unrecorded int
	Duration   int // seconds, summed over all episodes
}
