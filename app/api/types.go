package api

import (
	"log/slog"
	"time"

	"github.com/lysyi3m/podcast-log/app/database"
	"github.com/lysyi3m/podcast-log/app/tasks"
)

type Handler struct {
	feedRepo    database.FeedRepository
	episodeRepo database.EpisodeRepository
	ingester    *tasks.Ingester
	scheduler   tasks.TaskSchedulerInterface
	location    *time.Location
	version     string
	logger      *slog.Logger
}

type FeedResponse struct {
	ID        int64      `json:"id"`
	Title     string     `json:"title"`
	Topic     string     `json:"topic,omitempty"`
	Link      string     `json:"link"`
	Earliest  time.Time  `json:"earliest"`
	LastCheck *time.Time `json:"last_check,omitempty"`
	Overrides string     `json:"overrides,omitempty"`
}

type EpisodeResponse struct {
	ID        int64     `json:"id"`
	FeedID    int64     `json:"feed_id"`
	FeedTitle string    `json:"feed_title"`
	Topic     string    `json:"topic,omitempty"`
	Title     string    `json:"title"`
	Link      string    `json:"link"`
	GUID      string    `json:"guid"`
	PubDate   time.Time `json:"pub_date"`
	Duration  int       `json:"duration"`
	Recorded  bool      `json:"recorded"`
}

type RecordedRequest struct {
	Recorded *bool `json:"recorded"`
}

func newFeedResponse(f database.Feed) FeedResponse {
	return FeedResponse{
		ID:        f.ID,
		Title:     f.Title,
		Topic:     f.Topic,
		Link:      f.Link,
		Earliest:  f.Earliest,
		LastCheck: f.LastCheck,
		Overrides: f.DataOverride,
	}
}

func newEpisodeResponse(e database.EpisodeWithFeed) EpisodeResponse {
	return EpisodeResponse{
		ID:        e.ID,
		FeedID:    e.FeedID,
		FeedTitle: e.FeedTitle,
		Topic:     e.FeedTopic,
		Title:     e.Title,
		Link:      e.Link,
		GUID:      e.GUID,
		PubDate:   e.PubDate,
		Duration:  e.Duration,
		Recorded:  e.Recorded,
	}
}
