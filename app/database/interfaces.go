package database

import (
	"context"
	"time"
)

type FeedRepository interface {
	GetFeedByID(ctx context.Context, id int64) (*Feed, error)
	GetFeedByURL(ctx context.Context, link string) (*Feed, error)
	GetAllFeeds(ctx context.Context) ([]Feed, error)
	GetFeedCount(ctx context.Context) (int, error)

	InsertFeed(ctx context.Context, feed FeedInsert) (int64, error)
	UpdateFeed(ctx context.Context, feed Feed) error
	UpdateLastCheck(ctx context.Context, feedID int64, checkedAt time.Time) error
	SetDataOverride(ctx context.Context, feedID int64, dataOverride string) error
}

type EpisodeRepository interface {
	GetEpisodeByGUID(ctx context.Context, guid string) (*Episode, error)
	GetEpisodeStats(ctx context.Context) (EpisodeStats, error)
	SearchEpisodes(ctx context.Context, filter EpisodeFilter) ([]EpisodeWithFeed, error)

	InsertIfNew(ctx context.Context, episode Episode) (bool, error)
	UpdateEpisode(ctx context.Context, episode Episode) error
	SetRecorded(ctx context.Context, episodeIDs []int64, recorded bool) error
}

var (
	_ FeedRepository    = (*FeedRepo)(nil)
	_ EpisodeRepository = (*EpisodeRepo)(nil)
)
