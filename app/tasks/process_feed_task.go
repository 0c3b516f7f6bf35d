package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lysyi3m/podcast-log/app/database"
	"github.com/lysyi3m/podcast-log/app/feed"
)

// ProcessFeedTask ingests one feed: fetch, window, filter by date, build,
// store new episodes, then advance the feed watermark.
type ProcessFeedTask struct {
	Task
	Feed        database.Feed
	Options     RunOptions
	Result      FeedResult
	source      FeedSource
	feedRepo    database.FeedRepository
	episodeRepo database.EpisodeRepository
	itemWorkers int
	logger      *slog.Logger
}

func NewProcessFeedTask(f database.Feed, options RunOptions, source FeedSource, feedRepo database.FeedRepository,
	episodeRepo database.EpisodeRepository, itemWorkers int, logger *slog.Logger) *ProcessFeedTask {
	return &ProcessFeedTask{
		Task:        NewTask(TaskTypeProcessFeed, f.Link),
		Feed:        f,
		Options:     options,
		source:      source,
		feedRepo:    feedRepo,
		episodeRepo: episodeRepo,
		itemWorkers: max(itemWorkers, 1),
		logger:      logger.With("feed_id", f.ID),
	}
}

func (t *ProcessFeedTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		t.Result = FeedResult{FeedID: t.Feed.ID, Title: t.Feed.Title, Err: ctx.Err()}
		return ctx.Err()
	default:
	}

	t.Result = t.process(ctx)
	if t.Result.Err != nil {
		return t.Result.Err
	}

	t.logger.Info("Task completed",
		"type", string(t.Type),
		"title", t.Feed.Title,
		"duration", t.GetDuration(),
		"total", t.Result.Total,
		"new", t.Result.New,
		"skipped", t.Result.Skipped)

	return nil
}

func (t *ProcessFeedTask) process(ctx context.Context) FeedResult {
	result := FeedResult{FeedID: t.Feed.ID, Title: t.Feed.Title}

	if err := feed.ValidateFeedLink(t.Feed.Link); err != nil {
		t.logger.Error("Skipping feed", "link", t.Feed.Link, "error", err)
		result.Err = err
		return result
	}

	_, items, err := t.source.Fetch(ctx, t.Feed.Link)
	if err != nil {
		t.logger.Error("Feed fetch failed, watermark left unchanged", "link", t.Feed.Link, "error", err)
		result.Err = err
		return result
	}

	window := items
	if t.Options.MaxItems > 0 && len(window) > t.Options.MaxItems {
		window = window[:t.Options.MaxItems]
	}
	result.Total = len(window)

	t.logger.Debug("Processing feed items", "title", t.Feed.Title, "window", len(window), "available", len(items))

	builder := feed.NewEpisodeBuilder(t.Feed, t.logger)

	var newCount, skipCount atomic.Int64
	var g errgroup.Group
	g.SetLimit(t.itemWorkers)
	for _, item := range window {
		g.Go(func() error {
			if t.processItem(ctx, builder, item) {
				newCount.Add(1)
			} else {
				skipCount.Add(1)
			}
			return nil
		})
	}
	g.Wait()

	result.New = int(newCount.Load())
	result.Skipped = int(skipCount.Load())

	if err := ctx.Err(); err != nil {
		t.logger.Warn("Feed run cancelled, watermark left unchanged", "error", err)
		result.Err = err
		return result
	}

	if err := t.feedRepo.UpdateLastCheck(ctx, t.Feed.ID, time.Now().UTC()); err != nil {
		result.Err = fmt.Errorf("failed to advance watermark: %w", err)
		return result
	}
	result.Checked = true

	return result
}

// processItem reports whether the item produced a new episode.
func (t *ProcessFeedTask) processItem(ctx context.Context, builder *feed.EpisodeBuilder, item feed.RawItem) bool {
	if ctx.Err() != nil {
		return false
	}

	published, err := feed.PublishedAt(item)
	if err != nil {
		t.logger.Debug("Skipping item without publication date", "error", err)
		return false
	}

	if !Includes(published, t.Feed.Earliest, t.Options.Since) {
		t.logger.Debug("Skipping earlier item", "published", published, "earliest", t.Feed.Earliest)
		return false
	}

	episode, err := builder.Build(item)
	if err != nil {
		t.logger.Warn("Skipping item", "error", err)
		return false
	}

	inserted, err := t.episodeRepo.InsertIfNew(ctx, episode)
	if err != nil {
		t.logger.Error("Failed to store episode", "guid", episode.GUID, "error", err)
		return false
	}
	if !inserted {
		t.logger.Debug("Episode already stored", "guid", episode.GUID)
		return false
	}

	t.logger.Debug("Episode stored", "title", episode.Title, "link", episode.Link, "duration", strconv.Itoa(episode.Duration)+"s")
	return true
}

// Includes applies the incremental window: an item qualifies when it is
// newer than the feed's earliest date or newer than the run cutoff. Either
// bound is enough.
func Includes(published, earliest time.Time, since *time.Time) bool {
	if published.After(earliest) {
		return true
	}
	return since != nil && published.After(*since)
}
