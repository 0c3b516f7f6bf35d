package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lysyi3m/podcast-log/app/database"
	"github.com/lysyi3m/podcast-log/app/feed"
)

type RunOptions struct {
	// MaxItems caps how many of the most recent items are considered per
	// feed. Zero or less means all of them.
	MaxItems int
	// Since is an optional run-level cutoff, OR-ed with each feed's
	// earliest date.
	Since *time.Time
}

type FeedResult struct {
	FeedID  int64
	Title   string
	Total   int
	New     int
	Skipped int
	// Checked is set when the feed watermark was advanced.
	Checked bool
	Err     error
}

type RunResult struct {
	NewEpisodes int
	Feeds       []FeedResult
}

func (r RunResult) Skipped() int {
	skipped := 0
	for _, f := range r.Feeds {
		skipped += f.Skipped
	}
	return skipped
}

func (r RunResult) Failed() []FeedResult {
	var failed []FeedResult
	for _, f := range r.Feeds {
		if f.Err != nil {
			failed = append(failed, f)
		}
	}
	return failed
}

// Ingester fans a run out over feeds and waits for all of them. A feed
// failing never affects the others.
type Ingester struct {
	source      FeedSource
	feedRepo    database.FeedRepository
	episodeRepo database.EpisodeRepository
	feedWorkers int
	itemWorkers int
	logger      *slog.Logger
}

func NewIngester(source FeedSource, feedRepo database.FeedRepository, episodeRepo database.EpisodeRepository,
	feedWorkers, itemWorkers int, logger *slog.Logger) *Ingester {
	return &Ingester{
		source:      source,
		feedRepo:    feedRepo,
		episodeRepo: episodeRepo,
		feedWorkers: max(feedWorkers, 1),
		itemWorkers: max(itemWorkers, 1),
		logger:      logger,
	}
}

func (i *Ingester) NewProcessFeedTask(f database.Feed, options RunOptions) *ProcessFeedTask {
	return NewProcessFeedTask(f, options, i.source, i.feedRepo, i.episodeRepo, i.itemWorkers, i.logger)
}

func (i *Ingester) Run(ctx context.Context, feeds []database.Feed, options RunOptions) RunResult {
	results := make([]FeedResult, len(feeds))

	var g errgroup.Group
	g.SetLimit(i.feedWorkers)
	for idx, f := range feeds {
		g.Go(func() error {
			task := i.NewProcessFeedTask(f, options)
			task.Start()
			// The error is kept in task.Result so one feed cannot mask another.
			_ = task.Execute(ctx)
			results[idx] = task.Result
			return nil
		})
	}
	g.Wait()

	run := RunResult{Feeds: results}
	for _, r := range results {
		run.NewEpisodes += r.New
	}

	i.logger.Info("Ingestion run completed",
		"feeds", len(feeds),
		"new_episodes", run.NewEpisodes,
		"skipped", run.Skipped(),
		"failed", len(run.Failed()))

	return run
}

// RunAll ingests every registered feed, or only feedID when it is non-zero.
func (i *Ingester) RunAll(ctx context.Context, feedID int64, options RunOptions) (RunResult, error) {
	feeds, err := i.selectFeeds(ctx, feedID)
	if err != nil {
		return RunResult{}, err
	}

	return i.Run(ctx, feeds, options), nil
}

func (i *Ingester) selectFeeds(ctx context.Context, feedID int64) ([]database.Feed, error) {
	if feedID == 0 {
		return i.feedRepo.GetAllFeeds(ctx)
	}

	f, err := i.feedRepo.GetFeedByID(ctx, feedID)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, fmt.Errorf("feed %d: %w", feedID, database.ErrNotFound)
	}
	return []database.Feed{*f}, nil
}

// retryable reports whether a failed task is worth repeating. Fetch failures
// wait for the next scheduled run; bad input and cancellations never
// succeed on a second attempt. What remains are store errors.
func retryable(err error) bool {
	var fetchErr *feed.FetchError
	switch {
	case errors.As(err, &fetchErr),
		errors.Is(err, feed.ErrInvalidFeedLink),
		errors.Is(err, feed.ErrMalformedOverride),
		errors.Is(err, feed.ErrInvalidOverrideKey),
		errors.Is(err, ErrFeedExists),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}
