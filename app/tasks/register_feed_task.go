package tasks

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lysyi3m/podcast-log/app/database"
	"github.com/lysyi3m/podcast-log/app/feed"
)

var ErrFeedExists = errors.New("feed already registered")

type Registration struct {
	Link         string
	Topic        string
	LookbackDays int
	Overrides    string
	// Update refreshes topic and overrides of an already registered feed
	// instead of failing with ErrFeedExists.
	Update bool
}

// RegisterFeedTask adds a feed to the store. The feed is fetched once for
// its title; its earliest date is set LookbackDays before now.
type RegisterFeedTask struct {
	Task
	Registration Registration
	FeedID       int64
	Created      bool
	source       FeedSource
	feedRepo     database.FeedRepository
	logger       *slog.Logger
}

func NewRegisterFeedTask(registration Registration, source FeedSource, feedRepo database.FeedRepository, logger *slog.Logger) *RegisterFeedTask {
	return &RegisterFeedTask{
		Task:         NewTask(TaskTypeRegisterFeed, registration.Link),
		Registration: registration,
		source:       source,
		feedRepo:     feedRepo,
		logger:       logger,
	}
}

func (t *RegisterFeedTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	reg := t.Registration
	reg.Link = strings.TrimSpace(reg.Link)

	if err := feed.ValidateFeedLink(reg.Link); err != nil {
		return err
	}
	if reg.LookbackDays < 0 {
		return fmt.Errorf("lookback days must be non-negative")
	}
	if _, err := feed.ParseOverrideRules(reg.Overrides); err != nil {
		return err
	}

	existing, err := t.feedRepo.GetFeedByURL(ctx, reg.Link)
	if err != nil {
		return err
	}

	if existing != nil {
		if !reg.Update {
			return fmt.Errorf("%w: %s (id %d)", ErrFeedExists, reg.Link, existing.ID)
		}

		existing.Topic = reg.Topic
		existing.DataOverride = reg.Overrides
		if err := t.feedRepo.UpdateFeed(ctx, *existing); err != nil {
			return fmt.Errorf("failed to update feed: %w", err)
		}

		t.FeedID = existing.ID
		t.logger.Info("Task completed", "type", string(t.Type), "feed_id", existing.ID, "updated", true, "duration", t.GetDuration())
		return nil
	}

	metadata, _, err := t.source.Fetch(ctx, reg.Link)
	if err != nil {
		return err
	}

	id, err := t.feedRepo.InsertFeed(ctx, database.FeedInsert{
		Title:        cmp.Or(metadata.Title, reg.Link),
		Topic:        reg.Topic,
		Link:         reg.Link,
		Earliest:     time.Now().UTC().AddDate(0, 0, -reg.LookbackDays),
		DataOverride: reg.Overrides,
	})
	if err != nil {
		return err
	}

	t.FeedID = id
	t.Created = true

	t.logger.Info("Task completed",
		"type", string(t.Type),
		"feed_id", id,
		"title", metadata.Title,
		"description", metadata.Description,
		"duration", t.GetDuration())

	return nil
}
