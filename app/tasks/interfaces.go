package tasks

import (
	"context"

	"github.com/lysyi3m/podcast-log/app/feed"
)

// FeedSource retrieves and parses a remote feed. *feed.Client is the
// production implementation.
type FeedSource interface {
	Fetch(ctx context.Context, link string) (*feed.Metadata, []feed.RawItem, error)
}

var _ FeedSource = (*feed.Client)(nil)

// TaskSchedulerInterface is the periodic runner used by the serve command.
//
//	scheduler := NewScheduler(ingester, feedRepo, RunOptions{}, interval, taskTimeout, workers, logger)
//	scheduler.Start()
//	defer scheduler.Stop()
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}
