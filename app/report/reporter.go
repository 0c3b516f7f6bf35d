package report

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/lysyi3m/podcast-log/app/database"
)

var ErrReportExists = errors.New("report file already exists")

type Options struct {
	FeedID *int64
	From   *time.Time
	To     *time.Time
	// Full includes episodes already recorded by an earlier report.
	Full bool
}

type Summary struct {
	Path     string
	Episodes int
	Duration int
}

// Reporter writes the recording log for matching episodes and then marks
// them recorded, so the next report only lists what is new.
type Reporter struct {
	episodeRepo database.EpisodeRepository
	generator   *Generator
	logger      *slog.Logger
}

func NewReporter(episodeRepo database.EpisodeRepository, generator *Generator, logger *slog.Logger) *Reporter {
	return &Reporter{
		episodeRepo: episodeRepo,
		generator:   generator,
		logger:      logger,
	}
}

func (r *Reporter) Write(ctx context.Context, path string, options Options) (Summary, error) {
	summary := Summary{Path: path}

	if _, err := os.Stat(path); err == nil {
		return summary, fmt.Errorf("%w: %s", ErrReportExists, path)
	}

	filter := database.EpisodeFilter{
		FeedID:   options.FeedID,
		DateFrom: options.From,
		DateTo:   options.To,
	}
	if !options.Full {
		unrecorded := false
		filter.Recorded = &unrecorded
	}

	episodes, err := r.episodeRepo.SearchEpisodes(ctx, filter)
	if err != nil {
		return summary, err
	}

	if len(episodes) == 0 {
		r.logger.Info("No unrecorded episodes found")
		return summary, nil
	}

	data, err := r.generator.Run(episodes)
	if err != nil {
		return summary, err
	}

	if err := writeExclusive(path, data); err != nil {
		return summary, err
	}

	ids := make([]int64, 0, len(episodes))
	for _, episode := range episodes {
		ids = append(ids, episode.ID)
		summary.Duration += episode.Duration
	}
	summary.Episodes = len(episodes)

	if err := r.episodeRepo.SetRecorded(ctx, ids, true); err != nil {
		return summary, fmt.Errorf("report written but episodes not marked recorded: %w", err)
	}

	hours, minutes := SplitDuration(summary.Duration)
	r.logger.Info("Report saved",
		"path", path,
		"episodes", summary.Episodes,
		"hours", hours,
		"minutes", minutes)

	return summary, nil
}

func writeExclusive(path string, data []byte) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%w: %s", ErrReportExists, path)
	}
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}

	if _, err := file.Write(data); err != nil {
		file.Close()
		return fmt.Errorf("failed to write report file: %w", err)
	}

	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close report file: %w", err)
	}
	return nil
}
