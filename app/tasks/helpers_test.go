package tasks

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/lysyi3m/podcast-log/app/database"
	"github.com/lysyi3m/podcast-log/app/feed"
)

type fakeSource struct {
	mu    sync.Mutex
	items map[string][]feed.RawItem
	errs  map[string]error
	calls map[string]int
	block chan struct{}
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		items: map[string][]feed.RawItem{},
		errs:  map[string]error{},
		calls: map[string]int{},
	}
}

func (s *fakeSource) Fetch(ctx context.Context, link string) (*feed.Metadata, []feed.RawItem, error) {
	s.mu.Lock()
	s.calls[link]++
	items := s.items[link]
	err := s.errs[link]
	block := s.block
	s.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, nil, &feed.FetchError{URL: link, Err: ctx.Err()}
		}
	}

	if err != nil {
		return nil, nil, &feed.FetchError{URL: link, Err: err}
	}
	return &feed.Metadata{Title: "Feed at " + link, Description: "test"}, items, nil
}

func (s *fakeSource) callCount(link string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[link]
}

var errUnreachable = errors.New("connection refused")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testStore struct {
	db       *database.DB
	feeds    *database.FeedRepo
	episodes *database.EpisodeRepo
}

func setupStore(t *testing.T) *testStore {
	t.Helper()

	db, err := database.NewConnection(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return &testStore{
		db:       db,
		feeds:    database.NewFeedRepository(db),
		episodes: database.NewEpisodeRepository(db),
	}
}

func (s *testStore) addFeed(t *testing.T, link string, earliest time.Time) database.Feed {
	t.Helper()

	id, err := s.feeds.InsertFeed(context.Background(), database.FeedInsert{
		Title:    "Feed " + link,
		Link:     link,
		Earliest: earliest,
	})
	if err != nil {
		t.Fatalf("Failed to insert feed: %v", err)
	}
	return s.getFeed(t, id)
}

func (s *testStore) getFeed(t *testing.T, id int64) database.Feed {
	t.Helper()

	f, err := s.feeds.GetFeedByID(context.Background(), id)
	if err != nil || f == nil {
		t.Fatalf("Failed to load feed %d: %v", id, err)
	}
	return *f
}

func (s *testStore) episodeCount(t *testing.T) int {
	t.Helper()

	stats, err := s.episodes.GetEpisodeStats(context.Background())
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}
	return stats.Total
}

func rawItem(guid string, published time.Time) feed.RawItem {
	return feed.RawItem{
		"title":   " " + guid + " ",
		"link":    "https://example.com/" + guid,
		"guid":    guid,
		"isoDate": published.UTC().Format(time.RFC3339),
		"itunes":  map[string]any{"duration": "30:00"},
	}
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
