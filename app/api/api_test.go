package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/podcast-log/app/database"
	"github.com/lysyi3m/podcast-log/app/feed"
	"github.com/lysyi3m/podcast-log/app/tasks"
)

const testKey = "secret"

type recordingScheduler struct {
	tasks []tasks.TaskInterface
}

func (s *recordingScheduler) Start() {}
func (s *recordingScheduler) Stop()  {}
func (s *recordingScheduler) EnqueueTask(task tasks.TaskInterface) error {
	for _, queued := range s.tasks {
		if queued.GetTarget() == task.GetTarget() {
			return tasks.ErrTaskInFlight
		}
	}
	s.tasks = append(s.tasks, task)
	return nil
}

type nopSource struct{}

func (nopSource) Fetch(ctx context.Context, link string) (*feed.Metadata, []feed.RawItem, error) {
	return &feed.Metadata{}, nil, nil
}

type testEnv struct {
	router    *gin.Engine
	feeds     *database.FeedRepo
	episodes  *database.EpisodeRepo
	scheduler *recordingScheduler
	feedID    int64
}

func setupEnv(t *testing.T, withScheduler bool) *testEnv {
	t.Helper()

	db, err := database.NewConnection(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatal(err)
	}

	env := &testEnv{
		feeds:    database.NewFeedRepository(db),
		episodes: database.NewEpisodeRepository(db),
	}

	ctx := context.Background()
	env.feedID, err = env.feeds.InsertFeed(ctx, database.FeedInsert{
		Title:    "Security Weekly",
		Topic:    "Security",
		Link:     "https://example.com/feed.xml",
		Earliest: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatal(err)
	}

	for i, guid := range []string{"g1", "g2"} {
		_, err := env.episodes.InsertIfNew(ctx, database.Episode{
			FeedID:   env.feedID,
			Title:    "Episode " + guid,
			Link:     "https://example.com/" + guid,
			GUID:     guid,
			PubDate:  time.Date(2024, 2, i+1, 0, 0, 0, 0, time.UTC),
			Duration: 3000,
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ingester := tasks.NewIngester(nopSource{}, env.feeds, env.episodes, 1, 1, logger)

	var scheduler tasks.TaskSchedulerInterface
	if withScheduler {
		env.scheduler = &recordingScheduler{}
		scheduler = env.scheduler
	}

	handler := NewHandler(env.feeds, env.episodes, ingester, scheduler, time.UTC, "test", logger)
	env.router = NewServer(handler, testKey)
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body []byte, authorized bool) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authorized {
		req.Header.Set("X-API-Key", testKey)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), target); err != nil {
		t.Fatalf("Failed to decode response %q: %v", w.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	env := setupEnv(t, false)

	w := env.do(t, http.MethodGet, "/health", nil, false)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var body map[string]any
	decode(t, w, &body)
	if body["status"] != "ok" || body["feeds"] != float64(1) {
		t.Errorf("Unexpected health body %v", body)
	}
}

func TestStats(t *testing.T) {
	env := setupEnv(t, false)

	w := env.do(t, http.MethodGet, "/stats", nil, false)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var body struct {
		Feeds    int `json:"feeds"`
		Episodes struct {
			Total      int `json:"total"`
			Unrecorded int `json:"unrecorded"`
		} `json:"episodes"`
		Duration struct {
			Seconds int `json:"seconds"`
			Hours   int `json:"hours"`
			Minutes int `json:"minutes"`
		} `json:"duration"`
	}
	decode(t, w, &body)

	if body.Feeds != 1 || body.Episodes.Total != 2 || body.Episodes.Unrecorded != 2 {
		t.Errorf("Unexpected counts %+v", body)
	}
	if body.Duration.Seconds != 6000 || body.Duration.Hours != 1 || body.Duration.Minutes != 40 {
		t.Errorf("Unexpected duration %+v", body.Duration)
	}
}

func TestAuthMiddleware(t *testing.T) {
	env := setupEnv(t, false)

	if w := env.do(t, http.MethodGet, "/api/feeds", nil, false); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without key, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/feeds", nil)
	req.Header.Set("X-API-Key", "wrong")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 with wrong key, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/feeds", nil)
	req.Header.Set("Authorization", "Bearer "+testKey)
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 with bearer token, got %d", w.Code)
	}
}

func TestListAndGetFeed(t *testing.T) {
	env := setupEnv(t, false)

	w := env.do(t, http.MethodGet, "/api/feeds", nil, true)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var list struct {
		Feeds []FeedResponse `json:"feeds"`
		Total int            `json:"total"`
	}
	decode(t, w, &list)
	if list.Total != 1 || list.Feeds[0].Topic != "Security" {
		t.Errorf("Unexpected feed list %+v", list)
	}

	w = env.do(t, http.MethodGet, "/api/feeds/1", nil, true)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	if w := env.do(t, http.MethodGet, "/api/feeds/99", nil, true); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown feed, got %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/api/feeds/abc", nil, true); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad feed ID, got %d", w.Code)
	}
}

func TestSearchEpisodes(t *testing.T) {
	env := setupEnv(t, false)

	w := env.do(t, http.MethodGet, "/api/episodes?feed=1&from=2024-02-02", nil, true)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		Episodes []EpisodeResponse `json:"episodes"`
		Total    int               `json:"total"`
	}
	decode(t, w, &body)
	if body.Total != 1 || body.Episodes[0].GUID != "g2" || body.Episodes[0].Topic != "Security" {
		t.Errorf("Unexpected episodes %+v", body)
	}

	for _, query := range []string{"feed=x", "from=notadate", "recorded=maybe"} {
		if w := env.do(t, http.MethodGet, "/api/episodes?"+query, nil, true); w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400 for %s, got %d", query, w.Code)
		}
	}
}

func TestSetRecorded(t *testing.T) {
	env := setupEnv(t, false)

	episode, err := env.episodes.GetEpisodeByGUID(context.Background(), "g1")
	if err != nil || episode == nil {
		t.Fatalf("Failed to load episode: %v", err)
	}

	path := "/api/episodes/" + itoa(episode.ID) + "/recorded"
	if w := env.do(t, http.MethodPost, path, nil, true); w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w := env.do(t, http.MethodGet, "/api/episodes?recorded=false", nil, true)
	var body struct {
		Total int `json:"total"`
	}
	decode(t, w, &body)
	if body.Total != 1 {
		t.Errorf("Expected 1 unrecorded episode, got %d", body.Total)
	}

	if w := env.do(t, http.MethodPost, path, []byte(`{"recorded":false}`), true); w.Code != http.StatusOK {
		t.Fatalf("Expected 200 when clearing, got %d", w.Code)
	}
	stored, _ := env.episodes.GetEpisodeByGUID(context.Background(), "g1")
	if stored.Recorded {
		t.Error("Expected recorded flag to be cleared")
	}

	if w := env.do(t, http.MethodPost, "/api/episodes/999/recorded", nil, true); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown episode, got %d", w.Code)
	}
	if w := env.do(t, http.MethodPost, path, []byte(`{bad`), true); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad body, got %d", w.Code)
	}
}

func TestProcessFeed(t *testing.T) {
	env := setupEnv(t, false)
	if w := env.do(t, http.MethodPost, "/api/feeds/1/process", nil, true); w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 without scheduler, got %d", w.Code)
	}

	env = setupEnv(t, true)
	w := env.do(t, http.MethodPost, "/api/feeds/1/process", nil, true)
	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d", w.Code)
	}
	if len(env.scheduler.tasks) != 1 || env.scheduler.tasks[0].GetType() != tasks.TaskTypeProcessFeed {
		t.Errorf("Expected one process task to be enqueued, got %v", env.scheduler.tasks)
	}

	if w := env.do(t, http.MethodPost, "/api/feeds/1/process", nil, true); w.Code != http.StatusConflict {
		t.Errorf("Expected 409 while the feed is queued, got %d", w.Code)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
