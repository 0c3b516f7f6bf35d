package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/araddon/dateparse"
	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/podcast-log/app/database"
	"github.com/lysyi3m/podcast-log/app/report"
	"github.com/lysyi3m/podcast-log/app/tasks"
)

// NewHandler wires the API to the stores. scheduler may be nil, in which
// case feed processing requests are rejected.
func NewHandler(feedRepo database.FeedRepository, episodeRepo database.EpisodeRepository,
	ingester *tasks.Ingester, scheduler tasks.TaskSchedulerInterface,
	location *time.Location, version string, logger *slog.Logger) *Handler {
	return &Handler{
		feedRepo:    feedRepo,
		episodeRepo: episodeRepo,
		ingester:    ingester,
		scheduler:   scheduler,
		location:    location,
		version:     version,
		logger:      logger,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := gin.H{
		"status":    "ok",
		"timestamp": time.Now().In(h.location).Format(time.RFC3339),
	}

	if feedCount, err := h.feedRepo.GetFeedCount(c.Request.Context()); err == nil {
		health["feeds"] = feedCount
	} else {
		h.logger.Error("Database error", "operation", "get_feed_count", "error", err)
		health["status"] = "degraded"
		c.JSON(http.StatusServiceUnavailable, health)
		return
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()

	feedCount, err := h.feedRepo.GetFeedCount(ctx)
	if err != nil {
		h.logger.Error("Database error", "operation", "get_feed_count", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	stats, err := h.episodeRepo.GetEpisodeStats(ctx)
	if err != nil {
		h.logger.Error("Database error", "operation", "get_episode_stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	hours, minutes := report.SplitDuration(stats.Duration)
	c.JSON(http.StatusOK, gin.H{
		"feeds": feedCount,
		"episodes": gin.H{
			"total":      stats.Total,
			"unrecorded": stats.Unrecorded,
			"recorded":   stats.Total - stats.Unrecorded,
		},
		"duration": gin.H{
			"seconds": stats.Duration,
			"hours":   hours,
			"minutes": minutes,
		},
	})
}

func (h *Handler) APIListFeeds(c *gin.Context) {
	feeds, err := h.feedRepo.GetAllFeeds(c.Request.Context())
	if err != nil {
		h.logger.Error("Database error", "operation", "get_feeds", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	response := make([]FeedResponse, 0, len(feeds))
	for _, f := range feeds {
		response = append(response, newFeedResponse(f))
	}

	c.JSON(http.StatusOK, gin.H{
		"feeds": response,
		"total": len(response),
	})
}

func (h *Handler) APIGetFeed(c *gin.Context) {
	f, ok := h.lookupFeed(c)
	if !ok {
		return
	}

	episodes, err := h.episodeRepo.SearchEpisodes(c.Request.Context(), database.EpisodeFilter{FeedID: &f.ID})
	if err != nil {
		h.logger.Error("Database error", "operation", "search_episodes", "feed_id", f.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	unrecorded := 0
	for _, e := range episodes {
		if !e.Recorded {
			unrecorded++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"feed": newFeedResponse(*f),
		"episodes": gin.H{
			"total":      len(episodes),
			"unrecorded": unrecorded,
		},
	})
}

func (h *Handler) APIProcessFeed(c *gin.Context) {
	if h.scheduler == nil || h.ingester == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Scheduler not running"})
		return
	}

	f, ok := h.lookupFeed(c)
	if !ok {
		return
	}

	task := h.ingester.NewProcessFeedTask(*f, tasks.RunOptions{})
	err := h.scheduler.EnqueueTask(task)
	if errors.Is(err, tasks.ErrTaskInFlight) {
		c.JSON(http.StatusConflict, gin.H{"error": "Feed is already being processed"})
		return
	}
	if err != nil {
		h.logger.Error("Error enqueueing process task", "feed_id", f.ID, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to enqueue process task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"feed":    gin.H{"id": f.ID, "title": f.Title},
		"task":    gin.H{"id": task.ID, "type": task.Type},
	})
}

func (h *Handler) APISearchEpisodes(c *gin.Context) {
	filter, err := h.parseEpisodeFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	episodes, err := h.episodeRepo.SearchEpisodes(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Database error", "operation", "search_episodes", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	response := make([]EpisodeResponse, 0, len(episodes))
	for _, e := range episodes {
		response = append(response, newEpisodeResponse(e))
	}

	c.JSON(http.StatusOK, gin.H{
		"episodes": response,
		"total":    len(response),
	})
}

func (h *Handler) APISetRecorded(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid episode ID"})
		return
	}

	recorded := true
	if c.Request.ContentLength != 0 {
		var req RecordedRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		if req.Recorded != nil {
			recorded = *req.Recorded
		}
	}

	err = h.episodeRepo.SetRecorded(c.Request.Context(), []int64{id}, recorded)
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Episode not found"})
		return
	}
	if err != nil {
		h.logger.Error("Database error", "operation", "set_recorded", "episode_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "recorded": recorded})
}

func (h *Handler) lookupFeed(c *gin.Context) (*database.Feed, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid feed ID"})
		return nil, false
	}

	f, err := h.feedRepo.GetFeedByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("Database error", "operation", "get_feed", "feed_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return nil, false
	}
	if f == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
		return nil, false
	}

	return f, true
}

func (h *Handler) parseEpisodeFilter(c *gin.Context) (database.EpisodeFilter, error) {
	var filter database.EpisodeFilter

	if value := c.Query("feed"); value != "" {
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return filter, errors.New("invalid feed parameter")
		}
		filter.FeedID = &id
	}

	if value := c.Query("from"); value != "" {
		from, err := dateparse.ParseIn(value, h.location)
		if err != nil {
			return filter, errors.New("invalid from parameter")
		}
		filter.DateFrom = &from
	}

	if value := c.Query("to"); value != "" {
		to, err := dateparse.ParseIn(value, h.location)
		if err != nil {
			return filter, errors.New("invalid to parameter")
		}
		filter.DateTo = &to
	}

	if value := c.Query("recorded"); value != "" {
		recorded, err := strconv.ParseBool(value)
		if err != nil {
			return filter, errors.New("invalid recorded parameter")
		}
		filter.Recorded = &recorded
	}

	return filter, nil
}
