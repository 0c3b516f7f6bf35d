package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type FeedRepo struct {
	db *DB
}

func NewFeedRepository(db *DB) *FeedRepo {
	return &FeedRepo{db: db}
}

const feedColumns = `id, title, COALESCE(topic, ''), link, earliest, last_check, COALESCE(data_override, ''), created_at`

func (r *FeedRepo) GetFeedByID(ctx context.Context, id int64) (*Feed, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+feedColumns+` FROM feeds WHERE id = ?`, id)

	feed, err := scanFeed(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed by ID: %w", err)
	}

	return feed, nil
}

func (r *FeedRepo) GetFeedByURL(ctx context.Context, link string) (*Feed, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+feedColumns+` FROM feeds WHERE link = ?`, link)

	feed, err := scanFeed(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed by URL: %w", err)
	}

	return feed, nil
}

func (r *FeedRepo) GetAllFeeds(ctx context.Context) ([]Feed, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+feedColumns+` FROM feeds ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to get feeds: %w", err)
	}
	defer rows.Close()

	var feeds []Feed
	for rows.Next() {
		feed, err := scanFeed(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed row: %w", err)
		}
		feeds = append(feeds, *feed)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feed rows: %w", err)
	}

	return feeds, nil
}

func (r *FeedRepo) GetFeedCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM feeds").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get feed count: %w", err)
	}
	return count, nil
}

func (r *FeedRepo) InsertFeed(ctx context.Context, feed FeedInsert) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO feeds (title, topic, link, earliest, data_override)
		VALUES (?, ?, ?, ?, ?)
	`, feed.Title, nullString(feed.Topic), feed.Link, feed.Earliest.UTC(), nullString(feed.DataOverride))
	if err != nil {
		return 0, fmt.Errorf("failed to insert feed: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get inserted feed ID: %w", err)
	}

	return id, nil
}

// UpdateFeed rewrites the mutable registration fields of a feed. The
// watermark is left alone; use UpdateLastCheck for that.
func (r *FeedRepo) UpdateFeed(ctx context.Context, feed Feed) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE feeds
		SET title = ?, topic = ?, link = ?, earliest = ?, data_override = ?
		WHERE id = ?
	`, feed.Title, nullString(feed.Topic), feed.Link, feed.Earliest.UTC(), nullString(feed.DataOverride), feed.ID)
	if err != nil {
		return fmt.Errorf("failed to update feed: %w", err)
	}

	return expectAffected(result, "feed", feed.ID)
}

// UpdateLastCheck advances the feed watermark. It never moves it backwards,
// so an older timestamp from a slow concurrent run is a no-op.
func (r *FeedRepo) UpdateLastCheck(ctx context.Context, feedID int64, checkedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE feeds
		SET last_check = ?
		WHERE id = ?
		  AND (last_check IS NULL OR last_check < ?)
	`, checkedAt.UTC(), feedID, checkedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to update feed last check: %w", err)
	}

	return nil
}

func (r *FeedRepo) SetDataOverride(ctx context.Context, feedID int64, dataOverride string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE feeds
		SET data_override = ?
		WHERE id = ?
	`, nullString(dataOverride), feedID)
	if err != nil {
		return fmt.Errorf("failed to set feed data override: %w", err)
	}

	return expectAffected(result, "feed", feedID)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFeed(row rowScanner) (*Feed, error) {
	var feed Feed
	err := row.Scan(
		&feed.ID, &feed.Title, &feed.Topic, &feed.Link, &feed.Earliest,
		&feed.LastCheck, &feed.DataOverride, &feed.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &feed, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func expectAffected(result sql.Result, entity string, id int64) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%s %d: %w", entity, id, ErrNotFound)
	}
	return nil
}
