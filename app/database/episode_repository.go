package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

type EpisodeRepo struct {
	db *DB
}

func NewEpisodeRepository(db *DB) *EpisodeRepo {
	return &EpisodeRepo{db: db}
}

const episodeColumns = `e.id, e.feed_id, e.title, e.link, e.guid, e.pub_date, e.duration, e.recorded`

func (r *EpisodeRepo) GetEpisodeByGUID(ctx context.Context, guid string) (*Episode, error) {
	var ep Episode
	err := r.db.QueryRowContext(ctx, `SELECT `+episodeColumns+` FROM episodes e WHERE e.guid = ?`, guid).Scan(
		&ep.ID, &ep.FeedID, &ep.Title, &ep.Link, &ep.GUID, &ep.PubDate, &ep.Duration, &ep.Recorded,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get episode by guid: %w", err)
	}

	return &ep, nil
}

// InsertIfNew stores the episode unless one with the same guid already
// exists in any feed. The lookup is only a fast path: the unique index on
// guid decides the outcome when two workers race on the same guid, and the
// loser sees zero affected rows.
func (r *EpisodeRepo) InsertIfNew(ctx context.Context, episode Episode) (bool, error) {
	if episode.GUID == "" {
		return false, fmt.Errorf("episode guid is required")
	}

	existing, err := r.GetEpisodeByGUID(ctx, episode.GUID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO episodes (feed_id, title, link, guid, pub_date, duration, recorded)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (guid) DO NOTHING
	`, episode.FeedID, episode.Title, episode.Link, episode.GUID, episode.PubDate.UTC(),
		episode.Duration, episode.Recorded)
	if err != nil {
		return false, fmt.Errorf("failed to insert episode: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return affected == 1, nil
}

func (r *EpisodeRepo) UpdateEpisode(ctx context.Context, episode Episode) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE episodes
		SET title = ?, link = ?, pub_date = ?, duration = ?, recorded = ?
		WHERE id = ?
	`, episode.Title, episode.Link, episode.PubDate.UTC(), episode.Duration, episode.Recorded, episode.ID)
	if err != nil {
		return fmt.Errorf("failed to update episode: %w", err)
	}

	return expectAffected(result, "episode", episode.ID)
}

func (r *EpisodeRepo) SetRecorded(ctx context.Context, episodeIDs []int64, recorded bool) error {
	if len(episodeIDs) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `UPDATE episodes SET recorded = ? WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare recorded update: %w", err)
	}
	defer stmt.Close()

	for _, id := range episodeIDs {
		result, err := stmt.ExecContext(ctx, recorded, id)
		if err != nil {
			return fmt.Errorf("failed to update episode %d recorded flag: %w", id, err)
		}
		if err := expectAffected(result, "episode", id); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit recorded update: %w", err)
	}

	return nil
}

func (r *EpisodeRepo) SearchEpisodes(ctx context.Context, filter EpisodeFilter) ([]EpisodeWithFeed, error) {
	var conditions []string
	var args []any

	if filter.FeedID != nil {
		conditions = append(conditions, "e.feed_id = ?")
		args = append(args, *filter.FeedID)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, "e.pub_date >= ?")
		args = append(args, filter.DateFrom.UTC())
	}
	if filter.DateTo != nil {
		conditions = append(conditions, "e.pub_date <= ?")
		args = append(args, filter.DateTo.UTC())
	}
	if filter.Recorded != nil {
		conditions = append(conditions, "e.recorded = ?")
		args = append(args, *filter.Recorded)
	}

	query := `SELECT ` + episodeColumns + `, f.title, COALESCE(f.topic, '')
		FROM episodes e
		JOIN feeds f ON f.id = e.feed_id`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY e.pub_date, e.id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search episodes: %w", err)
	}
	defer rows.Close()

	var episodes []EpisodeWithFeed
	for rows.Next() {
		var ep EpisodeWithFeed
		err := rows.Scan(
			&ep.ID, &ep.FeedID, &ep.Title, &ep.Link, &ep.GUID, &ep.PubDate, &ep.Duration, &ep.Recorded,
			&ep.FeedTitle, &ep.FeedTopic,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan episode row: %w", err)
		}
		episodes = append(episodes, ep)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating episode rows: %w", err)
	}

	return episodes, nil
}

func (r *EpisodeRepo) GetEpisodeStats(ctx context.Context) (EpisodeStats, error) {
	var stats EpisodeStats
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN recorded = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(duration), 0)
		FROM episodes
	`).Scan(&stats.Total, &stats.Unrecorded, &stats.Duration)
	if err != nil {
		return EpisodeStats{}, fmt.Errorf("failed to get episode stats: %w", err)
	}

	return stats, nil
}
