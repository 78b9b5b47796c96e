package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ladyboss/academy/internal/model"
)

// CatalogStore reads programs, rounds and their drip content.
type CatalogStore struct {
	db *sql.DB
}

func NewCatalogStore(db *sql.DB) *CatalogStore {
	return &CatalogStore{db: db}
}

func (s *CatalogStore) CreateProgram(ctx context.Context, title string) (*model.Program, error) {
	p := model.Program{ID: uuid.New(), Title: title, CreatedAt: time.Now().UTC()}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO programs (id, title, created_at) VALUES (?, ?, ?)`,
		p.ID, p.Title, p.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create program: %w", err)
	}
	return &p, nil
}

func (s *CatalogStore) CreatePlaylist(ctx context.Context, title string) (*model.Playlist, error) {
	p := model.Playlist{ID: uuid.New(), Title: title, CreatedAt: time.Now().UTC()}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO playlists (id, title, created_at) VALUES (?, ?, ?)`,
		p.ID, p.Title, p.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create playlist: %w", err)
	}
	return &p, nil
}

func (s *CatalogStore) CreateChannel(ctx context.Context, name string) (*model.FeedChannel, error) {
	c := model.FeedChannel{ID: uuid.New(), Name: name, CreatedAt: time.Now().UTC()}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO feed_channels (id, name, created_at) VALUES (?, ?, ?)`,
		c.ID, c.Name, c.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create feed channel: %w", err)
	}
	return &c, nil
}

// AddTrack appends an audio track to a playlist. Kind and ParentID are set
// from the call; a zero ID or PublishedAt is filled in.
func (s *CatalogStore) AddTrack(ctx context.Context, playlistID uuid.UUID, item model.ContentItem) (*model.ContentItem, error) {
	item.Kind = model.ContentAudioTrack
	item.ParentID = playlistID
	fillContentDefaults(&item)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO playlist_items (id, playlist_id, title, media_key, duration_seconds, sort_order, drip_delay_days, published_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, playlistID, item.Title, item.MediaKey, item.DurationSeconds, item.SortOrder, item.DripDelayDays, item.PublishedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("add playlist item: %w", err)
	}
	return &item, nil
}

func (s *CatalogStore) AddPost(ctx context.Context, channelID uuid.UUID, item model.ContentItem) (*model.ContentItem, error) {
	item.Kind = model.ContentFeedPost
	item.ParentID = channelID
	fillContentDefaults(&item)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO feed_posts (id, channel_id, title, body, drip_delay_days, published_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		item.ID, channelID, item.Title, item.Body, item.DripDelayDays, item.PublishedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("add feed post: %w", err)
	}
	return &item, nil
}

func fillContentDefaults(item *model.ContentItem) {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	if item.PublishedAt.IsZero() {
		item.PublishedAt = time.Now()
	}
	item.PublishedAt = item.PublishedAt.UTC()
}

const roundColumns = `id, program_id, name, status, start_date, first_session_date, drip_offset_days,
	audio_playlist_id, feed_channel_id, created_at, updated_at`

func (s *CatalogStore) CreateRound(ctx context.Context, r model.Round) (*model.Round, error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Status == "" {
		r.Status = model.RoundUpcoming
	}
	now := time.Now().UTC()
	r.CreatedAt, r.UpdatedAt = now, now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rounds (`+roundColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.ProgramID, r.Name, r.Status, nullTime(r.StartDate), nullTime(r.FirstSessionDate), r.DripOffsetDays,
		nullUUID(r.AudioPlaylistID), nullUUID(r.FeedChannelID), r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create round: %w", err)
	}
	return s.GetRound(ctx, r.ID)
}

func (s *CatalogStore) GetRound(ctx context.Context, id uuid.UUID) (*model.Round, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+roundColumns+` FROM rounds WHERE id = ?`, id)
	r, err := scanRound(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get round: %w", err)
	}
	return r, nil
}

// SetDripOffset freezes (positive) or forwards (negative) every unlock of the round.
func (s *CatalogStore) SetDripOffset(ctx context.Context, id uuid.UUID, offsetDays int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE rounds SET drip_offset_days = ?, updated_at = ? WHERE id = ?`,
		offsetDays, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("set drip offset: %w", err)
	}
	return nil
}

func (s *CatalogStore) SetFirstSession(ctx context.Context, id uuid.UUID, at *time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE rounds SET first_session_date = ?, updated_at = ? WHERE id = ?`,
		nullTime(at), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("set first session: %w", err)
	}
	return nil
}

func (s *CatalogStore) SetStatus(ctx context.Context, id uuid.UUID, status model.RoundStatus) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE rounds SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("set round status: %w", err)
	}
	return nil
}

// DripRounds lists rounds that are not completed and have a drip base date.
func (s *CatalogStore) DripRounds(ctx context.Context) ([]model.Round, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+roundColumns+` FROM rounds
		 WHERE status != 'completed' AND (first_session_date IS NOT NULL OR start_date IS NOT NULL)
		 ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("list drip rounds: %w", err)
	}
	defer rows.Close()
	return scanRounds(rows)
}

func (s *CatalogStore) RoundsByFeedChannel(ctx context.Context, channelID uuid.UUID) ([]model.Round, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+roundColumns+` FROM rounds WHERE feed_channel_id = ? AND status != 'completed'`,
		channelID,
	)
	if err != nil {
		return nil, fmt.Errorf("list rounds by channel: %w", err)
	}
	defer rows.Close()
	return scanRounds(rows)
}

const trackColumns = `id, playlist_id, title, media_key, duration_seconds, sort_order, drip_delay_days, published_at`

// Track returns a single playlist item.
func (s *CatalogStore) Track(ctx context.Context, id uuid.UUID) (*model.ContentItem, error) {
	it := model.ContentItem{Kind: model.ContentAudioTrack}
	err := s.db.QueryRowContext(ctx,
		`SELECT `+trackColumns+` FROM playlist_items WHERE id = ?`, id,
	).Scan(&it.ID, &it.ParentID, &it.Title, &it.MediaKey, &it.DurationSeconds, &it.SortOrder, &it.DripDelayDays, &it.PublishedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get playlist item: %w", err)
	}
	return &it, nil
}

// Playlist returns the tracks of a playlist in play order.
func (s *CatalogStore) Playlist(ctx context.Context, playlistID uuid.UUID) ([]model.ContentItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+trackColumns+` FROM playlist_items WHERE playlist_id = ? ORDER BY sort_order, published_at`,
		playlistID,
	)
	if err != nil {
		return nil, fmt.Errorf("list playlist items: %w", err)
	}
	defer rows.Close()

	var items []model.ContentItem
	for rows.Next() {
		it := model.ContentItem{Kind: model.ContentAudioTrack}
		if err := rows.Scan(&it.ID, &it.ParentID, &it.Title, &it.MediaKey, &it.DurationSeconds, &it.SortOrder, &it.DripDelayDays, &it.PublishedAt); err != nil {
			return nil, fmt.Errorf("scan playlist item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *CatalogStore) ChannelPosts(ctx context.Context, channelID uuid.UUID) ([]model.ContentItem, error) {
	return s.queryPosts(ctx,
		`SELECT id, channel_id, title, body, drip_delay_days, published_at
		 FROM feed_posts WHERE channel_id = ? ORDER BY published_at`,
		channelID,
	)
}

// PostsPublishedSince returns undelayed posts published at or after since.
// Delayed posts are announced by the drip unlock job instead.
func (s *CatalogStore) PostsPublishedSince(ctx context.Context, since time.Time) ([]model.ContentItem, error) {
	return s.queryPosts(ctx,
		`SELECT id, channel_id, title, body, drip_delay_days, published_at
		 FROM feed_posts WHERE drip_delay_days = 0 AND published_at >= ? ORDER BY published_at`,
		since.UTC(),
	)
}

func (s *CatalogStore) queryPosts(ctx context.Context, query string, args ...any) ([]model.ContentItem, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list feed posts: %w", err)
	}
	defer rows.Close()

	var items []model.ContentItem
	for rows.Next() {
		it := model.ContentItem{Kind: model.ContentFeedPost}
		if err := rows.Scan(&it.ID, &it.ParentID, &it.Title, &it.Body, &it.DripDelayDays, &it.PublishedAt); err != nil {
			return nil, fmt.Errorf("scan feed post: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// RoundContent returns every drip item bound to the round: playlist tracks
// in play order followed by feed posts.
func (s *CatalogStore) RoundContent(ctx context.Context, r model.Round) ([]model.ContentItem, error) {
	var items []model.ContentItem
	if r.AudioPlaylistID != nil {
		tracks, err := s.Playlist(ctx, *r.AudioPlaylistID)
		if err != nil {
			return nil, err
		}
		items = append(items, tracks...)
	}
	if r.FeedChannelID != nil {
		posts, err := s.ChannelPosts(ctx, *r.FeedChannelID)
		if err != nil {
			return nil, err
		}
		items = append(items, posts...)
	}
	return items, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRound(row rowScanner) (*model.Round, error) {
	var r model.Round
	var start, session sql.NullTime
	var playlist, channel uuid.NullUUID
	var status string
	if err := row.Scan(&r.ID, &r.ProgramID, &r.Name, &status, &start, &session, &r.DripOffsetDays,
		&playlist, &channel, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Status = model.RoundStatus(status)
	if start.Valid {
		r.StartDate = &start.Time
	}
	if session.Valid {
		r.FirstSessionDate = &session.Time
	}
	if playlist.Valid {
		r.AudioPlaylistID = &playlist.UUID
	}
	if channel.Valid {
		r.FeedChannelID = &channel.UUID
	}
	return &r, nil
}

func scanRounds(rows *sql.Rows) ([]model.Round, error) {
	var rounds []model.Round
	for rows.Next() {
		r, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("scan round: %w", err)
		}
		rounds = append(rounds, *r)
	}
	return rounds, rows.Err()
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil || t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}
