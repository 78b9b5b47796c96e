package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ContentKind tags a ContentItem as an audio track or a feed post.
type ContentKind string

const (
	ContentAudioTrack ContentKind = "audio_track"
	ContentFeedPost   ContentKind = "feed_post"
)

func (k ContentKind) Valid() bool {
	switch k {
	case ContentAudioTrack, ContentFeedPost:
		return true
	}
	return false
}

func ParseContentKind(s string) (ContentKind, error) {
	k := ContentKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown content kind %q", s)
	}
	return k, nil
}

// ContentItem is a unit of drip content. ParentID is the playlist id for
// audio tracks and the channel id for feed posts.
type ContentItem struct {
	ID              uuid.UUID   `json:"id"`
	Kind            ContentKind `json:"kind"`
	ParentID        uuid.UUID   `json:"parent_id"`
	Title           string      `json:"title"`
	Body            string      `json:"body,omitempty"`
	MediaKey        string      `json:"media_key,omitempty"`
	DurationSeconds float64     `json:"duration_seconds,omitempty"`
	SortOrder       int         `json:"sort_order"`
	DripDelayDays   int         `json:"drip_delay_days"`
	PublishedAt     time.Time   `json:"published_at"`
}

type Program struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

type Playlist struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

type FeedChannel struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
