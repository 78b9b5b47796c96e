package push

import (
	"fmt"

	"github.com/ladyboss/academy/internal/model"
)

// Payload is the JSON document delivered to clients. Type and URL let the
// client route the deep link.
type Payload struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Type  model.Category    `json:"type"`
	URL   string            `json:"url"`
	Data  map[string]string `json:"data,omitempty"`
}

// NewPayload builds a routed payload. item is required for content categories
// and ignored otherwise.
func NewPayload(c model.Category, title, body string, item *model.ContentItem) (Payload, error) {
	url, err := Route(c, item)
	if err != nil {
		return Payload{}, err
	}
	p := Payload{Title: title, Body: body, Type: c, URL: url}
	if item != nil {
		p.Data = map[string]string{
			"content_id":   item.ID.String(),
			"content_kind": string(item.Kind),
		}
	}
	return p, nil
}

// Route returns the in-app deep link for a notification.
func Route(c model.Category, item *model.ContentItem) (string, error) {
	switch c {
	case model.CategoryDripUnlock, model.CategoryDripFollowup, model.CategoryFeedPost:
		if item == nil {
			return "", fmt.Errorf("route %s: content item required", c)
		}
		return contentRoute(item)
	case model.CategoryJournalReminder:
		return "/journal", nil
	case model.CategoryWeeklySummary:
		return "/summary/weekly", nil
	}
	return "", fmt.Errorf("route: unknown category %q", c)
}

func contentRoute(item *model.ContentItem) (string, error) {
	switch item.Kind {
	case model.ContentAudioTrack:
		return fmt.Sprintf("/audio/%s?track=%s", item.ParentID, item.ID), nil
	case model.ContentFeedPost:
		return fmt.Sprintf("/feed/%s?post=%s", item.ParentID, item.ID), nil
	}
	return "", fmt.Errorf("route: unknown content kind %q", item.Kind)
}
