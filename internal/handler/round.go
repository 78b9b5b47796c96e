package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/ladyboss/academy/internal/auth"
	"github.com/ladyboss/academy/internal/drip"
	"github.com/ladyboss/academy/internal/media"
	"github.com/ladyboss/academy/internal/model"
	"github.com/ladyboss/academy/internal/schedule"
	"github.com/ladyboss/academy/internal/store"
)

// StreamURLs resolves playable media URLs; media.S3URLs and
// media.StaticURLs satisfy it.
type StreamURLs interface {
	StreamURL(ctx context.Context, track model.ContentItem) (string, error)
}

// RoundHandler answers drip questions for a member's round using the same
// rules as the dispatch jobs.
type RoundHandler struct {
	catalog     *store.CatalogStore
	enrollments *store.EnrollmentStore
	zones       *schedule.Zones
	urls        StreamURLs
	logger      *slog.Logger
	now         func() time.Time
}

func NewRoundHandler(cs *store.CatalogStore, es *store.EnrollmentStore, zones *schedule.Zones, urls StreamURLs, logger *slog.Logger) *RoundHandler {
	return &RoundHandler{catalog: cs, enrollments: es, zones: zones, urls: urls, logger: logger, now: time.Now}
}

type lockedItem struct {
	model.ContentItem
	UnlockDay int `json:"unlock_day"`
}

type unlocksResponse struct {
	RoundID uuid.UUID           `json:"round_id"`
	Day     int                 `json:"day"`
	New     []model.ContentItem `json:"new"`
	Earlier []model.ContentItem `json:"earlier"`
	Locked  []lockedItem        `json:"locked"`
}

// Unlocks handles GET /api/rounds/{id}/unlocks
func (h *RoundHandler) Unlocks(w http.ResponseWriter, r *http.Request) {
	round, day, ok := h.round(w, r)
	if !ok {
		return
	}
	items, err := h.catalog.RoundContent(r.Context(), *round)
	if err != nil {
		h.logger.Error("round content", "round_id", round.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load content")
		return
	}

	p := drip.Evaluate(items, day)
	resp := unlocksResponse{
		RoundID: round.ID,
		Day:     day,
		New:     orEmpty(p.New),
		Earlier: orEmpty(p.Earlier),
		Locked:  make([]lockedItem, 0, len(p.Locked)),
	}
	for _, item := range p.Locked {
		resp.Locked = append(resp.Locked, lockedItem{ContentItem: item, UnlockDay: drip.UnlockDay(item)})
	}
	writeJSON(w, http.StatusOK, resp)
}

// Next handles GET /api/rounds/{id}/next?after=<contentId>. It answers 204
// when no later track is unlocked.
func (h *RoundHandler) Next(w http.ResponseWriter, r *http.Request) {
	after, err := uuid.Parse(r.URL.Query().Get("after"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "after must be a content id")
		return
	}
	round, day, ok := h.round(w, r)
	if !ok {
		return
	}
	tracks, ok := h.playlist(w, r, round)
	if !ok {
		return
	}

	current := slices.IndexFunc(tracks, func(t model.ContentItem) bool { return t.ID == after })
	if current < 0 {
		writeError(w, http.StatusNotFound, "track not in this round")
		return
	}
	next, found := drip.NextUnlocked(tracks, current, day)
	if !found {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, tracks[next])
}

// Stream handles GET /api/rounds/{id}/tracks/{trackId}/stream and returns a
// short-lived media URL for an unlocked track.
func (h *RoundHandler) Stream(w http.ResponseWriter, r *http.Request) {
	trackID, err := parseUUIDParam(r, "trackId")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid track id")
		return
	}
	round, day, ok := h.round(w, r)
	if !ok {
		return
	}
	tracks, ok := h.playlist(w, r, round)
	if !ok {
		return
	}

	i := slices.IndexFunc(tracks, func(t model.ContentItem) bool { return t.ID == trackID })
	if i < 0 {
		writeError(w, http.StatusNotFound, "track not in this round")
		return
	}
	if !drip.IsUnlocked(tracks[i], day) {
		writeJSON(w, http.StatusForbidden, map[string]any{
			"error":      "track is locked",
			"unlock_day": drip.UnlockDay(tracks[i]),
		})
		return
	}

	url, err := h.urls.StreamURL(r.Context(), tracks[i])
	if errors.Is(err, media.ErrNoMedia) {
		writeError(w, http.StatusNotFound, "track has no media")
		return
	}
	if err != nil {
		h.logger.Error("stream url", "track_id", trackID, "error", err)
		writeError(w, http.StatusBadGateway, "failed to sign media url")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// round loads the path round and its effective day, checking that the
// caller is enrolled. Admins may read any round.
func (h *RoundHandler) round(w http.ResponseWriter, r *http.Request) (*model.Round, int, bool) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid round id")
		return nil, 0, false
	}

	if !auth.IsAdmin(r.Context()) {
		rounds, err := h.enrollments.ActiveRounds(r.Context(), auth.UserID(r.Context()))
		if err != nil {
			h.logger.Error("list active rounds", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to load round")
			return nil, 0, false
		}
		if !slices.Contains(rounds, id) {
			writeError(w, http.StatusNotFound, "round not found")
			return nil, 0, false
		}
	}

	round, err := h.catalog.GetRound(r.Context(), id)
	if err != nil {
		h.logger.Error("get round", "round_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load round")
		return nil, 0, false
	}
	if round == nil {
		writeError(w, http.StatusNotFound, "round not found")
		return nil, 0, false
	}

	day, ok := drip.RoundDay(*round, h.now().In(h.zones.Fallback()))
	if !ok {
		day = 0
	}
	return round, day, true
}

func (h *RoundHandler) playlist(w http.ResponseWriter, r *http.Request, round *model.Round) ([]model.ContentItem, bool) {
	if round.AudioPlaylistID == nil {
		writeError(w, http.StatusNotFound, "round has no playlist")
		return nil, false
	}
	tracks, err := h.catalog.Playlist(r.Context(), *round.AudioPlaylistID)
	if err != nil {
		h.logger.Error("load playlist", "round_id", round.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load playlist")
		return nil, false
	}
	return tracks, true
}
