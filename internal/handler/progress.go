package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/ladyboss/academy/internal/auth"
	"github.com/ladyboss/academy/internal/model"
	"github.com/ladyboss/academy/internal/store"
)

type ProgressHandler struct {
	progress *store.ProgressStore
	catalog  *store.CatalogStore
	logger   *slog.Logger
}

func NewProgressHandler(ps *store.ProgressStore, cs *store.CatalogStore, logger *slog.Logger) *ProgressHandler {
	return &ProgressHandler{progress: ps, catalog: cs, logger: logger}
}

// Get handles GET /api/progress/{contentId}
func (h *ProgressHandler) Get(w http.ResponseWriter, r *http.Request) {
	contentID, err := parseUUIDParam(r, "contentId")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid content id")
		return
	}
	userID := auth.UserID(r.Context())

	p, err := h.progress.Get(r.Context(), userID, contentID)
	if err != nil {
		h.logger.Error("get progress", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get progress")
		return
	}
	if p == nil {
		p = &model.Progress{UserID: userID, ContentID: contentID}
	}
	writeJSON(w, http.StatusOK, p)
}

type saveProgressRequest struct {
	PositionSeconds float64 `json:"position_seconds"`
	Completed       bool    `json:"completed"`
}

// Put handles PUT /api/progress/{contentId}
func (h *ProgressHandler) Put(w http.ResponseWriter, r *http.Request) {
	contentID, err := parseUUIDParam(r, "contentId")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid content id")
		return
	}
	var req saveProgressRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.PositionSeconds < 0 {
		writeError(w, http.StatusBadRequest, "position_seconds must not be negative")
		return
	}

	track, err := h.catalog.Track(r.Context(), contentID)
	if err != nil {
		h.logger.Error("get track", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save progress")
		return
	}
	if track == nil {
		writeError(w, http.StatusNotFound, "track not found")
		return
	}

	p := model.Progress{
		UserID:          auth.UserID(r.Context()),
		ContentID:       contentID,
		PositionSeconds: req.PositionSeconds,
		Completed:       req.Completed,
		UpdatedAt:       time.Now().UTC(),
	}
	if err := h.progress.Save(r.Context(), p); err != nil {
		h.logger.Error("save progress", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save progress")
		return
	}

	saved, err := h.progress.Get(r.Context(), p.UserID, contentID)
	if err != nil || saved == nil {
		writeJSON(w, http.StatusOK, p)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

