package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/ladyboss/academy/internal/auth"
	"github.com/ladyboss/academy/internal/model"
	"github.com/ladyboss/academy/internal/store"
)

type ProfileHandler struct {
	profiles *store.ProfileStore
	logger   *slog.Logger
}

func NewProfileHandler(ps *store.ProfileStore, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: ps, logger: logger}
}

// Get handles GET /api/profile
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	p, err := h.profiles.Get(r.Context(), userID)
	if err != nil {
		h.logger.Error("get profile", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get profile")
		return
	}
	if p == nil {
		p = &model.Profile{UserID: userID}
	}
	writeJSON(w, http.StatusOK, p)
}

// SetTimezone handles PUT /api/profile/timezone
func (h *ProfileHandler) SetTimezone(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Timezone string `json:"timezone"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Timezone == "" {
		writeError(w, http.StatusBadRequest, "timezone is required")
		return
	}
	if _, err := time.LoadLocation(req.Timezone); err != nil {
		writeError(w, http.StatusBadRequest, "unknown timezone")
		return
	}

	if err := h.profiles.SetTimezone(r.Context(), auth.UserID(r.Context()), req.Timezone); err != nil {
		h.logger.Error("set timezone", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update timezone")
		return
	}
	h.Get(w, r)
}

// SetReminder handles PUT /api/profile/reminder. An empty time clears it.
func (h *ProfileHandler) SetReminder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ReminderTime string `json:"reminder_time"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ReminderTime != "" {
		if _, _, err := model.ParseClock(req.ReminderTime); err != nil {
			writeError(w, http.StatusBadRequest, "reminder_time must be HH:MM")
			return
		}
	}

	if err := h.profiles.SetReminderTime(r.Context(), auth.UserID(r.Context()), req.ReminderTime); err != nil {
		h.logger.Error("set reminder time", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update reminder")
		return
	}
	h.Get(w, r)
}
