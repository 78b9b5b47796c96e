package handler

import (
	"log/slog"
	"net/http"

	"github.com/ladyboss/academy/internal/auth"
	"github.com/ladyboss/academy/internal/nudge"
)

type NudgeHandler struct {
	planner *nudge.Planner
	logger  *slog.Logger
}

func NewNudgeHandler(p *nudge.Planner, logger *slog.Logger) *NudgeHandler {
	return &NudgeHandler{planner: p, logger: logger}
}

// Today handles GET /api/nudges/today
func (h *NudgeHandler) Today(w http.ResponseWriter, r *http.Request) {
	plan, err := h.planner.ScheduleDailyNudges(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("plan nudges", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to plan nudges")
		return
	}
	writeJSON(w, http.StatusOK, plan)
}
