package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ladyboss/academy/internal/dispatch"
	"github.com/ladyboss/academy/internal/model"
	"github.com/ladyboss/academy/internal/push"
	"github.com/ladyboss/academy/internal/store"
)

type DispatchHandler struct {
	dispatcher *dispatch.Dispatcher
	runs       *store.RunStore
	logger     *slog.Logger
}

func NewDispatchHandler(d *dispatch.Dispatcher, runs *store.RunStore, logger *slog.Logger) *DispatchHandler {
	return &DispatchHandler{dispatcher: d, runs: runs, logger: logger}
}

// Trigger handles POST /api/admin/dispatch/{category}. The run finishes even
// if the caller disconnects.
func (h *DispatchHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	category, err := model.ParseCategory(r.PathValue("category"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	run, err := h.dispatcher.Run(context.WithoutCancel(r.Context()), category)
	switch {
	case errors.Is(err, push.ErrNotConfigured):
		writeJSON(w, http.StatusServiceUnavailable, run)
	case errors.Is(err, dispatch.ErrUnknownCategory):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		h.logger.Error("manual dispatch", "category", category, "error", err)
		writeJSON(w, http.StatusInternalServerError, run)
	default:
		writeJSON(w, http.StatusOK, run)
	}
}

// Runs handles GET /api/admin/runs?category=&limit=
func (h *DispatchHandler) Runs(w http.ResponseWriter, r *http.Request) {
	var category model.Category
	if s := r.URL.Query().Get("category"); s != "" {
		c, err := model.ParseCategory(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		category = c
	}
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := h.runs.ListRecent(r.Context(), category, limit)
	if err != nil {
		h.logger.Error("list runs", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(runs))
}
