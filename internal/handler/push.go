package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ladyboss/academy/internal/auth"
	"github.com/ladyboss/academy/internal/model"
	"github.com/ladyboss/academy/internal/push"
	"github.com/ladyboss/academy/internal/store"
)

type PushHandler struct {
	pushStore *store.PushStore
	vapidKey  string
	logger    *slog.Logger
}

// NewPushHandler serves device registration and preferences. vapidKey is
// empty when web push is not configured.
func NewPushHandler(ps *store.PushStore, vapidKey string, logger *slog.Logger) *PushHandler {
	return &PushHandler{pushStore: ps, vapidKey: vapidKey, logger: logger}
}

type subscribeRequest struct {
	Platform    string `json:"platform"`
	DeviceToken string `json:"device_token"`
	Endpoint    string `json:"endpoint"`
	P256dh      string `json:"p256dh"`
	Auth        string `json:"auth"`
	DeviceName  string `json:"device_name"`
}

// Subscribe handles POST /api/push/subscriptions
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req subscribeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var (
		sub *model.PushSubscription
		err error
	)
	switch req.Platform {
	case "ios":
		if req.DeviceToken == "" {
			writeError(w, http.StatusBadRequest, "device_token is required")
			return
		}
		sub, err = h.pushStore.CreateNativeSubscription(r.Context(), userID, req.DeviceToken, req.DeviceName)
		if err == nil {
			h.logger.Info("native device registered", "user_id", userID, "device", push.Fingerprint(req.DeviceToken))
		}
	case "web":
		if req.Endpoint == "" || req.P256dh == "" || req.Auth == "" {
			writeError(w, http.StatusBadRequest, "endpoint, p256dh, and auth are required")
			return
		}
		sub, err = h.pushStore.CreateSubscription(r.Context(), userID, req.Endpoint, req.P256dh, req.Auth, req.DeviceName)
	default:
		writeError(w, http.StatusBadRequest, `platform must be "ios" or "web"`)
		return
	}
	if err != nil {
		h.logger.Error("create push subscription", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save subscription")
		return
	}

	writeJSON(w, http.StatusCreated, sub)
}

// Unsubscribe handles DELETE /api/push/subscriptions/{id}
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := h.pushStore.DeleteSubscription(r.Context(), id, auth.UserID(r.Context())); err != nil {
		h.logger.Error("delete push subscription", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete subscription")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListSubscriptions handles GET /api/push/subscriptions
func (h *PushHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.pushStore.ListByUser(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list subscriptions")
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(subs))
}

// GetVAPIDKey handles GET /api/push/vapid-key
func (h *PushHandler) GetVAPIDKey(w http.ResponseWriter, r *http.Request) {
	if h.vapidKey == "" {
		writeError(w, http.StatusNotFound, "web push is not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"public_key": h.vapidKey})
}

type preferenceView struct {
	Key     string `json:"key"`
	Enabled bool   `json:"enabled"`
}

// GetPreferences handles GET /api/push/preferences. Every known key is
// listed; keys without a stored row are enabled.
func (h *PushHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := h.preferences(r)
	if err != nil {
		h.logger.Error("get push preferences", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get preferences")
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

type updatePreferencesRequest struct {
	Preferences []preferenceView `json:"preferences"`
}

// UpdatePreferences handles PUT /api/push/preferences
func (h *PushHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req updatePreferencesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	for _, p := range req.Preferences {
		if !model.ValidPreferenceKey(p.Key) {
			writeError(w, http.StatusBadRequest, "unknown preference "+strconv.Quote(p.Key))
			return
		}
	}

	for _, p := range req.Preferences {
		if err := h.pushStore.SetPreference(r.Context(), userID, p.Key, p.Enabled); err != nil {
			h.logger.Error("set push preference", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to update preferences")
			return
		}
	}

	prefs, err := h.preferences(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get preferences")
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (h *PushHandler) preferences(r *http.Request) ([]preferenceView, error) {
	stored, err := h.pushStore.GetPreferences(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		return nil, err
	}
	enabled := make(map[string]bool, len(stored))
	for _, p := range stored {
		enabled[p.Key] = p.Enabled
	}
	views := make([]preferenceView, 0, len(model.PreferenceKeys))
	for _, key := range model.PreferenceKeys {
		on, ok := enabled[key]
		views = append(views, preferenceView{Key: key, Enabled: on || !ok})
	}
	return views, nil
}
