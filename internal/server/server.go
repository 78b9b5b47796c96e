package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/ladyboss/academy/internal/config"
	"github.com/ladyboss/academy/internal/dispatch"
	"github.com/ladyboss/academy/internal/handler"
	"github.com/ladyboss/academy/internal/middleware"
	"github.com/ladyboss/academy/internal/nudge"
	"github.com/ladyboss/academy/internal/schedule"
	"github.com/ladyboss/academy/internal/store"
	ws "github.com/ladyboss/academy/internal/websocket"
)

type Server struct {
	db             *sql.DB
	hub            *ws.Hub
	dispatcher     *dispatch.Dispatcher
	scheduler      *dispatch.Scheduler
	cooldown       *middleware.Cooldown
	pushH          *handler.PushHandler
	profileH       *handler.ProfileHandler
	progressH      *handler.ProgressHandler
	roundH         *handler.RoundHandler
	nudgeH         *handler.NudgeHandler
	dispatchH      *handler.DispatchHandler
	jwtSecret      []byte
	originPatterns []string
	logger         *slog.Logger
}

// New wires stores, the dispatcher and the HTTP handlers. sender delivers
// pushes; urls signs media links; vapidKey is empty without web push.
func New(db *sql.DB, cfg *config.Config, sender dispatch.Sender, urls handler.StreamURLs, vapidKey string, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))
	zones := schedule.NewZones(cfg.DefaultTimezone)

	catalogStore := store.NewCatalogStore(db)
	enrollmentStore := store.NewEnrollmentStore(db)
	pushStore := store.NewPushStore(db)
	ledgerStore := store.NewLedgerStore(db)
	profileStore := store.NewProfileStore(db)
	progressStore := store.NewProgressStore(db)
	taskStore := store.NewTaskStore(db)
	runStore := store.NewRunStore(db)

	catalog := dispatch.Catalog{
		Content:     catalogStore,
		Enrollments: enrollmentStore,
		Profiles:    profileStore,
		Progress:    progressStore,
	}
	dispatcher := dispatch.NewDispatcher(sender, dispatch.Stores{
		Push:     pushStore,
		Ledger:   ledgerStore,
		Profiles: profileStore,
		Runs:     runStore,
	}, zones, dispatch.Options{
		SendTimeout: cfg.SendTimeout,
		Concurrency: cfg.SendConcurrency,
		OnRun:       hub.BroadcastRun,
	}, logger.With("component", "dispatch"), dispatch.Jobs(catalog, zones)...)

	scheduler := dispatch.NewScheduler(dispatcher, runStore, cfg.DispatchInterval, cfg.RunRetention,
		logger.With("component", "scheduler"))

	planner := nudge.NewPlanner(taskStore, profileStore, zones)

	return &Server{
		db:             db,
		hub:            hub,
		dispatcher:     dispatcher,
		scheduler:      scheduler,
		cooldown:       middleware.NewCooldown(cfg.TriggerCooldown),
		pushH:          handler.NewPushHandler(pushStore, vapidKey, logger.With("component", "push_handler")),
		profileH:       handler.NewProfileHandler(profileStore, logger.With("component", "profile")),
		progressH:      handler.NewProgressHandler(progressStore, catalogStore, logger.With("component", "progress")),
		roundH:         handler.NewRoundHandler(catalogStore, enrollmentStore, zones, urls, logger.With("component", "round")),
		nudgeH:         handler.NewNudgeHandler(planner, logger.With("component", "nudge")),
		dispatchH:      handler.NewDispatchHandler(dispatcher, runStore, logger.With("component", "dispatch_handler")),
		jwtSecret:      []byte(cfg.JWTSecret),
		originPatterns: originPatterns(cfg.BaseURL),
		logger:         logger,
	}
}

// Dispatcher runs one category on demand, for the one-shot command.
func (s *Server) Dispatcher() *dispatch.Dispatcher {
	return s.dispatcher
}

// Scheduler returns the periodic dispatch loop; main starts and stops it.
func (s *Server) Scheduler() *dispatch.Scheduler {
	return s.scheduler
}

// Cooldown returns the trigger cooldown for cleanup tasks.
func (s *Server) Cooldown() *middleware.Cooldown {
	return s.cooldown
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()
	outerMux.HandleFunc("GET /health", s.healthHandler)

	apiMux := http.NewServeMux()
	s.registerUserRoutes(apiMux)
	s.registerAdminRoutes(apiMux)
	outerMux.Handle("/api/", middleware.RequireAuth(s.jwtSecret)(apiMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		status, code = "database unavailable", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

func (s *Server) registerUserRoutes(mux *http.ServeMux) {
	user := func(h http.HandlerFunc) http.Handler { return middleware.RequireUser(h) }

	mux.Handle("POST /api/push/subscriptions", user(s.pushH.Subscribe))
	mux.Handle("GET /api/push/subscriptions", user(s.pushH.ListSubscriptions))
	mux.Handle("DELETE /api/push/subscriptions/{id}", user(s.pushH.Unsubscribe))
	mux.Handle("GET /api/push/vapid-key", user(s.pushH.GetVAPIDKey))
	mux.Handle("GET /api/push/preferences", user(s.pushH.GetPreferences))
	mux.Handle("PUT /api/push/preferences", user(s.pushH.UpdatePreferences))

	mux.Handle("GET /api/profile", user(s.profileH.Get))
	mux.Handle("PUT /api/profile/timezone", user(s.profileH.SetTimezone))
	mux.Handle("PUT /api/profile/reminder", user(s.profileH.SetReminder))

	mux.Handle("GET /api/progress/{contentId}", user(s.progressH.Get))
	mux.Handle("PUT /api/progress/{contentId}", user(s.progressH.Put))

	mux.Handle("GET /api/rounds/{id}/unlocks", user(s.roundH.Unlocks))
	mux.Handle("GET /api/rounds/{id}/next", user(s.roundH.Next))
	mux.Handle("GET /api/rounds/{id}/tracks/{trackId}/stream", user(s.roundH.Stream))

	mux.Handle("GET /api/nudges/today", user(s.nudgeH.Today))
}

func (s *Server) registerAdminRoutes(mux *http.ServeMux) {
	byCategory := func(r *http.Request) string { return r.PathValue("category") }
	trigger := middleware.Throttle(s.cooldown, byCategory)(http.HandlerFunc(s.dispatchH.Trigger))

	mux.Handle("POST /api/admin/dispatch/{category}", middleware.RequireAdmin(trigger))
	mux.Handle("GET /api/admin/runs", middleware.RequireAdmin(http.HandlerFunc(s.dispatchH.Runs)))
	mux.Handle("GET /api/admin/runs/ws", middleware.RequireAdmin(
		ws.HandleWebSocket(s.hub, s.originPatterns, s.logger.With("component", "websocket"))))
}

// originPatterns allows websocket upgrades from the public site's host.
func originPatterns(baseURL string) []string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return nil
	}
	return []string{u.Host}
}
