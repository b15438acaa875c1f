package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/tovarim/mealrota/internal/cache"
	"github.com/tovarim/mealrota/internal/demand"
	"github.com/tovarim/mealrota/internal/handler"
	"github.com/tovarim/mealrota/internal/lock"
	"github.com/tovarim/mealrota/internal/middleware"
	"github.com/tovarim/mealrota/internal/mirror"
	"github.com/tovarim/mealrota/internal/notify"
	"github.com/tovarim/mealrota/internal/register"
	"github.com/tovarim/mealrota/internal/remote"
)

// Config collects everything the server needs beyond its stores.
type Config struct {
	CacheTTL     time.Duration
	ReminderSpec string
	Push         notify.Config
}

type Server struct {
	db        *sql.DB
	registry  *cache.Registry
	synth     *demand.Synthesizer
	coord     *register.Coordinator
	demandH   *handler.DemandHandler
	pushH     *handler.PushHandler
	scheduler *notify.Scheduler
	logger    *slog.Logger
}

func New(db *sql.DB, tables remote.Client, mirrors mirror.Store, cfg Config, logger *slog.Logger) *Server {
	registry := cache.NewRegistry(tables, mirrors, cfg.CacheTTL, logger.With("component", "cache"))
	synth := demand.NewSynthesizer(registry, tables, logger.With("component", "demand"))

	locks := lock.New(lock.NewSQLiteDocStore(db))

	// Push notifications are optional; without VAPID keys cancellations
	// and reminders are silently dropped.
	subs := notify.NewSubscriptionStore(db)
	var sink notify.Sink = notify.Discard{}
	var pushH *handler.PushHandler
	if cfg.Push.VAPIDPublicKey != "" && cfg.Push.VAPIDPrivateKey != "" {
		svc := notify.NewService(cfg.Push)
		sink = notify.NewPushSink(svc, subs, logger.With("component", "push"))
		pushH = handler.NewPushHandler(svc, subs)
	}

	coord := register.NewCoordinator(locks, synth, registry, tables, sink, logger.With("component", "register"))

	return &Server{
		db:        db,
		registry:  registry,
		synth:     synth,
		coord:     coord,
		demandH:   handler.NewDemandHandler(synth, coord),
		pushH:     pushH,
		scheduler: notify.NewScheduler(synth, sink, cfg.ReminderSpec, logger.With("component", "reminder")),
		logger:    logger,
	}
}

// Scheduler returns the reminder scheduler for lifecycle management.
func (s *Server) Scheduler() *notify.Scheduler {
	return s.scheduler
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)

	mux.HandleFunc("GET /api/demands", s.demandH.List)
	mux.HandleFunc("POST /api/demands/{id}/book", s.demandH.Book)
	mux.HandleFunc("POST /api/demands/{id}/cancel", s.demandH.Cancel)

	if s.pushH != nil {
		mux.HandleFunc("GET /api/push/vapid-key", s.pushH.VAPIDKey)
		mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
		mux.HandleFunc("DELETE /api/push/subscribe", s.pushH.Unsubscribe)
	}

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "degraded"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
