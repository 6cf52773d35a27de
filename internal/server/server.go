package server

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/dukerupert/allowance/internal/handler"
	"github.com/dukerupert/allowance/internal/ledger"
	"github.com/dukerupert/allowance/internal/live"
	"github.com/dukerupert/allowance/internal/middleware"
	"github.com/dukerupert/allowance/internal/report"
)

const (
	adminRateLimit  = 30
	adminRateWindow = time.Minute
)

type Config struct {
	// PassphraseHash is the bcrypt hash admin requests are checked against.
	PassphraseHash []byte
	CORSOrigins    []string
	// TrustProxy keys the admin rate limit on X-Real-IP or X-Forwarded-For
	// instead of the connection address.
	TrustProxy bool
	// Live, when set, serves the event feed at /api/events.
	Live *live.Hub
}

type Server struct {
	allowanceH  *handler.AllowanceHandler
	pointsH     *handler.PointsHandler
	catalogH    *handler.CatalogHandler
	backupH     *handler.BackupHandler
	healthH     *handler.HealthHandler
	rateLimiter *middleware.RateLimiter
	cfg         Config
	logger      *slog.Logger
}

func New(db *sql.DB, engine *ledger.Engine, views *report.Views, snaps handler.Snapshotter, cfg Config, logger *slog.Logger) *Server {
	httpLogger := logger.With("component", "http")
	return &Server{
		allowanceH:  handler.NewAllowanceHandler(engine, views, snaps, httpLogger),
		pointsH:     handler.NewPointsHandler(engine, views, snaps, httpLogger),
		catalogH:    handler.NewCatalogHandler(engine, httpLogger),
		backupH:     handler.NewBackupHandler(snaps, httpLogger),
		healthH:     handler.NewHealthHandler(db, httpLogger),
		rateLimiter: middleware.NewRateLimiter(adminRateLimit, adminRateWindow),
		cfg:         cfg,
		logger:      httpLogger,
	}
}

func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.RequestLogger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecurityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", middleware.PassphraseHeader},
		MaxAge:         300,
	}))

	r.Get("/health", s.healthH.Health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/balance", s.allowanceH.Balance)
		r.Post("/deposit", s.allowanceH.Deposit)
		r.Post("/withdraw", s.allowanceH.Withdraw)
		r.Get("/transactions", s.allowanceH.Transactions)
		r.Get("/deposits", s.allowanceH.Deposits)
		r.Get("/monthly-flow", s.allowanceH.MonthlyFlow)

		r.Get("/tasks", s.catalogH.ListTasks)
		r.Get("/rewards", s.catalogH.ListRewards)

		r.Get("/points", s.pointsH.Balance)
		r.Get("/completions", s.pointsH.Completions)
		r.Post("/completions", s.pointsH.Complete)
		r.Delete("/completions", s.pointsH.Undo)
		r.Get("/daily-points", s.pointsH.DailyPoints)
		r.Get("/redemptions", s.pointsH.Redemptions)
		r.Post("/redemptions", s.pointsH.Redeem)

		if s.cfg.Live != nil {
			r.Get("/events", s.cfg.Live.Handler(s.cfg.CORSOrigins))
		}

		r.Route("/admin", s.registerAdminRoutes)
	})

	return r
}

func (s *Server) registerAdminRoutes(r chi.Router) {
	r.Use(middleware.RateLimit(s.rateLimiter, middleware.ClientIP(s.cfg.TrustProxy)))
	r.Use(middleware.RequirePassphrase(s.cfg.PassphraseHash, s.logger))

	r.Put("/balance", s.allowanceH.UpdateBalance)
	r.Get("/overrides", s.allowanceH.Overrides)
	r.Post("/reset", s.allowanceH.Reset)
	r.Post("/points/reset", s.pointsH.Reset)

	r.Post("/tasks", s.catalogH.CreateTask)
	r.Put("/tasks/{id}", s.catalogH.UpdateTask)
	r.Delete("/tasks/{id}", s.catalogH.DeleteTask)

	r.Post("/rewards", s.catalogH.CreateReward)
	r.Put("/rewards/{id}", s.catalogH.UpdateReward)
	r.Delete("/rewards/{id}", s.catalogH.DeleteReward)

	r.Post("/backups", s.backupH.Create)
	r.Get("/backups", s.backupH.List)
	r.Get("/backups/{id}", s.backupH.Download)
}
