package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/marcusj/safetrack/internal/api/handler"
	mw "github.com/marcusj/safetrack/internal/api/middleware"
	"github.com/marcusj/safetrack/internal/config"
	"github.com/marcusj/safetrack/internal/core"
	"github.com/marcusj/safetrack/internal/ratelimit"
)

type Server struct {
	router   chi.Router
	logger   zerolog.Logger
	services *core.Services
	pool     *pgxpool.Pool
	cfg      *config.Config
	limiter  *ratelimit.Limiter
	signer   handler.UploadSigner
	enqueuer core.Enqueuer
}

func NewServer(logger zerolog.Logger, pool *pgxpool.Pool, cfg *config.Config, services *core.Services, limiter *ratelimit.Limiter, signer handler.UploadSigner, enqueuer core.Enqueuer) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		logger:   logger,
		services: services,
		pool:     pool,
		cfg:      cfg,
		limiter:  limiter,
		signer:   signer,
		enqueuer: enqueuer,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(mw.Metrics)
}

func (s *Server) setupRoutes() {
	// Prometheus metrics endpoint
	s.router.Handle("/metrics", promhttp.Handler())

	// Health check endpoints
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	auth := handler.NewAuth(s.services.User, []byte(s.cfg.JWTSecret), s.cfg.JWTExpiry)
	incident := handler.NewIncident(s.services.Incident)
	upload := handler.NewUpload(s.signer)
	analysis := handler.NewAnalysis(s.services.Analysis, s.services.Enrichment, s.services.Incident)
	transcription := handler.NewTranscription(s.services.Transcription, s.services.Incident)
	rca := handler.NewRca(s.services.RcaFlow, s.services.Report, s.services.Incident, s.enqueuer)

	s.router.Route("/api", func(r chi.Router) {
		// Unauthenticated, rate limited per client address.
		r.Group(func(r chi.Router) {
			r.With(mw.RateLimit(s.limiter, ratelimit.Registration, mw.ByIP)).
				Post("/auth/register", auth.Register)
			r.With(mw.RateLimit(s.limiter, ratelimit.LoginAttempts, mw.ByIP)).
				Post("/auth/login", auth.Login)
		})

		// Everything below requires a bearer token.
		r.Group(func(r chi.Router) {
			r.Use(mw.Auth([]byte(s.cfg.JWTSecret)))
			r.Use(mw.RateLimit(s.limiter, ratelimit.GeneralAPI, mw.ByUser))

			r.With(mw.RateLimit(s.limiter, ratelimit.FileUploads, mw.ByUser)).
				Post("/uploads/presign", upload.Presign)
			r.Get("/uploads/download", upload.Download)

			r.Route("/incidents", func(r chi.Router) {
				r.With(mw.RateLimit(s.limiter, ratelimit.IncidentCreation, mw.ByUser)).
					Post("/", incident.Create)
				r.Get("/", incident.List)
				r.Get("/{id}", incident.Get)
				r.With(mw.RequireManager).Put("/{id}/status", incident.UpdateStatus)
				r.With(mw.RequireManager).Put("/{id}/assign", incident.Assign)
				r.Get("/{id}/history", incident.History)

				r.Get("/{id}/analyses", analysis.ListByIncident)
				r.With(mw.RequireManager).Post("/{id}/analyses/reprocess", analysis.Reprocess)
				r.Get("/{id}/transcriptions", transcription.ListByIncident)

				r.Post("/{id}/rca/suggestion", rca.Generate)
				r.Get("/{id}/rca/suggestion", rca.GetSuggestion)
				r.With(mw.RequireManager).Post("/{id}/rca/review", rca.Review)
				r.With(mw.RequireManager).Post("/{id}/rca/approve", rca.Approve)
				r.With(mw.RequireManager).Post("/{id}/rca/finalize", rca.Finalize)
				r.With(mw.RequireManager).Post("/{id}/rca/retry", rca.Retry)
				r.Get("/{id}/rca/report", rca.GetReport)
			})

			r.Route("/rca", func(r chi.Router) {
				r.Use(mw.RequireManager)
				r.Get("/pending", rca.PendingReview)
				r.Get("/statistics", rca.Statistics)
				r.Get("/health", rca.Health)
			})

			r.With(mw.RequireManager).Get("/analyses/stats", analysis.Stats)
		})
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := s.pool.Ping(r.Context()); err != nil {
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
