package api

import (
	"FrameForge/internal/api/handlers"
	"FrameForge/internal/config"
	"FrameForge/internal/pipeline"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Server struct {
	router     *chi.Mux
	processor  handlers.Processor
	batches    handlers.BatchReader
	history    handlers.HistoryReader
	cfg        *config.Config
	logger     *zap.Logger
	httpServer *http.Server
}

// NewServer wires the HTTP surface. processor is either the in-process
// Extractor or the Temporal-backed workflow; history may be nil when no
// database is configured.
func NewServer(processor handlers.Processor, batches handlers.BatchReader, history handlers.HistoryReader, cfg *config.Config, logger *zap.Logger) *Server {
	s := &Server{
		processor: processor,
		batches:   batches,
		history:   history,
		cfg:       cfg,
		logger:    logger,
	}

	s.router = chi.NewRouter()
	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)

	// Timeouts are applied per route; /process runs the whole extraction
	// synchronously.
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
}

func (s *Server) setupRoutes() {
	processHandler := handlers.NewProcessHandler(s.processor, s.defaultParams(), s.cfg.Server.MaxUploadBytes, s.logger)
	batchesHandler := handlers.NewBatchesHandler(s.batches, s.logger)

	s.router.With(middleware.Timeout(10*time.Second)).Get("/health", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Post("/process", processHandler.Handle)

	s.router.Route("/batches", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Get("/", batchesHandler.List)
		r.Get("/{id}", batchesHandler.Get)
		r.Get("/{id}/images", batchesHandler.Images)
		r.With(middleware.Timeout(5*time.Minute)).Get("/{id}/images/{name}", batchesHandler.Image)
	})

	if s.history != nil {
		historyHandler := handlers.NewHistoryHandler(s.history, s.logger)
		s.router.With(middleware.Timeout(30*time.Second)).Get("/videos", historyHandler.List)
	}
}

func (s *Server) defaultParams() pipeline.Params {
	return pipeline.Params{
		FrameRate:           s.cfg.Pipeline.FrameRate,
		ConfidenceThreshold: s.cfg.Pipeline.ConfidenceThreshold,
		Methods:             s.cfg.Methods(),
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "healthy",
		"service": "frameforge",
		"version": "1.0.0",
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       10 * time.Minute,
		WriteTimeout:      30 * time.Minute,
		IdleTimeout:       2 * time.Minute,
		MaxHeaderBytes:    1 << 20,
		ReadHeaderTimeout: 30 * time.Second,
	}

	s.logger.Info("Starting HTTP server", zap.String("addr", addr))
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
