package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/docwise-ai/docwise/internal/api/handlers"
	appMiddleware "github.com/docwise-ai/docwise/internal/api/middlewares"
	"github.com/docwise-ai/docwise/internal/config"
	"github.com/docwise-ai/docwise/internal/core"
	"github.com/docwise-ai/docwise/internal/core/retrieval"
	"github.com/docwise-ai/docwise/internal/services"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	log        *zap.Logger
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, db core.DbClient, docs *services.DocumentService, engine *retrieval.Engine, log *zap.Logger) *Server {
	authHandler := handlers.NewAuthHandler(db, cfg.JWTSecret)
	fileHandler := handlers.NewFileHandler(docs, cfg.MaxUploadMB, log)
	searchHandler := handlers.NewSearchHandler(docs, engine, log)
	chatHandler := handlers.NewChatHandler(docs, engine, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(api chi.Router) {
		// public endpoints
		api.Post("/signup", authHandler.Signup)
		api.Post("/login", authHandler.Login)

		// protected endpoints. No blanket timeout: the chat stream is
		// bounded by provider timeouts, not a router deadline.
		api.Group(func(protected chi.Router) {
			protected.Use(appMiddleware.JWTMiddleware(cfg.JWTSecret))

			protected.Post("/files/upload", fileHandler.Upload)
			protected.Get("/files", fileHandler.List)
			protected.Get("/files/upload-count", fileHandler.UploadCount)
			protected.Get("/files/{id}", fileHandler.Get)
			protected.Delete("/files/{id}", fileHandler.Delete)
			protected.Post("/files/{id}/reingest", fileHandler.Reingest)

			protected.Post("/search", searchHandler.Search)
			protected.Post("/chat/query", chatHandler.Query)
		})
	})

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Server{httpServer: httpSrv, log: log}
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.log.Info("HTTP server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
