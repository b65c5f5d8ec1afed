package apiserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/AgriAutomate/rocky-web-studio-sub002/internal/auth"
	"github.com/AgriAutomate/rocky-web-studio-sub002/internal/client"
	"github.com/AgriAutomate/rocky-web-studio-sub002/internal/config"
	handlers "github.com/AgriAutomate/rocky-web-studio-sub002/internal/handlers/v1alpha1"
	"github.com/AgriAutomate/rocky-web-studio-sub002/internal/service"
	"github.com/AgriAutomate/rocky-web-studio-sub002/internal/store"
	"github.com/AgriAutomate/rocky-web-studio-sub002/pkg/metrics"
	"github.com/AgriAutomate/rocky-web-studio-sub002/pkg/middleware"
	"go.uber.org/zap"
)

const (
	gracefulShutdownTimeout = 5 * time.Second
)

type Server struct {
	cfg      *config.Config
	store    store.Store
	listener net.Listener
}

// New returns a new instance of the generation API server.
func New(
	cfg *config.Config,
	store store.Store,
	listener net.Listener,
) *Server {
	return &Server{
		cfg:      cfg,
		store:    store,
		listener: listener,
	}
}

func (s *Server) Run(ctx context.Context) error {
	zap.S().Named("api_server").Info("Initializing API server")

	authenticator, err := auth.NewAuthenticator(s.cfg.Service.Auth)
	if err != nil {
		return fmt.Errorf("failed to create authenticator: %w", err)
	}

	router := chi.NewRouter()

	metricMiddleware := metrics.NewMiddleware("api_server")
	metricMiddleware.MustRegisterDefault()
	metrics.RegisterDefaultMetrics()

	router.Use(
		metricMiddleware.Handler,
		cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "HEAD", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: false,
			MaxAge:           300,
		}),
		middleware.RequestID,
		middleware.Logger(),
		chiMiddleware.Recoverer,
	)

	worker := client.NewWorker(
		s.cfg.Worker.URL,
		s.cfg.Worker.WebhookSecret,
		time.Duration(s.cfg.Worker.RequestTimeout)*time.Second,
	)
	jobService := service.NewJobService(s.store, worker, s.cfg.Service.BaseUrl, s.cfg.Worker.EstimatedWaitSeconds)

	h := handlers.NewServiceHandler(jobService, s.store.Job())
	webhookHandler := handlers.NewWebhookHandler(jobService, s.cfg.Worker.WebhookSecret)

	router.Group(func(r chi.Router) {
		r.Use(authenticator.Authenticator)
		r.Post("/api/v1/generations", h.CreateGeneration)
		r.Get("/api/v1/generations/{id}", h.GetGeneration)
		r.Get("/api/v1/generations/{id}/wait", h.WaitGeneration)
	})

	// worker-facing, shared secret only
	router.Post("/api/v1/webhooks/generation", webhookHandler.ReceiveCompletion)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := http.Server{Addr: s.cfg.Service.Address, Handler: router}

	go func() {
		<-ctx.Done()
		zap.S().Named("api_server").Infof("Shutdown signal received: %s", ctx.Err())
		ctxTimeout, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()

		srv.SetKeepAlivesEnabled(false)
		_ = srv.Shutdown(ctxTimeout)
		zap.S().Named("api_server").Info("api server terminated")
	}()

	zap.S().Named("api_server").Infof("Listening on %s...", s.listener.Addr().String())
	if err := srv.Serve(s.listener); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}

	return nil
}
