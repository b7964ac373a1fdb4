package server

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chhz0/superv/core"
	"github.com/chhz0/superv/middleware"
	"github.com/chhz0/superv/transport"
)

type Config struct {
	HTTPAddr        string
	ShutdownTimeout time.Duration
}

// Server is the JSON control plane over the orchestrator. It owns no
// core state.
type Server struct {
	orch       *core.Orchestrator
	pubsub     *transport.RedisPubSub // nil unless event broadcast is on
	httpServer *http.Server
	logger     *log.Logger
}

func New(cfg Config, orch *core.Orchestrator, pubsub *transport.RedisPubSub) *Server {
	s := &Server{
		orch:   orch,
		pubsub: pubsub,
		logger: log.New(log.Writer(), "[http] ", log.LstdFlags),
	}

	wrap := middleware.Chain(
		middleware.Recover(s.logger),
		middleware.Logger(s.logger),
		middleware.CORS(),
	)
	s.httpServer = &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: wrap(s.routes()),
	}

	return s
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /workers/register", s.handleRegister)
	mux.HandleFunc("POST /workers/heartbeat", s.handleHeartbeat)
	mux.HandleFunc("DELETE /workers/{id}", s.handleUnregister)
	mux.HandleFunc("GET /workers", s.handleListWorkers)

	mux.HandleFunc("POST /tasks", s.handleSubmitTask)
	mux.HandleFunc("GET /tasks/{id}", s.handleGetTask)
	mux.HandleFunc("POST /tasks/{id}/result", s.handleTaskResult)

	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	if s.pubsub != nil {
		mux.HandleFunc("GET /events", s.handleEvents)
	}

	return mux
}

// Start runs the orchestrator and the HTTP listener until SIGINT or
// SIGTERM, then shuts both down. A listener failure is returned to
// the caller.
func (s *Server) Start() error {
	s.orch.Start()
	defer s.orch.Stop()

	serverErr := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	s.logger.Printf("listening on %s", s.httpServer.Addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return err
	case sig := <-quit:
		s.logger.Printf("received %s, shutting down", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

// Handler exposes the wrapped mux, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
