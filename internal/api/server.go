// Package api exposes DiskForge over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"

	"github.com/utkarshgautam22/DiskForge/internal/imaging"
	"github.com/utkarshgautam22/DiskForge/internal/platform"
	"github.com/utkarshgautam22/DiskForge/internal/safety"
)

// Assessor grades devices before a destructive request is accepted
type Assessor interface {
	Assess(id string) (safety.Assessment, error)
}

type Server struct {
	probe    platform.Probe
	assessor Assessor
	engine   *imaging.Engine
	gatherer prometheus.Gatherer
}

func NewServer(probe platform.Probe, assessor Assessor, engine *imaging.Engine, gatherer prometheus.Gatherer) *Server {
	return &Server{probe: probe, assessor: assessor, engine: engine, gatherer: gatherer}
}

// Router registers every route
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/health", s.HealthHandler).Methods("GET")
	r.HandleFunc("/api/devices", s.DevicesHandler).Methods("GET")
	r.HandleFunc("/api/partitions", s.PartitionsHandler).Methods("GET")
	r.HandleFunc("/api/assess", s.AssessHandler).Methods("GET")
	r.HandleFunc("/api/format", s.FormatHandler).Methods("POST")
	r.HandleFunc("/api/jobs", s.StartJobHandler).Methods("POST")
	r.HandleFunc("/api/jobs/{id}", s.JobHandler).Methods("GET")
	r.HandleFunc("/api/jobs/{id}", s.CancelJobHandler).Methods("DELETE")
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}
	return r
}

// Handler wraps the router with CORS for origins
func (s *Server) Handler(origins []string) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(s.Router())
}

// ListenAndServe serves handler on addr until ctx is done, then shuts down gracefully
func ListenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  time.Second * 15,
		WriteTimeout: time.Second * 15,
		IdleTimeout:  time.Second * 60,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down API server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Server forced to shutdown")
		return err
	}
	return nil
}
