package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cvmatch/internal/ai"
	"cvmatch/internal/observability"
	"cvmatch/internal/pipeline"

	"golang.org/x/sync/errgroup"
)

const (
	shutdownGracePeriod   = 30 * time.Second
	telemetryFlushTimeout = 5 * time.Second
)

// Start serves the API until ctx is cancelled, then drains in-flight
// requests and releases the model services and telemetry.
func (s *Server) Start(ctx context.Context) error {
	om, err := observability.NewObservabilityManager(observability.GetObservabilityConfig(s.AppConfig, s.Version))
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer s.flushTelemetry(om)

	release, err := s.ensurePipeline(om)
	if err != nil {
		return err
	}
	defer release()

	httpServer := s.newHTTPServer(om)
	if err := s.configureTLS(httpServer); err != nil {
		return err
	}

	s.displayServerInfo()
	return s.serve(ctx, httpServer)
}

// ensurePipeline builds the per-operation services and the pipeline
// unless one was injected. The returned func releases the services.
func (s *Server) ensurePipeline(om *observability.ObservabilityManager) (func(), error) {
	if s.Pipeline != nil {
		return func() {}, nil
	}
	if s.AppConfig == nil {
		return nil, fmt.Errorf("application configuration is required to build the pipeline")
	}

	services, err := ai.NewServices(s.AppConfig, s.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create AI services: %w", err)
	}
	p, err := pipeline.NewFromConfig(s.AppConfig, services, om.GetMetrics(), s.Logger)
	if err != nil {
		_ = services.Close()
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	s.Pipeline = p
	if s.Health == nil {
		s.Health = services
	}
	return func() {
		if err := services.Close(); err != nil {
			s.Logger.LogError(err, "Failed to close AI services")
		}
	}, nil
}

func (s *Server) flushTelemetry(om *observability.ObservabilityManager) {
	ctx, cancel := context.WithTimeout(context.Background(), telemetryFlushTimeout)
	defer cancel()
	if err := om.Shutdown(ctx); err != nil {
		s.Logger.LogError(err, "Failed to shutdown observability")
	}
}

func (s *Server) newHTTPServer(om *observability.ObservabilityManager) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%s", s.Host, s.Port),
		Handler:           om.HTTPMiddleware()(s.setupRoutes(om)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.ReadTimeout,
		WriteTimeout:      s.WriteTimeout,
		IdleTimeout:       s.IdleTimeout,
	}
}

// serve runs the listener and a shutdown watcher side by side. A listener
// failure cancels the watcher; cancelling ctx shuts the listener down.
func (s *Server) serve(ctx context.Context, httpServer *http.Server) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.Logger.Info("Starting HTTP server",
			"address", httpServer.Addr,
			"tls_enabled", httpServer.TLSConfig != nil)

		var err error
		if httpServer.TLSConfig != nil {
			err = httpServer.ListenAndServeTLS("", "")
		} else {
			err = httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed to start: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return s.shutdown(httpServer)
	})

	return g.Wait()
}

func (s *Server) shutdown(httpServer *http.Server) error {
	s.Logger.Info("Shutting down HTTP server", "grace_period", shutdownGracePeriod)

	if s.RateLimiter != nil {
		s.RateLimiter.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		s.Logger.LogError(err, "Failed to shutdown server gracefully, forcing close")
		return httpServer.Close()
	}

	s.Logger.Info("Server shutdown completed")
	return nil
}
