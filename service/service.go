// Package service exposes the optional healthz and metrics HTTP endpoints
// for long-lived or scraped deployments of the harness.
package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/keclang/kecc-acceptor/metrics"
)

type Service struct {
	Healthz *HealthzServer
	Metrics *MetricsServer

	healthzAddr string
	metricsAddr string
}

// New creates a service serving healthz and prometheus metrics on the given
// addresses. An empty address disables that endpoint.
func New(healthzAddr, metricsAddr string) *Service {
	return &Service{
		Healthz:     &HealthzServer{},
		Metrics:     &MetricsServer{},
		healthzAddr: healthzAddr,
		metricsAddr: metricsAddr,
	}
}

func (s *Service) Start(ctx context.Context) {
	slog.Info("service starting")

	if s.healthzAddr != "" {
		go func() {
			slog.Info("starting healthz server", "addr", s.healthzAddr)
			if err := s.Healthz.Start(ctx, s.healthzAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("error starting healthz server", "err", err)
				metrics.RecordErrorDetails("error starting healthz server", err)
			}
		}()
	}

	if s.metricsAddr != "" {
		go func() {
			slog.Info("starting metrics server", "addr", s.metricsAddr)
			if err := s.Metrics.Start(ctx, s.metricsAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("error starting metrics server", "err", err)
				metrics.RecordErrorDetails("error starting metrics server", err)
			}
		}()
	}

	slog.Info("service started")
}

func (s *Service) Shutdown() {
	slog.Info("service shutting down")

	if s.healthzAddr != "" {
		_ = s.Healthz.Shutdown()
	}
	if s.metricsAddr != "" {
		_ = s.Metrics.Shutdown()
	}

	slog.Info("service stopped")
}
