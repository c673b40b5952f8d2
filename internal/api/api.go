// Package api wires the HTTP API handlers of docker-monitor to their routes.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/nicholas-fedor/docker-monitor/pkg/api"
	"github.com/nicholas-fedor/docker-monitor/pkg/api/host"
	metricsAPI "github.com/nicholas-fedor/docker-monitor/pkg/api/metrics"
	"github.com/nicholas-fedor/docker-monitor/pkg/api/status"
	"github.com/nicholas-fedor/docker-monitor/pkg/api/update"
	"github.com/nicholas-fedor/docker-monitor/pkg/types"
)

// Config holds what the API routes are served from.
type Config struct {
	Address    string              // Listen address.
	Token      string              // Bearer token, authentication is off when empty.
	DockerHost string              // Docker host address, used to locate the daemon socket.
	Workers    int                 // Concurrent stats samples per status request.
	Client     types.Client        // Container runtime.
	Classifier status.Classifier   // Batch update classification.
	Updater    update.Updater      // Container recreation.
	Gatherer   prometheus.Gatherer // Metrics source, the default gatherer when nil.
}

// NewServer creates the API server with every route registered.
func NewServer(cfg Config, server ...api.HTTPServer) *api.API {
	httpAPI := api.New(cfg.Token, cfg.Address, server...)

	statusHandler := status.New(cfg.Client, cfg.Classifier, status.NewStatsCache(cfg.Client, status.DefaultStatsTTL), cfg.Workers)
	httpAPI.RegisterFunc(http.MethodGet+" "+status.StatusPath, statusHandler.HandleAll)
	httpAPI.RegisterFunc(http.MethodGet+" "+status.StatusOnePath, statusHandler.HandleOne)
	httpAPI.RegisterFunc(http.MethodGet+" "+status.StatsPath, statusHandler.HandleStats)

	updateHandler := update.New(cfg.Updater)
	httpAPI.RegisterFunc(http.MethodPost+" "+update.Path, updateHandler.Handle)

	hostHandler := host.New(cfg.Client, cfg.DockerHost)
	httpAPI.RegisterFunc(http.MethodGet+" "+host.HealthPath, hostHandler.HandleHealth)
	httpAPI.RegisterFunc(http.MethodGet+" "+host.DiagPath, hostHandler.HandleDiag)
	httpAPI.RegisterFunc(http.MethodGet+" "+host.UnusedImagesPath, hostHandler.HandleUnusedImages)
	httpAPI.RegisterFunc(http.MethodPost+" "+host.PruneImagesPath, hostHandler.HandlePruneImages)

	metricsHandler := metricsAPI.New(cfg.Gatherer)
	httpAPI.RegisterHandler(http.MethodGet+" "+metricsHandler.Path, metricsHandler.Handle)

	return httpAPI
}

// SetupAndStartAPI serves the API until ctx is cancelled.
func SetupAndStartAPI(ctx context.Context, cfg Config, server ...api.HTTPServer) error {
	httpAPI := NewServer(cfg, server...)

	logrus.WithField("addr", cfg.Address).Info("HTTP API is enabled")

	if err := httpAPI.Start(ctx, true); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logrus.WithError(err).Error("Failed to start API")

		return fmt.Errorf("failed to start HTTP API: %w", err)
	}

	return nil
}
