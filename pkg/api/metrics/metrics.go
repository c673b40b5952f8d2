// Package metrics serves the Prometheus exposition of the monitor's metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Path is the endpoint path of the metrics handler.
const Path = "/v1/metrics"

// Handler is an HTTP handle for serving metric data.
type Handler struct {
	Path   string
	Handle http.Handler
}

// New creates a Handler exposing the gatherer, the default Prometheus gatherer when nil.
func New(gatherer prometheus.Gatherer) *Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	return &Handler{
		Path:   Path,
		Handle: promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}),
	}
}
