package metrics

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nicholas-fedor/docker-monitor/pkg/types"
)

var metrics *Metrics

// Update results recorded by RegisterUpdate.
const (
	ResultUpdated = "updated"
	ResultSkipped = "skipped"
	ResultFailed  = "failed"
)

// Metric holds the status counts of one classification batch.
type Metric struct {
	Checked         int // Number of containers classified.
	UpToDate        int // Containers whose local digest matches the registry.
	UpdateAvailable int // Containers with a newer remote digest.
	Unknown         int // Containers without an image or local digest.
	RegistryErrors  int // Containers whose remote digest could not be fetched.
	Errors          int // Containers whose classification failed unexpectedly.
}

// Metrics handles processing and exposing monitor metrics.
type Metrics struct {
	channel         chan *Metric
	checked         prometheus.Gauge
	upToDate        prometheus.Gauge
	updateAvailable prometheus.Gauge
	unknown         prometheus.Gauge
	registryErrors  prometheus.Gauge
	errored         prometheus.Gauge
	checks          prometheus.Counter
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	warmRuns        prometheus.Counter
	updates         *prometheus.CounterVec
	dropped         prometheus.Counter
	stopCh          chan struct{}
	shutdownOnce    sync.Once
	//nolint:containedctx
	ctx    context.Context
	cancel context.CancelFunc
}

// NewWithRegistry creates a new Metrics handler with a custom Prometheus registry.
//
// Parameters:
//   - registry: Prometheus registerer to use for metric registration.
//
// Returns:
//   - (*Metrics, error): Metrics handler with its processing goroutine, or an error if registration fails.
func NewWithRegistry(registry prometheus.Registerer) (*Metrics, error) {
	// channelBufferSize sets the metrics channel capacity.
	const channelBufferSize = 10

	ctx, cancel := context.WithCancel(context.Background())

	metrics := &Metrics{
		checked: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "docker_monitor_containers_checked",
			Help: "Number of containers classified during the last status check",
		}),
		upToDate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "docker_monitor_containers_up_to_date",
			Help: "Number of containers up to date during the last status check",
		}),
		updateAvailable: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "docker_monitor_containers_update_available",
			Help: "Number of containers with an available update during the last status check",
		}),
		unknown: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "docker_monitor_containers_unknown",
			Help: "Number of containers without image or local digest during the last status check",
		}),
		registryErrors: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "docker_monitor_containers_registry_error",
			Help: "Number of containers whose remote digest could not be fetched during the last status check",
		}),
		errored: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "docker_monitor_containers_error",
			Help: "Number of containers whose classification failed during the last status check",
		}),
		checks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docker_monitor_checks_total",
			Help: "Number of status checks since the monitor started",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docker_monitor_digest_cache_hits_total",
			Help: "Number of remote digest lookups served from the cache",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docker_monitor_digest_cache_misses_total",
			Help: "Number of remote digest lookups that queried a registry",
		}),
		warmRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docker_monitor_cache_warm_runs_total",
			Help: "Number of background cache warming passes",
		}),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docker_monitor_updates_total",
			Help: "Number of container update requests by result",
		}, []string{"result"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docker_monitor_metrics_dropped_total",
			Help: "Number of metrics dropped due to full channel",
		}),
		channel: make(chan *Metric, channelBufferSize),
		stopCh:  make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}

	metricsList := []prometheus.Collector{
		metrics.checked,
		metrics.upToDate,
		metrics.updateAvailable,
		metrics.unknown,
		metrics.registryErrors,
		metrics.errored,
		metrics.checks,
		metrics.cacheHits,
		metrics.cacheMisses,
		metrics.warmRuns,
		metrics.updates,
		metrics.dropped,
	}
	for _, m := range metricsList {
		err := registry.Register(m)
		if err != nil {
			alreadyRegisteredError := &prometheus.AlreadyRegisteredError{}
			if errors.As(err, &alreadyRegisteredError) {
				cancel()

				return nil, fmt.Errorf("failed to register metric: %w", err)
			}
		}
	}

	go metrics.HandleUpdate()

	return metrics, nil
}

// NewMetric counts the statuses of a classification batch.
func NewMetric(statuses map[string]types.UpdateStatus) *Metric {
	metric := &Metric{Checked: len(statuses)}

	for _, status := range statuses {
		switch {
		case status == types.StatusUpToDate:
			metric.UpToDate++
		case status == types.StatusUpdateAvailable:
			metric.UpdateAvailable++
		case status == types.StatusUnknownImage, status == types.StatusUnknownLocalDigest:
			metric.Unknown++
		case status == types.StatusRegistryError:
			metric.RegistryErrors++
		case status.IsError():
			metric.Errors++
		}
	}

	return metric
}

// QueueIsEmpty checks if the metrics channel is empty.
func (m *Metrics) QueueIsEmpty() bool {
	return len(m.channel) == 0
}

// Register attempts to enqueue a batch metric for processing.
// If the channel is full, the metric is dropped and the dropped counter is incremented.
func (m *Metrics) Register(metric *Metric) {
	select {
	case m.channel <- metric:
	default:
		m.dropped.Inc()
	}
}

// RegisterCacheLookup counts a remote digest lookup as a hit or a miss.
func (m *Metrics) RegisterCacheLookup(hit bool) {
	if hit {
		m.cacheHits.Inc()

		return
	}

	m.cacheMisses.Inc()
}

// RegisterWarmRun counts a background cache warming pass.
func (m *Metrics) RegisterWarmRun() {
	m.warmRuns.Inc()
}

// RegisterUpdate counts an update request outcome, one of the Result constants.
func (m *Metrics) RegisterUpdate(result string) {
	m.updates.WithLabelValues(result).Inc()
}

// Default initializes or returns the singleton Metrics handler. It panics on registration
// failure, such as duplicate registration against the default registry.
func Default() *Metrics {
	if metrics != nil {
		return metrics
	}

	var err error

	metrics, err = NewWithRegistry(prometheus.DefaultRegisterer)
	if err != nil {
		panic(err)
	}

	return metrics
}

// Shutdown gracefully stops the metrics processing goroutine.
// This method is idempotent and can be called multiple times safely.
func (m *Metrics) Shutdown() {
	m.shutdownOnce.Do(func() {
		close(m.stopCh)
		m.cancel()
	})
}

// HandleUpdate processes batch metrics from the channel.
func (m *Metrics) HandleUpdate() {
	for {
		select {
		case change, ok := <-m.channel:
			if !ok {
				return
			}

			if change == nil {
				continue
			}

			m.checks.Inc()
			m.checked.Set(float64(change.Checked))
			m.upToDate.Set(float64(change.UpToDate))
			m.updateAvailable.Set(float64(change.UpdateAvailable))
			m.unknown.Set(float64(change.Unknown))
			m.registryErrors.Set(float64(change.RegistryErrors))
			m.errored.Set(float64(change.Errors))
		case <-m.stopCh:
			return
		case <-m.ctx.Done():
			return
		}
	}
}
