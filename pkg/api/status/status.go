package status

import (
	"context"
	"net/http"
	"sync"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/nicholas-fedor/docker-monitor/pkg/api"
	"github.com/nicholas-fedor/docker-monitor/pkg/types"
)

// Paths served by the Handler.
const (
	StatusPath    = "/v1/status"
	StatusOnePath = "/v1/status/{name}"
	StatsPath     = "/v1/stats/{name}"
)

const defaultWorkers = 4

// Classifier classifies a batch of containers.
type Classifier interface {
	ClassifyAll(ctx context.Context, containers []types.Container, force bool) map[string]types.UpdateStatus
}

// Response is the body of the status endpoints.
type Response struct {
	Status  string                        `json:"status"`
	Updates map[string]types.UpdateStatus `json:"updates"`
	Meta    map[string]any                `json:"meta"`
}

// StatsResponse is the body of the stats endpoint.
type StatsResponse struct {
	Status string `json:"status"`
	Meta   Meta   `json:"meta"`
}

// Handler answers status and stats requests.
type Handler struct {
	client     types.Client
	classifier Classifier
	stats      *StatsCache
	workers    int
}

// New creates a Handler. Stats are sampled by at most workers goroutines per request.
func New(client types.Client, classifier Classifier, stats *StatsCache, workers int) *Handler {
	if workers <= 0 {
		workers = defaultWorkers
	}

	return &Handler{
		client:     client,
		classifier: classifier,
		stats:      stats,
		workers:    workers,
	}
}

// HandleAll reports the status of every container. The force query flag bypasses the digest
// cache, the light query flag skips resource usage sampling.
func (h *Handler) HandleAll(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())
	force := api.QueryFlag(r, "force")
	light := api.QueryFlag(r, "light")

	containers, err := h.client.ListAllContainers(ctx)
	if err != nil {
		logrus.WithError(err).Warn("Status request could not list containers")
		api.WriteProblem(w, http.StatusInternalServerError, api.CodeRuntimeError, err.Error())

		return
	}

	updates := h.classifier.ClassifyAll(ctx, containers, force)

	logrus.WithFields(logrus.Fields{
		"containers": len(updates),
		"light":      light,
		"forced":     force,
	}).Info("Answered status request")

	api.WriteJSON(w, http.StatusOK, Response{
		Status:  "ok",
		Updates: updates,
		Meta:    h.collectMeta(ctx, containers, updates, light),
	})
}

// HandleOne reports the status of the container named in the path.
// An unknown container is reported with the not_found status.
func (h *Handler) HandleOne(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())
	name := r.PathValue("name")
	light := api.QueryFlag(r, "light")

	c, err := h.client.GetContainer(ctx, name)
	if cerrdefs.IsNotFound(err) {
		api.WriteJSON(w, http.StatusOK, Response{
			Status:  "ok",
			Updates: map[string]types.UpdateStatus{name: types.StatusNotFound},
			Meta:    map[string]any{name: struct{}{}},
		})

		return
	}

	if err != nil {
		api.WriteProblem(w, http.StatusInternalServerError, api.CodeRuntimeError, err.Error())

		return
	}

	containers := []types.Container{c}
	updates := h.classifier.ClassifyAll(ctx, containers, api.QueryFlag(r, "force"))

	logrus.WithFields(logrus.Fields{
		"container": c.Name(),
		"status":    updates[c.Name()],
		"light":     light,
	}).Info("Answered status request")

	api.WriteJSON(w, http.StatusOK, Response{
		Status:  "ok",
		Updates: updates,
		Meta:    h.collectMeta(ctx, containers, updates, light),
	})
}

// HandleStats reports a resource usage sample of the container named in the path.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())

	c, err := h.client.GetContainer(ctx, r.PathValue("name"))
	if cerrdefs.IsNotFound(err) {
		api.WriteProblem(w, http.StatusNotFound, api.CodeNotFound, "")

		return
	}

	if err != nil {
		api.WriteProblem(w, http.StatusInternalServerError, api.CodeRuntimeError, err.Error())

		return
	}

	meta, err := h.stats.FullMeta(ctx, c)
	if err != nil {
		api.WriteProblem(w, http.StatusInternalServerError, api.CodeRuntimeError, err.Error())

		return
	}

	api.WriteJSON(w, http.StatusOK, StatsResponse{Status: "ok", Meta: meta})
}

func (h *Handler) collectMeta(
	ctx context.Context,
	containers []types.Container,
	updates map[string]types.UpdateStatus,
	light bool,
) map[string]any {
	meta := make(map[string]any, len(containers))

	if light {
		for _, c := range containers {
			meta[c.Name()] = LightMeta(c)
		}

		return meta
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		workers = semaphore.NewWeighted(int64(h.workers))
	)

	set := func(name string, value any) {
		mu.Lock()
		defer mu.Unlock()

		meta[name] = value
	}

	for _, c := range containers {
		if err := workers.Acquire(ctx, 1); err != nil {
			set(c.Name(), struct{}{})

			continue
		}

		wg.Go(func() {
			defer workers.Release(1)

			set(c.Name(), h.fullMeta(ctx, c, updates[c.Name()]))
		})
	}

	wg.Wait()

	return meta
}

// fullMeta is empty for containers whose classification failed unexpectedly.
func (h *Handler) fullMeta(ctx context.Context, c types.Container, status types.UpdateStatus) any {
	if status.IsError() {
		return struct{}{}
	}

	meta, err := h.stats.FullMeta(ctx, c)
	if err != nil {
		logrus.WithError(err).WithField("container", c.Name()).Debug("Reporting status without stats")

		meta.ContainerStats = &types.ContainerStats{}
	}

	return meta
}
