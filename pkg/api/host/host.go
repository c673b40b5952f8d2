package host

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/nicholas-fedor/docker-monitor/internal/actions"
	"github.com/nicholas-fedor/docker-monitor/pkg/api"
	"github.com/nicholas-fedor/docker-monitor/pkg/types"
)

// Paths served by the Handler.
const (
	HealthPath       = "/v1/health"
	DiagPath         = "/v1/diag"
	UnusedImagesPath = "/v1/images/unused"
	PruneImagesPath  = "/v1/images/prune"
)

// DefaultSocketPath is the daemon socket inspected when the host is not a unix socket.
const DefaultSocketPath = "/var/run/docker.sock"

// Handler provides HTTP endpoints for host information.
type Handler struct {
	Client     types.Client // Docker client for retrieving host information.
	SocketPath string       // Daemon socket reported by the diagnostics endpoint.
}

// HealthResponse is the body of the health endpoint.
type HealthResponse struct {
	OK         bool     `json:"ok"`
	Containers []string `json:"containers"`
}

// DiagResponse is the body of the diagnostics endpoint.
type DiagResponse struct {
	OK         bool       `json:"ok"`
	Ping       bool       `json:"ping"`
	Containers []string   `json:"containers"`
	Socket     SocketInfo `json:"socket"`
}

// SocketInfo describes the daemon socket and the identity of this process.
type SocketInfo struct {
	Exists  bool    `json:"socket_exists"`
	Mode    string  `json:"socket_mode,omitempty"`
	UID     *uint32 `json:"socket_uid,omitempty"`
	GID     *uint32 `json:"socket_gid,omitempty"`
	ProcUID *int    `json:"proc_uid,omitempty"`
	ProcGID *int    `json:"proc_gid,omitempty"`
}

// UnusedImagesResponse is the body of the unused images endpoint.
type UnusedImagesResponse struct {
	Count int                  `json:"count"`
	Items []types.ImageSummary `json:"items"`
}

// New creates a host handler. The socket path is derived from the Docker host address.
func New(client types.Client, dockerHost string) *Handler {
	return &Handler{
		Client:     client,
		SocketPath: SocketPath(dockerHost),
	}
}

// SocketPath returns the socket path of a unix:// Docker host, or DefaultSocketPath.
func SocketPath(dockerHost string) string {
	if path, found := strings.CutPrefix(dockerHost, "unix://"); found && path != "" {
		return path
	}

	return DefaultSocketPath
}

// HandleHealth lists the container names known to the daemon.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	names, err := h.containerNames(context.WithoutCancel(r.Context()))
	if err != nil {
		logrus.WithError(err).Warn("Health check failed")
		api.WriteProblem(w, http.StatusInternalServerError, api.CodeRuntimeError, err.Error())

		return
	}

	api.WriteJSON(w, http.StatusOK, HealthResponse{OK: true, Containers: names})
}

// HandleDiag pings the daemon, lists containers and reports socket ownership.
func (h *Handler) HandleDiag(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())

	if err := h.Client.Ping(ctx); err != nil {
		logrus.WithError(err).Warn("Diagnostics could not ping the daemon")
		api.WriteProblem(w, http.StatusInternalServerError, api.CodeRuntimeError, "ping failed: "+err.Error())

		return
	}

	names, err := h.containerNames(ctx)
	if err != nil {
		api.WriteProblem(w, http.StatusInternalServerError, api.CodeRuntimeError, "list failed: "+err.Error())

		return
	}

	api.WriteJSON(w, http.StatusOK, DiagResponse{
		OK:         true,
		Ping:       true,
		Containers: names,
		Socket:     socketInfo(h.SocketPath),
	})
}

// HandleUnusedImages lists dangling images.
func (h *Handler) HandleUnusedImages(w http.ResponseWriter, r *http.Request) {
	images, err := actions.UnusedImages(context.WithoutCancel(r.Context()), h.Client)
	if err != nil {
		api.WriteProblem(w, http.StatusInternalServerError, api.CodeRuntimeError, err.Error())

		return
	}

	api.WriteJSON(w, http.StatusOK, UnusedImagesResponse{Count: len(images), Items: images})
}

// HandlePruneImages removes dangling images.
func (h *Handler) HandlePruneImages(w http.ResponseWriter, r *http.Request) {
	report, err := actions.PruneUnusedImages(context.WithoutCancel(r.Context()), h.Client)
	if err != nil {
		logrus.WithError(err).Warn("Failed to prune dangling images")
		api.WriteProblem(w, http.StatusInternalServerError, api.CodeRuntimeError, err.Error())

		return
	}

	logrus.WithFields(logrus.Fields{
		"deleted":   len(report.ImagesDeleted),
		"reclaimed": report.SpaceReclaimed,
	}).Info("Pruned dangling images")

	api.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) containerNames(ctx context.Context) ([]string, error) {
	containers, err := h.Client.ListAllContainers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	names := make([]string, 0, len(containers))
	for _, c := range containers {
		names = append(names, c.Name())
	}

	return names, nil
}
