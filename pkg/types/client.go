package types

import (
	"context"
	"time"
)

// Client is the container runtime interface used by the monitor.
type Client interface {
	// ListAllContainers returns every container on the host, including stopped ones.
	ListAllContainers(ctx context.Context) ([]Container, error)
	// GetContainer inspects a container by name or ID.
	GetContainer(ctx context.Context, nameOrID string) (Container, error)
	// PullImage pulls the image reference and waits for the pull to complete.
	PullImage(ctx context.Context, ref string) error
	// StopContainer stops a container, waiting up to timeout before it is killed.
	StopContainer(ctx context.Context, container Container, timeout time.Duration) error
	// RemoveContainer removes a stopped container.
	RemoveContainer(ctx context.Context, container Container) error
	// CreateContainer creates a container from a snapshot using the given image.
	CreateContainer(ctx context.Context, snapshot ContainerSnapshot, image string) (ContainerID, error)
	// ConnectNetwork attaches a container to a network with the given endpoint settings.
	ConnectNetwork(ctx context.Context, id ContainerID, network string, attachment NetworkAttachment) error
	// StartContainer starts a created container.
	StartContainer(ctx context.Context, id ContainerID) error
	// ContainerStats returns a one-shot resource usage sample for a container.
	ContainerStats(ctx context.Context, id ContainerID) (ContainerStats, error)
	// ListDanglingImages returns untagged images not referenced by any tag.
	ListDanglingImages(ctx context.Context) ([]ImageSummary, error)
	// PruneDanglingImages removes dangling images.
	PruneDanglingImages(ctx context.Context) (PruneReport, error)
	// Ping checks that the daemon is reachable.
	Ping(ctx context.Context) error
	// GetVersion returns the negotiated API version.
	GetVersion() string
}

// ContainerStats is a computed resource usage sample.
//
// Nil fields were not reported by the runtime.
type ContainerStats struct {
	CPUPercent    *float64 `json:"cpu"`
	MemoryUsage   *uint64  `json:"mem_usage"`
	MemoryLimit   *uint64  `json:"mem_limit"`
	MemoryPercent *float64 `json:"mem_perc"`
	NetworkRx     *uint64  `json:"net_rx"`
	NetworkTx     *uint64  `json:"net_tx"`
	BlockRead     *uint64  `json:"blk_read"`
	BlockWrite    *uint64  `json:"blk_write"`
}

// ImageSummary identifies a local image.
type ImageSummary struct {
	ID   string   `json:"id"`
	Tags []string `json:"tags"`
}

// PruneReport is the outcome of pruning dangling images.
type PruneReport struct {
	ImagesDeleted  []string `json:"images_deleted"`
	SpaceReclaimed uint64   `json:"space_reclaimed"`
}
