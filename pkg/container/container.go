package container

import (
	"github.com/sirupsen/logrus"

	dockerContainerType "github.com/docker/docker/api/types/container"
	dockerImageType "github.com/docker/docker/api/types/image"

	"github.com/nicholas-fedor/docker-monitor/internal/util"
	"github.com/nicholas-fedor/docker-monitor/pkg/types"
)

// Container is a Docker container together with the image it was created from.
//
// It implements the types.Container interface.
type Container struct {
	containerInfo *dockerContainerType.InspectResponse // Docker container metadata
	imageInfo     *dockerImageType.InspectResponse     // Docker image metadata, nil when unavailable
}

// NewContainer creates a new Container instance with the specified metadata.
//
// Parameters:
//   - containerInfo: Docker container metadata.
//   - imageInfo: Docker image metadata, nil if the image could not be inspected.
//
// Returns:
//   - *Container: Initialized container instance.
func NewContainer(
	containerInfo *dockerContainerType.InspectResponse,
	imageInfo *dockerImageType.InspectResponse,
) *Container {
	return &Container{
		containerInfo: containerInfo,
		imageInfo:     imageInfo,
	}
}

// ContainerInfo returns the container metadata.
func (c Container) ContainerInfo() *dockerContainerType.InspectResponse {
	return c.containerInfo
}

// ID returns the container ID.
func (c Container) ID() types.ContainerID {
	if c.containerInfo == nil || c.containerInfo.ContainerJSONBase == nil {
		return ""
	}

	return types.ContainerID(c.containerInfo.ID)
}

// Name returns the container name without the leading slash.
func (c Container) Name() string {
	if c.containerInfo == nil || c.containerInfo.ContainerJSONBase == nil {
		return ""
	}

	return util.NormalizeContainerName(c.containerInfo.Name)
}

// State returns the runtime state, for example "running" or "exited".
func (c Container) State() string {
	if c.containerInfo == nil || c.containerInfo.ContainerJSONBase == nil || c.containerInfo.State == nil {
		return ""
	}

	return string(c.containerInfo.State.Status)
}

// IsRunning reports whether the container is running.
func (c Container) IsRunning() bool {
	if c.containerInfo == nil || c.containerInfo.ContainerJSONBase == nil || c.containerInfo.State == nil {
		return false
	}

	return c.containerInfo.State.Running
}

// Hostname returns the configured hostname.
func (c Container) Hostname() string {
	if c.containerInfo == nil || c.containerInfo.Config == nil {
		return ""
	}

	return c.containerInfo.Config.Hostname
}

// ImageName returns the image string the container was created with (Config.Image).
func (c Container) ImageName() string {
	if c.containerInfo == nil || c.containerInfo.Config == nil {
		return ""
	}

	return c.containerInfo.Config.Image
}

// HasImageInfo reports whether the image metadata is available.
func (c Container) HasImageInfo() bool {
	return c.imageInfo != nil
}

// ImageInfo returns the image metadata.
func (c Container) ImageInfo() *dockerImageType.InspectResponse {
	return c.imageInfo
}

// ImageTags returns the RepoTags of the image.
func (c Container) ImageTags() []string {
	if c.imageInfo == nil {
		return nil
	}

	return c.imageInfo.RepoTags
}

// ImageRepoDigests returns the RepoDigests of the image.
func (c Container) ImageRepoDigests() []string {
	if c.imageInfo == nil {
		return nil
	}

	return c.imageInfo.RepoDigests
}

// Snapshot captures the configuration reused when the container is recreated.
func (c Container) Snapshot() types.ContainerSnapshot {
	snapshot := types.ContainerSnapshot{
		Name:  c.Name(),
		Image: c.ImageName(),
	}

	if c.containerInfo == nil {
		return snapshot
	}

	if config := c.containerInfo.Config; config != nil {
		snapshot.Env = config.Env
		snapshot.Cmd = config.Cmd
		snapshot.Entrypoint = config.Entrypoint
		snapshot.Labels = config.Labels
		snapshot.WorkingDir = config.WorkingDir
		snapshot.User = config.User
	}

	if c.containerInfo.ContainerJSONBase != nil {
		if hostConfig := c.containerInfo.HostConfig; hostConfig != nil {
			snapshot.PortBindings = hostConfig.PortBindings
			snapshot.Binds = hostConfig.Binds
			snapshot.RestartPolicy = string(hostConfig.RestartPolicy.Name)
			snapshot.NetworkMode = string(hostConfig.NetworkMode)
		}
	}

	if settings := c.containerInfo.NetworkSettings; settings != nil && len(settings.Networks) > 0 {
		snapshot.Networks = make(map[string]types.NetworkAttachment, len(settings.Networks))

		for name, endpoint := range settings.Networks {
			if endpoint == nil {
				continue
			}

			attachment := types.NetworkAttachment{
				Aliases:     endpoint.Aliases,
				Links:       endpoint.Links,
				IPv4Address: endpoint.IPAddress,
			}

			if ipam := endpoint.IPAMConfig; ipam != nil {
				if ipam.IPv4Address != "" {
					attachment.IPv4Address = ipam.IPv4Address
				}

				attachment.IPv6Address = ipam.IPv6Address
				attachment.LinkLocalIPs = ipam.LinkLocalIPs
			}

			snapshot.Networks[name] = attachment
		}
	}

	logrus.WithFields(logrus.Fields{
		"container": snapshot.Name,
		"networks":  len(snapshot.Networks),
	}).Trace("Captured container snapshot")

	return snapshot
}
