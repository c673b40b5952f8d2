package mocks

import (
	dockerContainer "github.com/docker/docker/api/types/container"
	dockerImage "github.com/docker/docker/api/types/image"
	dockerNetwork "github.com/docker/docker/api/types/network"
	"github.com/docker/go-connections/nat"

	"github.com/nicholas-fedor/docker-monitor/pkg/container"
	"github.com/nicholas-fedor/docker-monitor/pkg/types"
)

// CreateMockContainer creates a running container substitute valid for testing.
//
// A nil imageInfo yields a container without image metadata.
func CreateMockContainer(
	id string,
	name string,
	image string,
	imageInfo *dockerImage.InspectResponse,
) types.Container {
	return CreateMockContainerWithConfig(
		id,
		name,
		&dockerContainer.Config{
			Image:  image,
			Labels: map[string]string{},
		},
		&dockerContainer.HostConfig{
			PortBindings: nat.PortMap{},
			NetworkMode:  "bridge",
		},
		nil,
		imageInfo,
	)
}

// CreateMockContainerWithConfig creates a container substitute with explicit configuration.
func CreateMockContainerWithConfig(
	id string,
	name string,
	config *dockerContainer.Config,
	hostConfig *dockerContainer.HostConfig,
	networks map[string]*dockerNetwork.EndpointSettings,
	imageInfo *dockerImage.InspectResponse,
) types.Container {
	imageID := ""
	if imageInfo != nil {
		imageID = imageInfo.ID
	}

	content := dockerContainer.InspectResponse{
		ContainerJSONBase: &dockerContainer.ContainerJSONBase{
			ID:         id,
			Name:       "/" + name,
			Image:      imageID,
			HostConfig: hostConfig,
			State: &dockerContainer.State{
				Status:  "running",
				Running: true,
			},
		},
		Config: config,
		NetworkSettings: &dockerContainer.NetworkSettings{
			Networks: networks,
		},
	}

	return container.NewContainer(&content, imageInfo)
}

// CreateMockImageInfo returns image metadata with the given tags and repository digests.
func CreateMockImageInfo(id string, tags []string, repoDigests ...string) *dockerImage.InspectResponse {
	return &dockerImage.InspectResponse{
		ID:          id,
		RepoTags:    tags,
		RepoDigests: repoDigests,
	}
}
