package types

import (
	"strings"

	dockerContainer "github.com/docker/docker/api/types/container"
	dockerImage "github.com/docker/docker/api/types/image"
)

// Container defines a monitored docker container.
type Container interface {
	ContainerInfo() *dockerContainer.InspectResponse // Container metadata.
	ID() ContainerID                                 // Container ID.
	Name() string                                    // Container name without leading slash.
	State() string                                   // Runtime state (running, exited, ...).
	IsRunning() bool                                 // Check if running.
	Hostname() string                                // Configured hostname.
	ImageName() string                               // Configured image string (Config.Image).
	HasImageInfo() bool                              // Image metadata presence.
	ImageInfo() *dockerImage.InspectResponse         // Image metadata.
	ImageTags() []string                             // RepoTags of the image.
	ImageRepoDigests() []string                      // RepoDigests of the image.
	Snapshot() ContainerSnapshot                     // Configuration needed for recreation.
}

// ImageID is a hash string for a container image.
type ImageID string

// ContainerID is a hash string for a container instance.
type ContainerID string

// ShortID returns the 12-character short version of an image ID.
func (id ImageID) ShortID() string {
	return shortID(string(id))
}

// ShortID returns the 12-character short version of a container ID.
func (id ContainerID) ShortID() string {
	return shortID(string(id))
}

// shortID shortens a hash string to 12 characters, skipping a "sha256:" prefix.
func shortID(longID string) string {
	prefixSep := strings.IndexRune(longID, ':')
	offset := 0
	length := 12

	if prefixSep >= 0 {
		if longID[0:prefixSep] == "sha256" {
			offset = prefixSep + 1
		} else {
			length += prefixSep + 1
		}
	}

	if len(longID) >= offset+length {
		return longID[offset : offset+length]
	}

	return longID
}
