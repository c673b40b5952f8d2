package container

import (
	"context"
	"fmt"
	"iter"
	"os"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/nicholas-fedor/docker-monitor/internal/util"
	"github.com/nicholas-fedor/docker-monitor/pkg/types"
)

// Constants for container ID detection.
const (
	minMatchGroups     = 2
	minMountinfoParts  = 2
	minMountinfoFields = 4
)

// Regex patterns for container ID extraction.
var (
	dockerContainerPattern = regexp.MustCompile(`[0-9]+:.*:/docker/([a-f0-9]{64})`)
	containerIDPattern     = regexp.MustCompile(`/containers/([a-f0-9]{64})`)
)

// File reading functions for testing mocks.
var (
	ReadMountinfoFunc = os.ReadFile
	ReadCgroupFunc    = os.ReadFile
)

// SelfName returns the name of the container this process runs in.
//
// An explicit override wins. Otherwise the current container ID is detected and looked up.
// An empty string means the process does not run in a container the client can see, which
// disables self-update protection.
func SelfName(ctx context.Context, client types.Client, override string) string {
	if override != "" {
		return util.NormalizeContainerName(override)
	}

	containerID, err := GetCurrentContainerID(ctx, client)
	if err != nil {
		logrus.WithError(err).Debug("Not running inside a detectable container")

		return ""
	}

	self, err := client.GetContainer(ctx, string(containerID))
	if err != nil {
		logrus.WithError(err).
			WithField("container_id", containerID.ShortID()).
			Debug("Failed to inspect own container")

		return ""
	}

	logrus.WithFields(logrus.Fields{
		"container":    self.Name(),
		"container_id": containerID.ShortID(),
	}).Debug("Detected own container")

	return self.Name()
}

// GetCurrentContainerID retrieves the current container ID.
//
// The detection methods are tried in the following order:
// 1. Mountinfo-based detection - cgroup v2 compatible
// 2. Cgroup file parsing - cgroup v1 compatible
// 3. Hostname matching - fallback using the Docker API
func GetCurrentContainerID(ctx context.Context, client types.Client) (types.ContainerID, error) {
	containerID, err := GetContainerIDFromMountinfo()
	if err == nil {
		return containerID, nil
	}

	logrus.WithError(err).Debug("Mountinfo detection failed")

	containerID, err = GetContainerIDFromCgroupFile()
	if err == nil {
		return containerID, nil
	}

	logrus.WithError(err).Debug("Cgroup file parsing failed")

	containerID, err = GetContainerIDFromHostname(ctx, client)
	if err == nil {
		return containerID, nil
	}

	logrus.WithError(err).Debug("Hostname matching failed")

	return "", fmt.Errorf("failed to detect current container ID: %w", err)
}

// GetContainerIDFromMountinfo retrieves the container ID from /proc/self/mountinfo.
func GetContainerIDFromMountinfo() (types.ContainerID, error) {
	file, err := ReadMountinfoFunc("/proc/self/mountinfo")
	if err != nil {
		return "", fmt.Errorf("%w: %w", errReadMountinfoFile, err)
	}

	containerID, err := ParseContainerIDFromMountinfo(string(file))
	if err != nil {
		return "", errExtractContainerIDFromMountinfo
	}

	return containerID, nil
}

// ParseContainerIDFromMountinfo finds the first mount root containing /containers/<id>.
func ParseContainerIDFromMountinfo(mountinfoString string) (types.ContainerID, error) {
	for line := range strings.SplitSeq(strings.TrimSpace(mountinfoString), "\n") {
		parts := strings.Split(strings.TrimSpace(line), " - ")
		if len(parts) < minMountinfoParts {
			continue
		}

		fields := strings.Split(parts[0], " ")
		if len(fields) < minMountinfoFields {
			continue
		}

		if id := ExtractContainerIDFromPath(fields[3]); id != "" {
			return id, nil
		}
	}

	return "", errNoValidContainerID
}

// ExtractContainerIDFromPath extracts container ID from a path containing /containers/<id>.
func ExtractContainerIDFromPath(path string) types.ContainerID {
	matches := containerIDPattern.FindStringSubmatch(path)
	if len(matches) >= minMatchGroups {
		return types.ContainerID(matches[1])
	}

	return ""
}

// GetContainerIDFromCgroupFile retrieves the container ID from /proc/<pid>/cgroup.
func GetContainerIDFromCgroupFile() (types.ContainerID, error) {
	filePath := fmt.Sprintf("/proc/%d/cgroup", os.Getpid())

	file, err := ReadCgroupFunc(filePath)
	if err != nil {
		logrus.WithError(err).WithField("file", filePath).Debug("Failed to read cgroup file")

		return "", errReadCgroupFile
	}

	containerID, err := ParseContainerIDFromCgroupString(string(file))
	if err != nil {
		return "", errExtractContainerID
	}

	return containerID, nil
}

// ParseContainerIDFromCgroupString extracts the ID following "/docker/" in cgroup v1 data.
func ParseContainerIDFromCgroupString(cgroupString string) (types.ContainerID, error) {
	var lines iter.Seq[string]
	if strings.Contains(cgroupString, "\n") {
		lines = strings.Lines(cgroupString)
	} else {
		lines = func(yield func(string) bool) {
			yield(cgroupString)
		}
	}

	for line := range lines {
		matches := dockerContainerPattern.FindStringSubmatch(strings.TrimRight(line, "\n"))
		if len(matches) >= minMatchGroups {
			return types.ContainerID(matches[1]), nil
		}
	}

	return "", fmt.Errorf("%w: %q", errNoValidContainerID, cgroupString)
}

// GetContainerIDFromHostname matches the HOSTNAME env var against container hostnames.
func GetContainerIDFromHostname(ctx context.Context, client types.Client) (types.ContainerID, error) {
	hostname := os.Getenv("HOSTNAME")
	if hostname == "" {
		return "", ErrContainerIDNotFound
	}

	containers, err := client.ListAllContainers(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list all containers: %w", err)
	}

	for _, c := range containers {
		if c.Hostname() == hostname {
			return c.ID(), nil
		}
	}

	return "", errNoContainerWithHostname
}
