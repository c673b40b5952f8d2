package container

import (
	"errors"
)

// Errors for container ID retrieval operations in container_id.go.
var (
	// errNoValidContainerID indicates no valid Docker container ID was found in the input.
	errNoValidContainerID = errors.New("no valid docker container ID found in input")
	// errReadCgroupFile indicates a failure to read the cgroup file for the current process.
	errReadCgroupFile = errors.New("failed to read cgroup file")
	// errExtractContainerID indicates a failure to extract a container ID from the cgroup data.
	errExtractContainerID = errors.New("failed to extract container ID")
	// errReadMountinfoFile indicates a failure to read /proc/self/mountinfo.
	errReadMountinfoFile = errors.New("failed to read mountinfo file")
	// errExtractContainerIDFromMountinfo indicates no container ID was found in the mountinfo data.
	errExtractContainerIDFromMountinfo = errors.New("failed to extract container ID from mountinfo")
	// errNoContainerWithHostname indicates no container has the HOSTNAME of this process.
	errNoContainerWithHostname = errors.New("no container found with matching hostname")
	// ErrContainerIDNotFound indicates HOSTNAME is unset so hostname matching cannot run.
	ErrContainerIDNotFound = errors.New("container ID not found")
)

// Errors for client operations in client.go.
var (
	// errListContainersFailed indicates a failure to list containers from the Docker host.
	errListContainersFailed = errors.New("failed to list containers")
	// errInspectContainerFailed indicates a failure to inspect a container’s details.
	errInspectContainerFailed = errors.New("failed to inspect container")
	// errStopContainerFailed indicates a failure to stop a container.
	errStopContainerFailed = errors.New("failed to stop container")
	// errRemoveContainerFailed indicates a failure to remove a container from the host.
	errRemoveContainerFailed = errors.New("failed to remove container")
	// errCreateContainerFailed indicates a failure to create a new container.
	errCreateContainerFailed = errors.New("failed to create container")
	// errStartContainerFailed indicates a failure to start a newly created container.
	errStartContainerFailed = errors.New("failed to start container")
	// errConnectNetworkFailed indicates a failure to attach a container to a network.
	errConnectNetworkFailed = errors.New("failed to connect container to network")
	// errPullImageFailed indicates a failure to pull an image from the registry.
	errPullImageFailed = errors.New("failed to pull image")
	// errReadPullResponseFailed indicates the pull response stream broke off or reported an error.
	errReadPullResponseFailed = errors.New("failed to read pull response")
	// errStatsFailed indicates a failure to fetch or decode a stats sample.
	errStatsFailed = errors.New("failed to get container stats")
	// errListImagesFailed indicates a failure to list images.
	errListImagesFailed = errors.New("failed to list images")
	// errPruneImagesFailed indicates a failure to prune dangling images.
	errPruneImagesFailed = errors.New("failed to prune images")
	// errPingFailed indicates the daemon could not be reached.
	errPingFailed = errors.New("failed to ping docker daemon")
)
