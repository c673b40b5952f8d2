package actions

import "errors"

// Errors for update operations.
var (
	// ErrSelfUpdate indicates an attempt to recreate the container the monitor runs in.
	ErrSelfUpdate = errors.New("refusing to update the monitor's own container")
	// ErrContainerNotFound indicates the named container does not exist.
	ErrContainerNotFound = errors.New("container not found")
	// ErrNoImageReference indicates no image reference could be derived for the container.
	ErrNoImageReference = errors.New("cannot determine image reference for update")
	// ErrPullFailed indicates the new image could not be pulled. The old container is untouched.
	ErrPullFailed = errors.New("failed to pull image")
	// ErrCreateFailed indicates the replacement container could not be created.
	ErrCreateFailed = errors.New("failed to create replacement container")
	// ErrStartFailed indicates the replacement container could not be started.
	ErrStartFailed = errors.New("failed to start replacement container")
)

// Errors for image cleanup.
var (
	// errListImagesFailed flags failures in listing dangling images.
	errListImagesFailed = errors.New("failed to list unused images")
	// errPruneImagesFailed flags failures in pruning dangling images.
	errPruneImagesFailed = errors.New("failed to prune unused images")
)

// errImageInfoUnavailable is reported as an error status when image metadata is missing.
var errImageInfoUnavailable = errors.New("image info unavailable")
