package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	cerrdefs "github.com/containerd/errdefs"

	"github.com/nicholas-fedor/docker-monitor/pkg/metrics"
	"github.com/nicholas-fedor/docker-monitor/pkg/registry/helpers"
	"github.com/nicholas-fedor/docker-monitor/pkg/types"
)

// DefaultStopTimeout is the grace period given to a container before it is killed.
const DefaultStopTimeout = 10 * time.Second

// StatusChecker classifies a single container.
type StatusChecker interface {
	Classify(ctx context.Context, c types.Container, force bool) types.UpdateStatus
}

// UpdateRecorder counts update outcomes.
type UpdateRecorder interface {
	RegisterUpdate(result string)
}

// RecreatorOptions configures a Recreator.
type RecreatorOptions struct {
	SelfName    string         // Name of the monitor's own container, never recreated.
	StopTimeout time.Duration  // Grace period for stopping the old container.
	Notifier    types.Notifier // Optional, told about every recreation attempt.
	Recorder    UpdateRecorder // Optional, counts update outcomes.
}

// UpdateResult is the outcome of an Update call.
type UpdateResult struct {
	Updated bool
	Name    string
	Image   string
	NewID   types.ContainerID
	// Warnings collects the stop, remove and network failures that did not abort the update.
	Warnings error
}

// Recreator replaces containers with ones running a freshly pulled image.
type Recreator struct {
	client  types.Client
	checker StatusChecker
	RecreatorOptions
}

// NewRecreator creates a Recreator.
func NewRecreator(client types.Client, checker StatusChecker, opts RecreatorOptions) *Recreator {
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = DefaultStopTimeout
	}

	return &Recreator{client: client, checker: checker, RecreatorOptions: opts}
}

// Update recreates the named container with the latest image of its reference.
//
// A container that is already up to date is left alone. Otherwise the image is pulled, the old
// container is stopped and removed, and a new one is created under the same name with the
// captured configuration, reconnected to its networks and started.
//
// Update is best effort forward: a failure after the old container was removed is not rolled
// back, and the logged snapshot is the only record left of the previous configuration.
func (r *Recreator) Update(ctx context.Context, name string) (UpdateResult, error) {
	result := UpdateResult{Name: name}

	if r.SelfName != "" && name == r.SelfName {
		logrus.WithField("container", name).Warn("Refusing to update own container")

		return result, ErrSelfUpdate
	}

	current, err := r.client.GetContainer(ctx, name)
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			return result, fmt.Errorf("%w: %s", ErrContainerNotFound, name)
		}

		return result, err
	}

	// The lookup also resolves IDs and other spellings of the name.
	if r.SelfName != "" && current.Name() == r.SelfName {
		logrus.WithFields(logrus.Fields{"container": current.Name(), "requested": name}).
			Warn("Refusing to update own container")

		return result, ErrSelfUpdate
	}

	fields := logrus.Fields{"container": current.Name()}

	status := r.checker.Classify(ctx, current, true)
	if status == types.StatusUpToDate {
		logrus.WithFields(fields).Info("Container is already up to date")
		r.record(metrics.ResultSkipped)

		return result, nil
	}

	logrus.WithFields(fields).WithField("status", status).Debug("Pre-update check finished")

	target := TargetImage(current)
	if target == "" {
		r.record(metrics.ResultFailed)

		return result, ErrNoImageReference
	}

	result.Image = target
	fields["image"] = target

	snapshot := current.Snapshot()
	logSnapshot(snapshot)

	result, err = r.recreate(ctx, current, snapshot, result)

	switch {
	case err != nil:
		logrus.WithError(err).WithFields(fields).Error("Container update failed")
		r.record(metrics.ResultFailed)
	default:
		logrus.WithFields(fields).WithField("new_id", result.NewID.ShortID()).
			Info("Container recreated with latest image")
		r.record(metrics.ResultUpdated)
	}

	if r.Notifier != nil {
		r.Notifier.Notify(types.UpdateEvent{
			Container: result.Name,
			Image:     result.Image,
			Updated:   result.Updated,
			Err:       err,
		})
	}

	return result, err
}

func (r *Recreator) recreate(
	ctx context.Context,
	current types.Container,
	snapshot types.ContainerSnapshot,
	result UpdateResult,
) (UpdateResult, error) {
	fields := logrus.Fields{"container": snapshot.Name, "image": result.Image}

	if err := r.client.PullImage(ctx, result.Image); err != nil {
		return result, fmt.Errorf("%w: %s: %w", ErrPullFailed, result.Image, err)
	}

	var warnings *multierror.Error

	if err := r.client.StopContainer(ctx, current, r.StopTimeout); err != nil {
		logrus.WithError(err).WithFields(fields).Warn("Failed to stop container, continuing")

		warnings = multierror.Append(warnings, err)
	}

	if err := r.client.RemoveContainer(ctx, current); err != nil {
		logrus.WithError(err).WithFields(fields).Warn("Failed to remove container, continuing")

		warnings = multierror.Append(warnings, err)
	}

	newID, err := r.client.CreateContainer(ctx, snapshot, result.Image)
	if err != nil {
		result.Warnings = warnings.ErrorOrNil()

		return result, fmt.Errorf("%w: %w", ErrCreateFailed, err)
	}

	result.NewID = newID

	if !snapshot.HasSpecialNetworkMode() {
		primary := snapshot.PrimaryNetwork()

		for _, network := range slices.Sorted(maps.Keys(snapshot.Networks)) {
			if network == primary {
				continue
			}

			err := r.client.ConnectNetwork(ctx, newID, network, snapshot.Networks[network])
			if err != nil {
				logrus.WithError(err).WithFields(fields).WithField("network", network).
					Warn("Failed to reconnect network, continuing")

				warnings = multierror.Append(warnings, err)
			}
		}
	}

	result.Warnings = warnings.ErrorOrNil()

	if err := r.client.StartContainer(ctx, newID); err != nil {
		return result, fmt.Errorf("%w: %w", ErrStartFailed, err)
	}

	result.Updated = true

	return result, nil
}

func (r *Recreator) record(result string) {
	if r.Recorder != nil {
		r.Recorder.RegisterUpdate(result)
	}
}

// TargetImage returns the reference pulled when the container is recreated.
//
// The configured image wins. A digest pinned reference, of any digest algorithm and with or
// without a tag, is moved to <repository>:latest. Without a configured image the classification
// reference is used.
func TargetImage(c types.Container) string {
	if configured := c.ImageName(); configured != "" {
		if named, _, pinned := strings.Cut(configured, "@"); pinned {
			return types.ImageReference{
				Repository: helpers.ParseReference(named).Repository,
				Tag:        helpers.DefaultTag,
			}.String()
		}

		return configured
	}

	return ImageReference(c)
}

// logSnapshot records the configuration about to be destroyed.
func logSnapshot(snapshot types.ContainerSnapshot) {
	entry := logrus.WithField("container", snapshot.Name)

	encoded, err := json.Marshal(snapshot)
	if err != nil {
		entry.WithError(err).Warn("Failed to encode container snapshot")

		return
	}

	entry.WithField("snapshot", string(encoded)).Info("Recreating container")
}
