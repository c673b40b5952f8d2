package container

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	cerrdefs "github.com/containerd/errdefs"
	dockerContainer "github.com/docker/docker/api/types/container"
	dockerFilters "github.com/docker/docker/api/types/filters"
	dockerImage "github.com/docker/docker/api/types/image"
	dockerNetwork "github.com/docker/docker/api/types/network"
	dockerClient "github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"

	"github.com/nicholas-fedor/docker-monitor/internal/util"
	"github.com/nicholas-fedor/docker-monitor/pkg/registry"
	"github.com/nicholas-fedor/docker-monitor/pkg/types"
)

// Default timeouts for runtime calls.
const (
	DefaultPullTimeout    = 2 * time.Minute
	DefaultRuntimeTimeout = 30 * time.Second
)

// client is the concrete implementation of the types.Client interface.
//
// It wraps the Docker API client and applies custom behavior via ClientOptions.
type client struct {
	api dockerClient.APIClient
	ClientOptions
}

// ClientOptions configures the behavior of the dockerClient wrapper around the Docker API.
type ClientOptions struct {
	PullTimeout    time.Duration // Upper bound for an image pull, including reading the progress stream.
	RuntimeTimeout time.Duration // Upper bound for every other runtime call.
}

// NewClient initializes a new Client instance for Docker API interactions.
//
// It configures the client using environment variables (DOCKER_HOST, DOCKER_TLS_VERIFY,
// DOCKER_API_VERSION) and validates a forced API version, falling back to autonegotiation if
// the daemon rejects it.
func NewClient(opts ClientOptions) (types.Client, error) {
	ctx := context.Background()

	cli, err := dockerClient.NewClientWithOpts(
		dockerClient.FromEnv,
		dockerClient.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Docker client: %w", err)
	}

	if version := strings.Trim(os.Getenv("DOCKER_API_VERSION"), "\""); version != "" {
		pingCli, err := dockerClient.NewClientWithOpts(
			dockerClient.FromEnv,
			dockerClient.WithVersion(version),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Docker client: %w", err)
		}

		if _, err := pingCli.Ping(ctx); err != nil && strings.Contains(err.Error(), "page not found") {
			logrus.WithFields(logrus.Fields{
				"version":  version,
				"error":    err,
				"endpoint": "/_ping",
			}).Warn("Invalid API version; falling back to autonegotiation")
			cli.NegotiateAPIVersion(ctx)
		} else {
			cli = pingCli
		}
	} else {
		cli.NegotiateAPIVersion(ctx)
	}

	logrus.WithField("client_version", cli.ClientVersion()).Debug("Initialized Docker client")

	return NewClientWithAPI(cli, opts), nil
}

// NewClientWithAPI wraps an existing Docker API client.
func NewClientWithAPI(api dockerClient.APIClient, opts ClientOptions) types.Client {
	if opts.PullTimeout <= 0 {
		opts.PullTimeout = DefaultPullTimeout
	}

	if opts.RuntimeTimeout <= 0 {
		opts.RuntimeTimeout = DefaultRuntimeTimeout
	}

	return &client{api: api, ClientOptions: opts}
}

// ListAllContainers lists every container on the host, including stopped ones.
//
// Containers removed between the list and the inspection are skipped.
func (c *client) ListAllContainers(ctx context.Context) ([]types.Container, error) {
	listCtx, cancel := context.WithTimeout(ctx, c.RuntimeTimeout)
	defer cancel()

	summaries, err := c.api.ContainerList(listCtx, dockerContainer.ListOptions{All: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errListContainersFailed, err)
	}

	containers := make([]types.Container, 0, len(summaries))

	for _, summary := range summaries {
		container, err := c.GetContainer(ctx, summary.ID)
		if err != nil {
			if cerrdefs.IsNotFound(err) {
				logrus.WithField("container_id", types.ContainerID(summary.ID).ShortID()).
					Debug("Container no longer exists")

				continue
			}

			return nil, err
		}

		containers = append(containers, container)
	}

	logrus.WithField("count", len(containers)).Debug("Listed all containers")

	return containers, nil
}

// GetContainer inspects a container and its image.
//
// A failed image inspection is not an error: the container is returned without image info.
func (c *client) GetContainer(ctx context.Context, nameOrID string) (types.Container, error) {
	ctx, cancel := context.WithTimeout(ctx, c.RuntimeTimeout)
	defer cancel()

	containerInfo, err := c.api.ContainerInspect(ctx, nameOrID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errInspectContainerFailed, err)
	}

	var imageInfo *dockerImage.InspectResponse

	inspected, err := c.api.ImageInspect(ctx, containerInfo.Image)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"container": util.NormalizeContainerName(containerInfo.Name),
			"image_id":  types.ImageID(containerInfo.Image).ShortID(),
		}).Debug("Failed to inspect container image")
	} else {
		imageInfo = &inspected
	}

	return NewContainer(&containerInfo, imageInfo), nil
}

// PullImage pulls ref and reads the progress stream until the pull completes or reports an error.
func (c *client) PullImage(ctx context.Context, ref string) error {
	fields := logrus.Fields{"image": ref}

	options, err := registry.GetPullOptions(ref)
	if err != nil {
		return fmt.Errorf("%w: %w", errPullImageFailed, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.PullTimeout)
	defer cancel()

	logrus.WithFields(fields).Debug("Pulling image")

	response, err := c.api.ImagePull(ctx, ref, options)
	if err != nil {
		return fmt.Errorf("%w: %w", errPullImageFailed, err)
	}
	defer response.Close()

	// The daemon reports failures after the first layer inside the stream, on a 200 response.
	if err := jsonmessage.DisplayJSONMessagesStream(response, io.Discard, 0, false, nil); err != nil {
		return fmt.Errorf("%w: %w", errReadPullResponseFailed, err)
	}

	logrus.WithFields(fields).Debug("Pulled image")

	return nil
}

// StopContainer stops a container, giving it timeout to exit before it is killed.
func (c *client) StopContainer(ctx context.Context, container types.Container, timeout time.Duration) error {
	seconds := int(timeout.Seconds())

	ctx, cancel := context.WithTimeout(ctx, timeout+c.RuntimeTimeout)
	defer cancel()

	if err := c.api.ContainerStop(ctx, string(container.ID()), dockerContainer.StopOptions{Timeout: &seconds}); err != nil {
		return fmt.Errorf("%w: %w", errStopContainerFailed, err)
	}

	return nil
}

// RemoveContainer removes a container, keeping its volumes.
func (c *client) RemoveContainer(ctx context.Context, container types.Container) error {
	ctx, cancel := context.WithTimeout(ctx, c.RuntimeTimeout)
	defer cancel()

	if err := c.api.ContainerRemove(ctx, string(container.ID()), dockerContainer.RemoveOptions{}); err != nil {
		return fmt.Errorf("%w: %w", errRemoveContainerFailed, err)
	}

	return nil
}

// CreateContainer creates a container named after the snapshot, running image.
//
// The primary network is attached at creation with its captured endpoint settings. Callers
// reconnect the remaining networks with ConnectNetwork.
func (c *client) CreateContainer(
	ctx context.Context,
	snapshot types.ContainerSnapshot,
	image string,
) (types.ContainerID, error) {
	ctx, cancel := context.WithTimeout(ctx, c.RuntimeTimeout)
	defer cancel()

	config := &dockerContainer.Config{
		Image:      image,
		Env:        snapshot.Env,
		Cmd:        snapshot.Cmd,
		Entrypoint: snapshot.Entrypoint,
		Labels:     snapshot.Labels,
		WorkingDir: snapshot.WorkingDir,
		User:       snapshot.User,
	}

	hostConfig := &dockerContainer.HostConfig{
		Binds:        snapshot.Binds,
		PortBindings: snapshot.PortBindings,
		NetworkMode:  dockerContainer.NetworkMode(snapshot.NetworkMode),
	}

	if snapshot.RestartPolicy != "" {
		hostConfig.RestartPolicy = dockerContainer.RestartPolicy{
			Name: dockerContainer.RestartPolicyMode(snapshot.RestartPolicy),
		}
	}

	var networkConfig *dockerNetwork.NetworkingConfig

	primary := snapshot.PrimaryNetwork()
	if attachment, ok := snapshot.Networks[primary]; ok {
		networkConfig = &dockerNetwork.NetworkingConfig{
			EndpointsConfig: map[string]*dockerNetwork.EndpointSettings{
				primary: endpointSettings(attachment),
			},
		}
	}

	response, err := c.api.ContainerCreate(ctx, config, hostConfig, networkConfig, nil, snapshot.Name)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errCreateContainerFailed, err)
	}

	for _, warning := range response.Warnings {
		logrus.WithField("container", snapshot.Name).Warn(warning)
	}

	return types.ContainerID(response.ID), nil
}

// ConnectNetwork attaches a container to a network with its previous endpoint settings.
func (c *client) ConnectNetwork(
	ctx context.Context,
	id types.ContainerID,
	network string,
	attachment types.NetworkAttachment,
) error {
	ctx, cancel := context.WithTimeout(ctx, c.RuntimeTimeout)
	defer cancel()

	if err := c.api.NetworkConnect(ctx, network, string(id), endpointSettings(attachment)); err != nil {
		return fmt.Errorf("%w: %s: %w", errConnectNetworkFailed, network, err)
	}

	return nil
}

// endpointSettings converts a captured attachment back into engine endpoint settings.
func endpointSettings(attachment types.NetworkAttachment) *dockerNetwork.EndpointSettings {
	endpoint := &dockerNetwork.EndpointSettings{
		Aliases: attachment.Aliases,
		Links:   attachment.Links,
	}

	if attachment.IPv4Address != "" || attachment.IPv6Address != "" || len(attachment.LinkLocalIPs) > 0 {
		endpoint.IPAMConfig = &dockerNetwork.EndpointIPAMConfig{
			IPv4Address:  attachment.IPv4Address,
			IPv6Address:  attachment.IPv6Address,
			LinkLocalIPs: attachment.LinkLocalIPs,
		}
	}

	return endpoint
}

// StartContainer starts a created container.
func (c *client) StartContainer(ctx context.Context, id types.ContainerID) error {
	ctx, cancel := context.WithTimeout(ctx, c.RuntimeTimeout)
	defer cancel()

	if err := c.api.ContainerStart(ctx, string(id), dockerContainer.StartOptions{}); err != nil {
		return fmt.Errorf("%w: %w", errStartContainerFailed, err)
	}

	return nil
}

// ContainerStats takes a one-shot stats sample and computes usage figures from it.
func (c *client) ContainerStats(ctx context.Context, id types.ContainerID) (types.ContainerStats, error) {
	ctx, cancel := context.WithTimeout(ctx, c.RuntimeTimeout)
	defer cancel()

	response, err := c.api.ContainerStatsOneShot(ctx, string(id))
	if err != nil {
		return types.ContainerStats{}, fmt.Errorf("%w: %w", errStatsFailed, err)
	}
	defer response.Body.Close()

	var sample dockerContainer.StatsResponse
	if err := json.NewDecoder(response.Body).Decode(&sample); err != nil {
		return types.ContainerStats{}, fmt.Errorf("%w: %w", errStatsFailed, err)
	}

	return ComputeStats(sample), nil
}

// danglingFilter selects untagged images.
func danglingFilter() dockerFilters.Args {
	return dockerFilters.NewArgs(dockerFilters.Arg("dangling", "true"))
}

// ListDanglingImages lists dangling images.
func (c *client) ListDanglingImages(ctx context.Context) ([]types.ImageSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, c.RuntimeTimeout)
	defer cancel()

	images, err := c.api.ImageList(ctx, dockerImage.ListOptions{All: true, Filters: danglingFilter()})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errListImagesFailed, err)
	}

	summaries := make([]types.ImageSummary, 0, len(images))
	for _, image := range images {
		tags := image.RepoTags
		if tags == nil {
			tags = []string{}
		}

		summaries = append(summaries, types.ImageSummary{ID: image.ID, Tags: tags})
	}

	return summaries, nil
}

// PruneDanglingImages removes dangling images.
func (c *client) PruneDanglingImages(ctx context.Context) (types.PruneReport, error) {
	ctx, cancel := context.WithTimeout(ctx, c.PullTimeout)
	defer cancel()

	report, err := c.api.ImagesPrune(ctx, danglingFilter())
	if err != nil {
		return types.PruneReport{}, fmt.Errorf("%w: %w", errPruneImagesFailed, err)
	}

	deleted := make([]string, 0, len(report.ImagesDeleted))

	for _, item := range report.ImagesDeleted {
		if item.Deleted != "" {
			deleted = append(deleted, item.Deleted)
		}
	}

	logrus.WithFields(logrus.Fields{
		"deleted":         len(deleted),
		"space_reclaimed": report.SpaceReclaimed,
	}).Info("Pruned dangling images")

	return types.PruneReport{ImagesDeleted: deleted, SpaceReclaimed: report.SpaceReclaimed}, nil
}

// Ping checks that the daemon answers.
func (c *client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.RuntimeTimeout)
	defer cancel()

	if _, err := c.api.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", errPingFailed, err)
	}

	return nil
}

// GetVersion returns the client's API version.
func (c *client) GetVersion() string {
	return c.api.ClientVersion()
}
