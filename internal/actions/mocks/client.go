// Package mocks provides mock implementations for testing docker-monitor components.
package mocks

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	cerrdefs "github.com/containerd/errdefs"
	dockerContainer "github.com/docker/docker/api/types/container"
	dockerImage "github.com/docker/docker/api/types/image"
	dockerNetwork "github.com/docker/docker/api/types/network"

	"github.com/nicholas-fedor/docker-monitor/pkg/types"
)

// Operation names used as TestData.Errors keys and in MockClient.Calls.
const (
	OpList    = "list"
	OpGet     = "get"
	OpPull    = "pull"
	OpStop    = "stop"
	OpRemove  = "remove"
	OpCreate  = "create"
	OpConnect = "connect"
	OpStart   = "start"
	OpStats   = "stats"
	OpImages  = "images"
	OpPrune   = "prune"
	OpPing    = "ping"
)

// TestData holds configuration data for MockClient's test behavior.
type TestData struct {
	Containers []types.Container                          // Containers known to the runtime.
	Errors     map[string]error                           // Failures keyed by operation name, "connect:<network>" for networks.
	Pulled     map[string]*dockerImage.InspectResponse    // Image metadata by reference, used by created containers.
	Stats      map[types.ContainerID]types.ContainerStats // Stats samples by container ID.
	Dangling   []types.ImageSummary                       // Dangling images.
	Pruned     types.PruneReport                          // Result of a prune.
}

// Connection records a ConnectNetwork call.
type Connection struct {
	ID         types.ContainerID
	Network    string
	Attachment types.NetworkAttachment
}

// Creation records a CreateContainer call.
type Creation struct {
	Snapshot types.ContainerSnapshot
	Image    string
}

// MockClient is an in-memory container runtime implementing types.Client.
type MockClient struct {
	TestData *TestData

	mu          sync.Mutex
	Calls       []string
	Pulls       []string
	StopTimeout time.Duration
	Creations   []Creation
	Connections []Connection
	Started     []types.ContainerID
	created     int
}

// CreateMockClient constructs a new MockClient instance for testing.
func CreateMockClient(data *TestData) *MockClient {
	if data.Errors == nil {
		data.Errors = map[string]error{}
	}

	return &MockClient{TestData: data}
}

// CallsSnapshot returns a copy of the operations invoked so far.
func (client *MockClient) CallsSnapshot() []string {
	client.mu.Lock()
	defer client.mu.Unlock()

	return append([]string(nil), client.Calls...)
}

func (client *MockClient) call(operation string) error {
	client.mu.Lock()
	defer client.mu.Unlock()

	client.Calls = append(client.Calls, operation)

	return client.TestData.Errors[operation]
}

// ListAllContainers returns the known containers.
func (client *MockClient) ListAllContainers(_ context.Context) ([]types.Container, error) {
	if err := client.call(OpList); err != nil {
		return nil, err
	}

	client.mu.Lock()
	defer client.mu.Unlock()

	return append([]types.Container(nil), client.TestData.Containers...), nil
}

// GetContainer finds a container by name or ID, failing with a not found error.
func (client *MockClient) GetContainer(_ context.Context, nameOrID string) (types.Container, error) {
	if err := client.call(OpGet); err != nil {
		return nil, err
	}

	client.mu.Lock()
	defer client.mu.Unlock()

	for _, c := range client.TestData.Containers {
		if c.Name() == nameOrID || string(c.ID()) == nameOrID {
			return c, nil
		}
	}

	return nil, fmt.Errorf("no such container %s: %w", nameOrID, cerrdefs.ErrNotFound)
}

// PullImage records the pulled reference.
func (client *MockClient) PullImage(_ context.Context, ref string) error {
	if err := client.call(OpPull); err != nil {
		return err
	}

	client.mu.Lock()
	defer client.mu.Unlock()

	client.Pulls = append(client.Pulls, ref)

	return nil
}

// StopContainer records the grace period.
func (client *MockClient) StopContainer(_ context.Context, _ types.Container, timeout time.Duration) error {
	if err := client.call(OpStop); err != nil {
		return err
	}

	client.mu.Lock()
	defer client.mu.Unlock()

	client.StopTimeout = timeout

	return nil
}

// RemoveContainer forgets the container. The configured error still removes nothing.
func (client *MockClient) RemoveContainer(_ context.Context, c types.Container) error {
	if err := client.call(OpRemove); err != nil {
		return err
	}

	client.mu.Lock()
	defer client.mu.Unlock()

	kept := client.TestData.Containers[:0]

	for _, existing := range client.TestData.Containers {
		if existing.ID() != c.ID() {
			kept = append(kept, existing)
		}
	}

	client.TestData.Containers = kept

	return nil
}

// CreateContainer adds a stopped container built from the snapshot and the pulled image.
func (client *MockClient) CreateContainer(
	_ context.Context,
	snapshot types.ContainerSnapshot,
	image string,
) (types.ContainerID, error) {
	if err := client.call(OpCreate); err != nil {
		return "", err
	}

	client.mu.Lock()
	defer client.mu.Unlock()

	client.created++
	id := "created-" + strconv.Itoa(client.created)

	client.Creations = append(client.Creations, Creation{Snapshot: snapshot, Image: image})

	networks := make(map[string]*dockerNetwork.EndpointSettings, len(snapshot.Networks))
	for name := range snapshot.Networks {
		networks[name] = &dockerNetwork.EndpointSettings{}
	}

	created := CreateMockContainerWithConfig(
		id,
		snapshot.Name,
		&dockerContainer.Config{
			Image:      image,
			Env:        snapshot.Env,
			Cmd:        snapshot.Cmd,
			Entrypoint: snapshot.Entrypoint,
			Labels:     snapshot.Labels,
			WorkingDir: snapshot.WorkingDir,
			User:       snapshot.User,
		},
		&dockerContainer.HostConfig{
			Binds:         snapshot.Binds,
			PortBindings:  snapshot.PortBindings,
			NetworkMode:   dockerContainer.NetworkMode(snapshot.NetworkMode),
			RestartPolicy: dockerContainer.RestartPolicy{Name: dockerContainer.RestartPolicyMode(snapshot.RestartPolicy)},
		},
		networks,
		client.TestData.Pulled[image],
	)

	client.TestData.Containers = append(client.TestData.Containers, created)

	return types.ContainerID(id), nil
}

// ConnectNetwork records the connection.
func (client *MockClient) ConnectNetwork(
	_ context.Context,
	id types.ContainerID,
	network string,
	attachment types.NetworkAttachment,
) error {
	if err := client.call(OpConnect + ":" + network); err != nil {
		return err
	}

	client.mu.Lock()
	defer client.mu.Unlock()

	client.Connections = append(client.Connections, Connection{ID: id, Network: network, Attachment: attachment})

	return nil
}

// StartContainer records the started ID.
func (client *MockClient) StartContainer(_ context.Context, id types.ContainerID) error {
	if err := client.call(OpStart); err != nil {
		return err
	}

	client.mu.Lock()
	defer client.mu.Unlock()

	client.Started = append(client.Started, id)

	return nil
}

// ContainerStats returns the configured sample.
func (client *MockClient) ContainerStats(_ context.Context, id types.ContainerID) (types.ContainerStats, error) {
	if err := client.call(OpStats); err != nil {
		return types.ContainerStats{}, err
	}

	return client.TestData.Stats[id], nil
}

// ListDanglingImages returns the configured dangling images.
func (client *MockClient) ListDanglingImages(_ context.Context) ([]types.ImageSummary, error) {
	if err := client.call(OpImages); err != nil {
		return nil, err
	}

	return client.TestData.Dangling, nil
}

// PruneDanglingImages returns the configured report.
func (client *MockClient) PruneDanglingImages(_ context.Context) (types.PruneReport, error) {
	if err := client.call(OpPrune); err != nil {
		return types.PruneReport{}, err
	}

	return client.TestData.Pruned, nil
}

// Ping fails only when configured to.
func (client *MockClient) Ping(_ context.Context) error {
	return client.call(OpPing)
}

// GetVersion returns a mock Docker API client version.
func (client *MockClient) GetVersion() string {
	return "1.51"
}
