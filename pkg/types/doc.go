// Package types defines core interfaces and structs for docker-monitor.
// It provides abstractions for containers, the runtime client, update statuses, recreation
// snapshots, notifications, and registry interactions.
//
// Key components:
//   - Container: Interface for container metadata used by classification and recreation.
//   - Client: Interface for the container runtime operations.
//   - UpdateStatus: Classification result for a container.
//   - ContainerSnapshot: Configuration captured before a recreation.
//   - Notifier: Interface for update outcome notifications.
//   - RegistryCredentials, TokenResponse: Registry authentication payloads.
//
// Usage example:
//
//	var c types.Container
//	status := classifier.Classify(ctx, c, false)
//	if status == types.StatusUpdateAvailable {
//	    snapshot := c.Snapshot()
//	}
package types
