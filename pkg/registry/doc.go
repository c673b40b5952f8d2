// Package registry provides functionality for interacting with container registries in docker-monitor.
// It looks up registry credentials and builds image pull options.
//
// Key components:
//   - auth: Bearer challenge parsing and token fetching.
//   - cache: Time-bounded memoization of remote digests.
//   - digest: Remote manifest digest resolution with content negotiation.
//   - helpers: Reference parsing, host routing, and digest normalization.
//   - manifest: Manifest URLs and accepted media types.
//   - registry: Pull options and credential lookup.
//
// Usage example:
//
//	opts, err := registry.GetPullOptions("ghcr.io/org/app:latest")
//	resolver := digest.NewResolver(digest.WithCredentials(registry.BasicCredentials))
//
// Credentials come from REPO_USER and REPO_PASS or from the Docker config file in DOCKER_CONFIG.
package registry
