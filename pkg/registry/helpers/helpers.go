// Package helpers provides utility functions for registry-related operations in docker-monitor.
// It parses image references, routes repositories to registry hosts, and normalizes digests.
package helpers

import (
	"fmt"
	"strings"

	"github.com/distribution/reference"
	"github.com/opencontainers/go-digest"
	"github.com/sirupsen/logrus"

	"github.com/nicholas-fedor/docker-monitor/pkg/types"
)

// Domains for Docker Hub, the default registry.
const (
	DefaultRegistryDomain = "docker.io"
	DefaultRegistryHost   = "index.docker.io"
)

// Registry hosts used for manifest routing.
const (
	// OfficialRegistryHost serves manifests for Docker Hub repositories.
	OfficialRegistryHost = "registry-1.docker.io"
	// LinuxServerHost is the linuxserver.io convenience alias.
	LinuxServerHost = "lscr.io"
	// LinuxServerUpstreamHost serves the images published under LinuxServerHost.
	LinuxServerUpstreamHost = "ghcr.io"
	// LinuxServerNamespace is the path prefix mirrored between LinuxServerHost and its upstream.
	LinuxServerNamespace = "linuxserver/"
)

// DefaultTag is used when a reference carries no tag.
const DefaultTag = "latest"

// ParseReference splits an image reference into repository and tag.
//
// The split happens on the last ':' only when it comes after the last '/', so a registry
// port is never mistaken for a tag. It never fails: a missing or empty tag becomes "latest".
func ParseReference(ref string) types.ImageReference {
	ref = strings.TrimSpace(ref)

	repository, tag := ref, ""
	if colon := strings.LastIndex(ref, ":"); colon > strings.LastIndex(ref, "/") {
		repository, tag = ref[:colon], ref[colon+1:]
	}

	if tag == "" {
		tag = DefaultTag
	}

	return types.ImageReference{Repository: repository, Tag: tag}
}

// ResolveTarget maps a repository to the registry host and path its manifests are served from.
func ResolveTarget(repository string) types.RegistryTarget {
	if path, ok := strings.CutPrefix(repository, LinuxServerHost+"/"); ok {
		return types.RegistryTarget{Host: LinuxServerHost, Path: path}
	}

	first, rest, found := strings.Cut(repository, "/")
	if !found {
		return types.RegistryTarget{Host: OfficialRegistryHost, Path: "library/" + repository}
	}

	if strings.ContainsAny(first, ".:") {
		return types.RegistryTarget{Host: first, Path: rest}
	}

	return types.RegistryTarget{Host: OfficialRegistryHost, Path: repository}
}

// GetRegistryAddress extracts the registry address from an image reference.
// It returns the domain part of the reference, mapping Docker Hub’s default domain
// to its canonical host address if applicable.
func GetRegistryAddress(imageRef string) (string, error) {
	normalizedRef, err := reference.ParseNormalizedNamed(imageRef)
	if err != nil {
		return "", fmt.Errorf("failed to parse image reference: %w", err)
	}

	address := reference.Domain(normalizedRef)
	if address == DefaultRegistryDomain {
		address = DefaultRegistryHost
	}

	return address, nil
}

// NormalizeDigest standardizes a digest string for comparison.
// It trims whitespace and enclosing quotes, drops any "repository@" prefix, and lower-cases the result.
func NormalizeDigest(value string) string {
	value = strings.Trim(strings.TrimSpace(value), `"'`)

	if _, after, found := strings.Cut(value, "@"); found {
		value = after
	}

	return strings.ToLower(value)
}

// NormalizeDigests normalizes a list of digests, dropping empty and duplicate entries while
// keeping the original order.
func NormalizeDigests(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	digests := make([]string, 0, len(values))

	for _, value := range values {
		normalized := NormalizeDigest(value)
		if normalized == "" {
			continue
		}

		if _, ok := seen[normalized]; ok {
			continue
		}

		if !ValidDigest(normalized) {
			logrus.WithField("digest", normalized).Debug("Local digest is not a well-formed content digest")
		}

		seen[normalized] = struct{}{}
		digests = append(digests, normalized)
	}

	return digests
}

// ValidDigest reports whether a normalized digest is a well-formed algorithm:hex content digest.
func ValidDigest(value string) bool {
	return digest.Digest(value).Validate() == nil
}
