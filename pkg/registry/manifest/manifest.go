// Package manifest provides functionality for constructing URLs to access container
// image manifests in docker-monitor. It also defines the manifest media types offered
// during content negotiation, in priority order.
package manifest

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/sirupsen/logrus"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/nicholas-fedor/docker-monitor/pkg/types"
)

// Legacy Docker distribution media types.
const (
	MediaTypeDockerManifestList = "application/vnd.docker.distribution.manifest.list.v2+json"
	MediaTypeDockerManifest     = "application/vnd.docker.distribution.manifest.v2+json"
)

// AcceptedMediaTypes lists the manifest media types tried against a registry, in order.
// Multi-arch indexes come first so the digest matches what a pull records locally.
var AcceptedMediaTypes = []string{
	ocispec.MediaTypeImageIndex,
	MediaTypeDockerManifestList,
	ocispec.MediaTypeImageManifest,
	MediaTypeDockerManifest,
}

// Errors for manifest operations.
var (
	// errInvalidEndpoint indicates the registry endpoint could not be parsed.
	errInvalidEndpoint = errors.New("invalid registry endpoint")
	// errMissingPath indicates the registry target has no repository path.
	errMissingPath = errors.New("registry target has no repository path")
)

// DefaultEndpoint returns the base URL used to reach a registry host.
func DefaultEndpoint(host string) string {
	return "https://" + host
}

// BuildManifestURL constructs the manifest URL for a repository path and tag.
//
// Parameters:
//   - endpoint: Registry base URL (e.g., "https://registry-1.docker.io").
//   - target: Registry host and repository path.
//   - tag: Tag or digest to fetch.
//
// Returns:
//   - string: Manifest URL (e.g., "https://registry-1.docker.io/v2/library/redis/manifests/latest").
//   - error: Non-nil if the endpoint is invalid or the path is empty.
func BuildManifestURL(endpoint string, target types.RegistryTarget, tag string) (string, error) {
	if target.Path == "" {
		return "", errMissingPath
	}

	base, err := url.Parse(endpoint)
	if err != nil || base.Host == "" {
		return "", fmt.Errorf("%w: %q", errInvalidEndpoint, endpoint)
	}

	manifestURL := url.URL{
		Scheme: base.Scheme,
		Host:   base.Host,
		Path:   fmt.Sprintf("%s/v2/%s/manifests/%s", base.Path, target.Path, tag),
	}
	urlStr := manifestURL.String()

	logrus.WithFields(logrus.Fields{
		"host": target.Host,
		"path": target.Path,
		"tag":  tag,
		"url":  urlStr,
	}).Debug("Built manifest URL")

	return urlStr, nil
}
