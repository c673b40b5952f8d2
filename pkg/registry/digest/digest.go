// Package digest resolves the current manifest digest of an image reference from its registry.
// It performs content negotiation over the manifest media types, the bearer token flow on a 401
// challenge, and the lscr.io to ghcr.io mirror fallback.
package digest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nicholas-fedor/docker-monitor/pkg/registry/auth"
	"github.com/nicholas-fedor/docker-monitor/pkg/registry/helpers"
	"github.com/nicholas-fedor/docker-monitor/pkg/registry/manifest"
	"github.com/nicholas-fedor/docker-monitor/pkg/types"
)

// ContentDigestHeader is the HTTP header key used to retrieve the digest from a registry’s response.
const ContentDigestHeader = "Docker-Content-Digest"

// DefaultTimeout bounds every single registry request.
const DefaultTimeout = 12 * time.Second

// UserAgent is the User-Agent header value used in registry requests.
// It can be customized at build time using linker flags.
var UserAgent = "docker-monitor/unknown"

// Errors for digest resolution.
var (
	// ErrNotFound indicates the registry does not know the repository or tag.
	ErrNotFound = errors.New("manifest not found on registry")
	// ErrUnauthorized indicates the registry rejected the request, including after a token retry.
	ErrUnauthorized = errors.New("registry authorization failed")
	// ErrNoDigest indicates every negotiation attempt completed without a digest header.
	ErrNoDigest = errors.New("registry returned no content digest")
	// ErrRequestFailed indicates a network failure, timeout, or unexpected registry status.
	ErrRequestFailed = errors.New("registry request failed")
)

// Resolver fetches remote manifest digests.
type Resolver struct {
	client      *http.Client
	endpoint    func(host string) string
	credentials func(host string) string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithHTTPClient replaces the HTTP client, for example to change its transport.
func WithHTTPClient(client *http.Client) Option {
	return func(r *Resolver) {
		r.client = client
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(r *Resolver) {
		r.client.Timeout = timeout
	}
}

// WithEndpoint overrides how a registry host maps to its base URL.
func WithEndpoint(endpoint func(host string) string) Option {
	return func(r *Resolver) {
		r.endpoint = endpoint
	}
}

// WithCredentials sets a lookup returning base64 "username:password" credentials for a registry host.
// The credentials are only sent to token endpoints.
func WithCredentials(credentials func(host string) string) Option {
	return func(r *Resolver) {
		r.credentials = credentials
	}
}

// NewResolver creates a Resolver that talks to registries over HTTPS.
func NewResolver(opts ...Option) *Resolver {
	resolver := &Resolver{
		client:      &http.Client{Timeout: DefaultTimeout},
		endpoint:    manifest.DefaultEndpoint,
		credentials: func(string) string { return "" },
	}

	for _, opt := range opts {
		opt(resolver)
	}

	return resolver
}

// Resolve returns the remote digest for ref, or an empty string when it cannot be determined.
// It never fails outward: every failure mode reduces to "no digest".
func (r *Resolver) Resolve(ctx context.Context, ref string) string {
	remoteDigest, err := r.ResolveDigest(ctx, ref)
	if err != nil {
		logrus.WithError(err).WithField("image", ref).Debug("Failed to resolve remote digest")

		return ""
	}

	return remoteDigest
}

// ResolveDigest returns the remote digest for ref, or a typed failure.
//
// A linuxserver image on lscr.io that is not found gets exactly one more attempt against
// ghcr.io with the same path and tag.
func (r *Resolver) ResolveDigest(ctx context.Context, ref string) (string, error) {
	imageRef := helpers.ParseReference(ref)
	target := helpers.ResolveTarget(imageRef.Repository)

	fields := logrus.Fields{
		"image": ref,
		"host":  target.Host,
		"path":  target.Path,
		"tag":   imageRef.Tag,
	}

	remoteDigest, err := r.fetchFromHost(ctx, target, imageRef.Tag)
	if errors.Is(err, ErrNotFound) &&
		target.Host == helpers.LinuxServerHost &&
		strings.HasPrefix(target.Path, helpers.LinuxServerNamespace) {
		logrus.WithFields(fields).Debug("Manifest not found on mirror alias, trying upstream")

		target.Host = helpers.LinuxServerUpstreamHost
		remoteDigest, err = r.fetchFromHost(ctx, target, imageRef.Tag)
	}

	if err != nil {
		return "", err
	}

	logrus.WithFields(fields).WithField("remote_digest", remoteDigest).Debug("Fetched remote digest")

	return remoteDigest, nil
}

// fetchFromHost runs the unauthenticated negotiation and, on a bearer challenge, one token retry.
func (r *Resolver) fetchFromHost(ctx context.Context, target types.RegistryTarget, tag string) (string, error) {
	manifestURL, err := manifest.BuildManifestURL(r.endpoint(target.Host), target, tag)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}

	result := r.negotiate(ctx, manifestURL, "")
	if result.status != http.StatusUnauthorized {
		return result.digest, result.err
	}

	challenge, err := auth.ParseChallenge(result.challenge)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}

	token, err := auth.FetchToken(ctx, r.client, challenge, r.credentials(target.Host))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}

	result = r.negotiate(ctx, manifestURL, token)
	if result.status == http.StatusUnauthorized {
		return "", fmt.Errorf("%w: rejected bearer token for %s", ErrUnauthorized, target.Host)
	}

	return result.digest, result.err
}

// negotiation is the outcome of one pass over the accepted media types.
type negotiation struct {
	digest    string
	status    int
	challenge string
	err       error
}

// negotiate tries each media type in order, HEAD first and GET when HEAD yields no digest.
func (r *Resolver) negotiate(ctx context.Context, manifestURL, token string) negotiation {
	for _, mediaType := range manifest.AcceptedMediaTypes {
		for _, method := range []string{http.MethodHead, http.MethodGet} {
			resp, err := r.do(ctx, method, manifestURL, mediaType, token)
			if err != nil {
				return negotiation{err: fmt.Errorf("%w: %w", ErrRequestFailed, err)}
			}

			fields := logrus.Fields{
				"method":     method,
				"url":        manifestURL,
				"media_type": mediaType,
				"status":     resp.StatusCode,
			}

			switch {
			case resp.StatusCode == http.StatusUnauthorized:
				logrus.WithFields(fields).Debug("Registry requested authorization")

				return negotiation{
					status:    resp.StatusCode,
					challenge: resp.Header.Get(auth.ChallengeHeader),
					err:       ErrUnauthorized,
				}
			case resp.StatusCode == http.StatusNotFound:
				logrus.WithFields(fields).Debug("Registry returned 404 for manifest")

				return negotiation{status: resp.StatusCode, err: ErrNotFound}
			case resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices:
				if value := strings.TrimSpace(resp.Header.Get(ContentDigestHeader)); value != "" {
					return negotiation{digest: value, status: resp.StatusCode}
				}

				logrus.WithFields(fields).Debug("Registry response carried no digest header")
			case method == http.MethodHead:
				logrus.WithFields(fields).Debug("HEAD request rejected, falling back to GET")
			default:
				return negotiation{
					status: resp.StatusCode,
					err:    fmt.Errorf("%w: unexpected status %d", ErrRequestFailed, resp.StatusCode),
				}
			}
		}
	}

	return negotiation{err: ErrNoDigest}
}

// do executes a single manifest request. The body is always closed; only headers are used.
func (r *Resolver) do(ctx context.Context, method, manifestURL, mediaType, token string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, manifestURL, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", mediaType)
	req.Header.Set("User-Agent", UserAgent)

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}

	resp.Body.Close()

	return resp, nil
}
