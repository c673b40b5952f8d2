// Package auth provides functionality for authenticating with container registries.
// It parses bearer challenges and fetches short-lived tokens from the advertised realm.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/nicholas-fedor/docker-monitor/pkg/types"
)

// ChallengeHeader is the HTTP Header containing challenge instructions.
const ChallengeHeader = "WWW-Authenticate"

// maxTokenResponseBytes bounds the size of a token endpoint response body.
const maxTokenResponseBytes = 1 << 20

// Static errors for registry authentication failures.
var (
	// errUnsupportedChallenge indicates the registry asked for a scheme other than bearer.
	errUnsupportedChallenge = errors.New("unsupported challenge type from registry")
	// errInvalidChallengeHeader indicates the challenge had no realm to request a token from.
	errInvalidChallengeHeader = errors.New("challenge header did not include a realm")
	// errTokenRequestFailed indicates the token endpoint could not be reached or rejected the request.
	errTokenRequestFailed = errors.New("token request failed")
	// errEmptyToken indicates the token endpoint answered without a token.
	errEmptyToken = errors.New("token endpoint returned no token")
)

// Challenge holds the parameters of a bearer WWW-Authenticate challenge.
type Challenge struct {
	Realm   string
	Service string
	Scope   string
}

// ParseChallenge parses a WWW-Authenticate header value of the form
// `Bearer realm="...",service="...",scope="..."`.
//
// Parameter keys are matched case-insensitively while values keep their case.
func ParseChallenge(header string) (Challenge, error) {
	scheme, params, _ := strings.Cut(strings.TrimSpace(header), " ")
	if !strings.EqualFold(scheme, "bearer") {
		return Challenge{}, fmt.Errorf("%w: %q", errUnsupportedChallenge, scheme)
	}

	values := make(map[string]string)

	for pair := range strings.SplitSeq(params, ",") {
		if key, val, ok := strings.Cut(strings.TrimSpace(pair), "="); ok {
			values[strings.ToLower(strings.TrimSpace(key))] = strings.Trim(strings.TrimSpace(val), `"`)
		}
	}

	challenge := Challenge{
		Realm:   values["realm"],
		Service: values["service"],
		Scope:   values["scope"],
	}

	logrus.WithFields(logrus.Fields{
		"realm":   challenge.Realm,
		"service": challenge.Service,
		"scope":   challenge.Scope,
	}).Debug("Checking challenge header content")

	if challenge.Realm == "" {
		return Challenge{}, errInvalidChallengeHeader
	}

	return challenge, nil
}

// GetAuthURL builds the token request URL from the challenge, adding service and scope
// query parameters only when the challenge carried them.
func GetAuthURL(challenge Challenge) (*url.URL, error) {
	authURL, err := url.Parse(challenge.Realm)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errInvalidChallengeHeader, err)
	}

	q := authURL.Query()
	if challenge.Service != "" {
		q.Add("service", challenge.Service)
	}

	if challenge.Scope != "" {
		q.Add("scope", challenge.Scope)
	}

	authURL.RawQuery = q.Encode()

	return authURL, nil
}

// FetchToken requests a bearer token from the challenge realm.
//
// Parameters:
//   - ctx: Context for request lifecycle control.
//   - client: HTTP client carrying the request timeout.
//   - challenge: Parsed bearer challenge.
//   - basicAuth: Optional base64 "username:password" sent as Basic credentials.
//
// Returns:
//   - string: Token from the "token" or "access_token" field.
//   - error: Non-nil if the request fails or no token was returned.
func FetchToken(ctx context.Context, client *http.Client, challenge Challenge, basicAuth string) (string, error) {
	authURL, err := GetAuthURL(challenge)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, authURL.String(), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errTokenRequestFailed, err)
	}

	if basicAuth != "" {
		logrus.Debug("Credentials found.")
		req.Header.Set("Authorization", "Basic "+basicAuth)
	} else {
		logrus.Debug("No credentials found.")
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errTokenRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("%w: status %s", errTokenRequestFailed, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseBytes))
	if err != nil {
		return "", fmt.Errorf("%w: %w", errTokenRequestFailed, err)
	}

	tokenResponse := types.TokenResponse{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &tokenResponse); err != nil {
			return "", fmt.Errorf("%w: %w", errTokenRequestFailed, err)
		}
	}

	token := tokenResponse.BearerToken()
	if token == "" {
		return "", errEmptyToken
	}

	logrus.WithField("realm", challenge.Realm).Debug("Obtained bearer token")

	return token, nil
}
