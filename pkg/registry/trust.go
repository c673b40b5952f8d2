package registry

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	dockerCliConfig "github.com/docker/cli/cli/config"
	dockerConfigConfigfile "github.com/docker/cli/cli/config/configfile"
	dockerConfigCredentials "github.com/docker/cli/cli/config/credentials"
	dockerConfigTypes "github.com/docker/cli/cli/config/types"

	"github.com/nicholas-fedor/docker-monitor/pkg/registry/helpers"
)

// Environment variables holding registry credentials shared by every registry.
const (
	UserEnv     = "REPO_USER"
	PasswordEnv = "REPO_PASS"
)

// Errors for registry credential lookups.
var (
	// errUnsetRegAuthVars indicates REPO_USER and REPO_PASS are not both set.
	errUnsetRegAuthVars = errors.New("registry auth environment variables (REPO_USER, REPO_PASS) not set")
	// errFailedGetRegistryAddress indicates the registry address could not be derived from an image reference.
	errFailedGetRegistryAddress = errors.New("failed to get registry address")
	// errFailedLoadDockerConfig indicates the Docker configuration file could not be read.
	errFailedLoadDockerConfig = errors.New("failed to load Docker config")
	// errFailedMarshalAuthConfig indicates the auth config could not be encoded.
	errFailedMarshalAuthConfig = errors.New("failed to marshal auth config to JSON")
)

// EncodedAuth returns the encoded pull credentials for an image reference, or an empty string
// when none are configured.
func EncodedAuth(imageRef string) (string, error) {
	server, err := helpers.GetRegistryAddress(imageRef)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errFailedGetRegistryAddress, err)
	}

	auth, err := LookupCredentials(server)
	if err != nil {
		return "", err
	}

	if auth == (dockerConfigTypes.AuthConfig{}) {
		return "", nil
	}

	return EncodeAuth(auth)
}

// BasicCredentials returns the base64 "username:password" pair used against the token
// endpoint of a registry host. It returns an empty string when no credentials are found or
// they cannot be read, which makes token requests anonymous.
func BasicCredentials(host string) string {
	server := host
	if host == helpers.OfficialRegistryHost {
		server = helpers.DefaultRegistryHost
	}

	auth, err := LookupCredentials(server)
	if err != nil {
		logrus.WithError(err).WithField("host", host).Debug("Registry credentials unavailable")

		return ""
	}

	if auth.Username == "" || auth.Password == "" {
		return ""
	}

	return base64.StdEncoding.EncodeToString([]byte(auth.Username + ":" + auth.Password))
}

// LookupCredentials returns the credentials for a registry server, preferring the REPO_USER and
// REPO_PASS environment variables over the Docker config file. An empty AuthConfig means no
// credentials are configured.
func LookupCredentials(server string) (dockerConfigTypes.AuthConfig, error) {
	auth, err := EnvCredentials()
	if err == nil {
		return auth, nil
	}

	logrus.WithError(err).WithField("server", server).Debug("Environment auth not available, trying config file")

	return ConfigCredentials(server)
}

// EnvCredentials reads REPO_USER and REPO_PASS.
func EnvCredentials() (dockerConfigTypes.AuthConfig, error) {
	username := os.Getenv(UserEnv)
	password := os.Getenv(PasswordEnv)

	if username == "" || password == "" {
		return dockerConfigTypes.AuthConfig{}, errUnsetRegAuthVars
	}

	logrus.WithField("username", username).Debug("Loaded auth credentials from environment")

	return dockerConfigTypes.AuthConfig{Username: username, Password: password}, nil
}

// ConfigCredentials reads the credentials for server from the Docker config file in
// DOCKER_CONFIG, or "/" when unset, consulting a configured credential helper.
func ConfigCredentials(server string) (dockerConfigTypes.AuthConfig, error) {
	configDir := os.Getenv("DOCKER_CONFIG")
	if configDir == "" {
		configDir = "/"
	}

	configFile, err := dockerCliConfig.Load(configDir)
	if err != nil {
		return dockerConfigTypes.AuthConfig{}, fmt.Errorf("%w: %w", errFailedLoadDockerConfig, err)
	}

	auth, _ := CredentialsStore(*configFile).Get(server)

	fields := logrus.Fields{
		"server":      server,
		"config_file": configFile.Filename,
	}

	if auth == (dockerConfigTypes.AuthConfig{}) {
		logrus.WithFields(fields).Debug("No credentials found in config")

		return auth, nil
	}

	logrus.WithFields(fields).WithField("username", auth.Username).Debug("Loaded auth credentials from config")

	return auth, nil
}

// CredentialsStore returns the native store named by the config file, or the file store.
func CredentialsStore(configFile dockerConfigConfigfile.ConfigFile) dockerConfigCredentials.Store {
	if configFile.CredentialsStore != "" {
		return dockerConfigCredentials.NewNativeStore(&configFile, configFile.CredentialsStore)
	}

	return dockerConfigCredentials.NewFileStore(&configFile)
}

// EncodeAuth encodes an AuthConfig the way the Docker engine expects in X-Registry-Auth.
func EncodeAuth(authConfig dockerConfigTypes.AuthConfig) (string, error) {
	buf, err := json.Marshal(authConfig)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errFailedMarshalAuthConfig, err)
	}

	return base64.URLEncoding.EncodeToString(buf), nil
}
