package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/docker/docker/api/types/image"
	"github.com/sirupsen/logrus"
)

// errFailedGetAuth indicates a failure to retrieve authentication credentials for an image.
var errFailedGetAuth = errors.New("failed to get authentication credentials")

// GetPullOptions builds the options for pulling imageName, carrying registry credentials
// when any are configured.
func GetPullOptions(imageName string) (image.PullOptions, error) {
	fields := logrus.Fields{
		"image": imageName,
	}

	auth, err := EncodedAuth(imageName)
	if err != nil {
		logrus.WithError(err).WithFields(fields).Debug("Failed to get authentication credentials")

		return image.PullOptions{}, fmt.Errorf("%w: %w", errFailedGetAuth, err)
	}

	if auth == "" {
		logrus.WithFields(fields).Debug("Pulling without credentials")

		return image.PullOptions{}, nil
	}

	logrus.WithFields(fields).Debug("Pulling with registry credentials")

	return image.PullOptions{
		RegistryAuth:  auth,
		PrivilegeFunc: DefaultAuthHandler,
	}, nil
}

// DefaultAuthHandler is called by the engine when the supplied credentials are rejected.
// Retrying with the same credentials will not succeed, so the pull is retried anonymously.
func DefaultAuthHandler(_ context.Context) (string, error) {
	logrus.Debug("Authentication rejected, retrying without credentials")

	return "", nil
}
