package actions

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/nicholas-fedor/docker-monitor/pkg/types"
)

// UnusedImages lists dangling images.
//
// Images are returned in the order reported by the runtime. A nil list is never returned.
func UnusedImages(ctx context.Context, client types.Client) ([]types.ImageSummary, error) {
	images, err := client.ListDanglingImages(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to list dangling images")

		return nil, fmt.Errorf("%w: %w", errListImagesFailed, err)
	}

	if images == nil {
		images = []types.ImageSummary{}
	}

	logrus.WithField("count", len(images)).Debug("Listed unused images")

	return images, nil
}

// PruneUnusedImages removes dangling images and reports what was deleted.
func PruneUnusedImages(ctx context.Context, client types.Client) (types.PruneReport, error) {
	report, err := client.PruneDanglingImages(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to prune dangling images")

		return types.PruneReport{}, fmt.Errorf("%w: %w", errPruneImagesFailed, err)
	}

	if report.ImagesDeleted == nil {
		report.ImagesDeleted = []string{}
	}

	logrus.WithFields(logrus.Fields{
		"deleted":         len(report.ImagesDeleted),
		"space_reclaimed": report.SpaceReclaimed,
	}).Info("Removed unused images")

	return report, nil
}
