package actions

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/gammazero/workerpool"
	"github.com/sirupsen/logrus"

	"github.com/nicholas-fedor/docker-monitor/pkg/metrics"
	"github.com/nicholas-fedor/docker-monitor/pkg/registry/helpers"
	"github.com/nicholas-fedor/docker-monitor/pkg/types"
)

// DefaultWorkers bounds the number of concurrent classifications in a batch.
const DefaultWorkers = 4

// DigestSource returns the remote digest for an image reference, or "" when it is absent.
type DigestSource interface {
	Get(ctx context.Context, ref string, force bool) string
}

// BatchRecorder receives the summary of a classification batch.
type BatchRecorder interface {
	Register(metric *metrics.Metric)
}

// Classifier compares local image digests with the remote digests of their references.
type Classifier struct {
	digests  DigestSource
	workers  int
	recorder BatchRecorder
}

// NewClassifier creates a classifier backed by digests.
//
// Batches run on at most workers goroutines (DefaultWorkers when not positive). A nil recorder
// disables batch metrics.
func NewClassifier(digests DigestSource, workers int, recorder BatchRecorder) *Classifier {
	if workers <= 0 {
		workers = DefaultWorkers
	}

	return &Classifier{digests: digests, workers: workers, recorder: recorder}
}

// ImageReference returns the reference a container's image is looked up by.
//
// The first RepoTag wins. Otherwise the repository of the first RepoDigest is used with the
// latest tag. An empty string means no reference is known.
func ImageReference(c types.Container) string {
	if tags := c.ImageTags(); len(tags) > 0 {
		return tags[0]
	}

	if repoDigests := c.ImageRepoDigests(); len(repoDigests) > 0 {
		repository, _, _ := strings.Cut(repoDigests[0], "@")
		if repository != "" {
			return repository + ":latest"
		}
	}

	return ""
}

// Classify determines the update status of a single container.
func (cl *Classifier) Classify(ctx context.Context, c types.Container, force bool) types.UpdateStatus {
	fields := logrus.Fields{"container": c.Name()}

	if !c.HasImageInfo() {
		logrus.WithFields(fields).Debug("Image metadata unavailable")

		return types.ErrorStatus(errImageInfoUnavailable.Error())
	}

	ref := ImageReference(c)
	if ref == "" {
		return types.StatusUnknownImage
	}

	fields["image"] = ref

	local := helpers.NormalizeDigests(c.ImageRepoDigests())
	if len(local) == 0 {
		logrus.WithFields(fields).Debug("Image has no repository digest")

		return types.StatusUnknownLocalDigest
	}

	remote := cl.digests.Get(ctx, ref, force)
	if remote == "" {
		logrus.WithFields(fields).Debug("Remote digest unavailable")

		return types.StatusRegistryError
	}

	remote = helpers.NormalizeDigest(remote)
	fields["remote_digest"] = remote

	if slices.Contains(local, remote) {
		logrus.WithFields(fields).Debug("Container is up to date")

		return types.StatusUpToDate
	}

	logrus.WithFields(fields).WithField("local_digests", local).Debug("Update available")

	return types.StatusUpdateAvailable
}

// ClassifyAll classifies containers concurrently and returns their statuses keyed by name.
//
// Every container gets a status. A panic during one classification becomes an error status for
// that container only.
func (cl *Classifier) ClassifyAll(
	ctx context.Context,
	containers []types.Container,
	force bool,
) map[string]types.UpdateStatus {
	statuses := make(map[string]types.UpdateStatus, len(containers))

	var mu sync.Mutex

	pool := workerpool.New(cl.workers)

	for _, c := range containers {
		pool.Submit(func() {
			status := cl.classifySafely(ctx, c, force)

			mu.Lock()
			statuses[c.Name()] = status
			mu.Unlock()
		})
	}

	pool.StopWait()

	if cl.recorder != nil {
		cl.recorder.Register(metrics.NewMetric(statuses))
	}

	logrus.WithFields(logrus.Fields{
		"checked": len(statuses),
		"forced":  force,
	}).Debug("Classified containers")

	return statuses
}

func (cl *Classifier) classifySafely(
	ctx context.Context,
	c types.Container,
	force bool,
) (status types.UpdateStatus) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithField("container", c.Name()).
				WithField("panic", r).
				Error("Classification panicked")

			status = types.ErrorStatus(fmt.Sprint(r))
		}
	}()

	return cl.Classify(ctx, c, force)
}
