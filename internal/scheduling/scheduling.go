// Package scheduling runs docker-monitor's background work on a cron schedule.
// The Warmer periodically resolves the remote digests of every local container's image so that
// status requests are answered from the digest cache.
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/robfig/cron"
	"github.com/sirupsen/logrus"

	"github.com/nicholas-fedor/docker-monitor/pkg/types"
)

// DefaultWarmInterval is the delay between two warming passes.
const DefaultWarmInterval = 900 * time.Second

// runWaitTimeout bounds how long Stop waits for a running pass.
const runWaitTimeout = 60 * time.Second

// Errors reported by warming passes.
var (
	// errListContainersFailed indicates the container listing failed, so nothing was warmed.
	errListContainersFailed = errors.New("failed to list containers")
	// errDigestUnavailable indicates a reference whose remote digest could not be resolved.
	errDigestUnavailable = errors.New("remote digest unavailable")
	// errScheduleFailed indicates an invalid warm schedule.
	errScheduleFailed = errors.New("failed to schedule cache warming")
)

// DigestCache is the cache warmed by the Warmer.
type DigestCache interface {
	Get(ctx context.Context, ref string, force bool) string
}

// RunRecorder counts warming passes.
type RunRecorder interface {
	RegisterWarmRun()
}

// Warmer keeps the digest cache populated for every container on the host.
type Warmer struct {
	client    types.Client
	cache     DigestCache
	spec      string
	recorder  RunRecorder
	lock      chan bool
	scheduler *cron.Cron
	done      chan struct{}
	stopOnce  sync.Once
}

// IntervalSpec formats an interval as a cron "@every" spec in whole seconds.
func IntervalSpec(interval time.Duration) string {
	if interval <= 0 {
		interval = DefaultWarmInterval
	}

	return fmt.Sprintf("@every %ds", int64(interval.Seconds()))
}

// NewWarmer creates a Warmer running on the cron spec. A nil recorder disables run metrics.
func NewWarmer(client types.Client, cache DigestCache, spec string, recorder RunRecorder) *Warmer {
	if spec == "" {
		spec = IntervalSpec(DefaultWarmInterval)
	}

	lock := make(chan bool, 1)
	lock <- true

	return &Warmer{
		client:    client,
		cache:     cache,
		spec:      spec,
		recorder:  recorder,
		lock:      lock,
		scheduler: cron.New(),
		done:      make(chan struct{}),
	}
}

// Spec returns the cron spec the warmer runs on.
func (w *Warmer) Spec() string {
	return w.spec
}

// NextRun returns when the next scheduled pass happens after now.
func (w *Warmer) NextRun(now time.Time) time.Time {
	schedule, err := cron.Parse(w.spec)
	if err != nil {
		return time.Time{}
	}

	return schedule.Next(now)
}

// Start schedules warming passes until Stop is called or ctx is cancelled.
func (w *Warmer) Start(ctx context.Context) error {
	err := w.scheduler.AddFunc(w.spec, func() {
		select {
		case v := <-w.lock:
			defer func() { w.lock <- v }()

			if err := w.warm(ctx); err != nil {
				logrus.WithError(err).Info("Cache warming finished with failures")
			}
		default:
			logrus.Debug("Skipped cache warming, another pass is still running")
		}
	})
	if err != nil {
		return fmt.Errorf("%w: %q: %w", errScheduleFailed, w.spec, err)
	}

	w.scheduler.Start()

	logrus.WithField("schedule", w.spec).Debug("Started cache warmer")

	go func() {
		select {
		case <-ctx.Done():
			w.Stop()
		case <-w.done:
		}
	}()

	return nil
}

// Stop ends the schedule and waits for a running pass to finish. It is idempotent.
func (w *Warmer) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.scheduler.Stop()

		select {
		case v := <-w.lock:
			w.lock <- v
		case <-time.After(runWaitTimeout):
			logrus.Warn("Timeout waiting for cache warming to finish")
		}

		logrus.Debug("Stopped cache warmer")
	})
}

// RunOnce performs one warming pass, waiting for a running pass to finish first.
//
// The returned error aggregates every failure of the pass. Failures never stop the pass.
func (w *Warmer) RunOnce(ctx context.Context) error {
	select {
	case v := <-w.lock:
		defer func() { w.lock <- v }()
	case <-ctx.Done():
		return fmt.Errorf("cache warming cancelled: %w", ctx.Err())
	}

	return w.warm(ctx)
}

func (w *Warmer) warm(ctx context.Context) error {
	if w.recorder != nil {
		w.recorder.RegisterWarmRun()
	}

	containers, err := w.client.ListAllContainers(ctx)
	if err != nil {
		logrus.WithError(err).Info("Cache warming could not list containers")

		return fmt.Errorf("%w: %w", errListContainersFailed, err)
	}

	var failures *multierror.Error

	warmed := 0

	for _, c := range containers {
		tags := c.ImageTags()
		if len(tags) == 0 {
			continue
		}

		ref := tags[0]
		if w.cache.Get(ctx, ref, false) == "" {
			logrus.WithFields(logrus.Fields{
				"container": c.Name(),
				"image":     ref,
			}).Info("Cache warming could not resolve remote digest")

			failures = multierror.Append(failures, fmt.Errorf("%w: %s", errDigestUnavailable, ref))

			continue
		}

		warmed++
	}

	logrus.WithFields(logrus.Fields{
		"containers": len(containers),
		"warmed":     warmed,
	}).Debug("Cache warming pass finished")

	return failures.ErrorOrNil()
}
