// Package logging writes docker-monitor's startup summary.
package logging

import (
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nicholas-fedor/docker-monitor/internal/util"
	"github.com/nicholas-fedor/docker-monitor/pkg/types"
)

// StartupInfo is the state summarized by WriteStartupMessage.
type StartupInfo struct {
	Version      string    // docker-monitor version.
	APIAddress   string    // Listen address of the HTTP API.
	TokenEnabled bool      // Whether HTTP API requests need a bearer token.
	SelfName     string    // Name of the monitor's own container, empty when unknown.
	WarmSchedule string    // Cron spec of the cache warmer.
	NextWarm     time.Time // First scheduled warming pass, zero when not scheduled.
	WarmOnStart  bool      // Whether a warming pass runs right after startup.
	Suppressed   bool      // Set by --no-startup-message.
}

// WriteStartupMessage logs the version, Docker API version, HTTP API, warm schedule and notifiers.
// Nothing is logged when the message is suppressed.
func WriteStartupMessage(client types.Client, notifier types.Notifier, info StartupInfo) {
	if info.Suppressed {
		return
	}

	log := logrus.NewEntry(logrus.StandardLogger())

	apiVersion := "unknown"
	if client != nil {
		apiVersion = client.GetVersion()
	}

	log.Info("docker-monitor ", info.Version, " using Docker API v", apiVersion)

	var notifierNames []string
	if notifier != nil {
		notifierNames = notifier.GetNames()
	}

	LogNotifierInfo(log, notifierNames)

	if info.SelfName != "" {
		log.WithField("container", info.SelfName).Info("Updates of the monitor's own container are refused")
	} else {
		log.Debug("Could not detect the monitor's own container")
	}

	LogScheduleInfo(log, info)

	apiLog := log.WithField("address", info.APIAddress)
	if info.TokenEnabled {
		apiLog.Info("The HTTP API is enabled with token authentication")
	} else {
		apiLog.Warn("The HTTP API is enabled without authentication")
	}

	if logrus.IsLevelEnabled(logrus.TraceLevel) {
		log.Warn("Trace level enabled: log will include sensitive information as credentials and tokens")
	}
}

// LogNotifierInfo logs the configured notification services.
func LogNotifierInfo(log *logrus.Entry, notifierNames []string) {
	if len(notifierNames) > 0 {
		log.Info("Using notifications: " + strings.Join(notifierNames, ", "))
	} else {
		log.Info("Using no notifications")
	}
}

// LogScheduleInfo logs when the digest cache is warmed.
func LogScheduleInfo(log *logrus.Entry, info StartupInfo) {
	if info.WarmOnStart {
		log.Info("Warming the digest cache on start")
	}

	if info.NextWarm.IsZero() {
		log.Info("Cache warming is not scheduled")

		return
	}

	log.WithField("schedule", info.WarmSchedule).
		Info("Scheduling next cache warming: " + info.NextWarm.Format("2006-01-02 15:04:05 -0700 MST"))
	log.Info("Note that the next warming pass will be performed in " + util.FormatDuration(time.Until(info.NextWarm)))
}
