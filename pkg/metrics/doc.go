// Package metrics provides tracking and exposure of docker-monitor metrics.
// It integrates with Prometheus to expose status check results, digest cache efficiency,
// cache warming passes, and update outcomes.
//
// Key components:
//   - Metrics: Handles metric queuing and updates.
//   - NewMetric: Creates a batch metric from classification statuses.
//
// Usage example:
//
//	m := metrics.Default()
//	m.Register(metrics.NewMetric(statuses))
//	m.RegisterUpdate(metrics.ResultUpdated)
package metrics
