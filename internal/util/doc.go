// Package util provides small formatting helpers shared by docker-monitor's packages.
//
// Usage example:
//
//	util.FormatDuration(90 * time.Minute)     // "1 hour, 30 minutes"
//	util.NormalizeContainerName("/web")       // "web"
package util
