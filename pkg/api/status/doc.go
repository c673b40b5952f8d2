// Package status serves the update status and resource usage endpoints of the HTTP API.
//
// Status responses map container names to their update status and a meta object. Light meta only
// carries the state and image reference. Full meta adds a resource usage sample.
package status
