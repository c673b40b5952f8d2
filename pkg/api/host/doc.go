// Package host provides HTTP API handlers reporting on the Docker host: daemon health,
// diagnostics of the daemon socket and dangling image cleanup.
package host
