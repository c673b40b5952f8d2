// Package cmd contains the command-line interface of docker-monitor.
//
// The root command reads its configuration from flags and MONITOR_* environment variables,
// connects to the Docker daemon, starts the background cache warmer and serves the HTTP API
// until it receives SIGINT or SIGTERM.
//
// Usage example:
//
//	cmd.Execute()
package cmd
