// Package meta holds build metadata injected with -ldflags.
package meta

import "runtime/debug"

var (
	// Version is the release version, set with -X github.com/nicholas-fedor/docker-monitor/internal/meta.Version.
	Version = "v0.0.0-unknown"
	// Commit is the VCS revision of the build.
	Commit = "unknown"
	// Date is the build date.
	Date = "unknown"
)

// UserAgent is sent with every registry request.
func UserAgent() string {
	return "docker-monitor/" + ResolvedVersion()
}

// ResolvedVersion returns Version, or the module version recorded by the Go toolchain when no
// version was injected at link time.
func ResolvedVersion() string {
	if Version != "v0.0.0-unknown" {
		return Version
	}

	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}

	return Version
}
