package types

import "strings"

// UpdateStatus is the update classification of a single container.
type UpdateStatus string

// Update statuses reported for containers.
const (
	StatusUnknownImage       UpdateStatus = "unknown_image"
	StatusUnknownLocalDigest UpdateStatus = "unknown_local_digest"
	StatusRegistryError      UpdateStatus = "registry_error"
	StatusUpToDate           UpdateStatus = "up_to_date"
	StatusUpdateAvailable    UpdateStatus = "update_available"
	StatusNotFound           UpdateStatus = "not_found"
)

// errorStatusPrefix prefixes statuses produced by unexpected classification failures.
const errorStatusPrefix = "error: "

// ErrorStatus builds the status for an unexpected failure carrying message.
func ErrorStatus(message string) UpdateStatus {
	return UpdateStatus(errorStatusPrefix + message)
}

// IsError reports whether the status was produced by ErrorStatus.
func (s UpdateStatus) IsError() bool {
	return strings.HasPrefix(string(s), errorStatusPrefix)
}

// Message returns the message of an error status, or an empty string.
func (s UpdateStatus) Message() string {
	if !s.IsError() {
		return ""
	}

	return strings.TrimPrefix(string(s), errorStatusPrefix)
}

// ImageReference is an image repository and tag pair.
type ImageReference struct {
	Repository string
	Tag        string
}

// String formats the reference as repository:tag.
func (r ImageReference) String() string {
	return r.Repository + ":" + r.Tag
}

// RegistryTarget is the registry host and repository path a reference is fetched from.
type RegistryTarget struct {
	Host string
	Path string
}
