package types

import (
	"strings"

	"github.com/docker/go-connections/nat"
)

// NetworkAttachment holds the per-network endpoint settings carried over to a recreated container.
type NetworkAttachment struct {
	Aliases      []string `json:"aliases,omitempty"`
	Links        []string `json:"links,omitempty"`
	IPv4Address  string   `json:"ipv4_address,omitempty"`
	IPv6Address  string   `json:"ipv6_address,omitempty"`
	LinkLocalIPs []string `json:"link_local_ips,omitempty"`
}

// ContainerSnapshot is the configuration captured immediately before a container is recreated.
//
// A snapshot only lives for the duration of one recreation. It is never persisted.
type ContainerSnapshot struct {
	Name          string                       `json:"name"`
	Image         string                       `json:"image"`
	Env           []string                     `json:"env,omitempty"`
	Cmd           []string                     `json:"cmd,omitempty"`
	Entrypoint    []string                     `json:"entrypoint,omitempty"`
	Labels        map[string]string            `json:"labels,omitempty"`
	WorkingDir    string                       `json:"working_dir,omitempty"`
	User          string                       `json:"user,omitempty"`
	PortBindings  nat.PortMap                  `json:"port_bindings,omitempty"`
	Binds         []string                     `json:"binds,omitempty"`
	RestartPolicy string                       `json:"restart_policy,omitempty"`
	NetworkMode   string                       `json:"network_mode,omitempty"`
	Networks      map[string]NetworkAttachment `json:"networks,omitempty"`
}

// HasSpecialNetworkMode reports whether the network mode shares another container's stack,
// uses the host stack, or disables networking. Such modes cannot be expressed as explicit
// network attachments.
func (s ContainerSnapshot) HasSpecialNetworkMode() bool {
	mode := strings.ToLower(s.NetworkMode)

	return strings.HasPrefix(mode, "container:") || mode == "host" || mode == "none"
}

// PrimaryNetwork returns the network the runtime attaches at creation, or "" for special
// network modes. An unset or "default" mode means the bridge network.
func (s ContainerSnapshot) PrimaryNetwork() string {
	if s.HasSpecialNetworkMode() {
		return ""
	}

	switch s.NetworkMode {
	case "", "default":
		return "bridge"
	default:
		return s.NetworkMode
	}
}
