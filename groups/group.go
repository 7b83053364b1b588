// Package groups defines container group definitions for the playground.
//
// A group is a named set of containers (for example "LAMP": mysql, php,
// apache) that is started and stopped as a unit. Definitions are plain JSON
// files loaded from a directory at startup.
package groups

import "fmt"

// ScriptType identifies when a lifecycle script runs.
type ScriptType string

const (
	// ScriptPostStart runs inside the container after it has started.
	ScriptPostStart ScriptType = "post_start"
	// ScriptPreStop runs inside the container before it is stopped.
	ScriptPreStop ScriptType = "pre_stop"
)

// Group represents a named set of containers started and stopped together.
type Group struct {
	// Name is the group name (unique identifier)
	Name string `json:"name"`
	// Description provides a human-readable description
	Description string `json:"description,omitempty"`
	// Network is the Docker network the group's containers join
	Network string `json:"network,omitempty"`
	// Containers are the members of the group, ordered by Position
	Containers []Container `json:"containers"`
}

// Container describes one member of a group.
type Container struct {
	// Name is the container name (unique within the playground)
	Name string `json:"name"`
	// Image is the Docker image (e.g., "mysql:8")
	Image string `json:"image"`
	// Category labels the container's role (database, web, cache, mail)
	Category string `json:"category,omitempty"`
	// Position determines startup order (lower numbers start first)
	Position int `json:"position"`
	// Requirements lists container names that must start before this one
	Requirements []string `json:"requirements,omitempty"`
	// Environment variables for the container
	Environment map[string]string `json:"environment,omitempty"`
	// Ports to expose and map
	Ports []PortMapping `json:"ports,omitempty"`
	// Volumes to mount
	Volumes []VolumeMount `json:"volumeMounts,omitempty"`
	// Command overrides the default container command
	Command []string `json:"command,omitempty"`
	// PostStart scripts run inside the container after startup
	PostStart []Script `json:"postStart,omitempty"`
	// PreStop scripts run inside the container before shutdown
	PreStop []Script `json:"preStop,omitempty"`
}

// Script is a lifecycle command executed inside a container.
type Script struct {
	// Name is a human-readable name for the script
	Name string `json:"name"`
	// Command is the command to execute
	Command []string `json:"command"`
	// Timeout in seconds (0 = default 60s)
	Timeout int `json:"timeout,omitempty"`
	// WorkingDirectory for command execution
	WorkingDirectory string `json:"workingDirectory,omitempty"`
}

// PortMapping defines a port mapping for a container.
type PortMapping struct {
	// ContainerPort is the port inside the container
	ContainerPort int `json:"containerPort"`
	// HostPort is the port on the host (0 = random port)
	HostPort int `json:"hostPort,omitempty"`
	// Protocol is the protocol (tcp, udp)
	Protocol string `json:"protocol,omitempty"`
}

// VolumeMount defines a volume mount for a container.
type VolumeMount struct {
	// Source is the volume name or host path
	Source string `json:"source"`
	// Target is the mount path inside the container
	Target string `json:"target"`
	// ReadOnly indicates if the mount is read-only
	ReadOnly bool `json:"readOnly,omitempty"`
	// Type is the mount type (volume, bind)
	Type string `json:"type,omitempty"`
}

// Validate checks a group definition for structural problems.
func (g *Group) Validate() error {
	if g.Name == "" {
		return fmt.Errorf("group name is required")
	}
	if len(g.Containers) == 0 {
		return fmt.Errorf("group %s has no containers", g.Name)
	}

	names := make(map[string]bool, len(g.Containers))
	for _, c := range g.Containers {
		if c.Name == "" {
			return fmt.Errorf("group %s: container name is required", g.Name)
		}
		if c.Image == "" {
			return fmt.Errorf("group %s: container %s has no image", g.Name, c.Name)
		}
		if names[c.Name] {
			return fmt.Errorf("group %s: duplicate container name %s", g.Name, c.Name)
		}
		names[c.Name] = true
	}

	for _, c := range g.Containers {
		for _, req := range c.Requirements {
			if !names[req] {
				return fmt.Errorf("group %s: container %s requires unknown container %s", g.Name, c.Name, req)
			}
		}
	}

	return nil
}

// ContainerNames returns the member names in startup order.
func (g *Group) ContainerNames() []string {
	names := make([]string, 0, len(g.Containers))
	for _, c := range g.Containers {
		names = append(names, c.Name)
	}
	return names
}
