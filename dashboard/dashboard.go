// Package dashboard aggregates container and group statistics for the
// playground overview endpoints.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"playground.evalgo.org/common"
	"playground.evalgo.org/groups"
)

// Stats is the aggregate view of the playground's container ecosystem.
type Stats struct {
	// ContainerDistribution maps container state to count
	ContainerDistribution map[string]int `json:"containerDistribution"`
	// TotalContainers is the total number of containers across all states
	TotalContainers int `json:"totalContainers"`
	// GroupCount is the number of defined container groups
	GroupCount int `json:"groupCount"`
	// GroupsRunning is the number of groups with every member running
	GroupsRunning int `json:"groupsRunning"`
	// ManagedContainers is the number of containers belonging to a group
	ManagedContainers int `json:"managedContainers"`
	// ManagedRunning is the number of group members currently running
	ManagedRunning int `json:"managedRunning"`
}

// ContainerInfo describes one container for the listing endpoint.
type ContainerInfo struct {
	Name    string `json:"name"`
	Image   string `json:"image"`
	State   string `json:"state"`
	Status  string `json:"status"`
	Group   string `json:"group,omitempty"`
	Created string `json:"created"`
	Managed bool   `json:"managed"`
}

// GroupSummary describes the runtime state of one container group.
type GroupSummary struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Total       int    `json:"total"`
	Running     int    `json:"running"`
	// State is "running" when all members run, "partial" when some do,
	// "stopped" otherwise.
	State string `json:"state"`
}

// GetContainerDistribution categorizes all containers by state.
func GetContainerDistribution(ctx context.Context, cli common.DockerClient) (map[string]int, error) {
	distribution := make(map[string]int)

	containers, err := cli.ContainerList(ctx, common.ContainerListAllOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	for _, cont := range containers {
		distribution[cont.State]++
	}

	return distribution, nil
}

// ListContainers returns all containers with group membership annotated,
// sorted by name.
func ListContainers(ctx context.Context, cli common.DockerClient, registry *groups.Registry) ([]ContainerInfo, error) {
	containers, err := cli.ContainerList(ctx, common.ContainerListAllOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	infos := make([]ContainerInfo, 0, len(containers))
	for _, cont := range containers {
		name := containerName(cont.Names)
		info := ContainerInfo{
			Name:    name,
			Image:   cont.Image,
			State:   cont.State,
			Status:  cont.Status,
			Created: humanize.Time(time.Unix(cont.Created, 0)),
		}
		if group, _ := registry.FindContainer(name); group != nil {
			info.Group = group.Name
			info.Managed = true
		}
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// GroupSummaries reports the runtime state of every defined group, sorted
// by name.
func GroupSummaries(ctx context.Context, cli common.DockerClient, registry *groups.Registry) ([]GroupSummary, error) {
	running, err := runningNames(ctx, cli)
	if err != nil {
		return nil, err
	}

	defined := registry.List()
	summaries := make([]GroupSummary, 0, len(defined))
	for _, group := range defined {
		summary := GroupSummary{
			Name:        group.Name,
			Description: group.Description,
			Total:       len(group.Containers),
		}
		for _, member := range group.Containers {
			if running[member.Name] {
				summary.Running++
			}
		}
		switch {
		case summary.Running == summary.Total && summary.Total > 0:
			summary.State = "running"
		case summary.Running > 0:
			summary.State = "partial"
		default:
			summary.State = "stopped"
		}
		summaries = append(summaries, summary)
	}

	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Name < summaries[j].Name })
	return summaries, nil
}

// GetStats aggregates container distribution and group health.
func GetStats(ctx context.Context, cli common.DockerClient, registry *groups.Registry) (*Stats, error) {
	stats := &Stats{
		ContainerDistribution: make(map[string]int),
	}

	distribution, err := GetContainerDistribution(ctx, cli)
	if err != nil {
		return nil, fmt.Errorf("failed to get container distribution: %w", err)
	}
	stats.ContainerDistribution = distribution
	for _, count := range distribution {
		stats.TotalContainers += count
	}

	summaries, err := GroupSummaries(ctx, cli, registry)
	if err != nil {
		return nil, err
	}
	stats.GroupCount = len(summaries)
	for _, summary := range summaries {
		if summary.State == "running" {
			stats.GroupsRunning++
		}
		stats.ManagedContainers += summary.Total
		stats.ManagedRunning += summary.Running
	}

	return stats, nil
}

// ToJSON serializes stats for API responses and logging.
func ToJSON(stats *Stats) (string, error) {
	jsonBytes, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal stats to JSON: %w", err)
	}
	return string(jsonBytes), nil
}

func runningNames(ctx context.Context, cli common.DockerClient) (map[string]bool, error) {
	containers, err := cli.ContainerList(ctx, common.ContainerListAllOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	running := make(map[string]bool, len(containers))
	for _, cont := range containers {
		if cont.State == "running" {
			running[containerName(cont.Names)] = true
		}
	}
	return running, nil
}

func containerName(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return strings.TrimPrefix(names[0], "/")
}
