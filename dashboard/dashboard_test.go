package dashboard

import (
	"context"
	"testing"
	"time"

	containertypes "github.com/docker/docker/api/types/container"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"playground.evalgo.org/common"
	"playground.evalgo.org/groups"
)

func lampRegistry() *groups.Registry {
	registry := groups.NewRegistry()
	registry.Add(&groups.Group{
		Name:        "LAMP",
		Description: "Linux Apache MySQL PHP",
		Containers: []groups.Container{
			{Name: "mysql", Image: "mysql:8", Position: 1},
			{Name: "php", Image: "php:8-fpm", Position: 2},
			{Name: "apache", Image: "httpd:2.4", Position: 3},
		},
	})
	registry.Add(&groups.Group{
		Name: "cache",
		Containers: []groups.Container{
			{Name: "redis", Image: "redis:7", Position: 1},
		},
	})
	return registry
}

func summary(name, image, state string) containertypes.Summary {
	return containertypes.Summary{
		ID:      "id-" + name,
		Names:   []string{"/" + name},
		Image:   image,
		State:   state,
		Status:  "Up 5 minutes",
		Created: time.Now().Add(-time.Hour).Unix(),
	}
}

func TestGetContainerDistribution(t *testing.T) {
	mock := common.NewMockDockerClient()
	mock.Containers = []containertypes.Summary{
		summary("mysql", "mysql:8", "running"),
		summary("apache", "httpd:2.4", "running"),
		summary("redis", "redis:7", "exited"),
	}

	distribution, err := GetContainerDistribution(context.Background(), mock)

	require.NoError(t, err)
	assert.Equal(t, map[string]int{"running": 2, "exited": 1}, distribution)
}

func TestListContainers_AnnotatesGroupMembership(t *testing.T) {
	mock := common.NewMockDockerClient()
	mock.Containers = []containertypes.Summary{
		summary("mysql", "mysql:8", "running"),
		summary("stray", "alpine:3", "exited"),
	}

	infos, err := ListContainers(context.Background(), mock, lampRegistry())

	require.NoError(t, err)
	require.Len(t, infos, 2)

	// Sorted by name.
	assert.Equal(t, "mysql", infos[0].Name)
	assert.True(t, infos[0].Managed)
	assert.Equal(t, "LAMP", infos[0].Group)
	assert.NotEmpty(t, infos[0].Created)

	assert.Equal(t, "stray", infos[1].Name)
	assert.False(t, infos[1].Managed)
	assert.Empty(t, infos[1].Group)
}

func TestGroupSummaries_States(t *testing.T) {
	mock := common.NewMockDockerClient()
	mock.Containers = []containertypes.Summary{
		summary("mysql", "mysql:8", "running"),
		summary("php", "php:8-fpm", "running"),
		summary("apache", "httpd:2.4", "exited"),
	}

	summaries, err := GroupSummaries(context.Background(), mock, lampRegistry())

	require.NoError(t, err)
	require.Len(t, summaries, 2)

	// Sorted by name: LAMP before cache.
	assert.Equal(t, "LAMP", summaries[0].Name)
	assert.Equal(t, 3, summaries[0].Total)
	assert.Equal(t, 2, summaries[0].Running)
	assert.Equal(t, "partial", summaries[0].State)

	assert.Equal(t, "cache", summaries[1].Name)
	assert.Equal(t, 0, summaries[1].Running)
	assert.Equal(t, "stopped", summaries[1].State)
}

func TestGroupSummaries_AllRunning(t *testing.T) {
	mock := common.NewMockDockerClient()
	mock.Containers = []containertypes.Summary{
		summary("redis", "redis:7", "running"),
	}

	summaries, err := GroupSummaries(context.Background(), mock, lampRegistry())

	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "running", summaries[1].State)
}

func TestGetStats(t *testing.T) {
	mock := common.NewMockDockerClient()
	mock.Containers = []containertypes.Summary{
		summary("mysql", "mysql:8", "running"),
		summary("php", "php:8-fpm", "running"),
		summary("apache", "httpd:2.4", "running"),
		summary("redis", "redis:7", "exited"),
		summary("stray", "alpine:3", "exited"),
	}

	stats, err := GetStats(context.Background(), mock, lampRegistry())

	require.NoError(t, err)
	assert.Equal(t, 5, stats.TotalContainers)
	assert.Equal(t, map[string]int{"running": 3, "exited": 2}, stats.ContainerDistribution)
	assert.Equal(t, 2, stats.GroupCount)
	assert.Equal(t, 1, stats.GroupsRunning)
	assert.Equal(t, 4, stats.ManagedContainers)
	assert.Equal(t, 3, stats.ManagedRunning)
}

func TestToJSON(t *testing.T) {
	stats := &Stats{
		ContainerDistribution: map[string]int{"running": 2},
		TotalContainers:       2,
		GroupCount:            1,
	}

	out, err := ToJSON(stats)

	require.NoError(t, err)
	assert.Contains(t, out, `"totalContainers": 2`)
	assert.Contains(t, out, `"running": 2`)
}
