package groups

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lampJSON = `{
  "name": "LAMP",
  "description": "Linux Apache MySQL PHP",
  "network": "playground",
  "containers": [
    {
      "name": "apache",
      "image": "httpd:2.4",
      "category": "web",
      "position": 3,
      "requirements": ["mysql"],
      "ports": [{"containerPort": 80, "hostPort": 8080}]
    },
    {
      "name": "mysql",
      "image": "mysql:8",
      "category": "database",
      "position": 1,
      "environment": {"MYSQL_ROOT_PASSWORD": "secret"},
      "volumeMounts": [{"source": "mysql-data", "target": "/var/lib/mysql"}],
      "postStart": [
        {"name": "create schema", "command": ["mysql", "-e", "CREATE DATABASE IF NOT EXISTS app"]}
      ],
      "preStop": [
        {"name": "dump", "command": ["sh", "-c", "mysqldump app > /backup/app.sql"], "timeout": 120}
      ]
    },
    {
      "name": "php",
      "image": "php:8.3-fpm",
      "position": 2
    }
  ]
}`

func TestLoadGroupFromJSON(t *testing.T) {
	group, err := LoadGroupFromJSON([]byte(lampJSON))
	require.NoError(t, err)

	assert.Equal(t, "LAMP", group.Name)
	require.Len(t, group.Containers, 3)

	// Sorted by position
	assert.Equal(t, []string{"mysql", "php", "apache"}, group.ContainerNames())

	// Defaults filled
	assert.Equal(t, "tcp", group.Containers[2].Ports[0].Protocol)
	assert.Equal(t, "volume", group.Containers[0].Volumes[0].Type)

	// Lifecycle scripts parsed
	require.Len(t, group.Containers[0].PostStart, 1)
	require.Len(t, group.Containers[0].PreStop, 1)
	assert.Equal(t, 120, group.Containers[0].PreStop[0].Timeout)
}

func TestLoadGroupFromJSON_UnknownRequirement(t *testing.T) {
	bad := `{"name": "broken", "containers": [
		{"name": "a", "image": "alpine", "requirements": ["missing"]}
	]}`
	_, err := LoadGroupFromJSON([]byte(bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown container")
}

func TestLoadGroupFromJSON_DuplicateName(t *testing.T) {
	bad := `{"name": "broken", "containers": [
		{"name": "a", "image": "alpine"},
		{"name": "a", "image": "alpine"}
	]}`
	_, err := LoadGroupFromJSON([]byte(bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate container name")
}

func TestRegistry_LoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lamp.json"), []byte(lampJSON), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))

	reg := NewRegistry()
	require.NoError(t, reg.LoadDir(dir))

	require.NotNil(t, reg.Get("LAMP"))
	assert.Nil(t, reg.Get("MEAN"))
	assert.Len(t, reg.List(), 1)

	g, c := reg.FindContainer("mysql")
	require.NotNil(t, g)
	require.NotNil(t, c)
	assert.Equal(t, "LAMP", g.Name)
	assert.Equal(t, "mysql:8", c.Image)
}

func TestRegistry_LoadDir_Missing(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.LoadDir("/nonexistent/groups.d"))
	assert.Empty(t, reg.List())
}
