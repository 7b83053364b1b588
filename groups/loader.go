package groups

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// LoadGroupFromFile loads a group definition from a JSON file.
func LoadGroupFromFile(path string) (*Group, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read group file: %w", err)
	}
	return LoadGroupFromJSON(data)
}

// LoadGroupFromJSON loads a group definition from JSON bytes, fills in
// defaults and sorts containers by position.
func LoadGroupFromJSON(data []byte) (*Group, error) {
	var group Group
	if err := json.Unmarshal(data, &group); err != nil {
		return nil, fmt.Errorf("failed to parse group JSON: %w", err)
	}

	for i := range group.Containers {
		for j := range group.Containers[i].Ports {
			if group.Containers[i].Ports[j].Protocol == "" {
				group.Containers[i].Ports[j].Protocol = "tcp"
			}
		}
		for j := range group.Containers[i].Volumes {
			if group.Containers[i].Volumes[j].Type == "" {
				group.Containers[i].Volumes[j].Type = "volume"
			}
		}
	}

	sort.SliceStable(group.Containers, func(i, j int) bool {
		return group.Containers[i].Position < group.Containers[j].Position
	})

	if err := group.Validate(); err != nil {
		return nil, err
	}

	return &group, nil
}

// Registry holds the loaded group definitions and resolves container
// membership lookups for the lifecycle executor.
type Registry struct {
	mu     sync.RWMutex
	groups map[string]*Group
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{groups: make(map[string]*Group)}
}

// LoadDir loads every *.json file in dir as a group definition. A missing
// directory is not an error; the registry just stays empty.
func (r *Registry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read groups directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		group, err := LoadGroupFromFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("group file %s: %w", entry.Name(), err)
		}
		r.Add(group)
	}

	return nil
}

// Add registers a group, replacing any existing definition with the same name.
func (r *Registry) Add(group *Group) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.groups[group.Name] = group
}

// Get returns the named group, or nil if unknown.
func (r *Registry) Get(name string) *Group {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.groups[name]
}

// List returns all groups sorted by name.
func (r *Registry) List() []*Group {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]*Group, 0, len(r.groups))
	for _, g := range r.groups {
		list = append(list, g)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

// FindContainer returns the group and definition for a container name, or
// nils when no group defines it.
func (r *Registry) FindContainer(name string) (*Group, *Container) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, g := range r.groups {
		for i := range g.Containers {
			if g.Containers[i].Name == name {
				return g, &g.Containers[i]
			}
		}
	}
	return nil, nil
}
