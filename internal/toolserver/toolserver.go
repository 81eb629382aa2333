// Package toolserver discovers the names of configured MCP tool servers
// from a JSON registration file, for use as --allowedTools prefixes.
package toolserver

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Names reads the tool-server registration file at path and returns its
// top-level server names in sorted order. Only the key set is read; each
// server's own configuration is left to the agent binary to interpret.
func Names(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("toolserver: read %s: %w", path, err)
	}

	var servers map[string]json.RawMessage
	if err := json.Unmarshal(data, &servers); err != nil {
		return nil, fmt.Errorf("toolserver: parse %s: %w", path, err)
	}

	names := make([]string, 0, len(servers))
	for name := range servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
