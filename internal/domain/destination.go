package domain

import (
	"fmt"
	"strings"
)

// Destination addresses one edge endpoint: a device plus the module running
// on it. The registry is parsed once at startup, never per cycle.
type Destination struct {
	DeviceID string
	ModuleID string
}

func (d Destination) String() string {
	return d.DeviceID + "/" + d.ModuleID
}

// ParseDestinations parses a comma-delimited list of "device/module" pairs.
// Both parts must be non-empty and each pair must be unique. A malformed
// entry is a configuration error, not a runtime one.
func ParseDestinations(s string) ([]Destination, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("destination list is empty")
	}

	seen := make(map[string]struct{})
	var result []Destination

	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			return nil, fmt.Errorf("destination list contains an empty entry")
		}

		parts := strings.Split(entry, "/")
		if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
			return nil, fmt.Errorf("malformed destination %q: expected device/module", entry)
		}

		dest := Destination{
			DeviceID: strings.TrimSpace(parts[0]),
			ModuleID: strings.TrimSpace(parts[1]),
		}

		key := dest.String()
		if _, ok := seen[key]; ok {
			return nil, fmt.Errorf("duplicate destination %q", key)
		}
		seen[key] = struct{}{}

		result = append(result, dest)
	}

	return result, nil
}
