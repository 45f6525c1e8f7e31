package flagsync

import (
	"fmt"
	"strings"
)

// DisabledVariant is returned for flags that are unknown or have no variant.
var DisabledVariant = Variant{Name: "disabled"}

// Payload is the configuration attached to a variant.
type Payload struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Variant is the variant a context was assigned for a flag.
type Variant struct {
	Name           string   `json:"name"`
	Enabled        bool     `json:"enabled"`
	FeatureEnabled bool     `json:"feature_enabled,omitempty"`
	Payload        *Payload `json:"payload,omitempty"`
}

// Toggle is one evaluated flag as held by the client.
type Toggle struct {
	Name           string  `json:"name"`
	Enabled        bool    `json:"enabled"`
	Variant        Variant `json:"variant"`
	ImpressionData bool    `json:"impressionData"`
}

// ToggleSnapshot is an immutable, ordered copy of a client's toggle table.
type ToggleSnapshot struct {
	toggles []Toggle
	index   map[string]int

	// Version increases by one for every recomputation. Zero means the
	// snapshot was never taken.
	Version uint64
}

// NewToggleSnapshot copies toggles into a snapshot.
func NewToggleSnapshot(toggles []Toggle, version uint64) ToggleSnapshot {
	cloned := CloneToggles(toggles)

	index := make(map[string]int, len(cloned))
	for i, toggle := range cloned {
		// First occurrence wins, like a linear scan would.
		if _, ok := index[toggle.Name]; !ok {
			index[toggle.Name] = i
		}
	}

	return ToggleSnapshot{
		toggles: cloned,
		index:   index,
		Version: version,
	}
}

// All returns a copy of the toggles in client order.
func (s ToggleSnapshot) All() []Toggle {
	return CloneToggles(s.toggles)
}

func (s ToggleSnapshot) Len() int { return len(s.toggles) }

// Lookup returns the toggle named name.
func (s ToggleSnapshot) Lookup(name string) (Toggle, bool) {
	idx, ok := s.index[name]
	if !ok {
		return Toggle{}, false
	}

	return cloneToggle(s.toggles[idx]), true
}

// Enabled reports whether the named toggle is present and enabled.
func (s ToggleSnapshot) Enabled(name string) bool {
	toggle, ok := s.Lookup(name)
	return ok && toggle.Enabled
}

// Names returns toggle names in client order.
func (s ToggleSnapshot) Names() []string {
	names := make([]string, 0, len(s.toggles))
	for _, toggle := range s.toggles {
		names = append(names, toggle.Name)
	}

	return names
}

// LookupFold is Lookup with case-insensitive matching.
func (s ToggleSnapshot) LookupFold(name string) (Toggle, error) {
	if toggle, ok := s.Lookup(name); ok {
		return toggle, nil
	}

	for _, toggle := range s.toggles {
		if strings.EqualFold(toggle.Name, name) {
			return cloneToggle(toggle), nil
		}
	}

	return Toggle{}, fmt.Errorf("toggle with name %s not found", name)
}

// CloneToggles deep-copies toggles. It returns nil for an empty input.
func CloneToggles(toggles []Toggle) []Toggle {
	if len(toggles) == 0 {
		return nil
	}

	dup := make([]Toggle, len(toggles))
	for i, toggle := range toggles {
		dup[i] = cloneToggle(toggle)
	}

	return dup
}

func cloneToggle(toggle Toggle) Toggle {
	if toggle.Variant.Payload != nil {
		payload := *toggle.Variant.Payload
		toggle.Variant.Payload = &payload
	}

	return toggle
}
