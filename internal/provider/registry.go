package provider

import (
	"sort"
	"strings"
)

var registry = map[string]*Profile{}

func Register(p *Profile) {
	registry[strings.ToLower(p.Name)] = p
}

func Get(name string) (*Profile, bool) {
	p, ok := registry[strings.ToLower(name)]
	return p, ok
}

// All returns every registered profile sorted by name so run order is
// deterministic.
func All() []*Profile {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)

	profiles := make([]*Profile, 0, len(names))
	for _, name := range names {
		profiles = append(profiles, registry[name])
	}
	return profiles
}
