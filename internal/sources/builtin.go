// internal/sources/builtin.go
package sources

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed profiles.yaml
var builtinProfilesYAML []byte

// BuiltinProfiles returns the shipped site profiles.
func BuiltinProfiles() ([]SiteProfile, error) {
	var profiles []SiteProfile
	if err := yaml.Unmarshal(builtinProfilesYAML, &profiles); err != nil {
		return nil, fmt.Errorf("failed to parse built-in profiles: %w", err)
	}
	return profiles, nil
}

// ResolveProfiles applies overrides on top of the built-in profiles.
// Overrides naming an unknown source add a new profile. Disabled profiles are
// omitted from the result.
func ResolveProfiles(overrides []SiteProfile) ([]SiteProfile, error) {
	profiles, err := BuiltinProfiles()
	if err != nil {
		return nil, err
	}

	index := make(map[string]int, len(profiles))
	for i, p := range profiles {
		index[p.Name] = i
	}
	for _, o := range overrides {
		if i, ok := index[o.Name]; ok {
			profiles[i] = profiles[i].Override(o)
			continue
		}
		index[o.Name] = len(profiles)
		profiles = append(profiles, o)
	}

	enabled := profiles[:0]
	for _, p := range profiles {
		if p.Disabled {
			continue
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		enabled = append(enabled, p)
	}
	return enabled, nil
}
