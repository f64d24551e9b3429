package jinja

import (
	"io"

	"gopkg.in/yaml.v3"
)

// LoadPoliciesYAML reads a Policies document, starting from
// DefaultPolicies() so a config file only needs to override the fields it
// cares about.
func LoadPoliciesYAML(r io.Reader) (Policies, error) {
	p := DefaultPolicies()
	data, err := io.ReadAll(r)
	if err != nil {
		return p, err
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, err
	}
	return p, nil
}
