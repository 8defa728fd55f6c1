// Package manifest loads system declarations from YAML or HCL files so a
// pipeline layout can be described, checked and planned without Go code.
package manifest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/oriumgames/pipeline"
)

// ErrInvalidManifest is wrapped by every validation failure.
var ErrInvalidManifest = errors.New("manifest: invalid definition")

// Definition is a named set of system declarations.
type Definition struct {
	Name    string             `yaml:"name"`
	Systems []SystemDefinition `yaml:"systems"`
}

// SystemDefinition declares one system. State entries use the
// "Resource.State" notation; a bare "Resource" names its default state and
// "Resource.*" in Requires is the same as listing it in RequiresAll.
type SystemDefinition struct {
	Name        string   `yaml:"name"`
	Requires    []string `yaml:"requires"`
	RequiresAll []string `yaml:"requires_all"`
	Produces    []string `yaml:"produces"`
	// Parallel defaults to true when omitted.
	Parallel *bool `yaml:"parallel"`
}

// AllowParallel reports the effective parallel flag.
func (s SystemDefinition) AllowParallel() bool {
	return s.Parallel == nil || *s.Parallel
}

// Normalized trims every name and validates the definition.
func (d Definition) Normalized() (Definition, error) {
	out := Definition{
		Name:    strings.TrimSpace(d.Name),
		Systems: make([]SystemDefinition, len(d.Systems)),
	}
	seen := make(map[string]struct{}, len(d.Systems))
	for i, s := range d.Systems {
		n := SystemDefinition{
			Name:        strings.TrimSpace(s.Name),
			Requires:    trimAll(s.Requires),
			RequiresAll: trimAll(s.RequiresAll),
			Produces:    trimAll(s.Produces),
			Parallel:    s.Parallel,
		}
		if n.Name == "" {
			return Definition{}, fmt.Errorf("%w: system %d has no name", ErrInvalidManifest, i)
		}
		if _, dup := seen[n.Name]; dup {
			return Definition{}, fmt.Errorf("%w: duplicate system %q", ErrInvalidManifest, n.Name)
		}
		seen[n.Name] = struct{}{}

		for _, entry := range n.Requires {
			if _, err := pipeline.ParseResourceState(entry); err != nil {
				return Definition{}, fmt.Errorf("%w: system %q requires: %w", ErrInvalidManifest, n.Name, err)
			}
		}
		for _, res := range n.RequiresAll {
			if res == "" || res == string(pipeline.AnyState) || strings.Contains(res, ".") {
				return Definition{}, fmt.Errorf("%w: system %q requires_all: bad resource %q", ErrInvalidManifest, n.Name, res)
			}
		}
		for _, entry := range n.Produces {
			rs, err := pipeline.ParseResourceState(entry)
			if err != nil {
				return Definition{}, fmt.Errorf("%w: system %q produces: %w", ErrInvalidManifest, n.Name, err)
			}
			if rs.IsWildcard() {
				return Definition{}, fmt.Errorf("%w: system %q cannot produce wildcard %q", ErrInvalidManifest, n.Name, entry)
			}
		}
		out.Systems[i] = n
	}
	return out, nil
}

// Bundle converts the definition into a bundle of declarations, in the
// order the systems appear.
func (d Definition) Bundle() (*pipeline.Bundle, error) {
	norm, err := d.Normalized()
	if err != nil {
		return nil, err
	}

	b := pipeline.NewBundle(norm.Name)
	for _, s := range norm.Systems {
		spec := b.SystemNamed(pipeline.SystemID(s.Name))
		for _, entry := range s.Requires {
			rs, _ := pipeline.ParseResourceState(entry)
			if rs.IsWildcard() {
				spec.RequiresAll(rs.Resource)
				continue
			}
			spec.Requires(rs.Resource, rs.State)
		}
		for _, res := range s.RequiresAll {
			spec.RequiresAll(pipeline.Identifier(res))
		}
		for _, entry := range s.Produces {
			rs, _ := pipeline.ParseResourceState(entry)
			spec.Produces(rs.Resource, rs.State)
		}
		if !s.AllowParallel() {
			spec.InSequence()
		}
	}
	return b, nil
}

func trimAll(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.TrimSpace(s)
	}
	return out
}
