// Package detail maps source-specific lead payloads onto the stored detail
// record. Which fields matter per source is configuration, not code: the
// registry is loaded from a yaml file so a new intake source never requires
// a deploy to start capturing its fields.
package detail

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// defaultCommonFields are accepted for every source, including sources the
// registry has never heard of. Intentionally permissive: a forgotten schema
// mapping must degrade to a sparse detail record, never a dropped lead.
var defaultCommonFields = []string{
	"amountRequested",
	"companyName",
	"employmentType",
	"notes",
}

// Registry resolves which detail fields are recognized per source.
type Registry struct {
	common  map[string]struct{}
	sources map[string]map[string]struct{}
}

type schemaFile struct {
	Common  []string            `yaml:"common"`
	Sources map[string][]string `yaml:"sources"`
}

// NewRegistry builds a registry from explicit field lists. Used directly in
// tests; production code loads from yaml via Load.
func NewRegistry(common []string, sources map[string][]string) *Registry {
	r := &Registry{
		common:  toSet(common),
		sources: make(map[string]map[string]struct{}, len(sources)),
	}
	for source, fields := range sources {
		r.sources[source] = toSet(fields)
	}
	return r
}

// Load reads the schema registry from a yaml file. A missing file yields a
// registry with only the default common fields.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewRegistry(defaultCommonFields, nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read detail schema file: %w", err)
	}

	var file schemaFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse detail schema file: %w", err)
	}

	common := file.Common
	if common == nil {
		common = defaultCommonFields
	}
	return NewRegistry(common, file.Sources), nil
}

// Filter keeps only the fields recognized for the given source: the
// source's own fields plus the common set. Unknown fields are dropped
// silently; unknown sources fall back to the common set alone.
func (r *Registry) Filter(source string, payload map[string]any) map[string]any {
	filtered := make(map[string]any)
	if len(payload) == 0 {
		return filtered
	}

	sourceFields := r.sources[source]
	for key, value := range payload {
		if _, ok := r.common[key]; ok {
			filtered[key] = value
			continue
		}
		if sourceFields != nil {
			if _, ok := sourceFields[key]; ok {
				filtered[key] = value
			}
		}
	}
	return filtered
}

func toSet(fields []string) map[string]struct{} {
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if f != "" {
			set[f] = struct{}{}
		}
	}
	return set
}
