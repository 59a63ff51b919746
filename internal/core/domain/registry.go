package domain

import (
	"errors"
	"fmt"
	"sort"
)

// GenericCategory is the fallback schema for categories the registry
// does not recognize. It always exists and cannot be removed.
const GenericCategory = "generic"

func builtinSchemas() map[string][]string {
	return map[string][]string{
		GenericCategory: {"height", "width"},
		"hoodie":        {"bodyLength", "chest", "shoulder", "sleeve"},
		"tshirt":        {"bodyLength", "chest", "shoulder", "sleeve"},
		"polo":          {"bodyLength", "chest", "shoulder", "sleeve", "collar"},
		"jacket":        {"bodyLength", "chest", "shoulder", "sleeve", "hem"},
		"jersey":        {"bodyLength", "chest", "shoulder"},
		"pants":         {"waist", "hip", "inseam", "outseam", "thigh"},
		"shorts":        {"waist", "hip", "inseam", "outseam"},
		"cap":           {"circumference", "brimLength"},
	}
}

// Registry maps a garment category to its ordered measurement-field list.
// Both the response validator and the interactive editor resolve fields
// through the same Registry value, so the two can never drift apart.
type Registry struct {
	schemas map[string][]string
}

func NewRegistry() *Registry {
	return &Registry{schemas: builtinSchemas()}
}

// FieldsFor returns the measurement fields for category, falling back to
// the generic schema for unknown categories. It never fails and returns
// a fresh slice the caller may keep.
func (r *Registry) FieldsFor(category string) []string {
	fields, ok := r.schemas[category]
	if !ok {
		fields = r.schemas[GenericCategory]
	}
	out := make([]string, len(fields))
	copy(out, fields)
	return out
}

// Knows reports whether category is a recognized schema key.
func (r *Registry) Knows(category string) bool {
	_, ok := r.schemas[category]
	return ok
}

// Categories returns all registered category names in sorted order.
func (r *Registry) Categories() []string {
	out := make([]string, 0, len(r.schemas))
	for category := range r.schemas {
		out = append(out, category)
	}
	sort.Strings(out)
	return out
}

// ApplyOverrides registers or replaces category schemas from an external
// source. Overrides are validated up front; a bad entry rejects the whole
// batch so the registry is never left half-applied.
func (r *Registry) ApplyOverrides(overrides map[string][]string) error {
	for category, fields := range overrides {
		if category == "" {
			return WrapError(ErrInvalidInput, "apply schema overrides", errors.New("empty category name"))
		}
		if len(fields) == 0 {
			return WrapError(ErrInvalidInput, "apply schema overrides", fmt.Errorf("category %q has no fields", category))
		}
		seen := make(map[string]struct{}, len(fields))
		for _, field := range fields {
			if field == "" {
				return WrapError(ErrInvalidInput, "apply schema overrides", fmt.Errorf("category %q has an empty field name", category))
			}
			if _, dup := seen[field]; dup {
				return WrapError(ErrInvalidInput, "apply schema overrides", fmt.Errorf("category %q repeats field %q", category, field))
			}
			seen[field] = struct{}{}
		}
	}

	for category, fields := range overrides {
		stored := make([]string, len(fields))
		copy(stored, fields)
		r.schemas[category] = stored
	}
	return nil
}
