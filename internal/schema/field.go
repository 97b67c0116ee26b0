// Package schema holds the types shared by every stage of the generation
// engine: target fields, the parsed source table, and the error kinds.
package schema

import (
	"fmt"
	"strings"
)

// Field is a named slot a generated artifact must (or may) supply a value for.
type Field struct {
	Name        string   `json:"name" yaml:"name"`
	Required    bool     `json:"required" yaml:"required"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Keywords    []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
}

// FieldSet is an ordered set of target fields. Order is declaration order and
// is preserved through matching, assembly and serialization.
type FieldSet []Field

// Validate reports empty or duplicate field names.
func (fs FieldSet) Validate() error {
	if len(fs) == 0 {
		return fmt.Errorf("field set is empty")
	}
	seen := make(map[string]struct{}, len(fs))
	for i, f := range fs {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			return fmt.Errorf("fields[%d]: name is empty", i)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("fields[%d]: duplicate name %q", i, name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

// Names returns field names in declaration order.
func (fs FieldSet) Names() []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.Name
	}
	return out
}

// Lookup returns the field with the given name.
func (fs FieldSet) Lookup(name string) (Field, bool) {
	for _, f := range fs {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Required returns the required fields in declaration order.
func (fs FieldSet) Required() FieldSet {
	var out FieldSet
	for _, f := range fs {
		if f.Required {
			out = append(out, f)
		}
	}
	return out
}
