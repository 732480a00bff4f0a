package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Function shapes accepted in a table.
const (
	ShapeNone        = ""
	ShapePlain       = "plain"
	ShapeConstructor = "constructor"
	ShapeExophoric   = "exophoric"
	ShapeInnocent    = "innocent"
)

// Grant names accepted in a table.
const (
	GrantRead   = "read"
	GrantEnum   = "enum"
	GrantCall   = "call"
	GrantSet    = "set"
	GrantDelete = "delete"
)

// Entry whitelists one slot.
type Entry struct {
	// Path is the dotted slot path from the root record.
	Path string `yaml:"path" json:"path"`

	// Shape classifies the function in the slot; empty for data slots.
	Shape string `yaml:"shape,omitempty" json:"shape,omitempty"`

	// Grants lists the rights guests get on the slot.
	Grants []string `yaml:"grants,omitempty" json:"grants,omitempty"`

	// Super is the path of the super constructor (constructors only).
	// "Object", "Array" and "Error" name the root constructors.
	Super string `yaml:"super,omitempty" json:"super,omitempty"`

	// Pre and Post name rewrite hooks supplied to Apply.
	Pre  string `yaml:"pre,omitempty" json:"pre,omitempty"`
	Post string `yaml:"post,omitempty" json:"post,omitempty"`
}

// Table is a compiled whitelist.
type Table struct {
	Entries []Entry `yaml:"entries" json:"entries"`
}

// Segments splits the entry path.
func (e Entry) Segments() []string {
	return strings.Split(e.Path, ".")
}

// LoadFile reads a table, choosing the format by extension (.cue, .yaml,
// .yml).
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policy: %w", err)
	}
	switch ext := filepath.Ext(path); ext {
	case ".cue":
		return ParseCUE(data, path)
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return nil, fmt.Errorf("policy: unsupported file extension %q", ext)
	}
}
