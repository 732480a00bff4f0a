package policy

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// ParseYAML decodes a YAML table. Unknown fields are rejected.
//
//	entries:
//	  - path: Math.max
//	    shape: plain
//	    grants: [read, call]
func ParseYAML(data []byte) (*Table, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var t Table
	if err := dec.Decode(&t); err != nil {
		if errors.Is(err, io.EOF) {
			return &Table{}, nil
		}
		return nil, fmt.Errorf("policy: parse yaml: %w", err)
	}
	return &t, nil
}
