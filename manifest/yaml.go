package manifest

import (
	"bytes"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// ParseYAML decodes a definition from YAML (or JSON) bytes.
//
//	name: render
//	systems:
//	  - name: GBufferPass
//	    requires: [Camera.Updated]
//	    requires_all: [Terrain]
//	    produces: [GBuffer.Written]
//	    parallel: false
func ParseYAML(data []byte) (Definition, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Definition{}, fmt.Errorf("manifest: definition payload is empty")
	}
	var def Definition
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		return Definition{}, fmt.Errorf("manifest: decode yaml: %w", err)
	}
	return def.Normalized()
}

// LoadYAML reads YAML definition data from r.
func LoadYAML(r io.Reader) (Definition, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return Definition{}, fmt.Errorf("manifest: read definition: %w", err)
	}
	return ParseYAML(content)
}
