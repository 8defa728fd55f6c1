package manifest

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// hclFile is the top-level structure of a manifest file for decoding.
type hclFile struct {
	Pipelines []*hclPipeline `hcl:"pipeline,block"`
}

type hclPipeline struct {
	Name    string       `hcl:"name,label"`
	Systems []*hclSystem `hcl:"system,block"`
}

type hclSystem struct {
	Name        string   `hcl:"name,label"`
	Requires    []string `hcl:"requires,optional"`
	RequiresAll []string `hcl:"requires_all,optional"`
	Produces    []string `hcl:"produces,optional"`
	Parallel    *bool    `hcl:"parallel,optional"`
}

// ParseHCL decodes a definition from HCL source. filename is used in
// diagnostics only. The file must contain exactly one pipeline block:
//
//	pipeline "render" {
//	  system "GBufferPass" {
//	    requires = ["Camera.Updated"]
//	    produces = ["GBuffer.Written"]
//	    parallel = false
//	  }
//	}
func ParseHCL(data []byte, filename string) (Definition, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return Definition{}, fmt.Errorf("manifest: failed to parse HCL: %w", diags)
	}

	var parsed hclFile
	diags = gohcl.DecodeBody(file.Body, nil, &parsed)
	if diags.HasErrors() {
		return Definition{}, fmt.Errorf("manifest: failed to decode HCL: %w", diags)
	}
	if len(parsed.Pipelines) != 1 {
		return Definition{}, fmt.Errorf("%w: file must contain exactly one pipeline block, found %d",
			ErrInvalidManifest, len(parsed.Pipelines))
	}

	p := parsed.Pipelines[0]
	def := Definition{Name: p.Name, Systems: make([]SystemDefinition, 0, len(p.Systems))}
	for _, s := range p.Systems {
		def.Systems = append(def.Systems, SystemDefinition{
			Name:        s.Name,
			Requires:    s.Requires,
			RequiresAll: s.RequiresAll,
			Produces:    s.Produces,
			Parallel:    s.Parallel,
		})
	}
	return def.Normalized()
}
