package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileError records the file a load failure came from.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return "manifest: " + e.Path + ": " + strings.TrimPrefix(e.Err.Error(), "manifest: ")
}

func (e *FileError) Unwrap() error { return e.Err }

// LoadFile loads a definition from path, choosing the format by extension:
// .yaml and .yml are YAML, .hcl is HCL. Failures are returned as *FileError.
func LoadFile(path string) (Definition, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, &FileError{Path: path, Err: err}
	}

	var def Definition
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		def, err = ParseYAML(content)
	case ".hcl":
		def, err = ParseHCL(content, path)
	default:
		err = fmt.Errorf("unsupported extension %q", ext)
	}
	if err != nil {
		return Definition{}, &FileError{Path: path, Err: err}
	}
	return def, nil
}
