package workflow

import (
	"embed"
	"fmt"
	"io/fs"
	"path"

	"github.com/aretw0/strata/pkg/domain"
)

//go:embed assets/*.yaml
var assets embed.FS

const storagePatchAsset = "assets/storage.yaml"

// BaseDefinitions returns the workflow definitions shipped with strata.
func BaseDefinitions() ([]*domain.Definition, error) {
	names, err := fs.Glob(assets, "assets/*.yaml")
	if err != nil {
		return nil, err
	}
	var defs []*domain.Definition
	for _, name := range names {
		if name == storagePatchAsset {
			continue
		}
		raw, err := assets.ReadFile(name)
		if err != nil {
			return nil, err
		}
		def, err := ParseDefinition(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path.Base(name), err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// StoragePatches returns the built-in patch adding store and recover to the sample workflow.
func StoragePatches() ([]*domain.WorkflowPatch, error) {
	raw, err := StoragePatchDocument()
	if err != nil {
		return nil, err
	}
	return ParsePatches(raw, "")
}

// StoragePatchDocument returns the raw YAML of the built-in storage patch.
func StoragePatchDocument() ([]byte, error) {
	return assets.ReadFile(storagePatchAsset)
}
