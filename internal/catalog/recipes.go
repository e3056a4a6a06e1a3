// Package catalog reads recipe files used to seed the potion catalog.
//
// A recipe file is YAML:
//
//	recipes:
//	  - name: Red Potion
//	    sku: RED_POTION_0
//	    recipe: {red: 100}
//	    price: 50
//	    description: Restores vigor.
package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/potionshop/internal/shop"
)

// File is the top-level recipe document.
type File struct {
	Recipes []shop.RecipeDef `yaml:"recipes"`
}

// LoadFile reads and validates a recipe file.
func LoadFile(path string) ([]shop.RecipeDef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read recipe file: %w", err)
	}
	defs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return defs, nil
}

// Parse decodes recipe YAML. Unknown fields are rejected, every recipe must
// pass shop.RecipeDef.Validate and SKUs must be unique within the file.
func Parse(data []byte) ([]shop.RecipeDef, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("parse recipes: %w", err)
	}

	seen := make(map[string]int, len(f.Recipes))
	for i, def := range f.Recipes {
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("recipes[%d]: %w", i, err)
		}
		if j, dup := seen[def.SKU]; dup {
			return nil, fmt.Errorf("recipes[%d]: %w", i, shop.Validationf("sku %s already defined at recipes[%d]", def.SKU, j))
		}
		seen[def.SKU] = i
	}
	return f.Recipes, nil
}
