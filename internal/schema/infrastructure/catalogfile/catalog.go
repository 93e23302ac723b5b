package catalogfile

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	schema "datamap-cloud/internal/schema/domain"

	"gopkg.in/yaml.v3"
)

//go:embed default_catalog.yaml
var defaultCatalog []byte

type document struct {
	Fields []schema.CanonicalField `yaml:"fields"`
}

// Parse decodes a YAML catalog document.
func Parse(data []byte) (schema.Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("catalog: decode yaml: %w", err)
	}
	if len(doc.Fields) == 0 {
		return nil, errors.New("catalog: no fields defined")
	}
	for i := range doc.Fields {
		if doc.Fields[i].Category != "" {
			category, err := schema.ParseCategory(string(doc.Fields[i].Category))
			if err != nil {
				return nil, fmt.Errorf("catalog: field %q: %w", doc.Fields[i].Key, err)
			}
			doc.Fields[i].Category = category
		}
	}
	return schema.NewCatalog(doc.Fields)
}

// Default returns the built-in catalog.
func Default() (schema.Catalog, error) {
	return Parse(defaultCatalog)
}

// LoadFile reads a catalog from path.
func LoadFile(path string) (schema.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return Parse(data)
}

// Encode renders a catalog as YAML.
func Encode(catalog schema.Catalog) ([]byte, error) {
	return yaml.Marshal(document{Fields: catalog})
}
