package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadContracts scans a schemas directory and returns contracts keyed by
// kind. *.schema.yaml files declare native field contracts; *.schema.json
// files carry full JSON Schema documents, with the kind taken from the file
// stem (Deployment.schema.json declares kind Deployment). A broken contract
// is a hard error: schemas are declarations, not advisory inputs.
func LoadContracts(dir string) (map[string]*Contract, error) {
	contracts := make(map[string]*Contract)

	yamlFiles, err := filepath.Glob(filepath.Join(dir, "*.schema.yaml"))
	if err != nil {
		return nil, err
	}
	for _, path := range yamlFiles {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		var c Contract
		if err := yaml.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if c.Kind == "" {
			c.Kind = contractStem(path)
		}
		if err := c.Compile(); err != nil {
			return nil, fmt.Errorf("compile %s: %w", path, err)
		}
		contracts[c.Kind] = &c
	}

	jsonFiles, err := filepath.Glob(filepath.Join(dir, "*.schema.json"))
	if err != nil {
		return nil, err
	}
	for _, path := range jsonFiles {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		c := &Contract{
			Kind:       contractStem(path),
			AllowExtra: true,
			JSONSchema: string(data),
		}
		if err := c.Compile(); err != nil {
			return nil, fmt.Errorf("compile %s: %w", path, err)
		}
		contracts[c.Kind] = c
	}

	return contracts, nil
}

// contractStem extracts the kind from a contract filename:
// Deployment.schema.json -> Deployment.
func contractStem(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.TrimSuffix(base, ".schema")
}
