// Package schema validates documents against declared structural contracts:
// required fields, types, numeric bounds, and string formats, with optional
// full JSON Schema (draft 2020-12) contracts for kinds that need more.
package schema

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// FieldSpec describes a single declared field. The field name may be a
// dot path (spec.replicas) resolved through nested mappings.
type FieldSpec struct {
	Type     string   `yaml:"type" json:"type"` // "string", "number", "integer", "boolean", "object", "array", "any"
	Required bool     `yaml:"required,omitempty" json:"required,omitempty"`
	Min      *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max      *float64 `yaml:"max,omitempty" json:"max,omitempty"`
	Format   string   `yaml:"format,omitempty" json:"format,omitempty"`   // "email"
	Pattern  string   `yaml:"pattern,omitempty" json:"pattern,omitempty"` // anchored regexp
}

// Contract is the declared shape of one document kind. Either Fields or
// JSONSchema carries the constraints; both may be set, in which case both
// apply.
type Contract struct {
	Kind       string               `yaml:"kind" json:"kind"`
	Fields     map[string]FieldSpec `yaml:"fields,omitempty" json:"fields,omitempty"`
	AllowExtra bool                 `yaml:"allowExtra,omitempty" json:"allowExtra,omitempty"`
	JSONSchema string               `yaml:"jsonSchema,omitempty" json:"jsonSchema,omitempty"`

	once     sync.Once
	compiled *jsonschema.Schema
	patterns map[string]*regexp.Regexp
	initErr  error
}

// Compile prepares the contract's regexps and embedded JSON Schema. Validate
// calls it lazily; loaders call it eagerly so a broken contract surfaces at
// load time.
func (c *Contract) Compile() error {
	c.once.Do(func() {
		c.patterns = make(map[string]*regexp.Regexp)
		for name, spec := range c.Fields {
			if spec.Pattern == "" {
				continue
			}
			re, err := regexp.Compile(spec.Pattern)
			if err != nil {
				c.initErr = fmt.Errorf("contract %s: field %s: bad pattern: %w", c.Kind, name, err)
				return
			}
			c.patterns[name] = re
		}

		if c.JSONSchema != "" {
			compiler := jsonschema.NewCompiler()
			compiler.Draft = jsonschema.Draft2020
			schemaURL := fmt.Sprintf("https://greenlight.schemas.local/%s.schema.json", c.Kind)
			if err := c.addAndCompile(compiler, schemaURL); err != nil {
				c.initErr = err
				return
			}
		}
	})
	return c.initErr
}

func (c *Contract) addAndCompile(compiler *jsonschema.Compiler, schemaURL string) error {
	if err := compiler.AddResource(schemaURL, strings.NewReader(c.JSONSchema)); err != nil {
		return fmt.Errorf("contract %s: schema load failed: %w", c.Kind, err)
	}
	compiled, err := compiler.Compile(schemaURL)
	if err != nil {
		return fmt.Errorf("contract %s: schema compile failed: %w", c.Kind, err)
	}
	c.compiled = compiled
	return nil
}
