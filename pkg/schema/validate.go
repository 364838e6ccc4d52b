package schema

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Ledgerline-Labs/greenlight/pkg/artifact"
)

// Deterministic error codes for structural violations.
const (
	ErrSchemaMissingRequired = "ERR_SCHEMA_MISSING_REQUIRED"
	ErrSchemaTypeMismatch    = "ERR_SCHEMA_TYPE_MISMATCH"
	ErrSchemaOutOfRange      = "ERR_SCHEMA_OUT_OF_RANGE"
	ErrSchemaBadFormat       = "ERR_SCHEMA_BAD_FORMAT"
	ErrSchemaUnknownField    = "ERR_SCHEMA_UNKNOWN_FIELD"
	ErrSchemaDocument        = "ERR_SCHEMA_DOCUMENT"
	ErrSchemaContract        = "ERR_SCHEMA_CONTRACT"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// FieldError is one structural violation, named by the offending field so
// error lists stay greppable.
type FieldError struct {
	Code    string `json:"code"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ValidationResult is the outcome of one validation call.
// Errors is empty exactly when Valid is true.
type ValidationResult struct {
	Valid  bool         `json:"valid"`
	Errors []FieldError `json:"errors"`
}

// FieldNames returns the distinct offending field names in sorted order.
func (r ValidationResult) FieldNames() []string {
	seen := map[string]bool{}
	var names []string
	for _, e := range r.Errors {
		if e.Field != "" && !seen[e.Field] {
			seen[e.Field] = true
			names = append(names, e.Field)
		}
	}
	sort.Strings(names)
	return names
}

// Validate checks doc against the contract. It is exhaustive: every declared
// field is checked and every violation collected, never fail-fast. Outcome is
// a pure function of (doc, contract).
func Validate(doc artifact.Document, c *Contract) ValidationResult {
	var errs []FieldError

	if err := c.Compile(); err != nil {
		errs = append(errs, FieldError{Code: ErrSchemaContract, Message: err.Error()})
		return ValidationResult{Valid: false, Errors: errs}
	}

	for _, name := range sortedFieldNames(c.Fields) {
		spec := c.Fields[name]
		val, exists := lookupPath(doc, name)

		if !exists {
			if spec.Required {
				errs = append(errs, FieldError{
					Code:    ErrSchemaMissingRequired,
					Field:   name,
					Message: fmt.Sprintf("required field %q is missing", name),
				})
			}
			continue
		}

		errs = append(errs, checkField(name, val, spec, c.patterns[name])...)
	}

	if !c.AllowExtra && len(c.Fields) > 0 {
		declared := map[string]bool{}
		for name := range c.Fields {
			root, _, _ := strings.Cut(name, ".")
			declared[root] = true
		}
		for _, name := range artifact.SortedKeys(doc) {
			if !declared[name] {
				errs = append(errs, FieldError{
					Code:    ErrSchemaUnknownField,
					Field:   name,
					Message: fmt.Sprintf("unknown field %q not in contract", name),
				})
			}
		}
	}

	if c.compiled != nil {
		errs = append(errs, validateJSONSchema(doc, c.compiled)...)
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

func checkField(name string, val any, spec FieldSpec, pattern *regexp.Regexp) []FieldError {
	var errs []FieldError

	if spec.Type != "" && spec.Type != "any" {
		if !typeMatches(val, spec.Type) {
			errs = append(errs, FieldError{
				Code:    ErrSchemaTypeMismatch,
				Field:   name,
				Message: fmt.Sprintf("field %q expected type %s, got %T", name, spec.Type, val),
			})
			// Bounds/format checks presume the declared type
			return errs
		}
	}

	if num, ok := asFloat(val); ok {
		if spec.Min != nil && num < *spec.Min {
			errs = append(errs, FieldError{
				Code:    ErrSchemaOutOfRange,
				Field:   name,
				Message: fmt.Sprintf("field %q value %v below minimum %v", name, num, *spec.Min),
			})
		}
		if spec.Max != nil && num > *spec.Max {
			errs = append(errs, FieldError{
				Code:    ErrSchemaOutOfRange,
				Field:   name,
				Message: fmt.Sprintf("field %q value %v above maximum %v", name, num, *spec.Max),
			})
		}
	}

	if s, ok := val.(string); ok {
		if spec.Format == "email" && !emailPattern.MatchString(s) {
			errs = append(errs, FieldError{
				Code:    ErrSchemaBadFormat,
				Field:   name,
				Message: fmt.Sprintf("field %q is not email-shaped", name),
			})
		}
		if pattern != nil && !pattern.MatchString(s) {
			errs = append(errs, FieldError{
				Code:    ErrSchemaBadFormat,
				Field:   name,
				Message: fmt.Sprintf("field %q does not match pattern %s", name, spec.Pattern),
			})
		}
	}

	return errs
}

// validateJSONSchema runs the compiled JSON Schema and flattens the cause
// tree into one FieldError per leaf.
func validateJSONSchema(doc artifact.Document, compiled *jsonschema.Schema) []FieldError {
	err := compiled.Validate(map[string]any(doc))
	if err == nil {
		return nil
	}

	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []FieldError{{Code: ErrSchemaDocument, Message: err.Error()}}
	}

	var errs []FieldError
	flattenCauses(ve, &errs)
	return errs
}

func flattenCauses(ve *jsonschema.ValidationError, out *[]FieldError) {
	if len(ve.Causes) == 0 {
		*out = append(*out, FieldError{
			Code:    ErrSchemaDocument,
			Field:   instancePath(ve.InstanceLocation),
			Message: ve.Message,
		})
		return
	}
	for _, cause := range ve.Causes {
		flattenCauses(cause, out)
	}
}

func instancePath(loc string) string {
	loc = strings.TrimPrefix(loc, "/")
	return strings.ReplaceAll(loc, "/", ".")
}

// lookupPath resolves a dot path through nested mappings.
func lookupPath(doc artifact.Document, path string) (any, bool) {
	var cur any = map[string]any(doc)
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func typeMatches(val any, expected string) bool {
	switch expected {
	case "string":
		_, ok := val.(string)
		return ok
	case "number":
		_, ok := asFloat(val)
		return ok
	case "integer":
		switch t := val.(type) {
		case int, int64:
			return true
		case float64:
			return t == float64(int64(t))
		case json.Number:
			_, err := t.Int64()
			return err == nil
		}
		return false
	case "boolean":
		_, ok := val.(bool)
		return ok
	case "object":
		_, ok := val.(map[string]any)
		return ok
	case "array":
		_, ok := val.([]any)
		return ok
	default:
		return true
	}
}

func asFloat(val any) (float64, bool) {
	switch t := val.(type) {
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case float64:
		return t, true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	}
	return 0, false
}

func sortedFieldNames(fields map[string]FieldSpec) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
