// Package artifact models the declarative documents the validation pipeline
// operates on: parsed manifests, their environment overlays, and the resource
// descriptors extracted from them.
package artifact

import (
	"fmt"
	"sort"
)

// Document is a parsed manifest: arbitrarily nested string-keyed mappings,
// sequences, and scalars, as produced by the YAML decoder.
type Document = map[string]any

// Descriptor is the policy-relevant view of a manifest document.
type Descriptor struct {
	Kind        string            `json:"kind"`
	Name        string            `json:"name"`
	Labels      map[string]string `json:"labels,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
	Spec        map[string]any    `json:"spec,omitempty"`
}

// Subject returns the evidence subject identifier for the resource,
// in kind/name form.
func (d *Descriptor) Subject() string {
	return d.Kind + "/" + d.Name
}

// Describe extracts the resource descriptor from a manifest document.
// The kind field is mandatory; everything else degrades to empty values so
// that policy evaluation can still run (and deny) on sparse documents.
func Describe(doc Document) (*Descriptor, error) {
	kind, ok := doc["kind"].(string)
	if !ok || kind == "" {
		return nil, fmt.Errorf("document has no kind")
	}

	d := &Descriptor{Kind: kind}

	meta, _ := doc["metadata"].(map[string]any)
	if meta != nil {
		if name, ok := meta["name"].(string); ok {
			d.Name = name
		}
		d.Labels = stringMap(meta["labels"])
		d.Annotations = stringMap(meta["annotations"])
	}

	if spec, ok := doc["spec"].(map[string]any); ok {
		d.Spec = spec
	}

	return d, nil
}

// stringMap coerces a decoded labels/annotations mapping to string values.
// YAML parses unquoted values like 1.0 as numbers; they are stringified
// rather than dropped.
func stringMap(v any) map[string]string {
	m, ok := v.(map[string]any)
	if !ok || len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, val := range m {
		switch s := val.(type) {
		case string:
			out[k] = s
		case nil:
			out[k] = ""
		default:
			out[k] = fmt.Sprintf("%v", s)
		}
	}
	return out
}

// SortedKeys returns the keys of m in lexicographic order. Merge traversal
// and override reporting use it to stay deterministic.
func SortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DeepCopy returns a structurally independent copy of a document value.
// Mutating the copy never touches the original.
func DeepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = DeepCopy(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, elem := range t {
			out[i] = DeepCopy(elem)
		}
		return out
	default:
		return t
	}
}
