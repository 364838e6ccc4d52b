// Package normalize derives the effective configuration of an artifact by
// deep-merging its base document with an environment overlay, recording every
// override along the way.
package normalize

import (
	"reflect"

	"github.com/Ledgerline-Labs/greenlight/pkg/artifact"
)

// OverrideRecord captures one point where the overlay changed the base.
type OverrideRecord struct {
	Path         string `json:"path"`
	BaseValue    any    `json:"baseValue"`
	OverlayValue any    `json:"overlayValue"`
}

// MergeResult is the outcome of a merge: the effective document plus the
// ordered override trail. Override paths are unique within one result and
// emitted in sorted-key depth-first order.
type MergeResult struct {
	Env       string            `json:"env"`
	Merged    artifact.Document `json:"merged"`
	Overrides []OverrideRecord  `json:"overrides"`
}

// Merge deep-merges overlay into base for the target environment. Nested
// mappings merge key-by-key; scalars and arrays are replaced wholesale.
// Base keys are never deleted. On a type mismatch (mapping vs scalar) the
// overlay wins and the replacement is recorded as a single override. Inputs
// are never mutated.
func Merge(base, overlay artifact.Document, targetEnv string) MergeResult {
	var merged map[string]any
	if base != nil {
		merged = artifact.DeepCopy(base).(map[string]any)
	} else {
		merged = map[string]any{}
	}

	res := MergeResult{Env: targetEnv, Merged: merged}
	if len(overlay) == 0 {
		return res
	}

	res.Overrides = mergeMap(merged, overlay, "", nil)
	return res
}

func mergeMap(dst, overlay map[string]any, prefix string, out []OverrideRecord) []OverrideRecord {
	for _, k := range artifact.SortedKeys(overlay) {
		path := joinPath(prefix, k)
		ov := overlay[k]
		bv, exists := dst[k]

		om, oIsMap := ov.(map[string]any)
		bm, bIsMap := bv.(map[string]any)

		switch {
		case oIsMap && bIsMap:
			out = mergeMap(bm, om, path, out)

		case oIsMap && !exists:
			// New subtree: every leaf the overlay introduces is an override.
			dst[k] = artifact.DeepCopy(om)
			out = recordLeaves(om, path, out)

		case oIsMap:
			// Mapping replaces a scalar or array. Overlay wins, logged as one
			// override so the replaced base value stays visible in the trail.
			dst[k] = artifact.DeepCopy(om)
			out = append(out, OverrideRecord{Path: path, BaseValue: bv, OverlayValue: artifact.DeepCopy(om)})

		default:
			if exists && reflect.DeepEqual(bv, ov) {
				continue
			}
			dst[k] = artifact.DeepCopy(ov)
			out = append(out, OverrideRecord{Path: path, BaseValue: bv, OverlayValue: artifact.DeepCopy(ov)})
		}
	}
	return out
}

// recordLeaves emits one override per leaf of an overlay subtree that had no
// base counterpart.
func recordLeaves(v any, path string, out []OverrideRecord) []OverrideRecord {
	m, ok := v.(map[string]any)
	if !ok || len(m) == 0 {
		return append(out, OverrideRecord{Path: path, BaseValue: nil, OverlayValue: artifact.DeepCopy(v)})
	}
	for _, k := range artifact.SortedKeys(m) {
		out = recordLeaves(m[k], joinPath(path, k), out)
	}
	return out
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
