package policy

import (
	"fmt"

	"github.com/Ledgerline-Labs/greenlight/pkg/artifact"
)

// LabelRule requires the fixed governance label key set: the three
// app.kubernetes.io identity keys plus the org-namespaced environment and
// tier keys. Presence is checked strictly by key; values are free-form.
type LabelRule struct {
	keys []string
}

// NewLabelRule builds the required key set for an org namespace. An empty org
// uses the default.
func NewLabelRule(org string) *LabelRule {
	if org == "" {
		org = DefaultOrg
	}
	return &LabelRule{
		keys: []string{
			"app.kubernetes.io/name",
			"app.kubernetes.io/version",
			"app.kubernetes.io/managed-by",
			org + "/environment",
			org + "/tier",
		},
	}
}

func (r *LabelRule) ID() string { return "labels" }

// RequiredKeys returns the enforced key set in declaration order.
func (r *LabelRule) RequiredKeys() []string {
	return append([]string(nil), r.keys...)
}

// Evaluate emits one violation per missing required key.
func (r *LabelRule) Evaluate(res *artifact.Descriptor) []Violation {
	var out []Violation
	for _, key := range r.keys {
		if _, ok := res.Labels[key]; !ok {
			out = append(out, Violation{
				RuleID:   ErrPolicyLabelMissing,
				Kind:     res.Kind,
				Resource: res.Name,
				Field:    "metadata.labels." + key,
				Message:  fmt.Sprintf("required label %q is missing", key),
			})
		}
	}
	return out
}
