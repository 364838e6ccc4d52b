// Package policy evaluates deny-by-default governance rules against resource
// descriptors. Rules are a small capability set (naming, labeling, security,
// guard expressions) composed per kind; a kind with no registered rules is a
// violation, not a silent pass.
package policy

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/Ledgerline-Labs/greenlight/pkg/artifact"
	"github.com/Ledgerline-Labs/greenlight/pkg/logging"
)

// Deterministic rule violation codes.
const (
	ErrPolicyNoRules       = "ERR_POLICY_NO_RULES"
	ErrPolicyNaming        = "ERR_POLICY_NAMING"
	ErrPolicyNamingKind    = "ERR_POLICY_NAMING_KIND"
	ErrPolicyNamingVersion = "ERR_POLICY_NAMING_VERSION"
	ErrPolicyLabelMissing  = "ERR_POLICY_LABEL_MISSING"
	ErrPolicyPrivileged    = "ERR_POLICY_PRIVILEGED"
	ErrPolicyRegistry      = "ERR_POLICY_REGISTRY"
	ErrPolicyExpr          = "ERR_POLICY_EXPR"
)

// DefaultOrg is the label/annotation namespace when none is configured.
const DefaultOrg = "ledgerline.dev"

// Violation is one policy denial, attributed to a rule and a resource.
type Violation struct {
	RuleID   string `json:"ruleId"`
	Kind     string `json:"kind"`
	Resource string `json:"resource"`
	Field    string `json:"field,omitempty"`
	Message  string `json:"message"`
}

func (v Violation) String() string {
	if v.Field != "" {
		return fmt.Sprintf("%s %s/%s [%s]: %s", v.RuleID, v.Kind, v.Resource, v.Field, v.Message)
	}
	return fmt.Sprintf("%s %s/%s: %s", v.RuleID, v.Kind, v.Resource, v.Message)
}

// Rule is one evaluable policy capability.
type Rule interface {
	ID() string
	Evaluate(res *artifact.Descriptor) []Violation
}

// Evaluator unions the violations of every rule registered for a resource's
// kind. Evaluation is exhaustive: no rule short-circuits another, so one pass
// surfaces every denial.
type Evaluator struct {
	rules  map[string][]Rule
	logger *slog.Logger
}

// NewEvaluator builds an evaluator over per-kind rule sets. The sets are
// treated as read-only after construction and may be shared across
// concurrent evaluators.
func NewEvaluator(rules map[string][]Rule) *Evaluator {
	return &Evaluator{
		rules:  rules,
		logger: logging.New("policy"),
	}
}

// Evaluate runs every applicable rule for the resource. An empty result means
// full compliance; a kind with no registered rule set is itself a violation.
func (e *Evaluator) Evaluate(res *artifact.Descriptor) []Violation {
	rules, ok := e.rules[res.Kind]
	if !ok || len(rules) == 0 {
		return []Violation{{
			RuleID:   ErrPolicyNoRules,
			Kind:     res.Kind,
			Resource: res.Name,
			Message:  fmt.Sprintf("no policy rules registered for kind %q", res.Kind),
		}}
	}

	var out []Violation
	for _, rule := range rules {
		out = append(out, rule.Evaluate(res)...)
	}

	e.logger.Debug("evaluated policy", "kind", res.Kind, "resource", res.Name, "violations", len(out))
	return out
}

// Kinds returns the kinds with registered rule sets, sorted.
func (e *Evaluator) Kinds() []string {
	kinds := make([]string, 0, len(e.rules))
	for k := range e.rules {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
