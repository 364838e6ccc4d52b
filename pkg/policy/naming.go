package policy

import (
	"fmt"
	"regexp"

	"github.com/Masterminds/semver/v3"

	"github.com/Ledgerline-Labs/greenlight/pkg/artifact"
)

// DefaultSuffixes maps resource kinds to their required name suffix.
var DefaultSuffixes = map[string]string{
	"Deployment": "deploy",
	"Service":    "svc",
	"Ingress":    "ing",
	"ConfigMap":  "cm",
	"Secret":     "secret",
}

// NamingRule enforces the environment-prefixed, kind-suffixed, versioned name
// convention: ^(dev|staging|prod)-[a-z0-9-]+-<suffix>-v<semver>(-<tag>)?$.
// The version segment must additionally parse as strict semver, which rejects
// leading zeros the character class alone admits.
type NamingRule struct {
	suffixes map[string]string
	patterns map[string]*regexp.Regexp
}

// NewNamingRule compiles one pattern per mapped kind. A nil suffix map uses
// the defaults.
func NewNamingRule(suffixes map[string]string) *NamingRule {
	if suffixes == nil {
		suffixes = DefaultSuffixes
	}
	patterns := make(map[string]*regexp.Regexp, len(suffixes))
	for kind, suffix := range suffixes {
		patterns[kind] = regexp.MustCompile(
			`^(dev|staging|prod)-[a-z0-9-]+-` + regexp.QuoteMeta(suffix) + `-v([0-9]+\.[0-9]+\.[0-9]+(-[A-Za-z0-9]+)?)$`)
	}
	return &NamingRule{suffixes: suffixes, patterns: patterns}
}

func (r *NamingRule) ID() string { return "naming" }

// Evaluate denies unmapped kinds, non-matching names, and version segments
// that are not strict semver.
func (r *NamingRule) Evaluate(res *artifact.Descriptor) []Violation {
	pattern, mapped := r.patterns[res.Kind]
	if !mapped {
		return []Violation{{
			RuleID:   ErrPolicyNamingKind,
			Kind:     res.Kind,
			Resource: res.Name,
			Message:  fmt.Sprintf("no naming convention mapped for kind %q", res.Kind),
		}}
	}

	m := pattern.FindStringSubmatch(res.Name)
	if m == nil {
		return []Violation{{
			RuleID:   ErrPolicyNaming,
			Kind:     res.Kind,
			Resource: res.Name,
			Field:    "metadata.name",
			Message: fmt.Sprintf("name %q does not match <env>-<app>-%s-v<version> for environments dev|staging|prod",
				res.Name, r.suffixes[res.Kind]),
		}}
	}

	if _, err := semver.StrictNewVersion(m[2]); err != nil {
		return []Violation{{
			RuleID:   ErrPolicyNamingVersion,
			Kind:     res.Kind,
			Resource: res.Name,
			Field:    "metadata.name",
			Message:  fmt.Sprintf("version segment %q is not strict semver: %v", m[2], err),
		}}
	}

	return nil
}
