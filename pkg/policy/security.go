package policy

import (
	"fmt"
	"strings"

	"github.com/Ledgerline-Labs/greenlight/pkg/artifact"
)

// DefaultRegistries is the builtin image registry allow-list.
var DefaultRegistries = []string{"registry." + DefaultOrg + "/"}

// ExemptionLabelSuffix names the label that lifts the privileged-container
// denial when set to "true" on the owning resource.
const ExemptionLabelSuffix = "/privileged-exempt"

// SecurityRule denies privileged containers and images pulled from outside
// the approved registry prefixes. It inspects bare pod specs and pod
// templates, init containers included.
type SecurityRule struct {
	registries     []string
	exemptionLabel string
}

// NewSecurityRule configures the registry allow-list and exemption label for
// an org namespace. Nil registries use the defaults; an explicit empty list
// denies every image.
func NewSecurityRule(org string, registries []string) *SecurityRule {
	if org == "" {
		org = DefaultOrg
	}
	if registries == nil {
		registries = DefaultRegistries
	}
	return &SecurityRule{
		registries:     registries,
		exemptionLabel: org + ExemptionLabelSuffix,
	}
}

func (r *SecurityRule) ID() string { return "security" }

// Evaluate walks every container of the resource.
func (r *SecurityRule) Evaluate(res *artifact.Descriptor) []Violation {
	exempt := res.Labels[r.exemptionLabel] == "true"

	var out []Violation
	for _, c := range collectContainers(res.Spec) {
		name, _ := c["name"].(string)

		if isPrivileged(c) && !exempt {
			out = append(out, Violation{
				RuleID:   ErrPolicyPrivileged,
				Kind:     res.Kind,
				Resource: res.Name,
				Field:    "container." + name,
				Message:  fmt.Sprintf("container %q runs privileged without an exemption label", name),
			})
		}

		image, _ := c["image"].(string)
		if image != "" && !r.imageAllowed(image) {
			out = append(out, Violation{
				RuleID:   ErrPolicyRegistry,
				Kind:     res.Kind,
				Resource: res.Name,
				Field:    "container." + name,
				Message:  fmt.Sprintf("image %q does not match any approved registry prefix", image),
			})
		}
	}
	return out
}

func (r *SecurityRule) imageAllowed(image string) bool {
	for _, prefix := range r.registries {
		if strings.HasPrefix(image, prefix) {
			return true
		}
	}
	return false
}

// collectContainers returns every container mapping reachable from a spec:
// the spec's own containers/initContainers plus those of a nested pod
// template.
func collectContainers(spec map[string]any) []map[string]any {
	if spec == nil {
		return nil
	}

	var out []map[string]any
	out = append(out, containerList(spec, "containers")...)
	out = append(out, containerList(spec, "initContainers")...)

	if tpl, ok := spec["template"].(map[string]any); ok {
		if podSpec, ok := tpl["spec"].(map[string]any); ok {
			out = append(out, containerList(podSpec, "containers")...)
			out = append(out, containerList(podSpec, "initContainers")...)
		}
	}
	return out
}

func containerList(spec map[string]any, key string) []map[string]any {
	list, ok := spec[key].([]any)
	if !ok {
		return nil
	}
	var out []map[string]any
	for _, item := range list {
		if c, ok := item.(map[string]any); ok {
			out = append(out, c)
		}
	}
	return out
}

func isPrivileged(container map[string]any) bool {
	sc, ok := container["securityContext"].(map[string]any)
	if !ok {
		return false
	}
	privileged, _ := sc["privileged"].(bool)
	return privileged
}
