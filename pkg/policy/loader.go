package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/Ledgerline-Labs/greenlight/pkg/logging"
)

// Options parameterize the builtin rule set.
type Options struct {
	// Org is the label namespace for the environment/tier keys and the
	// privileged exemption. Empty uses DefaultOrg.
	Org string
	// Registries overrides the image registry allow-list. Nil uses the
	// defaults; an explicit empty slice denies every image.
	Registries []string
}

// DefaultRules builds the builtin per-kind rule sets: every mapped kind gets
// naming, labeling, and security enforcement.
func DefaultRules(opts Options) map[string][]Rule {
	naming := NewNamingRule(nil)
	labels := NewLabelRule(opts.Org)
	security := NewSecurityRule(opts.Org, opts.Registries)

	rules := make(map[string][]Rule, len(DefaultSuffixes))
	for kind := range DefaultSuffixes {
		rules[kind] = []Rule{naming, labels, security}
	}
	return rules
}

// ruleFile is the on-disk shape of a per-kind rule override. Present sections
// select which capabilities apply; the file replaces the builtin set for its
// kind entirely.
type ruleFile struct {
	Kind   string `yaml:"kind"`
	Naming *struct {
		Suffix string `yaml:"suffix"`
	} `yaml:"naming"`
	Labels *struct {
		Org string `yaml:"org"`
	} `yaml:"labels"`
	Security *struct {
		Registries []string `yaml:"registries"`
	} `yaml:"security"`
	Expressions []struct {
		Name string `yaml:"name"`
		Expr string `yaml:"expr"`
	} `yaml:"expressions"`
}

// LoadRules builds an evaluator from the builtin defaults plus any
// *.rules.yaml / *.rules.yml overrides found in dir. A malformed rule file is
// logged and skipped, leaving the builtin set for its kind intact; an
// unreadable directory is an error. An empty dir means defaults only.
func LoadRules(dir string, opts Options) (*Evaluator, error) {
	rules := DefaultRules(opts)
	if dir == "" {
		return NewEvaluator(rules), nil
	}

	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("read rules dir %s: %w", dir, err)
	}

	logger := logging.New("policy")

	var paths []string
	for _, pattern := range []string{"*.rules.yaml", "*.rules.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("glob rules dir %s: %w", dir, err)
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)

	for _, path := range paths {
		kind, set, err := loadRuleFile(path, opts)
		if err != nil {
			logger.Warn("skipping malformed rule file", "path", path, "error", err)
			continue
		}
		rules[kind] = set
		logger.Debug("loaded rule override", "path", path, "kind", kind, "rules", len(set))
	}

	return NewEvaluator(rules), nil
}

// loadRuleFile parses one override file and materializes its rule set. Any
// defect, from YAML syntax to a rejected guard expression, fails the whole
// file so a partial override never silently weakens a kind.
func loadRuleFile(path string, opts Options) (string, []Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("read %s: %w", path, err)
	}

	var rf ruleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return "", nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if rf.Kind == "" {
		return "", nil, fmt.Errorf("rule file %s has no kind", path)
	}

	org := opts.Org
	if rf.Labels != nil && rf.Labels.Org != "" {
		org = rf.Labels.Org
	}

	var set []Rule
	if rf.Naming != nil {
		if rf.Naming.Suffix == "" {
			return "", nil, fmt.Errorf("rule file %s: naming section has no suffix", path)
		}
		set = append(set, NewNamingRule(map[string]string{rf.Kind: rf.Naming.Suffix}))
	}
	if rf.Labels != nil {
		set = append(set, NewLabelRule(org))
	}
	if rf.Security != nil {
		registries := rf.Security.Registries
		if registries == nil {
			registries = opts.Registries
		}
		set = append(set, NewSecurityRule(org, registries))
	}
	for _, e := range rf.Expressions {
		rule, err := NewExprRule(rf.Kind, e.Name, e.Expr)
		if err != nil {
			return "", nil, fmt.Errorf("rule file %s: %w", path, err)
		}
		set = append(set, rule)
	}

	if len(set) == 0 {
		return "", nil, fmt.Errorf("rule file %s declares no rules", path)
	}
	return rf.Kind, set, nil
}
