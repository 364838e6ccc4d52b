package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Profile is an environment-specific governance profile. A profile tunes rule
// parameters and gate outputs per environment without editing the rule files
// themselves.
type Profile struct {
	Name       string         `yaml:"name" json:"name"`
	Env        string         `yaml:"env" json:"env"`
	Org        string         `yaml:"org,omitempty" json:"org,omitempty"`
	Registries []string       `yaml:"registries,omitempty" json:"registries,omitempty"`
	Pipeline   PipelineLimits `yaml:"pipeline" json:"pipeline"`
	Gate       GateOutputs    `yaml:"gate" json:"gate"`
}

// PipelineLimits overrides pipeline execution limits. Zero values keep the
// built-in defaults.
type PipelineLimits struct {
	Workers   int `yaml:"workers,omitempty" json:"workers,omitempty"`
	TimeoutMs int `yaml:"timeout_ms,omitempty" json:"timeout_ms,omitempty"`
}

// Timeout returns the per-artifact timeout, or zero when unset.
func (l PipelineLimits) Timeout() time.Duration {
	return time.Duration(l.TimeoutMs) * time.Millisecond
}

// GateOutputs controls what a passing gate run produces beyond its report.
type GateOutputs struct {
	Sign        bool `yaml:"sign" json:"sign"`
	Archive     bool `yaml:"archive" json:"archive"`
	TokenTTLMin int  `yaml:"token_ttl_min,omitempty" json:"token_ttl_min,omitempty"`
}

// TokenTTL returns the attestation token lifetime for this environment,
// defaulting to one hour.
func (g GateOutputs) TokenTTL() time.Duration {
	if g.TokenTTLMin <= 0 {
		return time.Hour
	}
	return time.Duration(g.TokenTTLMin) * time.Minute
}

// LoadProfile loads an environment profile by name.
// It searches the profiles directory for profile_<env>.yaml.
func LoadProfile(profilesDir, env string) (*Profile, error) {
	env = strings.ToLower(env)
	path := filepath.Join(profilesDir, fmt.Sprintf("profile_%s.yaml", env))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", env, err)
	}

	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("parse profile %q: %w", env, err)
	}

	if profile.Env == "" {
		profile.Env = env
	}

	return &profile, nil
}

// LoadAllProfiles loads all profile_*.yaml files from the profiles directory.
func LoadAllProfiles(profilesDir string) (map[string]*Profile, error) {
	matches, err := filepath.Glob(filepath.Join(profilesDir, "profile_*.yaml"))
	if err != nil {
		return nil, err
	}

	profiles := make(map[string]*Profile, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		var profile Profile
		if err := yaml.Unmarshal(data, &profile); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}

		if profile.Env == "" {
			// Extract env from filename: profile_prod.yaml -> prod
			base := filepath.Base(path)
			profile.Env = strings.TrimSuffix(strings.TrimPrefix(base, "profile_"), ".yaml")
		}

		profiles[profile.Env] = &profile
	}

	return profiles, nil
}
