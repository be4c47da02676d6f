// Package advisory evaluates documentation advisories: soft, non-tiering
// findings expressed as CEL rules in a versioned YAML pack.
package advisory

import (
	"bytes"
	_ "embed"
	"fmt"
	"regexp"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

//go:embed default_pack.yaml
var defaultPackYAML []byte

// Rule is one advisory.
type Rule struct {
	ID      string `yaml:"id" json:"id"`
	Message string `yaml:"message" json:"message"`
	When    string `yaml:"when" json:"when"`
}

// Pack is a versioned set of advisory rules.
type Pack struct {
	Name    string `yaml:"name" json:"name"`
	Version string `yaml:"version" json:"version"`
	// RequiresTable constrains the rule table revisions the pack was
	// written against.
	RequiresTable string `yaml:"requires_table" json:"requires_table"`
	Rules         []Rule `yaml:"rules" json:"rules"`

	version    *semver.Version
	constraint *semver.Constraints
}

var ruleIDPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Parse decodes and validates a pack. Unknown keys are rejected.
func Parse(data []byte) (*Pack, error) {
	var p Pack
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("advisory: decode pack: %w", err)
	}

	v, err := semver.NewVersion(p.Version)
	if err != nil {
		return nil, fmt.Errorf("advisory: pack %q: invalid version %q: %w", p.Name, p.Version, err)
	}
	p.version = v

	if p.RequiresTable != "" {
		c, err := semver.NewConstraint(p.RequiresTable)
		if err != nil {
			return nil, fmt.Errorf("advisory: pack %q: invalid requires_table %q: %w", p.Name, p.RequiresTable, err)
		}
		p.constraint = c
	}

	seen := make(map[string]bool, len(p.Rules))
	for _, r := range p.Rules {
		if !ruleIDPattern.MatchString(r.ID) {
			return nil, fmt.Errorf("advisory: pack %q: invalid rule id %q", p.Name, r.ID)
		}
		if seen[r.ID] {
			return nil, fmt.Errorf("advisory: pack %q: duplicate rule %q", p.Name, r.ID)
		}
		seen[r.ID] = true
		if r.Message == "" || r.When == "" {
			return nil, fmt.Errorf("advisory: pack %q: rule %q needs a message and a when expression", p.Name, r.ID)
		}
	}
	return &p, nil
}

// Default returns the embedded default pack.
func Default() *Pack {
	p, err := Parse(defaultPackYAML)
	if err != nil {
		panic(err)
	}
	return p
}

// SemVer returns the parsed pack version.
func (p *Pack) SemVer() *semver.Version {
	return p.version
}

// Supports reports whether the pack may run against a rule table revision.
// A pack without requires_table supports every revision.
func (p *Pack) Supports(table *semver.Version) error {
	if p.constraint == nil {
		return nil
	}
	if !p.constraint.Check(table) {
		return fmt.Errorf("advisory: pack %s@%s requires table %s, have %s",
			p.Name, p.Version, p.RequiresTable, table)
	}
	return nil
}
