package decision

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Policy holds the tunable inputs of the decision rules. Only the
// country allow-list is configurable today.
type Policy struct {
	// PriorityCountries lists high-penetration messaging markets. The
	// country-priority rule records membership for audit; it does not change
	// the final decision.
	PriorityCountries []string `yaml:"priority_countries"`
}

// DefaultPolicy returns the built-in policy.
func DefaultPolicy() Policy {
	return Policy{
		PriorityCountries: []string{"BR", "IN", "ID", "US"},
	}
}

// LoadPolicy reads a policy file, falling back to defaults for empty fields.
func LoadPolicy(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, eris.Wrapf(err, "decision: read policy file %s", path)
	}

	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, eris.Wrap(err, "decision: parse policy file")
	}

	if len(p.PriorityCountries) == 0 {
		p.PriorityCountries = DefaultPolicy().PriorityCountries
	}
	return p, nil
}

// IsPriority reports whether the country code is on the allow-list.
// Comparison is case-insensitive.
func (p Policy) IsPriority(countryCode string) bool {
	cc := strings.ToUpper(countryCode)
	for _, c := range p.PriorityCountries {
		if strings.ToUpper(c) == cc {
			return true
		}
	}
	return false
}
