package inference

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/Harshitk-cp/hyperholmes/internal/atomspace"
	"github.com/Harshitk-cp/hyperholmes/internal/domain"
	"gopkg.in/yaml.v3"
)

var ErrInvalidRule = errors.New("inference: invalid rule")

// RuleFile is the YAML document holding declarative rules.
type RuleFile struct {
	Rules []RuleSpec `yaml:"rules"`
}

// RuleSpec declares a rule as data: atoms matching Premise are grouped by the
// GroupBy metadata key (or taken as one group), and each group with at least
// MinMatches members concludes one atom.
type RuleSpec struct {
	ID          string          `yaml:"id"`
	Type        string          `yaml:"type"`
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	Premise     domain.Pattern  `yaml:"premise"`
	MinMatches  int             `yaml:"min_matches"`
	GroupBy     string          `yaml:"group_by"`
	Conclusion  domain.Template `yaml:"conclusion"`
}

func (s *RuleSpec) normalize() {
	s.Type = strings.ToUpper(strings.TrimSpace(s.Type))
	if t, ok := domain.ParseAtomType(string(s.Premise.AtomType)); ok {
		s.Premise.AtomType = t
	}
	if t, ok := domain.ParseAtomType(string(s.Conclusion.AtomType)); ok {
		s.Conclusion.AtomType = t
	}
}

func (s RuleSpec) validate() error {
	switch {
	case strings.TrimSpace(s.ID) == "":
		return fmt.Errorf("%w: missing id", ErrInvalidRule)
	case !domain.ValidRuleType(s.Type):
		return fmt.Errorf("%w: %s: unknown rule type %q", ErrInvalidRule, s.ID, s.Type)
	case !s.Premise.AtomType.Valid():
		return fmt.Errorf("%w: %s: unknown premise atom type %q", ErrInvalidRule, s.ID, s.Premise.AtomType)
	case !s.Conclusion.AtomType.Valid():
		return fmt.Errorf("%w: %s: unknown conclusion atom type %q", ErrInvalidRule, s.ID, s.Conclusion.AtomType)
	case s.Conclusion.Name == "":
		return fmt.Errorf("%w: %s: conclusion name is required", ErrInvalidRule, s.ID)
	case s.Conclusion.Confidence < 0 || s.Conclusion.Confidence > 1:
		return fmt.Errorf("%w: %s: conclusion confidence %v outside [0,1]", ErrInvalidRule, s.ID, s.Conclusion.Confidence)
	case s.Premise.MinConfidence < 0 || s.Premise.MinConfidence > 1:
		return fmt.Errorf("%w: %s: premise min_confidence %v outside [0,1]", ErrInvalidRule, s.ID, s.Premise.MinConfidence)
	}
	return nil
}

// DeclarativeRule is a compiled RuleSpec.
type DeclarativeRule struct {
	spec RuleSpec
}

// ParseRules compiles the rules in a YAML document. Rules that fail validation
// are left out and reported in the joined error alongside the valid ones.
func ParseRules(data []byte) ([]Rule, error) {
	var file RuleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}

	var (
		out  []Rule
		errs []error
		seen = make(map[string]bool)
	)
	for _, spec := range file.Rules {
		spec.normalize()
		if err := spec.validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if seen[spec.ID] {
			errs = append(errs, fmt.Errorf("%w: duplicate id %q", ErrInvalidRule, spec.ID))
			continue
		}
		seen[spec.ID] = true
		if spec.MinMatches < 1 {
			spec.MinMatches = 1
		}
		out = append(out, &DeclarativeRule{spec: spec})
	}
	return out, errors.Join(errs...)
}

// LoadRulesFile reads and compiles a YAML rule file.
func LoadRulesFile(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules %s: %w", path, err)
	}
	return ParseRules(data)
}

func (r *DeclarativeRule) Info() domain.RuleInfo {
	return domain.RuleInfo{
		ID:          r.spec.ID,
		Type:        domain.RuleType(r.spec.Type),
		Name:        r.spec.Name,
		Description: r.spec.Description,
		Premises:    []domain.Pattern{r.spec.Premise},
		Conclusion:  r.spec.Conclusion,
	}
}

func (r *DeclarativeRule) AppliesTo(space *atomspace.AtomSpace) bool {
	return len(r.candidates(space)) >= r.spec.MinMatches
}

// candidates excludes atoms this rule derived itself so its conclusions never
// feed back into its own premises.
func (r *DeclarativeRule) candidates(space *atomspace.AtomSpace) []domain.Atom {
	var out []domain.Atom
	for _, a := range space.ByType(r.spec.Premise.AtomType) {
		if a.Metadata.RuleID == r.spec.ID {
			continue
		}
		if r.spec.Premise.Match(a) {
			out = append(out, a)
		}
	}
	return out
}

func (r *DeclarativeRule) Apply(space *atomspace.AtomSpace) []domain.Atom {
	groups, keys := r.group(r.candidates(space))
	var out []domain.Atom
	for _, key := range keys {
		members := groups[key]
		if len(members) < r.spec.MinMatches {
			continue
		}
		memberIDs := ids(members)
		atom := domain.Atom{
			ID:         derivedID(r.spec.ID, append([]string{key}, memberIDs...)...),
			Type:       r.spec.Conclusion.AtomType,
			Name:       r.spec.Conclusion.Name,
			TruthValue: propagate(r.spec.Conclusion.Confidence, members),
			Metadata: domain.Metadata{
				Evidence:    memberIDs,
				RuleID:      r.spec.ID,
				Description: r.describe(key, len(members)),
			},
		}
		if atom.Type == domain.AtomRelationship || atom.Type == domain.AtomLink {
			atom.Targets = memberIDs
		}
		if r.spec.GroupBy != "" {
			atom.Metadata.Set(r.spec.GroupBy, key)
		}
		out = append(out, atom)
	}
	return out
}

func (r *DeclarativeRule) group(atoms []domain.Atom) (map[string][]domain.Atom, []string) {
	groups := make(map[string][]domain.Atom)
	var keys []string
	for _, a := range atoms {
		key := ""
		if r.spec.GroupBy != "" {
			v, ok := a.Metadata.Lookup(r.spec.GroupBy)
			if !ok {
				continue
			}
			key = v
		}
		if _, seen := groups[key]; !seen {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], a)
	}
	return groups, keys
}

func (r *DeclarativeRule) describe(key string, n int) string {
	if r.spec.GroupBy == "" {
		return fmt.Sprintf("%s: %d matching %s atoms", r.spec.Name, n, r.spec.Premise.AtomType)
	}
	return fmt.Sprintf("%s: %d %s atoms with %s=%s", r.spec.Name, n, r.spec.Premise.AtomType, r.spec.GroupBy, key)
}
