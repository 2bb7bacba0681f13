package domain

type RuleType string

const (
	RuleDeduction RuleType = "DEDUCTION"
	RuleInduction RuleType = "INDUCTION"
	RuleAbduction RuleType = "ABDUCTION"
	RuleAnalogy   RuleType = "ANALOGY"
)

func ValidRuleType(r string) bool {
	switch RuleType(r) {
	case RuleDeduction, RuleInduction, RuleAbduction, RuleAnalogy:
		return true
	}
	return false
}

// Pattern is a declarative premise filter: an atom matches when it has the required
// type, at least MinConfidence, and every metadata predicate holds.
type Pattern struct {
	AtomType      AtomType          `json:"atom_type" yaml:"atom_type"`
	MinConfidence float64           `json:"min_confidence,omitempty" yaml:"min_confidence"`
	Metadata      map[string]string `json:"metadata,omitempty" yaml:"metadata"`
}

func (p Pattern) Match(a Atom) bool {
	if p.AtomType != "" && a.Type != p.AtomType {
		return false
	}
	if a.TruthValue.Confidence() < p.MinConfidence {
		return false
	}
	return a.Metadata.Matches(p.Metadata)
}

// Template describes the atom a rule concludes.
type Template struct {
	AtomType   AtomType `json:"atom_type" yaml:"atom_type"`
	Name       string   `json:"name" yaml:"name"`
	Confidence float64  `json:"confidence" yaml:"confidence"`
}

// RuleInfo is the descriptive part of an inference rule.
type RuleInfo struct {
	ID          string    `json:"id"`
	Type        RuleType  `json:"type"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Premises    []Pattern `json:"premises"`
	Conclusion  Template  `json:"conclusion"`
}
