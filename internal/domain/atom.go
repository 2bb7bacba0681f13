package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

type AtomType string

const (
	AtomEntity         AtomType = "ENTITY"
	AtomEvent          AtomType = "EVENT"
	AtomConcept        AtomType = "CONCEPT"
	AtomEvidence       AtomType = "EVIDENCE"
	AtomPattern        AtomType = "PATTERN"
	AtomRelationship   AtomType = "RELATIONSHIP"
	AtomLegalPrinciple AtomType = "LEGAL_PRINCIPLE"
	AtomHypothesis     AtomType = "HYPOTHESIS"
	AtomLink           AtomType = "LINK"
)

// AllAtomTypes lists every atom type in a stable order, used for per-type statistics.
var AllAtomTypes = []AtomType{
	AtomEntity, AtomEvent, AtomConcept, AtomEvidence, AtomPattern,
	AtomRelationship, AtomLegalPrinciple, AtomHypothesis, AtomLink,
}

func (t AtomType) Valid() bool {
	switch t {
	case AtomEntity, AtomEvent, AtomConcept, AtomEvidence, AtomPattern,
		AtomRelationship, AtomLegalPrinciple, AtomHypothesis, AtomLink:
		return true
	}
	return false
}

// ParseAtomType resolves a type name case-insensitively. Unknown names report false.
func ParseAtomType(s string) (AtomType, bool) {
	t := AtomType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", false
	}
	return t, true
}

// TruthValue is a (strength, confidence) pair in [0,1]². Fields are unexported so a
// value cannot be altered after it is attached to an atom. The zero TruthValue is
// unset; any value built by NewTruthValue or decoded from JSON is set, including (0, 0).
type TruthValue struct {
	strength   float64
	confidence float64
	set        bool
}

// NewTruthValue clamps both components into [0,1]. NaN is a programming error and panics.
func NewTruthValue(strength, confidence float64) TruthValue {
	if math.IsNaN(strength) || math.IsNaN(confidence) {
		panic(fmt.Sprintf("domain: truth value from NaN (strength=%v, confidence=%v)", strength, confidence))
	}
	return TruthValue{strength: clamp01(strength), confidence: clamp01(confidence), set: true}
}

// DefaultTruthValue is attached when callers do not supply one.
func DefaultTruthValue() TruthValue {
	return TruthValue{strength: 1.0, confidence: 0.9, set: true}
}

func (tv TruthValue) Strength() float64   { return tv.strength }
func (tv TruthValue) Confidence() float64 { return tv.confidence }

// IsZero reports whether the value was never set.
func (tv TruthValue) IsZero() bool {
	return !tv.set
}

type truthValueJSON struct {
	Strength   float64 `json:"strength"`
	Confidence float64 `json:"confidence"`
}

func (tv TruthValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(truthValueJSON{Strength: tv.strength, Confidence: tv.confidence})
}

func (tv *TruthValue) UnmarshalJSON(data []byte) error {
	var raw truthValueJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode truth value: %w", err)
	}
	*tv = NewTruthValue(raw.Strength, raw.Confidence)
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Atom is a typed, named unit of knowledge. An atom with non-nil Targets is a Link:
// a hyperedge over other atom ids, where target order carries direction.
type Atom struct {
	ID         string
	Type       AtomType
	Name       string
	TruthValue TruthValue
	Metadata   Metadata
	Targets    []string
}

func (a Atom) IsLink() bool {
	return a.Targets != nil
}

// Clone returns a deep copy so stored atoms are not aliased by callers.
func (a Atom) Clone() Atom {
	out := a
	out.Metadata = a.Metadata.Clone()
	if a.Targets != nil {
		out.Targets = append([]string{}, a.Targets...)
	}
	return out
}

// HasTarget reports whether id appears anywhere in the link's targets.
func (a Atom) HasTarget(id string) bool {
	for _, t := range a.Targets {
		if t == id {
			return true
		}
	}
	return false
}

// ToDict renders the stable interchange shape consumed by report and visualisation tooling.
func (a Atom) ToDict() map[string]any {
	d := map[string]any{
		"atom_id":     a.ID,
		"atom_type":   string(a.Type),
		"name":        a.Name,
		"truth_value": a.TruthValue,
		"metadata":    a.Metadata,
	}
	if a.IsLink() {
		d["targets"] = append([]string{}, a.Targets...)
	}
	return d
}

type atomJSON struct {
	AtomID     string     `json:"atom_id"`
	AtomType   AtomType   `json:"atom_type"`
	Name       string     `json:"name"`
	TruthValue TruthValue `json:"truth_value"`
	Metadata   Metadata   `json:"metadata"`
	Targets    []string   `json:"targets"`
}

func (a Atom) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.ToDict())
}

func (a *Atom) UnmarshalJSON(data []byte) error {
	var raw atomJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode atom: %w", err)
	}
	if !raw.AtomType.Valid() {
		return fmt.Errorf("decode atom %q: unknown atom_type %q", raw.AtomID, raw.AtomType)
	}
	*a = Atom{
		ID:         raw.AtomID,
		Type:       raw.AtomType,
		Name:       raw.Name,
		TruthValue: raw.TruthValue,
		Metadata:   raw.Metadata,
		Targets:    raw.Targets,
	}
	return nil
}
