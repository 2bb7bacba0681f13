package domain

type PatternCategory string

const (
	CategoryTemporal   PatternCategory = "TEMPORAL"
	CategoryRelational PatternCategory = "RELATIONAL"
	CategoryBehavioral PatternCategory = "BEHAVIORAL"
	CategoryFinancial  PatternCategory = "FINANCIAL"
	CategoryStructural PatternCategory = "STRUCTURAL"
)

// LearnedPattern is a recurring regularity mined by the trainer.
type LearnedPattern struct {
	ID              string          `json:"id"`
	Category        PatternCategory `json:"category"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	Frequency       int             `json:"frequency"`
	Confidence      float64         `json:"confidence"`
	SupportingAtoms []string        `json:"supporting_atoms"`
}

type LeadPriority string

const (
	PriorityLow      LeadPriority = "LOW"
	PriorityMedium   LeadPriority = "MEDIUM"
	PriorityHigh     LeadPriority = "HIGH"
	PriorityCritical LeadPriority = "CRITICAL"
)

// Lead priority thresholds on confidence.
const (
	CriticalLeadThreshold = 0.8
	HighLeadThreshold     = 0.6
	MediumLeadThreshold   = 0.4
)

// PriorityForConfidence maps a confidence score onto a lead priority.
func PriorityForConfidence(c float64) LeadPriority {
	switch {
	case c >= CriticalLeadThreshold:
		return PriorityCritical
	case c >= HighLeadThreshold:
		return PriorityHigh
	case c >= MediumLeadThreshold:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// Rank orders priorities for sorting; higher is more urgent.
func (p LeadPriority) Rank() int {
	switch p {
	case PriorityCritical:
		return 3
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	}
	return 0
}

// InvestigationLead is a ranked, evidence-backed suggestion for further inquiry.
type InvestigationLead struct {
	ID                 string       `json:"id"`
	Priority           LeadPriority `json:"priority"`
	Description        string       `json:"description"`
	SupportingEvidence []string     `json:"supporting_evidence"`
	RecommendedActions []string     `json:"recommended_actions"`
	Confidence         float64      `json:"confidence"`
}

// DetectedPattern is a read-only finding from the inference engine's pattern scan.
type DetectedPattern struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Confidence  float64  `json:"confidence"`
	AtomIDs     []string `json:"atom_ids"`
}

type Hypothesis struct {
	ID                      string   `json:"id"`
	Statement               string   `json:"statement"`
	Confidence              float64  `json:"confidence"`
	SupportingEvidence      []string `json:"supporting_evidence"`
	AlternativeExplanations []string `json:"alternative_explanations,omitempty"`
}

type GapSeverity string

const (
	GapSeverityHigh   GapSeverity = "high"
	GapSeverityMedium GapSeverity = "medium"
	GapSeverityLow    GapSeverity = "low"
)

// KnowledgeGap flags an under-represented area of the knowledge base.
type KnowledgeGap struct {
	Kind            string      `json:"kind"`
	Description     string      `json:"description"`
	Severity        GapSeverity `json:"severity"`
	AtomIDs         []string    `json:"atom_ids,omitempty"`
	SuggestedAction string      `json:"suggested_action,omitempty"`
}
