package trainer

import (
	"fmt"
	"sort"

	"github.com/Harshitk-cp/hyperholmes/internal/domain"
)

// Gap kinds reported by Introspect.
const (
	GapIsolatedEntity     = "isolated_entity"
	GapUnattributedEvent  = "unattributed_event"
	GapUnanchoredEvidence = "unanchored_evidence"
	GapDanglingLink       = "dangling_link"
	GapMissingType        = "missing_type"
	GapUnderrepresented   = "underrepresented_type"
	GapUntrained          = "untrained"
)

type IntrospectionReport struct {
	CaseID          string                     `json:"case_id"`
	TotalAtoms      int                        `json:"total_atoms"`
	ByType          map[domain.AtomType]int    `json:"by_type"`
	TotalLinks      int                        `json:"total_links"`
	Trained         bool                       `json:"trained"`
	PatternsLearned int                        `json:"patterns_learned"`
	LeadsGenerated  int                        `json:"leads_generated"`
	Leads           []domain.InvestigationLead `json:"leads"`
	KnowledgeGaps   []domain.KnowledgeGap      `json:"knowledge_gaps"`
	CoverageScore   float64                    `json:"coverage_score"`
}

// Introspect reports on the knowledge base and the last training run. It
// neither trains nor mutates anything, so repeated calls return the same report.
func (t *Trainer) Introspect() IntrospectionReport {
	report := IntrospectionReport{
		CaseID:          t.space.CaseID(),
		TotalAtoms:      t.space.Len(),
		ByType:          t.space.CountByType(),
		TotalLinks:      len(t.space.Links()),
		Trained:         t.trained,
		PatternsLearned: len(t.patterns),
		LeadsGenerated:  len(t.leads),
		Leads:           t.Leads(),
		KnowledgeGaps:   []domain.KnowledgeGap{},
	}

	var covered, coverable int
	connected := t.connectedEntities()
	for _, ent := range t.space.ByType(domain.AtomEntity) {
		coverable++
		if connected[ent.ID] {
			covered++
			continue
		}
		report.KnowledgeGaps = append(report.KnowledgeGaps, domain.KnowledgeGap{
			Kind:            GapIsolatedEntity,
			Description:     fmt.Sprintf("%s has no relationships or events", ent.Name),
			Severity:        domain.GapSeverityMedium,
			AtomIDs:         []string{ent.ID},
			SuggestedAction: "Establish how this entity relates to the rest of the case",
		})
	}

	for _, ev := range t.space.ByType(domain.AtomEvent) {
		coverable++
		if len(ev.Metadata.Participants) > 0 {
			covered++
			continue
		}
		report.KnowledgeGaps = append(report.KnowledgeGaps, domain.KnowledgeGap{
			Kind:            GapUnattributedEvent,
			Description:     fmt.Sprintf("event %s names no participants", ev.Name),
			Severity:        domain.GapSeverityLow,
			AtomIDs:         []string{ev.ID},
			SuggestedAction: "Identify who took part in the event",
		})
	}

	for _, evd := range t.space.ByType(domain.AtomEvidence) {
		coverable++
		found, missing := t.space.Resolve(evd.Metadata.References)
		if len(found) > 0 && len(missing) == 0 {
			covered++
			continue
		}
		desc := fmt.Sprintf("evidence %s references nothing in the case", evd.Name)
		if len(missing) > 0 {
			desc = fmt.Sprintf("evidence %s cites %d atoms that are not in the case", evd.Name, len(missing))
		}
		report.KnowledgeGaps = append(report.KnowledgeGaps, domain.KnowledgeGap{
			Kind:            GapUnanchoredEvidence,
			Description:     desc,
			Severity:        domain.GapSeverityHigh,
			AtomIDs:         append([]string{evd.ID}, missing...),
			SuggestedAction: "Link the evidence to the entities or events it concerns",
		})
	}

	if dangling := t.space.DanglingTargets(); len(dangling) > 0 {
		report.KnowledgeGaps = append(report.KnowledgeGaps, domain.KnowledgeGap{
			Kind:            GapDanglingLink,
			Description:     fmt.Sprintf("%d link targets do not resolve", len(dangling)),
			Severity:        domain.GapSeverityHigh,
			AtomIDs:         dangling,
			SuggestedAction: "Add the missing atoms or correct the link targets",
		})
	}

	for _, typ := range domain.AllAtomTypes {
		want, have := t.cfg.Expectations[typ], report.ByType[typ]
		if want <= 0 || have >= want {
			continue
		}
		if have == 0 {
			severity := domain.GapSeverityMedium
			if typ == domain.AtomEvidence {
				severity = domain.GapSeverityHigh
			}
			report.KnowledgeGaps = append(report.KnowledgeGaps, domain.KnowledgeGap{
				Kind:            GapMissingType,
				Description:     fmt.Sprintf("the case holds no %s atoms (expected at least %d)", typ, want),
				Severity:        severity,
				SuggestedAction: fmt.Sprintf("Record %s atoms for the case", typ),
			})
			continue
		}
		report.KnowledgeGaps = append(report.KnowledgeGaps, domain.KnowledgeGap{
			Kind:            GapUnderrepresented,
			Description:     fmt.Sprintf("the case holds %d %s atoms, expected at least %d", have, typ, want),
			Severity:        domain.GapSeverityLow,
			SuggestedAction: fmt.Sprintf("Look for further %s atoms", typ),
		})
	}

	if !t.trained {
		report.KnowledgeGaps = append(report.KnowledgeGaps, domain.KnowledgeGap{
			Kind:            GapUntrained,
			Description:     "no training run has been performed",
			Severity:        domain.GapSeverityLow,
			SuggestedAction: "Run training to produce leads",
		})
	}

	sort.SliceStable(report.KnowledgeGaps, func(i, j int) bool {
		return severityRank(report.KnowledgeGaps[i].Severity) > severityRank(report.KnowledgeGaps[j].Severity)
	})
	if coverable > 0 {
		report.CoverageScore = float64(covered) / float64(coverable)
	}
	return report
}

func severityRank(s domain.GapSeverity) int {
	switch s {
	case domain.GapSeverityHigh:
		return 2
	case domain.GapSeverityMedium:
		return 1
	}
	return 0
}

// connectedEntities marks ids referenced by any link, event or evidence atom.
func (t *Trainer) connectedEntities() map[string]bool {
	out := make(map[string]bool)
	for _, l := range t.space.Links() {
		for _, id := range l.Targets {
			out[id] = true
		}
	}
	for _, ev := range t.space.ByType(domain.AtomEvent) {
		for _, p := range ev.Metadata.Participants {
			out[p] = true
		}
	}
	for _, evd := range t.space.ByType(domain.AtomEvidence) {
		for _, r := range evd.Metadata.References {
			out[r] = true
		}
	}
	return out
}
