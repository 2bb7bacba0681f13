package inference

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Harshitk-cp/hyperholmes/internal/atomspace"
	"github.com/Harshitk-cp/hyperholmes/internal/domain"
)

// Rule derives new atoms from the current contents of an AtomSpace.
//
// Apply must be deterministic and return atoms with ids derived from the rule and
// its premise atoms, so that re-applying a rule at fixpoint yields only ids that
// already exist. A rule whose premises can never hold simply returns nothing.
type Rule interface {
	Info() domain.RuleInfo
	AppliesTo(space *atomspace.AtomSpace) bool
	Apply(space *atomspace.AtomSpace) []domain.Atom
}

// Default rule ids, in registration order.
const (
	RuleEntityEventCooccurrence = "entity_event_cooccurrence"
	RuleSharedEvidenceSubject   = "shared_evidence_subject"
	RuleTransitiveAssociation   = "transitive_association"
	RuleTemporalCluster         = "temporal_cluster"
	RuleUnanchoredEvidence      = "unanchored_evidence"
)

// Base confidences applied on top of the mean premise confidence.
const (
	cooccurrenceBaseConfidence   = 0.8
	corroborationBaseConfidence  = 0.85
	transitiveBaseConfidence     = 0.6
	temporalBaseConfidence       = 0.7
	unanchoredEvidenceConfidence = 0.3
)

// DefaultRules returns the standard rule set in registration order.
func DefaultRules(cfg Config) []Rule {
	return []Rule{
		&cooccurrenceRule{minEvents: cfg.MinEventsForCooccurrence},
		&sharedEvidenceRule{},
		&transitiveRule{},
		&temporalClusterRule{window: cfg.TemporalWindow, minEvents: cfg.MinEventsForCluster},
		&unanchoredEvidenceRule{},
	}
}

// derivedID builds the id of a derived atom from the rule and its sorted premise ids.
func derivedID(ruleID string, premises ...string) string {
	sorted := append([]string{}, premises...)
	sort.Strings(sorted)
	return ruleID + "_" + atomspace.Fingerprint(append([]string{ruleID}, sorted...)...)
}

// propagate combines premise truth values: mean strength, base × mean confidence.
func propagate(base float64, premises []domain.Atom) domain.TruthValue {
	if len(premises) == 0 {
		return domain.NewTruthValue(1.0, base)
	}
	var s, c float64
	for _, p := range premises {
		s += p.TruthValue.Strength()
		c += p.TruthValue.Confidence()
	}
	n := float64(len(premises))
	return domain.NewTruthValue(s/n, base*c/n)
}

func ids(atoms []domain.Atom) []string {
	out := make([]string, len(atoms))
	for i, a := range atoms {
		out[i] = a.ID
	}
	return out
}

// entityEvents maps entity id to the events naming it as a participant, preserving
// event insertion order. Only participants that resolve to ENTITY atoms count.
func entityEvents(space *atomspace.AtomSpace) (map[string][]domain.Atom, []string) {
	byEntity := make(map[string][]domain.Atom)
	var order []string
	for _, ev := range space.ByType(domain.AtomEvent) {
		for _, p := range ev.Metadata.Participants {
			a, ok := space.Get(p)
			if !ok || a.Type != domain.AtomEntity {
				continue
			}
			if _, seen := byEntity[p]; !seen {
				order = append(order, p)
			}
			byEntity[p] = append(byEntity[p], ev)
		}
	}
	return byEntity, order
}

// cooccurrenceRule: an entity participating in at least minEvents events is
// linked to those events by an involved_in_events relationship.
type cooccurrenceRule struct {
	minEvents int
}

func (r *cooccurrenceRule) Info() domain.RuleInfo {
	return domain.RuleInfo{
		ID:          RuleEntityEventCooccurrence,
		Type:        domain.RuleInduction,
		Name:        "Entity-event co-occurrence",
		Description: fmt.Sprintf("an entity appearing in %d or more events is involved in a pattern of activity", r.minEvents),
		Premises: []domain.Pattern{
			{AtomType: domain.AtomEntity},
			{AtomType: domain.AtomEvent},
		},
		Conclusion: domain.Template{AtomType: domain.AtomRelationship, Name: "involved_in_events", Confidence: cooccurrenceBaseConfidence},
	}
}

func (r *cooccurrenceRule) AppliesTo(space *atomspace.AtomSpace) bool {
	return r.minEvents > 0 && len(space.ByType(domain.AtomEvent)) >= r.minEvents
}

func (r *cooccurrenceRule) Apply(space *atomspace.AtomSpace) []domain.Atom {
	byEntity, order := entityEvents(space)
	var out []domain.Atom
	for _, entityID := range order {
		events := byEntity[entityID]
		if len(events) < r.minEvents {
			continue
		}
		entity, _ := space.Get(entityID)
		eventIDs := ids(events)
		premises := append([]domain.Atom{entity}, events...)
		out = append(out, domain.Atom{
			ID:         derivedID(RuleEntityEventCooccurrence, append([]string{entityID}, eventIDs...)...),
			Type:       domain.AtomRelationship,
			Name:       "involved_in_events",
			TruthValue: propagate(cooccurrenceBaseConfidence, premises),
			Targets:    append([]string{entityID}, eventIDs...),
			Metadata: domain.Metadata{
				Evidence:    eventIDs,
				Category:    string(domain.CategoryBehavioral),
				Description: fmt.Sprintf("%s participates in %d events", entity.Name, len(events)),
			},
		})
	}
	return out
}

// sharedEvidenceRule: two or more evidence items referencing the same atom
// corroborate it.
type sharedEvidenceRule struct{}

func (r *sharedEvidenceRule) Info() domain.RuleInfo {
	return domain.RuleInfo{
		ID:          RuleSharedEvidenceSubject,
		Type:        domain.RuleAbduction,
		Name:        "Shared evidence subject",
		Description: "evidence items referencing the same subject corroborate it",
		Premises:    []domain.Pattern{{AtomType: domain.AtomEvidence}},
		Conclusion:  domain.Template{AtomType: domain.AtomPattern, Name: "corroborated_entity", Confidence: corroborationBaseConfidence},
	}
}

func (r *sharedEvidenceRule) AppliesTo(space *atomspace.AtomSpace) bool {
	return len(space.ByType(domain.AtomEvidence)) >= 2
}

func (r *sharedEvidenceRule) Apply(space *atomspace.AtomSpace) []domain.Atom {
	bySubject := make(map[string][]domain.Atom)
	var order []string
	for _, ev := range space.ByType(domain.AtomEvidence) {
		for _, ref := range ev.Metadata.References {
			if _, seen := bySubject[ref]; !seen {
				order = append(order, ref)
			}
			bySubject[ref] = append(bySubject[ref], ev)
		}
	}

	var out []domain.Atom
	for _, subject := range order {
		items := bySubject[subject]
		if len(items) < 2 {
			continue
		}
		name := subject
		if a, ok := space.Get(subject); ok {
			name = a.Name
		}
		evidenceIDs := ids(items)
		meta := domain.Metadata{
			Evidence:    evidenceIDs,
			References:  []string{subject},
			Category:    string(domain.CategoryRelational),
			Description: fmt.Sprintf("%d evidence items reference %s", len(items), name),
		}
		out = append(out, domain.Atom{
			ID:         derivedID(RuleSharedEvidenceSubject, append([]string{subject}, evidenceIDs...)...),
			Type:       domain.AtomPattern,
			Name:       "corroborated_entity",
			TruthValue: propagate(corroborationBaseConfidence, items),
			Metadata:   meta,
		})
	}
	return out
}

// transitiveRule: binary relationships a→b and b→c between entities imply an
// indirect association a→c.
type transitiveRule struct{}

func (r *transitiveRule) Info() domain.RuleInfo {
	return domain.RuleInfo{
		ID:          RuleTransitiveAssociation,
		Type:        domain.RuleDeduction,
		Name:        "Transitive association",
		Description: "if A relates to B and B relates to C, A is indirectly associated with C",
		Premises: []domain.Pattern{
			{AtomType: domain.AtomRelationship},
			{AtomType: domain.AtomRelationship},
		},
		Conclusion: domain.Template{AtomType: domain.AtomRelationship, Name: "indirect_association", Confidence: transitiveBaseConfidence},
	}
}

func (r *transitiveRule) AppliesTo(space *atomspace.AtomSpace) bool {
	return len(r.edges(space)) >= 2
}

func (r *transitiveRule) edges(space *atomspace.AtomSpace) []domain.Atom {
	var out []domain.Atom
	for _, l := range space.ByType(domain.AtomRelationship) {
		if len(l.Targets) != 2 || l.Targets[0] == l.Targets[1] {
			continue
		}
		a, okA := space.Get(l.Targets[0])
		b, okB := space.Get(l.Targets[1])
		if !okA || !okB || a.Type != domain.AtomEntity || b.Type != domain.AtomEntity {
			continue
		}
		out = append(out, l)
	}
	return out
}

func (r *transitiveRule) Apply(space *atomspace.AtomSpace) []domain.Atom {
	edges := r.edges(space)
	outgoing := make(map[string][]domain.Atom)
	direct := make(map[[2]string]bool)
	for _, e := range edges {
		outgoing[e.Targets[0]] = append(outgoing[e.Targets[0]], e)
		direct[[2]string{e.Targets[0], e.Targets[1]}] = true
	}

	emitted := make(map[string]bool)
	var out []domain.Atom
	for _, first := range edges {
		a, b := first.Targets[0], first.Targets[1]
		for _, second := range outgoing[b] {
			c := second.Targets[1]
			if c == a || direct[[2]string{a, c}] {
				continue
			}
			id := derivedID(RuleTransitiveAssociation, a+"->"+c)
			if emitted[id] {
				continue
			}
			emitted[id] = true
			out = append(out, domain.Atom{
				ID:         id,
				Type:       domain.AtomRelationship,
				Name:       "indirect_association",
				TruthValue: propagate(transitiveBaseConfidence, []domain.Atom{first, second}),
				Targets:    []string{a, c},
				Metadata: domain.Metadata{
					Evidence:    []string{first.ID, second.ID},
					Category:    string(domain.CategoryRelational),
					Description: fmt.Sprintf("%s reaches %s via %s (%s, %s)", a, c, b, first.Name, second.Name),
				},
			})
		}
	}
	return out
}

// temporalClusterRule: minEvents or more timestamped events falling within one
// window form a temporal cluster.
type temporalClusterRule struct {
	window    time.Duration
	minEvents int
}

func (r *temporalClusterRule) Info() domain.RuleInfo {
	return domain.RuleInfo{
		ID:          RuleTemporalCluster,
		Type:        domain.RuleInduction,
		Name:        "Temporal cluster",
		Description: fmt.Sprintf("%d or more events within %s suggest coordinated activity", r.minEvents, r.window),
		Premises:    []domain.Pattern{{AtomType: domain.AtomEvent}},
		Conclusion:  domain.Template{AtomType: domain.AtomPattern, Name: "temporal_cluster", Confidence: temporalBaseConfidence},
	}
}

func (r *temporalClusterRule) AppliesTo(space *atomspace.AtomSpace) bool {
	return r.window > 0 && r.minEvents > 1 && len(timedEvents(space)) >= r.minEvents
}

func (r *temporalClusterRule) Apply(space *atomspace.AtomSpace) []domain.Atom {
	var out []domain.Atom
	for _, cluster := range TemporalClusters(timedEvents(space), r.window, r.minEvents) {
		first := cluster[0].Metadata.Timestamp
		last := cluster[len(cluster)-1].Metadata.Timestamp
		eventIDs := ids(cluster)
		out = append(out, domain.Atom{
			ID:         derivedID(RuleTemporalCluster, eventIDs...),
			Type:       domain.AtomPattern,
			Name:       "temporal_cluster",
			TruthValue: propagate(temporalBaseConfidence, cluster),
			Metadata: domain.Metadata{
				Timestamp:   first,
				Evidence:    eventIDs,
				Category:    string(domain.CategoryTemporal),
				Description: fmt.Sprintf("%d events between %s and %s", len(cluster), first.Format(time.DateOnly), last.Format(time.DateOnly)),
			},
		})
	}
	return out
}

// timedEvents returns events carrying a timestamp, sorted by time then id.
func timedEvents(space *atomspace.AtomSpace) []domain.Atom {
	var out []domain.Atom
	for _, ev := range space.ByType(domain.AtomEvent) {
		if ev.Metadata.Timestamp != nil {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := *out[i].Metadata.Timestamp, *out[j].Metadata.Timestamp
		if ti.Equal(tj) {
			return out[i].ID < out[j].ID
		}
		return ti.Before(tj)
	})
	return out
}

// TemporalClusters greedily groups time-sorted events whose span from the first
// member stays within window, keeping groups of at least minEvents.
func TemporalClusters(sorted []domain.Atom, window time.Duration, minEvents int) [][]domain.Atom {
	var clusters [][]domain.Atom
	for i := 0; i < len(sorted); {
		start := *sorted[i].Metadata.Timestamp
		j := i + 1
		for j < len(sorted) && sorted[j].Metadata.Timestamp.Sub(start) <= window {
			j++
		}
		if j-i >= minEvents {
			clusters = append(clusters, sorted[i:j])
			i = j
			continue
		}
		i++
	}
	return clusters
}

// unanchoredEvidenceRule: evidence that references nothing present in the case
// needs an analyst to anchor it.
type unanchoredEvidenceRule struct{}

func (r *unanchoredEvidenceRule) Info() domain.RuleInfo {
	return domain.RuleInfo{
		ID:          RuleUnanchoredEvidence,
		Type:        domain.RuleAbduction,
		Name:        "Unanchored evidence",
		Description: "evidence that references no known atom requires review",
		Premises:    []domain.Pattern{{AtomType: domain.AtomEvidence}},
		Conclusion:  domain.Template{AtomType: domain.AtomPattern, Name: "evidence_requires_review", Confidence: unanchoredEvidenceConfidence},
	}
}

func (r *unanchoredEvidenceRule) AppliesTo(space *atomspace.AtomSpace) bool {
	return len(space.ByType(domain.AtomEvidence)) > 0
}

func (r *unanchoredEvidenceRule) Apply(space *atomspace.AtomSpace) []domain.Atom {
	var out []domain.Atom
	for _, ev := range space.ByType(domain.AtomEvidence) {
		found, _ := space.Resolve(ev.Metadata.References)
		if len(found) > 0 {
			continue
		}
		desc := fmt.Sprintf("evidence %q references no known atom", ev.Name)
		if len(ev.Metadata.References) > 0 {
			desc = fmt.Sprintf("evidence %q references missing atoms: %s", ev.Name, strings.Join(ev.Metadata.References, ", "))
		}
		out = append(out, domain.Atom{
			ID:         derivedID(RuleUnanchoredEvidence, ev.ID),
			Type:       domain.AtomPattern,
			Name:       "evidence_requires_review",
			TruthValue: domain.NewTruthValue(ev.TruthValue.Strength(), unanchoredEvidenceConfidence),
			Metadata: domain.Metadata{
				Evidence:    []string{ev.ID},
				Category:    string(domain.CategoryStructural),
				Description: desc,
			},
		})
	}
	return out
}
