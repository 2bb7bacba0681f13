package inference

import (
	"fmt"
	"math"
	"sort"

	"github.com/Harshitk-cp/hyperholmes/internal/atomspace"
	"github.com/Harshitk-cp/hyperholmes/internal/domain"
)

const insufficientEvidenceConfidence = 0.1

// GenerateHypotheses proposes explanations tying the given evidence together.
// It never mutates the AtomSpace and returns at least one hypothesis whenever
// evidenceIDs is non-empty; with nothing to go on it returns a low-confidence
// placeholder.
func (e *Engine) GenerateHypotheses(evidenceIDs []string) []domain.Hypothesis {
	if len(evidenceIDs) == 0 {
		return nil
	}
	found, missing := e.space.Resolve(evidenceIDs)

	var out []domain.Hypothesis
	out = append(out, e.centralSubjects(found)...)
	out = append(out, e.financialFlow(found)...)
	out = append(out, e.coordinatedActivity(found)...)

	if len(out) == 0 {
		out = append(out, domain.Hypothesis{
			ID:                      hypothesisID("insufficient", evidenceIDs...),
			Statement:               "Insufficient evidence to form a hypothesis; gather corroborating material",
			Confidence:              insufficientEvidenceConfidence,
			SupportingEvidence:      append([]string{}, evidenceIDs...),
			AlternativeExplanations: missingNote(missing),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	return out
}

func hypothesisID(kind string, parts ...string) string {
	sorted := append([]string{}, parts...)
	sort.Strings(sorted)
	return "hyp_" + atomspace.Fingerprint(append([]string{kind}, sorted...)...)
}

func missingNote(missing []string) []string {
	if len(missing) == 0 {
		return nil
	}
	return []string{fmt.Sprintf("%d cited atoms are not in the case yet", len(missing))}
}

// subjects collects the atoms an evidence set points at: references of EVIDENCE
// atoms, participants of EVENT atoms and targets of links.
func subjects(found []domain.Atom) map[string][]string {
	bySubject := make(map[string][]string)
	add := func(subject, source string) {
		for _, s := range bySubject[subject] {
			if s == source {
				return
			}
		}
		bySubject[subject] = append(bySubject[subject], source)
	}
	for _, a := range found {
		for _, r := range a.Metadata.References {
			add(r, a.ID)
		}
		for _, p := range a.Metadata.Participants {
			add(p, a.ID)
		}
		for _, t := range a.Targets {
			add(t, a.ID)
		}
	}
	return bySubject
}

func (e *Engine) centralSubjects(found []domain.Atom) []domain.Hypothesis {
	bySubject := subjects(found)
	keys := make([]string, 0, len(bySubject))
	for k := range bySubject {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []domain.Hypothesis
	for _, subject := range keys {
		sources := bySubject[subject]
		if len(sources) < 2 {
			continue
		}
		atom, ok := e.space.Get(subject)
		if !ok || atom.Type != domain.AtomEntity {
			continue
		}
		out = append(out, domain.Hypothesis{
			ID:                 hypothesisID("central", append([]string{subject}, sources...)...),
			Statement:          fmt.Sprintf("%s is central to the activity described by %d pieces of evidence", atom.Name, len(sources)),
			Confidence:         math.Min(0.9, 0.4+0.15*float64(len(sources))),
			SupportingEvidence: append([]string{subject}, sources...),
			AlternativeExplanations: []string{
				fmt.Sprintf("%s appears incidentally as a counterparty", atom.Name),
			},
		})
	}
	return out
}

func (e *Engine) financialFlow(found []domain.Atom) []domain.Hypothesis {
	var (
		events []string
		total  float64
	)
	for _, a := range found {
		if amount, ok := a.Metadata.Float(domain.MetaAmount); ok {
			events = append(events, a.ID)
			total += amount
		}
	}
	if len(events) == 0 {
		return nil
	}
	return []domain.Hypothesis{{
		ID:                 hypothesisID("financial", events...),
		Statement:          fmt.Sprintf("Funds totalling %.2f moved across %d cited transactions", total, len(events)),
		Confidence:         math.Min(0.85, 0.35+0.1*float64(len(events))),
		SupportingEvidence: events,
		AlternativeExplanations: []string{
			"the transfers are ordinary business payments",
		},
	}}
}

func (e *Engine) coordinatedActivity(found []domain.Atom) []domain.Hypothesis {
	var timed []domain.Atom
	for _, a := range found {
		if a.Type == domain.AtomEvent && a.Metadata.Timestamp != nil {
			timed = append(timed, a)
		}
	}
	if len(timed) < 2 {
		return nil
	}
	sort.SliceStable(timed, func(i, j int) bool {
		return timed[i].Metadata.Timestamp.Before(*timed[j].Metadata.Timestamp)
	})
	span := timed[len(timed)-1].Metadata.Timestamp.Sub(*timed[0].Metadata.Timestamp)
	if span > e.cfg.TemporalWindow {
		return nil
	}
	eventIDs := ids(timed)
	return []domain.Hypothesis{{
		ID:                 hypothesisID("coordinated", eventIDs...),
		Statement:          fmt.Sprintf("%d cited events occurred within %s, suggesting coordination", len(timed), span),
		Confidence:         math.Min(0.8, 0.3+0.1*float64(len(timed))),
		SupportingEvidence: eventIDs,
		AlternativeExplanations: []string{
			"the timing is coincidental",
		},
	}}
}
