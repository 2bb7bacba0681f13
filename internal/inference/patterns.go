package inference

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/Harshitk-cp/hyperholmes/internal/domain"
)

// Detected pattern types.
const (
	PatternHubEntity           = "hub_entity"
	PatternRepeatedTransaction = "repeated_transaction"
	PatternRoundAmount         = "round_amount"
	PatternIsolatedEntity      = "isolated_entity"
	PatternEventBurst          = "event_burst"
	PatternInferred            = "inferred_pattern"
)

const (
	hubMinDegree          = 3
	roundAmountUnit       = 1000.0
	isolatedConfidence    = 0.3
	roundAmountConfidence = 0.5
)

// DetectPatterns scans the AtomSpace for structural and financial regularities.
// It never mutates the AtomSpace. Results are sorted by confidence, highest first.
func (e *Engine) DetectPatterns() []domain.DetectedPattern {
	var out []domain.DetectedPattern
	out = append(out, e.hubEntities()...)
	out = append(out, e.repeatedTransactions()...)
	out = append(out, e.roundAmounts()...)
	out = append(out, e.isolatedEntities()...)
	out = append(out, e.eventBursts()...)
	out = append(out, e.inferredPatterns()...)

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	if out == nil {
		out = []domain.DetectedPattern{}
	}
	return out
}

// degree counts distinct neighbours over links plus events naming the entity.
func (e *Engine) degree(entityID string) []string {
	neighbours := e.space.Neighbors(entityID)
	seen := make(map[string]bool, len(neighbours))
	for _, n := range neighbours {
		seen[n] = true
	}
	for _, ev := range e.space.ByType(domain.AtomEvent) {
		if seen[ev.ID] {
			continue
		}
		for _, p := range ev.Metadata.Participants {
			if p == entityID {
				seen[ev.ID] = true
				neighbours = append(neighbours, ev.ID)
				break
			}
		}
	}
	return neighbours
}

func (e *Engine) hubEntities() []domain.DetectedPattern {
	var out []domain.DetectedPattern
	for _, ent := range e.space.ByType(domain.AtomEntity) {
		n := e.degree(ent.ID)
		if len(n) < hubMinDegree {
			continue
		}
		out = append(out, domain.DetectedPattern{
			Type:        PatternHubEntity,
			Description: fmt.Sprintf("%s is connected to %d atoms", ent.Name, len(n)),
			Confidence:  math.Min(0.95, 0.4+0.1*float64(len(n))),
			AtomIDs:     append([]string{ent.ID}, n...),
		})
	}
	return out
}

func (e *Engine) repeatedTransactions() []domain.DetectedPattern {
	type key struct {
		parties string
		amount  float64
	}
	groups := make(map[key][]string)
	var order []key
	for _, ev := range e.space.ByType(domain.AtomEvent) {
		amount, ok := ev.Metadata.Float(domain.MetaAmount)
		if !ok || len(ev.Metadata.Participants) == 0 {
			continue
		}
		parties := append([]string{}, ev.Metadata.Participants...)
		sort.Strings(parties)
		k := key{parties: strings.Join(parties, ","), amount: amount}
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], ev.ID)
	}

	var out []domain.DetectedPattern
	for _, k := range order {
		events := groups[k]
		if len(events) < 2 {
			continue
		}
		out = append(out, domain.DetectedPattern{
			Type:        PatternRepeatedTransaction,
			Description: fmt.Sprintf("%d transactions of %.2f between %s", len(events), k.amount, k.parties),
			Confidence:  math.Min(0.95, 0.5+0.15*float64(len(events))),
			AtomIDs:     events,
		})
	}
	return out
}

func (e *Engine) roundAmounts() []domain.DetectedPattern {
	var events []string
	for _, ev := range e.space.ByType(domain.AtomEvent) {
		amount, ok := ev.Metadata.Float(domain.MetaAmount)
		if !ok || amount < roundAmountUnit {
			continue
		}
		if math.Mod(amount, roundAmountUnit) == 0 {
			events = append(events, ev.ID)
		}
	}
	if len(events) == 0 {
		return nil
	}
	return []domain.DetectedPattern{{
		Type:        PatternRoundAmount,
		Description: fmt.Sprintf("%d events with round amounts", len(events)),
		Confidence:  roundAmountConfidence,
		AtomIDs:     events,
	}}
}

func (e *Engine) isolatedEntities() []domain.DetectedPattern {
	var out []domain.DetectedPattern
	for _, ent := range e.space.ByType(domain.AtomEntity) {
		if len(e.degree(ent.ID)) > 0 {
			continue
		}
		out = append(out, domain.DetectedPattern{
			Type:        PatternIsolatedEntity,
			Description: fmt.Sprintf("%s has no relationships or events", ent.Name),
			Confidence:  isolatedConfidence,
			AtomIDs:     []string{ent.ID},
		})
	}
	return out
}

func (e *Engine) eventBursts() []domain.DetectedPattern {
	var out []domain.DetectedPattern
	for _, cluster := range TemporalClusters(timedEvents(e.space), e.cfg.TemporalWindow, e.cfg.MinEventsForCluster) {
		out = append(out, domain.DetectedPattern{
			Type:        PatternEventBurst,
			Description: fmt.Sprintf("%d events within %s", len(cluster), e.cfg.TemporalWindow),
			Confidence:  math.Min(0.9, 0.4+0.1*float64(len(cluster))),
			AtomIDs:     ids(cluster),
		})
	}
	return out
}

// inferredPatterns surfaces PATTERN atoms already present, derived or asserted.
func (e *Engine) inferredPatterns() []domain.DetectedPattern {
	var out []domain.DetectedPattern
	for _, p := range e.space.ByType(domain.AtomPattern) {
		desc := p.Metadata.Description
		if desc == "" {
			desc = p.Name
		}
		out = append(out, domain.DetectedPattern{
			Type:        PatternInferred,
			Description: desc,
			Confidence:  p.TruthValue.Confidence(),
			AtomIDs:     append([]string{p.ID}, p.Metadata.Evidence...),
		})
	}
	return out
}
