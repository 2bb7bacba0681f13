// Package trainer mines recurring regularities from a case's AtomSpace and turns
// them into ranked investigation leads. Training is deterministic aggregation:
// every Train call discards the previous results and recomputes from the
// current AtomSpace.
package trainer

import (
	"fmt"
	"maps"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/Harshitk-cp/hyperholmes/internal/atomspace"
	"github.com/Harshitk-cp/hyperholmes/internal/domain"
	"github.com/Harshitk-cp/hyperholmes/internal/inference"
	"go.uber.org/zap"
)

type Config struct {
	MinEventsForCentrality int
	MinSharedLinks         int
	MinSharedEvents        int
	LargeAmountThreshold   float64
	BurstWindow            time.Duration
	MinEventsForBurst      int
	// Expectations is the minimum atom count per type before introspection
	// reports a gap. Nil uses the defaults; an empty map expects nothing.
	Expectations           map[domain.AtomType]int
}

func DefaultConfig() Config {
	return Config{
		MinEventsForCentrality: 3,
		MinSharedLinks:         2,
		MinSharedEvents:        2,
		LargeAmountThreshold:   10000,
		BurstWindow:            7 * 24 * time.Hour,
		MinEventsForBurst:      3,
		Expectations:           DefaultExpectations(),
	}
}

// DefaultExpectations asks for at least one entity, event and evidence atom.
func DefaultExpectations() map[domain.AtomType]int {
	return map[domain.AtomType]int{
		domain.AtomEntity:   1,
		domain.AtomEvent:    1,
		domain.AtomEvidence: 1,
	}
}

// TrainingSummary is the headline outcome of one Train call.
type TrainingSummary struct {
	PatternsLearned   int                            `json:"patterns_learned"`
	LeadsGenerated    int                            `json:"leads_generated"`
	ByCategory        map[domain.PatternCategory]int `json:"by_category"`
	EntityCount       int                            `json:"entity_count"`
	EventCount        int                            `json:"event_count"`
	RelationshipCount int                            `json:"relationship_count"`
	InferencePatterns int                            `json:"inference_patterns"`
}

type Trainer struct {
	space  *atomspace.AtomSpace
	cfg    Config
	logger *zap.Logger

	patterns []domain.LearnedPattern
	leads    []domain.InvestigationLead
	trained  bool
}

// New builds a trainer over space. Zero config fields fall back to DefaultConfig.
func New(space *atomspace.AtomSpace, cfg Config, logger *zap.Logger) *Trainer {
	def := DefaultConfig()
	if cfg.MinEventsForCentrality <= 0 {
		cfg.MinEventsForCentrality = def.MinEventsForCentrality
	}
	if cfg.MinSharedLinks <= 0 {
		cfg.MinSharedLinks = def.MinSharedLinks
	}
	if cfg.MinSharedEvents <= 0 {
		cfg.MinSharedEvents = def.MinSharedEvents
	}
	if cfg.LargeAmountThreshold <= 0 {
		cfg.LargeAmountThreshold = def.LargeAmountThreshold
	}
	if cfg.BurstWindow <= 0 {
		cfg.BurstWindow = def.BurstWindow
	}
	if cfg.MinEventsForBurst <= 0 {
		cfg.MinEventsForBurst = def.MinEventsForBurst
	}
	if cfg.Expectations == nil {
		cfg.Expectations = def.Expectations
	} else {
		cfg.Expectations = maps.Clone(cfg.Expectations)
	}
	return &Trainer{space: space, cfg: cfg, logger: logger}
}

// Train recomputes learned patterns and leads from the current AtomSpace.
// It reads the AtomSpace only; patterns and leads are never written back.
func (t *Trainer) Train() TrainingSummary {
	var patterns []domain.LearnedPattern
	patterns = append(patterns, t.centralEntities()...)
	patterns = append(patterns, t.repeatedPairs()...)
	patterns = append(patterns, t.coParticipants()...)
	patterns = append(patterns, t.bursts()...)
	patterns = append(patterns, t.largeTransactions()...)
	patterns = append(patterns, t.repeatedAmounts()...)
	patterns = append(patterns, t.derivedPatterns()...)

	t.patterns = patterns
	t.leads = leadsFor(patterns)
	t.trained = true

	summary := TrainingSummary{
		PatternsLearned:   len(t.patterns),
		LeadsGenerated:    len(t.leads),
		ByCategory:        make(map[domain.PatternCategory]int),
		EntityCount:       len(t.space.ByType(domain.AtomEntity)),
		EventCount:        len(t.space.ByType(domain.AtomEvent)),
		RelationshipCount: len(t.space.ByType(domain.AtomRelationship)),
		InferencePatterns: len(t.space.ByType(domain.AtomPattern)),
	}
	for _, p := range t.patterns {
		summary.ByCategory[p.Category]++
	}

	t.logger.Info("training complete",
		zap.String("case_id", t.space.CaseID()),
		zap.Int("patterns", summary.PatternsLearned),
		zap.Int("leads", summary.LeadsGenerated),
	)
	return summary
}

func (t *Trainer) Trained() bool { return t.trained }

func (t *Trainer) Patterns() []domain.LearnedPattern {
	return append([]domain.LearnedPattern{}, t.patterns...)
}

// Leads returns every lead, highest confidence first.
func (t *Trainer) Leads() []domain.InvestigationLead {
	return append([]domain.InvestigationLead{}, t.leads...)
}

// TopLeads returns at most n leads; n <= 0 returns none.
func (t *Trainer) TopLeads(n int) []domain.InvestigationLead {
	if n <= 0 {
		return []domain.InvestigationLead{}
	}
	if n > len(t.leads) {
		n = len(t.leads)
	}
	return append([]domain.InvestigationLead{}, t.leads[:n]...)
}

func patternID(category domain.PatternCategory, name string, atoms ...string) string {
	return "lp_" + atomspace.Fingerprint(append([]string{string(category), name}, atoms...)...)
}

func eventsByEntity(space *atomspace.AtomSpace) (map[string][]string, []string) {
	byEntity := make(map[string][]string)
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
			byEntity[p] = append(byEntity[p], ev.ID)
		}
	}
	return byEntity, order
}

func (t *Trainer) centralEntities() []domain.LearnedPattern {
	byEntity, order := eventsByEntity(t.space)
	var out []domain.LearnedPattern
	for _, id := range order {
		events := byEntity[id]
		if len(events) < t.cfg.MinEventsForCentrality {
			continue
		}
		entity, _ := t.space.Get(id)
		excess := len(events) - t.cfg.MinEventsForCentrality + 1
		out = append(out, domain.LearnedPattern{
			ID:              patternID(domain.CategoryBehavioral, "high_centrality_entity", id),
			Category:        domain.CategoryBehavioral,
			Name:            "high_centrality_entity",
			Description:     fmt.Sprintf("%s participates in %d events", entity.Name, len(events)),
			Frequency:       len(events),
			Confidence:      math.Min(0.95, 0.5+0.1*float64(excess)),
			SupportingAtoms: append([]string{id}, events...),
		})
	}
	return out
}

type pair struct{ a, b string }

func orderedPair(x, y string) pair {
	if x > y {
		x, y = y, x
	}
	return pair{x, y}
}

// repeatedPairs finds entity pairs joined by several binary links.
func (t *Trainer) repeatedPairs() []domain.LearnedPattern {
	links := make(map[pair][]string)
	var order []pair
	for _, l := range t.space.Links() {
		if len(l.Targets) != 2 || l.Targets[0] == l.Targets[1] {
			continue
		}
		a, okA := t.space.Get(l.Targets[0])
		b, okB := t.space.Get(l.Targets[1])
		if !okA || !okB || a.Type != domain.AtomEntity || b.Type != domain.AtomEntity {
			continue
		}
		p := orderedPair(a.ID, b.ID)
		if _, seen := links[p]; !seen {
			order = append(order, p)
		}
		links[p] = append(links[p], l.ID)
	}

	var out []domain.LearnedPattern
	for _, p := range order {
		ls := links[p]
		if len(ls) < t.cfg.MinSharedLinks {
			continue
		}
		out = append(out, domain.LearnedPattern{
			ID:              patternID(domain.CategoryRelational, "repeated_connection", p.a, p.b),
			Category:        domain.CategoryRelational,
			Name:            "repeated_connection",
			Description:     fmt.Sprintf("%s and %s are linked %d times", p.a, p.b, len(ls)),
			Frequency:       len(ls),
			Confidence:      math.Min(0.9, 0.4+0.15*float64(len(ls))),
			SupportingAtoms: append([]string{p.a, p.b}, ls...),
		})
	}
	return out
}

// coParticipants finds entity pairs that appear together in several events.
func (t *Trainer) coParticipants() []domain.LearnedPattern {
	shared := make(map[pair][]string)
	var order []pair
	for _, ev := range t.space.ByType(domain.AtomEvent) {
		var entities []string
		seen := make(map[string]bool)
		for _, p := range ev.Metadata.Participants {
			if a, ok := t.space.Get(p); ok && a.Type == domain.AtomEntity && !seen[p] {
				seen[p] = true
				entities = append(entities, p)
			}
		}
		for i := 0; i < len(entities); i++ {
			for j := i + 1; j < len(entities); j++ {
				p := orderedPair(entities[i], entities[j])
				if _, ok := shared[p]; !ok {
					order = append(order, p)
				}
				shared[p] = append(shared[p], ev.ID)
			}
		}
	}

	var out []domain.LearnedPattern
	for _, p := range order {
		events := shared[p]
		if len(events) < t.cfg.MinSharedEvents {
			continue
		}
		out = append(out, domain.LearnedPattern{
			ID:              patternID(domain.CategoryRelational, "frequent_co_participants", p.a, p.b),
			Category:        domain.CategoryRelational,
			Name:            "frequent_co_participants",
			Description:     fmt.Sprintf("%s and %s appear together in %d events", p.a, p.b, len(events)),
			Frequency:       len(events),
			Confidence:      math.Min(0.9, 0.35+0.15*float64(len(events))),
			SupportingAtoms: append([]string{p.a, p.b}, events...),
		})
	}
	return out
}

func (t *Trainer) bursts() []domain.LearnedPattern {
	var timed []domain.Atom
	for _, ev := range t.space.ByType(domain.AtomEvent) {
		if ev.Metadata.Timestamp != nil {
			timed = append(timed, ev)
		}
	}
	sort.SliceStable(timed, func(i, j int) bool {
		return timed[i].Metadata.Timestamp.Before(*timed[j].Metadata.Timestamp)
	})

	var out []domain.LearnedPattern
	for _, cluster := range inference.TemporalClusters(timed, t.cfg.BurstWindow, t.cfg.MinEventsForBurst) {
		ids := make([]string, len(cluster))
		for i, ev := range cluster {
			ids[i] = ev.ID
		}
		first := cluster[0].Metadata.Timestamp.Format(time.DateOnly)
		out = append(out, domain.LearnedPattern{
			ID:              patternID(domain.CategoryTemporal, "activity_burst", ids...),
			Category:        domain.CategoryTemporal,
			Name:            "activity_burst",
			Description:     fmt.Sprintf("%d events starting %s within %s", len(cluster), first, t.cfg.BurstWindow),
			Frequency:       len(cluster),
			Confidence:      math.Min(0.9, 0.4+0.1*float64(len(cluster))),
			SupportingAtoms: ids,
		})
	}
	return out
}

func (t *Trainer) largeTransactions() []domain.LearnedPattern {
	var (
		events []string
		total  float64
	)
	for _, ev := range t.space.ByType(domain.AtomEvent) {
		amount, ok := ev.Metadata.Float(domain.MetaAmount)
		if ok && amount >= t.cfg.LargeAmountThreshold {
			events = append(events, ev.ID)
			total += amount
		}
	}
	if len(events) == 0 {
		return nil
	}
	return []domain.LearnedPattern{{
		ID:              patternID(domain.CategoryFinancial, "large_transactions", events...),
		Category:        domain.CategoryFinancial,
		Name:            "large_transactions",
		Description:     fmt.Sprintf("%d transactions at or above %.2f totalling %.2f", len(events), t.cfg.LargeAmountThreshold, total),
		Frequency:       len(events),
		Confidence:      math.Min(0.9, 0.5+0.1*float64(len(events))),
		SupportingAtoms: events,
	}}
}

func (t *Trainer) repeatedAmounts() []domain.LearnedPattern {
	byAmount := make(map[float64][]string)
	var order []float64
	for _, ev := range t.space.ByType(domain.AtomEvent) {
		amount, ok := ev.Metadata.Float(domain.MetaAmount)
		if !ok || amount <= 0 {
			continue
		}
		if _, seen := byAmount[amount]; !seen {
			order = append(order, amount)
		}
		byAmount[amount] = append(byAmount[amount], ev.ID)
	}

	var out []domain.LearnedPattern
	for _, amount := range order {
		events := byAmount[amount]
		if len(events) < 2 {
			continue
		}
		out = append(out, domain.LearnedPattern{
			ID:              patternID(domain.CategoryFinancial, "repeated_amount", events...),
			Category:        domain.CategoryFinancial,
			Name:            "repeated_amount",
			Description:     fmt.Sprintf("amount %.2f recurs in %d transactions", amount, len(events)),
			Frequency:       len(events),
			Confidence:      math.Min(0.9, 0.45+0.15*float64(len(events))),
			SupportingAtoms: events,
		})
	}
	return out
}

// derivedPatterns summarises PATTERN atoms per producing rule.
func (t *Trainer) derivedPatterns() []domain.LearnedPattern {
	byRule := make(map[string][]domain.Atom)
	var order []string
	for _, p := range t.space.ByType(domain.AtomPattern) {
		rule := p.Metadata.RuleID
		if rule == "" {
			rule = p.Name
		}
		if _, seen := byRule[rule]; !seen {
			order = append(order, rule)
		}
		byRule[rule] = append(byRule[rule], p)
	}

	var out []domain.LearnedPattern
	for _, rule := range order {
		atoms := byRule[rule]
		var (
			sum     float64
			support []string
		)
		for _, a := range atoms {
			sum += a.TruthValue.Confidence()
			support = append(support, a.Metadata.Evidence...)
		}
		out = append(out, domain.LearnedPattern{
			ID:              patternID(domain.CategoryStructural, rule),
			Category:        domain.CategoryStructural,
			Name:            "derived_" + rule,
			Description:     fmt.Sprintf("rule %s produced %d patterns", rule, len(atoms)),
			Frequency:       len(atoms),
			Confidence:      sum / float64(len(atoms)),
			SupportingAtoms: dedupe(support),
		})
	}
	return out
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

var recommendedActions = map[domain.PatternCategory][]string{
	domain.CategoryBehavioral: {"Interview or profile the entity", "Review every event the entity participated in"},
	domain.CategoryRelational: {"Map the relationship history", "Check for undisclosed common ownership"},
	domain.CategoryTemporal:   {"Build a detailed timeline of the period", "Look for a triggering event"},
	domain.CategoryFinancial:  {"Trace the funds through bank records", "Request supporting invoices"},
	domain.CategoryStructural: {"Review the derived findings with an analyst"},
}

func leadsFor(patterns []domain.LearnedPattern) []domain.InvestigationLead {
	leads := make([]domain.InvestigationLead, 0, len(patterns))
	for _, p := range patterns {
		leads = append(leads, domain.InvestigationLead{
			ID:                 "lead_" + strings.TrimPrefix(p.ID, "lp_"),
			Priority:           domain.PriorityForConfidence(p.Confidence),
			Description:        fmt.Sprintf("[%s] %s", strings.ToLower(string(p.Category)), p.Description),
			SupportingEvidence: append([]string{}, p.SupportingAtoms...),
			RecommendedActions: append([]string{}, recommendedActions[p.Category]...),
			Confidence:         p.Confidence,
		})
	}
	sort.SliceStable(leads, func(i, j int) bool {
		if leads[i].Confidence != leads[j].Confidence {
			return leads[i].Confidence > leads[j].Confidence
		}
		return leads[i].ID < leads[j].ID
	})
	return leads
}
