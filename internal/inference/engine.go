// Package inference runs forward-chaining rules over an AtomSpace and layers
// read-only pattern detection and hypothesis generation on top.
package inference

import (
	"fmt"
	"time"

	"github.com/Harshitk-cp/hyperholmes/internal/atomspace"
	"github.com/Harshitk-cp/hyperholmes/internal/domain"
	"go.uber.org/zap"
)

const MethodForwardChain = "forward_chain"

type Config struct {
	MaxIterations            int
	MinEventsForCooccurrence int
	MinEventsForCluster      int
	TemporalWindow           time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxIterations:            10,
		MinEventsForCooccurrence: 2,
		MinEventsForCluster:      3,
		TemporalWindow:           7 * 24 * time.Hour,
	}
}

// ChainResult reports one ForwardChain call.
type ChainResult struct {
	Method          string         `json:"method"`
	Iterations      int            `json:"iterations"`
	TotalInferences int            `json:"total_inferences"`
	NewAtomIDs      []string       `json:"new_atom_ids"`
	ReachedFixpoint bool           `json:"reached_fixpoint"`
	RuleFirings     map[string]int `json:"rule_firings"`
}

type Stats struct {
	TotalRules      int            `json:"total_rules"`
	TotalInferences int            `json:"total_inferences"`
	Runs            int            `json:"runs"`
	RuleFirings     map[string]int `json:"rule_firings"`
}

type Engine struct {
	space  *atomspace.AtomSpace
	cfg    Config
	rules  []Rule
	logger *zap.Logger

	totalInferences int
	runs            int
	firings         map[string]int
}

// NewEngine builds an engine seeded with DefaultRules. Zero config fields fall
// back to DefaultConfig.
func NewEngine(space *atomspace.AtomSpace, cfg Config, logger *zap.Logger) *Engine {
	def := DefaultConfig()
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = def.MaxIterations
	}
	if cfg.MinEventsForCooccurrence <= 0 {
		cfg.MinEventsForCooccurrence = def.MinEventsForCooccurrence
	}
	if cfg.MinEventsForCluster <= 0 {
		cfg.MinEventsForCluster = def.MinEventsForCluster
	}
	if cfg.TemporalWindow <= 0 {
		cfg.TemporalWindow = def.TemporalWindow
	}
	return &Engine{
		space:   space,
		cfg:     cfg,
		rules:   DefaultRules(cfg),
		logger:  logger,
		firings: make(map[string]int),
	}
}

func (e *Engine) Config() Config { return e.cfg }

// AddRule appends r after the rules already registered.
func (e *Engine) AddRule(r Rule) {
	e.rules = append(e.rules, r)
}

// LoadRules compiles YAML rule definitions and registers the valid ones. The
// returned error describes any rules that were rejected.
func (e *Engine) LoadRules(data []byte) (int, error) {
	rules, err := ParseRules(data)
	for _, r := range rules {
		e.AddRule(r)
	}
	if len(rules) > 0 {
		e.logger.Info("declarative rules loaded", zap.Int("count", len(rules)))
	}
	return len(rules), err
}

// Rules describes the registered rules in registration order.
func (e *Engine) Rules() []domain.RuleInfo {
	out := make([]domain.RuleInfo, len(e.rules))
	for i, r := range e.rules {
		out[i] = r.Info()
	}
	return out
}

// TotalInferences counts atoms derived across every ForwardChain call.
func (e *Engine) TotalInferences() int { return e.totalInferences }

func (e *Engine) Stats() Stats {
	firings := make(map[string]int, len(e.firings))
	for k, v := range e.firings {
		firings[k] = v
	}
	return Stats{
		TotalRules:      len(e.rules),
		TotalInferences: e.totalInferences,
		Runs:            e.runs,
		RuleFirings:     firings,
	}
}

// ForwardChain applies every rule in order, repeatedly, until an iteration adds
// nothing or maxIterations is reached. Atoms derived by one rule are visible to
// later rules in the same iteration. maxIterations <= 0 uses the configured cap.
func (e *Engine) ForwardChain(maxIterations int) ChainResult {
	if maxIterations <= 0 {
		maxIterations = e.cfg.MaxIterations
	}
	res := ChainResult{
		Method:      MethodForwardChain,
		NewAtomIDs:  []string{},
		RuleFirings: make(map[string]int),
	}

	for res.Iterations < maxIterations {
		res.Iterations++
		added := 0
		for _, r := range e.rules {
			if !r.AppliesTo(e.space) {
				continue
			}
			for _, a := range e.applySafely(r) {
				if e.space.Has(a.ID) {
					continue
				}
				if a.Metadata.RuleID == "" {
					a.Metadata.RuleID = r.Info().ID
				}
				e.space.AddAtom(a)
				res.NewAtomIDs = append(res.NewAtomIDs, a.ID)
				res.RuleFirings[r.Info().ID]++
				added++
			}
		}
		if added == 0 {
			res.ReachedFixpoint = true
			break
		}
	}

	res.TotalInferences = len(res.NewAtomIDs)
	e.totalInferences += res.TotalInferences
	e.runs++
	for k, v := range res.RuleFirings {
		e.firings[k] += v
	}

	e.logger.Info("forward chaining complete",
		zap.String("case_id", e.space.CaseID()),
		zap.Int("iterations", res.Iterations),
		zap.Int("inferences", res.TotalInferences),
		zap.Bool("fixpoint", res.ReachedFixpoint),
	)
	return res
}

func (e *Engine) applySafely(r Rule) (out []domain.Atom) {
	defer func() {
		if rec := recover(); rec != nil {
			e.logger.Warn("inference rule panicked",
				zap.String("rule_id", r.Info().ID),
				zap.String("panic", fmt.Sprint(rec)),
			)
			out = nil
		}
	}()
	return r.Apply(e.space)
}
