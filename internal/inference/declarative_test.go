package inference

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Harshitk-cp/hyperholmes/internal/atomspace"
	"github.com/Harshitk-cp/hyperholmes/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const shellCompanyRules = `
rules:
  - id: shared_address
    type: induction
    name: Shared registered address
    description: companies registered at the same address
    premise:
      atom_type: entity
      metadata:
        entity_type: company
    min_matches: 2
    group_by: address
    conclusion:
      atom_type: PATTERN
      name: shared_address
      confidence: 0.7
  - id: broken
    type: WISHFUL
    premise:
      atom_type: ENTITY
    conclusion:
      atom_type: PATTERN
      name: never
      confidence: 0.5
`

func company(id, address string) domain.Atom {
	a := domain.Atom{ID: id, Type: domain.AtomEntity, Name: id, Metadata: domain.Metadata{EntityType: "company"}}
	a.Metadata.Set("address", address)
	return a
}

func TestParseRules_SkipsInvalid(t *testing.T) {
	rules, err := ParseRules([]byte(shellCompanyRules))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidRule))
	require.Len(t, rules, 1)

	info := rules[0].Info()
	assert.Equal(t, "shared_address", info.ID)
	assert.Equal(t, domain.RuleInduction, info.Type)
	assert.Equal(t, domain.AtomEntity, info.Premises[0].AtomType)
}

func TestParseRules_BadYAML(t *testing.T) {
	_, err := ParseRules([]byte("rules: [unterminated"))
	assert.Error(t, err)
}

func TestDeclarativeRule_GroupsByMetadata(t *testing.T) {
	space := newSpace(t)
	space.AddAtom(company("Acme", "1 High St"))
	space.AddAtom(company("Bolt", "1 High St"))
	space.AddAtom(company("Cask", "9 Low Rd"))
	eng := NewEngine(space, DefaultConfig(), zap.NewNop())

	n, err := eng.LoadRules([]byte(shellCompanyRules))
	require.Error(t, err)
	require.Equal(t, 1, n)
	assert.Len(t, eng.Rules(), 6)

	res := eng.ForwardChain(5)
	require.True(t, res.ReachedFixpoint)
	assert.Equal(t, 1, res.RuleFirings["shared_address"])
	assert.Zero(t, res.RuleFirings["broken"])

	derived := space.Query(atomspace.Filter{Metadata: map[string]string{domain.MetaRuleID: "shared_address"}})
	require.Len(t, derived, 1)
	assert.Equal(t, domain.AtomPattern, derived[0].Type)
	assert.Equal(t, []string{"Acme", "Bolt"}, derived[0].Metadata.Evidence)
	assert.InDelta(t, 0.7*0.9, derived[0].TruthValue.Confidence(), 1e-9)

	again := eng.ForwardChain(5)
	assert.Zero(t, again.TotalInferences)
}

func TestDeclarativeRule_NoMatchesNeverFires(t *testing.T) {
	space := newSpace(t)
	space.AddAtom(company("Acme", "1 High St"))
	eng := NewEngine(space, DefaultConfig(), zap.NewNop())
	_, _ = eng.LoadRules([]byte(shellCompanyRules))

	res := eng.ForwardChain(5)
	assert.Zero(t, res.RuleFirings["shared_address"])
}

func TestLoadRulesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(shellCompanyRules), 0o600))

	rules, err := LoadRulesFile(path)
	assert.Error(t, err)
	assert.Len(t, rules, 1)

	_, err = LoadRulesFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
