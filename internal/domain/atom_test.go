package domain

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTruthValue_Clamps(t *testing.T) {
	tv := NewTruthValue(1.7, -0.2)
	assert.Equal(t, 1.0, tv.Strength())
	assert.Equal(t, 0.0, tv.Confidence())

	tv = NewTruthValue(0.4, 0.6)
	assert.Equal(t, 0.4, tv.Strength())
	assert.Equal(t, 0.6, tv.Confidence())
}

func TestNewTruthValue_PanicsOnNaN(t *testing.T) {
	assert.Panics(t, func() { NewTruthValue(math.NaN(), 0.5) })
}

func TestParseAtomType(t *testing.T) {
	typ, ok := ParseAtomType(" entity ")
	require.True(t, ok)
	assert.Equal(t, AtomEntity, typ)

	_, ok = ParseAtomType("SPACESHIP")
	assert.False(t, ok)
}

func TestAtomJSON_RoundTrip(t *testing.T) {
	ts := time.Date(2023, 4, 1, 12, 0, 0, 0, time.UTC)
	link := Atom{
		ID:         "rel-1",
		Type:       AtomRelationship,
		Name:       "paid",
		TruthValue: NewTruthValue(0.8, 0.7),
		Metadata: Metadata{
			Timestamp:  &ts,
			SourceFile: "ledger.xlsx",
			Extra:      map[string]any{"amount": 2500.0},
		},
		Targets: []string{"alice", "bob"},
	}

	raw, err := json.Marshal(link)
	require.NoError(t, err)

	var flat map[string]any
	require.NoError(t, json.Unmarshal(raw, &flat))
	assert.Equal(t, "rel-1", flat["atom_id"])
	assert.Equal(t, "RELATIONSHIP", flat["atom_type"])
	assert.Equal(t, []any{"alice", "bob"}, flat["targets"])
	meta := flat["metadata"].(map[string]any)
	assert.Equal(t, "ledger.xlsx", meta["source_file"])
	assert.Equal(t, 2500.0, meta["amount"])

	var back Atom
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, link.ID, back.ID)
	assert.Equal(t, link.Targets, back.Targets)
	assert.Equal(t, link.TruthValue, back.TruthValue)
	assert.True(t, back.Metadata.Timestamp.Equal(ts))
	amount, ok := back.Metadata.Float(MetaAmount)
	require.True(t, ok)
	assert.Equal(t, 2500.0, amount)
}

func TestAtomToDict_NodeHasNoTargets(t *testing.T) {
	d := Atom{ID: "e", Type: AtomEntity, Name: "Alice"}.ToDict()
	_, hasTargets := d["targets"]
	assert.False(t, hasTargets)
	assert.Equal(t, "ENTITY", d["atom_type"])
}

func TestTruthValue_ClampedZeroIsSet(t *testing.T) {
	tv := NewTruthValue(-0.5, -0.2)
	assert.False(t, tv.IsZero())
	assert.Zero(t, tv.Strength())
	assert.Zero(t, tv.Confidence())
	assert.True(t, TruthValue{}.IsZero())

	raw, err := json.Marshal(Atom{ID: "x", Type: AtomConcept, Name: "disproved", TruthValue: tv})
	require.NoError(t, err)
	var back Atom
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.False(t, back.TruthValue.IsZero())
	assert.Zero(t, back.TruthValue.Confidence())

	require.NoError(t, json.Unmarshal([]byte(`{"atom_id":"y","atom_type":"CONCEPT","name":"y"}`), &back))
	assert.True(t, back.TruthValue.IsZero())
}

func TestAtomJSON_EmptyLinkStaysLink(t *testing.T) {
	link := Atom{ID: "l", Type: AtomLink, Name: "empty", TruthValue: DefaultTruthValue(), Targets: []string{}}
	require.True(t, link.IsLink())

	raw, err := json.Marshal(link)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"targets":[]`)

	var back Atom
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.True(t, back.IsLink())
	assert.Empty(t, back.Targets)
}

func TestAtomUnmarshal_RejectsUnknownType(t *testing.T) {
	var a Atom
	err := json.Unmarshal([]byte(`{"atom_id":"x","atom_type":"NOPE","name":"x"}`), &a)
	assert.Error(t, err)
}

func TestMetadataMatches(t *testing.T) {
	m := Metadata{EntityType: "Company", Participants: []string{"a", "b"}}
	assert.True(t, m.Matches(map[string]string{"entity_type": "company"}))
	assert.True(t, m.Matches(map[string]string{"participants": "b"}))
	assert.False(t, m.Matches(map[string]string{"participants": "c"}))
	assert.False(t, m.Matches(map[string]string{"missing": "x"}))
	assert.True(t, m.Matches(nil))
}

func TestPriorityForConfidence(t *testing.T) {
	assert.Equal(t, PriorityCritical, PriorityForConfidence(0.8))
	assert.Equal(t, PriorityHigh, PriorityForConfidence(0.65))
	assert.Equal(t, PriorityMedium, PriorityForConfidence(0.4))
	assert.Equal(t, PriorityLow, PriorityForConfidence(0.1))
}

func TestPatternMatch(t *testing.T) {
	p := Pattern{AtomType: AtomEvent, MinConfidence: 0.5, Metadata: map[string]string{"category": "transfer"}}
	ok := Atom{Type: AtomEvent, TruthValue: NewTruthValue(1, 0.9), Metadata: Metadata{Category: "transfer"}}
	assert.True(t, p.Match(ok))

	lowConf := ok
	lowConf.TruthValue = NewTruthValue(1, 0.2)
	assert.False(t, p.Match(lowConf))

	wrongType := ok
	wrongType.Type = AtomEntity
	assert.False(t, p.Match(wrongType))
}
