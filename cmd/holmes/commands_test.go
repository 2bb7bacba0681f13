package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCase = `{
  "case_id": "c-cli",
  "entities": [
    {"id": "alice", "name": "Alice", "entity_type": "person"},
    {"id": "bob", "name": "Bob", "entity_type": "person"},
    {"id": "acme", "name": "Acme Ltd", "entity_type": "company"}
  ],
  "events": [
    {"id": "tx1", "name": "Wire 1", "date": "2024-03-01T10:00:00Z", "participants": ["alice", "acme"], "amount": 25000},
    {"id": "tx2", "name": "Wire 2", "date": "2024-03-02T10:00:00Z", "participants": ["alice", "acme"], "amount": 30000}
  ],
  "relationships": [
    {"name": "director_of", "source_id": "bob", "target_id": "acme"}
  ],
  "evidence": [
    {"id": "stmt", "name": "Bank statement", "references": ["tx1", "alice"]}
  ]
}`

func writeCase(t *testing.T) string {
	t.Helper()
	t.Setenv("HOLMES_ENV", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("RULES_PATH", "")
	t.Setenv("EMBEDDING_PROVIDER", "")
	path := filepath.Join(t.TempDir(), "case.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleCase), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestAnalyze_Text(t *testing.T) {
	path := writeCase(t)
	exportPath := filepath.Join(t.TempDir(), "out", "kb.json")

	out, err := run(t, "analyze", path, "--export", exportPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Case c-cli")
	assert.Contains(t, out, "inferences:")
	assert.Contains(t, out, "Exported to "+exportPath)

	data, err := os.ReadFile(exportPath)
	require.NoError(t, err)
	var doc struct {
		CaseID string `json:"case_id"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "c-cli", doc.CaseID)
}

func TestAnalyze_JSON(t *testing.T) {
	path := writeCase(t)

	out, err := run(t, "analyze", path, "--json")
	require.NoError(t, err)

	var report struct {
		CaseID  string `json:"case_id"`
		Summary struct {
			TotalAtoms int `json:"total_atoms"`
			Inferences int `json:"inferences"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "c-cli", report.CaseID)
	assert.Greater(t, report.Summary.Inferences, 0)
	assert.Greater(t, report.Summary.TotalAtoms, 7)
}

func TestAnalyze_MissingFile(t *testing.T) {
	writeCase(t)
	_, err := run(t, "analyze", filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read case file")
}

func TestQuery(t *testing.T) {
	path := writeCase(t)

	out, err := run(t, "query", path, "COUNT", "ENTITY")
	require.NoError(t, err)

	var res map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "COUNT", res["command"])
	assert.EqualValues(t, 3, res["count"])
}

func TestQuery_UnknownKeywordFails(t *testing.T) {
	path := writeCase(t)

	out, err := run(t, "query", path, "DELETE", "ENTITY", "alice")
	require.Error(t, err)

	var res map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.NotEmpty(t, res["error"])
}

func TestQuery_UnknownTypeIsEmpty(t *testing.T) {
	path := writeCase(t)

	out, err := run(t, "query", path, "FIND", "SPACESHIP")
	require.NoError(t, err)

	var res map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.EqualValues(t, 0, res["count"])
	assert.Empty(t, res["results"])
	assert.NotContains(t, res, "error")
}

func TestAsk(t *testing.T) {
	path := writeCase(t)

	out, err := run(t, "ask", path, "who", "is", "involved?")
	require.NoError(t, err)
	assert.Contains(t, out, "Alice")
	assert.Contains(t, out, "confidence:")
}

func TestStatus(t *testing.T) {
	path := writeCase(t)

	out, err := run(t, "status", path)
	require.NoError(t, err)

	var status struct {
		CaseID    string `json:"case_id"`
		AtomSpace struct {
			TotalAtoms int `json:"total_atoms"`
		} `json:"atomspace"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Equal(t, "c-cli", status.CaseID)
	assert.Equal(t, 7, status.AtomSpace.TotalAtoms)
}

func TestRulesValidate(t *testing.T) {
	writeCase(t)
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rules:
  - id: big_transfer
    type: deduction
    premise:
      atom_type: EVENT
    conclusion:
      atom_type: PATTERN
      name: big_transfer
      confidence: 0.6
  - id: broken
    type: WISHFUL
    premise:
      atom_type: EVENT
    conclusion:
      atom_type: PATTERN
      name: never
      confidence: 0.5
`), 0o644))

	out, err := run(t, "rules", "validate", path)
	require.Error(t, err)
	assert.Contains(t, out, "ok    big_transfer")
	assert.Contains(t, out, "error ")
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "holmes ")
}
