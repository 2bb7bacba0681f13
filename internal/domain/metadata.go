package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Metadata keys with first-class fields. Anything else lives in Extra.
const (
	MetaTimestamp    = "timestamp"
	MetaEntityType   = "entity_type"
	MetaSourceFile   = "source_file"
	MetaDescription  = "description"
	MetaParticipants = "participants"
	MetaEvidence     = "evidence"
	MetaReferences   = "references"
	MetaRuleID       = "rule_id"
	MetaCategory     = "category"
	MetaAmount       = "amount"
)

// Metadata carries provenance and context for an atom. The common keys are typed
// fields; Extra holds arbitrary extension data. It marshals to one flat JSON object.
type Metadata struct {
	Timestamp    *time.Time
	EntityType   string
	SourceFile   string
	Description  string
	Participants []string
	Evidence     []string
	References   []string
	RuleID       string
	Category     string
	Extra        map[string]any
}

func (m Metadata) Clone() Metadata {
	out := m
	if m.Timestamp != nil {
		ts := *m.Timestamp
		out.Timestamp = &ts
	}
	if m.Participants != nil {
		out.Participants = append([]string{}, m.Participants...)
	}
	if m.Evidence != nil {
		out.Evidence = append([]string{}, m.Evidence...)
	}
	if m.References != nil {
		out.References = append([]string{}, m.References...)
	}
	if m.Extra != nil {
		out.Extra = make(map[string]any, len(m.Extra))
		for k, v := range m.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// Set stores an extension value, allocating Extra on first use.
func (m *Metadata) Set(key string, value any) {
	if m.Extra == nil {
		m.Extra = make(map[string]any)
	}
	m.Extra[key] = value
}

// Lookup returns the string form of a metadata value by its JSON key.
func (m Metadata) Lookup(key string) (string, bool) {
	switch key {
	case MetaTimestamp:
		if m.Timestamp == nil {
			return "", false
		}
		return m.Timestamp.Format(time.RFC3339), true
	case MetaEntityType:
		return m.EntityType, m.EntityType != ""
	case MetaSourceFile:
		return m.SourceFile, m.SourceFile != ""
	case MetaDescription:
		return m.Description, m.Description != ""
	case MetaParticipants:
		return strings.Join(m.Participants, ","), len(m.Participants) > 0
	case MetaEvidence:
		return strings.Join(m.Evidence, ","), len(m.Evidence) > 0
	case MetaReferences:
		return strings.Join(m.References, ","), len(m.References) > 0
	case MetaRuleID:
		return m.RuleID, m.RuleID != ""
	case MetaCategory:
		return m.Category, m.Category != ""
	}
	v, ok := m.Extra[key]
	if !ok || v == nil {
		return "", false
	}
	return fmt.Sprint(v), true
}

// Matches reports whether every predicate equals the stored value (case-insensitive).
// List-valued fields match when any element equals the predicate.
func (m Metadata) Matches(predicates map[string]string) bool {
	for k, want := range predicates {
		if !m.matchOne(k, want) {
			return false
		}
	}
	return true
}

func (m Metadata) matchOne(key, want string) bool {
	var list []string
	switch key {
	case MetaParticipants:
		list = m.Participants
	case MetaEvidence:
		list = m.Evidence
	case MetaReferences:
		list = m.References
	default:
		got, ok := m.Lookup(key)
		return ok && strings.EqualFold(got, want)
	}
	for _, v := range list {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}

// Float reads a numeric extension value such as an amount.
func (m Metadata) Float(key string) (float64, bool) {
	v, ok := m.Extra[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

// Values returns all metadata values as strings in key order, for hashing and embedding.
func (m Metadata) Values() []string {
	flat := m.flatten()
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		switch v := flat[k].(type) {
		case []string:
			out = append(out, v...)
		default:
			out = append(out, fmt.Sprint(v))
		}
	}
	return out
}

func (m Metadata) flatten() map[string]any {
	out := make(map[string]any, len(m.Extra)+8)
	for k, v := range m.Extra {
		out[k] = v
	}
	if m.Timestamp != nil {
		out[MetaTimestamp] = m.Timestamp.Format(time.RFC3339)
	}
	if m.EntityType != "" {
		out[MetaEntityType] = m.EntityType
	}
	if m.SourceFile != "" {
		out[MetaSourceFile] = m.SourceFile
	}
	if m.Description != "" {
		out[MetaDescription] = m.Description
	}
	if len(m.Participants) > 0 {
		out[MetaParticipants] = m.Participants
	}
	if len(m.Evidence) > 0 {
		out[MetaEvidence] = m.Evidence
	}
	if len(m.References) > 0 {
		out[MetaReferences] = m.References
	}
	if m.RuleID != "" {
		out[MetaRuleID] = m.RuleID
	}
	if m.Category != "" {
		out[MetaCategory] = m.Category
	}
	return out
}

func (m Metadata) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.flatten())
}

func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}
	out := Metadata{}
	for k, v := range raw {
		switch k {
		case MetaTimestamp:
			s, _ := v.(string)
			if ts, err := time.Parse(time.RFC3339, s); err == nil {
				out.Timestamp = &ts
			} else {
				out.Set(k, v)
			}
		case MetaEntityType:
			out.EntityType = fmt.Sprint(v)
		case MetaSourceFile:
			out.SourceFile = fmt.Sprint(v)
		case MetaDescription:
			out.Description = fmt.Sprint(v)
		case MetaParticipants:
			out.Participants = toStrings(v)
		case MetaEvidence:
			out.Evidence = toStrings(v)
		case MetaReferences:
			out.References = toStrings(v)
		case MetaRuleID:
			out.RuleID = fmt.Sprint(v)
		case MetaCategory:
			out.Category = fmt.Sprint(v)
		default:
			out.Set(k, v)
		}
	}
	*m = out
	return nil
}

func toStrings(v any) []string {
	switch list := v.(type) {
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			out = append(out, fmt.Sprint(item))
		}
		return out
	case []string:
		return list
	case string:
		if list == "" {
			return nil
		}
		return strings.Split(list, ",")
	}
	return nil
}
