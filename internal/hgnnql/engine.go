// Package hgnnql interprets the small HGNNQL text language over an AtomSpace.
//
// Supported commands:
//
//	FIND <TYPE> [WHERE key=value [AND key=value]...]
//	LINK <id1> TO <id2> AS <relationship>
//	COUNT <TYPE>
//	INFER <pattern> FROM <id> [<id>...]
//	QUERY CONNECTED TO <id>
//
// Commands are matched by leading keyword, not a grammar. A malformed command yields a
// Result carrying Error; Execute never returns a Go error so exploratory sessions survive.
package hgnnql

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Harshitk-cp/hyperholmes/internal/atomspace"
	"github.com/Harshitk-cp/hyperholmes/internal/domain"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

const (
	CommandFind  = "FIND"
	CommandLink  = "LINK"
	CommandCount = "COUNT"
	CommandInfer = "INFER"
	CommandQuery = "QUERY"

	StatusSuccess = "success"

	// InferRuleID marks PATTERN atoms asserted manually through INFER.
	InferRuleID = "hgnnql_infer"

	inferConfidenceFactor  = 0.8
	inferDefaultConfidence = 0.5
)

// Result is the outcome of one command. Only the fields relevant to Command are rendered.
type Result struct {
	Query          string
	Command        string
	Status         string
	QueryType      string
	Count          int
	Results        []domain.Atom
	Relationship   *domain.Atom
	Pattern        *domain.Atom
	ConnectedCount int
	Connected      []string
	Warnings       []string
	Error          string
}

func (r Result) OK() bool { return r.Error == "" }

func (r Result) MarshalJSON() ([]byte, error) {
	out := map[string]any{"query": r.Query}
	if r.Command != "" {
		out["command"] = r.Command
	}
	if r.Error != "" {
		out["error"] = r.Error
		return json.Marshal(out)
	}
	switch r.Command {
	case CommandFind:
		out["count"] = r.Count
		results := r.Results
		if results == nil {
			results = []domain.Atom{}
		}
		out["results"] = results
	case CommandCount:
		out["count"] = r.Count
	case CommandLink:
		out["status"] = r.Status
		out["relationship"] = r.Relationship
	case CommandInfer:
		out["status"] = r.Status
		out["pattern"] = r.Pattern
	case CommandQuery:
		out["query_type"] = r.QueryType
		out["connected_count"] = r.ConnectedCount
		connected := r.Connected
		if connected == nil {
			connected = []string{}
		}
		out["connected"] = connected
	}
	if len(r.Warnings) > 0 {
		out["warnings"] = r.Warnings
	}
	return json.Marshal(out)
}

type Engine struct {
	space  *atomspace.AtomSpace
	logger *zap.Logger
	newID  func() string
}

func NewEngine(space *atomspace.AtomSpace, logger *zap.Logger) *Engine {
	return &Engine{
		space:  space,
		logger: logger,
		newID:  func() string { return strings.ToLower(ulid.Make().String()) },
	}
}

// Execute runs a single HGNNQL command.
func (e *Engine) Execute(query string) Result {
	tokens := strings.Fields(query)
	if len(tokens) == 0 {
		return Result{Query: query, Error: "empty query"}
	}

	var res Result
	switch strings.ToUpper(tokens[0]) {
	case CommandFind:
		res = e.find(tokens)
	case CommandLink:
		res = e.link(tokens)
	case CommandCount:
		res = e.count(tokens)
	case CommandInfer:
		res = e.infer(tokens)
	case CommandQuery:
		res = e.queryConnected(tokens)
	default:
		res = Result{Error: fmt.Sprintf("unknown command %q (expected FIND, LINK, COUNT, INFER or QUERY)", tokens[0])}
	}
	res.Query = query
	if res.Error != "" {
		e.logger.Debug("hgnnql command rejected", zap.String("query", query), zap.String("error", res.Error))
	}
	return res
}

func (e *Engine) find(tokens []string) Result {
	res := Result{Command: CommandFind}
	if len(tokens) < 2 {
		res.Error = "FIND requires an atom type"
		return res
	}
	typ, ok := domain.ParseAtomType(tokens[1])
	if !ok {
		res.Results = []domain.Atom{}
		return res
	}

	filter := atomspace.Filter{Type: &typ}
	var nameFilter string
	if len(tokens) > 2 {
		if !strings.EqualFold(tokens[2], "WHERE") {
			res.Error = fmt.Sprintf("unexpected %q after FIND %s (expected WHERE)", tokens[2], tokens[1])
			return res
		}
		filter.Metadata = make(map[string]string)
		for _, term := range tokens[3:] {
			if strings.EqualFold(term, "AND") {
				continue
			}
			key, value, found := strings.Cut(term, "=")
			if !found || key == "" {
				res.Warnings = append(res.Warnings, fmt.Sprintf("ignored malformed term %q", term))
				continue
			}
			value = strings.Trim(value, `"'`)
			if strings.EqualFold(key, "name") {
				nameFilter = value
				continue
			}
			filter.Metadata[key] = value
		}
	}

	for _, a := range e.space.Query(filter) {
		if nameFilter != "" && !strings.EqualFold(a.Name, nameFilter) {
			continue
		}
		res.Results = append(res.Results, a)
	}
	if res.Results == nil {
		res.Results = []domain.Atom{}
	}
	res.Count = len(res.Results)
	return res
}

func (e *Engine) link(tokens []string) Result {
	res := Result{Command: CommandLink}
	if len(tokens) < 6 || !strings.EqualFold(tokens[2], "TO") || !strings.EqualFold(tokens[4], "AS") {
		res.Error = "usage: LINK <id1> TO <id2> AS <relationship>"
		return res
	}
	source, target := tokens[1], tokens[3]
	name := strings.Join(tokens[5:], " ")

	for _, id := range []string{source, target} {
		if !e.space.Has(id) {
			res.Warnings = append(res.Warnings, fmt.Sprintf("atom %q not found; link is dangling", id))
		}
	}

	id := e.space.AddLinkWithID("link_"+e.newID(), domain.AtomRelationship, name, []string{source, target}, nil)
	rel, _ := e.space.Get(id)
	res.Status = StatusSuccess
	res.Relationship = &rel
	return res
}

func (e *Engine) count(tokens []string) Result {
	res := Result{Command: CommandCount}
	if len(tokens) != 2 {
		res.Error = "usage: COUNT <TYPE>"
		return res
	}
	if typ, ok := domain.ParseAtomType(tokens[1]); ok {
		res.Count = len(e.space.ByType(typ))
	}
	return res
}

func (e *Engine) infer(tokens []string) Result {
	res := Result{Command: CommandInfer}
	if len(tokens) < 4 || !strings.EqualFold(tokens[2], "FROM") {
		res.Error = "usage: INFER <pattern> FROM <id> [<id>...]"
		return res
	}
	name := tokens[1]
	sources := append([]string{}, tokens[3:]...)

	found, missing := e.space.Resolve(sources)
	for _, id := range missing {
		res.Warnings = append(res.Warnings, fmt.Sprintf("source atom %q not found", id))
	}

	confidence := inferDefaultConfidence
	if len(found) > 0 {
		var sum float64
		for _, a := range found {
			sum += a.TruthValue.Confidence()
		}
		confidence = sum / float64(len(found)) * inferConfidenceFactor
	}

	pattern := domain.Atom{
		ID:         "pattern_" + e.newID(),
		Type:       domain.AtomPattern,
		Name:       name,
		TruthValue: domain.NewTruthValue(1.0, confidence),
		Metadata: domain.Metadata{
			Evidence:    sources,
			RuleID:      InferRuleID,
			Description: fmt.Sprintf("manually asserted pattern %q from %d source(s)", name, len(sources)),
		},
	}
	e.space.AddAtom(pattern)
	stored, _ := e.space.Get(pattern.ID)
	res.Status = StatusSuccess
	res.Pattern = &stored
	return res
}

// queryConnected treats links as undirected: every atom sharing a link with the
// subject is a neighbour, whatever its position among the targets.
func (e *Engine) queryConnected(tokens []string) Result {
	res := Result{Command: CommandQuery}
	if len(tokens) != 4 || !strings.EqualFold(tokens[1], "CONNECTED") || !strings.EqualFold(tokens[2], "TO") {
		res.Error = "usage: QUERY CONNECTED TO <id>"
		return res
	}
	subject := tokens[3]
	res.QueryType = "connected"
	res.Connected = e.space.Neighbors(subject)
	res.ConnectedCount = len(res.Connected)
	return res
}
