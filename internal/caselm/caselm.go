// Package caselm answers questions about a case with keyword routing over the
// AtomSpace and ranks atoms by deterministic hashed embeddings. Nothing here
// calls a language model.
package caselm

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"

	"github.com/Harshitk-cp/hyperholmes/internal/atomspace"
	"github.com/Harshitk-cp/hyperholmes/internal/domain"
	"github.com/Harshitk-cp/hyperholmes/internal/embedding"
	"go.uber.org/zap"
)

const (
	fallbackConfidence = 0.1
	maxConfidence      = 0.95
	maxListed          = 10
	fallbackSources    = 3
)

// Answer is the reply to one question.
type Answer struct {
	Question   string   `json:"question"`
	Answer     string   `json:"answer"`
	Confidence float64  `json:"confidence"`
	Sources    []string `json:"sources"`
}

// Neighbor is an atom ranked by embedding similarity.
type Neighbor struct {
	AtomID string  `json:"atom_id"`
	Name   string  `json:"name"`
	Score  float64 `json:"score"`
}

// LeadSource supplies investigation leads for questions about leads.
type LeadSource func() []domain.InvestigationLead

type CaseLLM struct {
	space  *atomspace.AtomSpace
	client domain.EmbeddingClient
	leads  LeadSource
	logger *zap.Logger
}

func New(space *atomspace.AtomSpace, client domain.EmbeddingClient, logger *zap.Logger) *CaseLLM {
	if client == nil {
		client = embedding.NewHashClient(embedding.DefaultDimension)
	}
	return &CaseLLM{space: space, client: client, logger: logger}
}

// SetLeadSource wires the trainer's leads into lead questions.
func (c *CaseLLM) SetLeadSource(src LeadSource) { c.leads = src }

func (c *CaseLLM) Dimension() int { return c.client.Dimension() }

// AtomText is the text an atom is embedded from: its name, type and metadata values.
func AtomText(a domain.Atom) string {
	parts := []string{a.Name, string(a.Type)}
	parts = append(parts, a.Metadata.Values()...)
	return strings.Join(parts, " ")
}

// EmbedAtom returns the atom's embedding. A failing client yields a zero vector.
func (c *CaseLLM) EmbedAtom(ctx context.Context, a domain.Atom) []float32 {
	vec, err := c.client.Embed(ctx, AtomText(a))
	if err != nil {
		c.logger.Warn("embedding failed", zap.String("atom_id", a.ID), zap.Error(err))
		return make([]float32, c.client.Dimension())
	}
	return vec
}

// EmbedText embeds free text with the configured client.
func (c *CaseLLM) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return c.client.Embed(ctx, text)
}

// Similarity is the cosine similarity of two atoms' embeddings, in [-1, 1].
func (c *CaseLLM) Similarity(ctx context.Context, a, b domain.Atom) float64 {
	return embedding.Cosine(c.EmbedAtom(ctx, a), c.EmbedAtom(ctx, b))
}

// MostSimilar ranks the other atoms by similarity to atomID, best first.
func (c *CaseLLM) MostSimilar(ctx context.Context, atomID string, k int) []Neighbor {
	subject, ok := c.space.Get(atomID)
	if !ok || k <= 0 {
		return []Neighbor{}
	}
	return c.rank(ctx, c.EmbedAtom(ctx, subject), k, atomID)
}

func (c *CaseLLM) rank(ctx context.Context, query []float32, k int, exclude string) []Neighbor {
	out := []Neighbor{}
	for _, a := range c.space.All() {
		if a.ID == exclude {
			continue
		}
		out = append(out, Neighbor{AtomID: a.ID, Name: a.Name, Score: embedding.Cosine(query, c.EmbedAtom(ctx, a))})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].AtomID < out[j].AtomID
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}

func confidenceFor(matches int) float64 {
	return math.Min(maxConfidence, 0.5+0.1*float64(matches))
}

type route struct {
	keywords []string
	answer   func(c *CaseLLM, question string) (string, []string)
}

// Routes are tried in order; the first with a keyword matching the question's
// terms answers. A keyword matches a whole term, or any term it prefixes when
// it ends in "*". Multi-word keywords match consecutive terms.
var routes = []route{
	{keywords: []string{"connect*", "linked", "associat*"}, answer: (*CaseLLM).connections},
	{keywords: []string{"lead", "leads", "next step*", "investigat*"}, answer: (*CaseLLM).leadAnswer},
	{keywords: []string{"fraud*", "suspicious", "anomal*"}, answer: (*CaseLLM).suspicious},
	{keywords: []string{"pattern*"}, answer: typeAnswer(domain.AtomPattern, "patterns")},
	{keywords: []string{"relation*"}, answer: typeAnswer(domain.AtomRelationship, "relationships")},
	{keywords: []string{"evidence", "document*", "proof"}, answer: typeAnswer(domain.AtomEvidence, "evidence items")},
	{keywords: []string{"event*", "when", "timeline", "happen*"}, answer: typeAnswer(domain.AtomEvent, "events")},
	{keywords: []string{"entit*", "who", "people", "person", "compan*", "involved"}, answer: typeAnswer(domain.AtomEntity, "entities")},
	{keywords: []string{"hypothes*"}, answer: typeAnswer(domain.AtomHypothesis, "hypotheses")},
}

// ReasonAboutCase answers a question from the AtomSpace contents. Confidence
// grows with the number of matching atoms; an unrecognised question gets a
// generic answer at low confidence. It never fails.
func (c *CaseLLM) ReasonAboutCase(ctx context.Context, question string) Answer {
	terms := embedding.Terms(question)
	for _, r := range routes {
		if !matchesAny(terms, r.keywords) {
			continue
		}
		text, sources := r.answer(c, question)
		if sources == nil {
			sources = []string{}
		}
		return Answer{Question: question, Answer: text, Confidence: confidenceFor(len(sources)), Sources: sources}
	}

	ans := Answer{
		Question:   question,
		Answer:     fmt.Sprintf("I could not match the question to the case. The knowledge base holds %d atoms.", c.space.Len()),
		Confidence: fallbackConfidence,
		Sources:    []string{},
	}
	if c.space.Len() > 0 {
		query, err := c.client.Embed(ctx, question)
		if err == nil {
			for _, n := range c.rank(ctx, query, fallbackSources, "") {
				if n.Score > 0 {
					ans.Sources = append(ans.Sources, n.AtomID)
				}
			}
		}
	}
	c.logger.Debug("question fell back to generic answer", zap.String("question", question))
	return ans
}

func matchesAny(terms, keywords []string) bool {
	for _, k := range keywords {
		words := strings.Fields(k)
		for i := 0; i+len(words) <= len(terms); i++ {
			if matchesAt(terms[i:], words) {
				return true
			}
		}
	}
	return false
}

func matchesAt(terms, words []string) bool {
	for j, w := range words {
		if stem, ok := strings.CutSuffix(w, "*"); ok {
			if !strings.HasPrefix(terms[j], stem) {
				return false
			}
		} else if terms[j] != w {
			return false
		}
	}
	return true
}

func typeAnswer(t domain.AtomType, noun string) func(*CaseLLM, string) (string, []string) {
	return func(c *CaseLLM, _ string) (string, []string) {
		atoms := c.space.ByType(t)
		if len(atoms) == 0 {
			return fmt.Sprintf("No %s have been recorded for this case.", noun), nil
		}
		return fmt.Sprintf("The case has %d %s: %s.", len(atoms), noun, listNames(atoms)), atomIDs(atoms)
	}
}

// connections answers for every entity named in the question.
func (c *CaseLLM) connections(question string) (string, []string) {
	q := strings.ToLower(question)
	var (
		lines   []string
		sources []string
	)
	for _, ent := range c.space.ByType(domain.AtomEntity) {
		if !mentions(q, ent) {
			continue
		}
		neighbours := c.space.Neighbors(ent.ID)
		if len(neighbours) == 0 {
			lines = append(lines, fmt.Sprintf("%s has no recorded connections", ent.Name))
			continue
		}
		lines = append(lines, fmt.Sprintf("%s is connected to %s", ent.Name, strings.Join(c.names(neighbours), ", ")))
		sources = append(sources, neighbours...)
	}
	if len(lines) == 0 {
		links := c.space.Links()
		if len(links) == 0 {
			return "No connections have been recorded for this case.", nil
		}
		return fmt.Sprintf("The case records %d links between atoms.", len(links)), atomIDs(links)
	}
	return strings.Join(lines, ". ") + ".", sources
}

func (c *CaseLLM) leadAnswer(string) (string, []string) {
	if c.leads == nil {
		return "No investigation leads are available; run training first.", nil
	}
	leads := c.leads()
	if len(leads) == 0 {
		return "Training produced no investigation leads.", nil
	}
	if len(leads) > maxListed {
		leads = leads[:maxListed]
	}
	var (
		lines   []string
		sources []string
	)
	for _, l := range leads {
		lines = append(lines, fmt.Sprintf("[%s] %s", l.Priority, l.Description))
		sources = append(sources, l.ID)
	}
	return fmt.Sprintf("Top %d leads: %s.", len(leads), strings.Join(lines, "; ")), sources
}

// suspicious reports derived patterns and high-confidence indirect links.
func (c *CaseLLM) suspicious(string) (string, []string) {
	var flagged []domain.Atom
	for _, a := range c.space.All() {
		if a.Metadata.RuleID == "" {
			continue
		}
		if a.Type == domain.AtomPattern || a.TruthValue.Confidence() >= 0.5 {
			flagged = append(flagged, a)
		}
	}
	if len(flagged) == 0 {
		return "No suspicious patterns have been derived yet; run inference first.", nil
	}
	var descs []string
	for i, a := range flagged {
		if i == maxListed {
			break
		}
		d := a.Metadata.Description
		if d == "" {
			d = a.Name
		}
		descs = append(descs, d)
	}
	return fmt.Sprintf("%d indicators were derived: %s.", len(flagged), strings.Join(descs, "; ")), atomIDs(flagged)
}

// mentions matches the atom's full name anywhere in q, or its id as a whole term.
func mentions(q string, a domain.Atom) bool {
	if a.Name != "" && strings.Contains(q, strings.ToLower(a.Name)) {
		return true
	}
	return slices.Contains(embedding.Terms(q), strings.ToLower(a.ID))
}

func (c *CaseLLM) names(ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id
		if a, ok := c.space.Get(id); ok && a.Name != "" {
			out[i] = a.Name
		}
	}
	return out
}

func listNames(atoms []domain.Atom) string {
	names := make([]string, 0, maxListed)
	for i, a := range atoms {
		if i == maxListed {
			names = append(names, fmt.Sprintf("and %d more", len(atoms)-maxListed))
			break
		}
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

func atomIDs(atoms []domain.Atom) []string {
	out := make([]string, len(atoms))
	for i, a := range atoms {
		out[i] = a.ID
	}
	return out
}
