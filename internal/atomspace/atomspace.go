// Package atomspace holds the in-memory hypergraph of atoms and links for one case.
//
// An AtomSpace assumes a single writer: it does no locking. Callers that need to
// share a case across goroutines serialize access themselves (see service.CaseRegistry).
package atomspace

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/Harshitk-cp/hyperholmes/internal/domain"
)

var ErrMissingCaseID = errors.New("atomspace: case id is required")

type AtomSpace struct {
	caseID string
	atoms  map[string]domain.Atom
	order  []string
}

// New creates an empty AtomSpace for caseID.
func New(caseID string) (*AtomSpace, error) {
	if strings.TrimSpace(caseID) == "" {
		return nil, ErrMissingCaseID
	}
	return &AtomSpace{
		caseID: caseID,
		atoms:  make(map[string]domain.Atom),
	}, nil
}

func (s *AtomSpace) CaseID() string { return s.caseID }

func (s *AtomSpace) Len() int { return len(s.order) }

// AddAtom inserts a or overwrites the atom already stored under a.ID.
// Overwriting is last-write-wins and keeps the original insertion position, so
// re-adding an id never creates a duplicate. An unset TruthValue becomes the default.
func (s *AtomSpace) AddAtom(a domain.Atom) string {
	if a.TruthValue.IsZero() {
		a.TruthValue = domain.DefaultTruthValue()
	}
	if _, exists := s.atoms[a.ID]; !exists {
		s.order = append(s.order, a.ID)
	}
	s.atoms[a.ID] = a.Clone()
	return a.ID
}

// AddLink stores a link with a deterministic id derived from its type, name and targets.
// Targets do not need to exist yet.
func (s *AtomSpace) AddLink(linkType domain.AtomType, name string, targets []string, tv *domain.TruthValue) string {
	return s.AddLinkWithID(LinkID(linkType, name, targets), linkType, name, targets, tv)
}

// AddLinkWithID stores a link under a caller-supplied id.
func (s *AtomSpace) AddLinkWithID(id string, linkType domain.AtomType, name string, targets []string, tv *domain.TruthValue) string {
	link := domain.Atom{
		ID:      id,
		Type:    linkType,
		Name:    name,
		Targets: append([]string{}, targets...),
	}
	if tv != nil {
		link.TruthValue = *tv
	}
	return s.AddAtom(link)
}

// Get returns the atom stored under id. Absence is reported, not an error.
func (s *AtomSpace) Get(id string) (domain.Atom, bool) {
	a, ok := s.atoms[id]
	if !ok {
		return domain.Atom{}, false
	}
	return a.Clone(), true
}

func (s *AtomSpace) Has(id string) bool {
	_, ok := s.atoms[id]
	return ok
}

// All returns every atom in insertion order.
func (s *AtomSpace) All() []domain.Atom {
	out := make([]domain.Atom, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.atoms[id].Clone())
	}
	return out
}

// ByType returns atoms of type t in insertion order.
func (s *AtomSpace) ByType(t domain.AtomType) []domain.Atom {
	var out []domain.Atom
	for _, id := range s.order {
		if a := s.atoms[id]; a.Type == t {
			out = append(out, a.Clone())
		}
	}
	return out
}

// Filter selects atoms conjunctively; nil or empty fields are not filtered on.
// MinConfidence is compared against the truth value's confidence only, never strength.
type Filter struct {
	Type          *domain.AtomType
	MinConfidence *float64
	Metadata      map[string]string
}

func (s *AtomSpace) Query(f Filter) []domain.Atom {
	var out []domain.Atom
	for _, id := range s.order {
		a := s.atoms[id]
		if f.Type != nil && a.Type != *f.Type {
			continue
		}
		if f.MinConfidence != nil && a.TruthValue.Confidence() < *f.MinConfidence {
			continue
		}
		if len(f.Metadata) > 0 && !a.Metadata.Matches(f.Metadata) {
			continue
		}
		out = append(out, a.Clone())
	}
	return out
}

// Links returns every atom that carries targets, in insertion order.
func (s *AtomSpace) Links() []domain.Atom {
	var out []domain.Atom
	for _, id := range s.order {
		if a := s.atoms[id]; a.IsLink() {
			out = append(out, a.Clone())
		}
	}
	return out
}

// LinksContaining returns links that have id among their targets.
func (s *AtomSpace) LinksContaining(id string) []domain.Atom {
	var out []domain.Atom
	for _, lid := range s.order {
		if a := s.atoms[lid]; a.IsLink() && a.HasTarget(id) {
			out = append(out, a.Clone())
		}
	}
	return out
}

// Neighbors returns ids that share at least one link with id, in first-seen
// order. Position within the link does not matter.
func (s *AtomSpace) Neighbors(id string) []string {
	seen := map[string]bool{id: true}
	out := []string{}
	for _, link := range s.LinksContaining(id) {
		for _, t := range link.Targets {
			if seen[t] {
				continue
			}
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// Resolve splits ids into atoms that exist and ids that dangle.
func (s *AtomSpace) Resolve(ids []string) (found []domain.Atom, missing []string) {
	for _, id := range ids {
		if a, ok := s.atoms[id]; ok {
			found = append(found, a.Clone())
		} else {
			missing = append(missing, id)
		}
	}
	return found, missing
}

// DanglingTargets lists link target ids that do not resolve, in first-seen order.
func (s *AtomSpace) DanglingTargets() []string {
	seen := make(map[string]bool)
	var out []string
	for _, id := range s.order {
		for _, t := range s.atoms[id].Targets {
			if _, ok := s.atoms[t]; ok || seen[t] {
				continue
			}
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// CountByType counts atoms per type. Types with no atoms are omitted.
func (s *AtomSpace) CountByType() map[domain.AtomType]int {
	counts := make(map[domain.AtomType]int)
	for _, a := range s.atoms {
		counts[a.Type]++
	}
	return counts
}

// LinkID derives the deterministic id used by AddLink.
func LinkID(linkType domain.AtomType, name string, targets []string) string {
	return strings.ToLower(string(linkType)) + "_" + Fingerprint(append([]string{name}, targets...)...)
}

// Fingerprint hashes parts into a short stable hex string.
func Fingerprint(parts ...string) string {
	h := sha1.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(h[:])[:12]
}
