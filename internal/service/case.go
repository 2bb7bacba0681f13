package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Harshitk-cp/hyperholmes/internal/atomspace"
	"github.com/Harshitk-cp/hyperholmes/internal/caselm"
	"github.com/Harshitk-cp/hyperholmes/internal/domain"
	"github.com/Harshitk-cp/hyperholmes/internal/embedding"
	"github.com/Harshitk-cp/hyperholmes/internal/hgnnql"
	"github.com/Harshitk-cp/hyperholmes/internal/inference"
	"github.com/Harshitk-cp/hyperholmes/internal/metrics"
	"github.com/Harshitk-cp/hyperholmes/internal/trainer"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var (
	ErrInvalidRecord = errors.New("invalid record")
	ErrCaseMismatch  = errors.New("case id does not match")
)

// Config wires the per-case components. Zero values fall back to each
// component's defaults.
type Config struct {
	Inference       inference.Config
	Trainer         trainer.Config
	EmbeddingClient domain.EmbeddingClient
	// Rules are registered after the default rule set.
	Rules []inference.Rule
}

// CaseService owns one AtomSpace and the reasoning components built over it.
// It is not safe for concurrent use; CaseRegistry serializes access per case.
type CaseService struct {
	caseID   string
	space    *atomspace.AtomSpace
	query    *hgnnql.Engine
	engine   *inference.Engine
	trainer  *trainer.Trainer
	llm      *caselm.CaseLLM
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

func NewCaseService(caseID string, cfg Config, logger *zap.Logger) (*CaseService, error) {
	space, err := atomspace.New(caseID)
	if err != nil {
		return nil, err
	}
	logger = logger.With(zap.String("case_id", caseID))

	client := cfg.EmbeddingClient
	if client == nil {
		client = embedding.NewHashClient(embedding.DefaultDimension)
	}

	engine := inference.NewEngine(space, cfg.Inference, logger)
	for _, r := range cfg.Rules {
		engine.AddRule(r)
	}
	tr := trainer.New(space, cfg.Trainer, logger)
	llm := caselm.New(space, client, logger)
	llm.SetLeadSource(tr.Leads)

	return &CaseService{
		caseID:   caseID,
		space:    space,
		query:    hgnnql.NewEngine(space, logger),
		engine:   engine,
		trainer:  tr,
		llm:      llm,
		validate: validator.New(),
		logger:   logger,
		now:      time.Now,
	}, nil
}

func (s *CaseService) CaseID() string { return s.caseID }

func (s *CaseService) check(rec any) error {
	if err := s.validate.Struct(rec); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return nil
}

func truthValue(confidence *float64) domain.TruthValue {
	if confidence == nil {
		return domain.TruthValue{}
	}
	return domain.NewTruthValue(1.0, *confidence)
}

// metadataFrom decodes an open metadata map, routing well-known keys to their
// typed fields.
func metadataFrom(m map[string]any) (domain.Metadata, error) {
	var md domain.Metadata
	if len(m) == 0 {
		return md, nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return md, fmt.Errorf("%w: metadata: %v", ErrInvalidRecord, err)
	}
	if err := json.Unmarshal(raw, &md); err != nil {
		return md, fmt.Errorf("%w: metadata: %v", ErrInvalidRecord, err)
	}
	return md, nil
}

func (s *CaseService) store(a domain.Atom) domain.Atom {
	s.space.AddAtom(a)
	metrics.AtomsAdded.WithLabelValues(string(a.Type)).Inc()
	stored, _ := s.space.Get(a.ID)
	return stored
}

func (s *CaseService) AddEntity(rec domain.EntityRecord) (domain.Atom, error) {
	if err := s.check(rec); err != nil {
		return domain.Atom{}, err
	}
	md, err := metadataFrom(rec.Metadata)
	if err != nil {
		return domain.Atom{}, err
	}
	if rec.EntityType != "" {
		md.EntityType = rec.EntityType
	}
	if rec.SourceFile != "" {
		md.SourceFile = rec.SourceFile
	}
	return s.store(domain.Atom{
		ID:         rec.ID,
		Type:       domain.AtomEntity,
		Name:       rec.Name,
		TruthValue: truthValue(rec.Confidence),
		Metadata:   md,
	}), nil
}

func (s *CaseService) AddEvent(rec domain.EventRecord) (domain.Atom, error) {
	if err := s.check(rec); err != nil {
		return domain.Atom{}, err
	}
	md, err := metadataFrom(rec.Metadata)
	if err != nil {
		return domain.Atom{}, err
	}
	if rec.Date != nil {
		ts := rec.Date.UTC()
		md.Timestamp = &ts
	}
	if len(rec.Participants) > 0 {
		md.Participants = append([]string{}, rec.Participants...)
	}
	if rec.Description != "" {
		md.Description = rec.Description
	}
	if rec.SourceFile != "" {
		md.SourceFile = rec.SourceFile
	}
	if rec.Amount != nil {
		md.Set(domain.MetaAmount, *rec.Amount)
	}
	for _, p := range md.Participants {
		if !s.space.Has(p) {
			s.logger.Debug("event participant not yet known", zap.String("event_id", rec.ID), zap.String("participant", p))
		}
	}
	return s.store(domain.Atom{
		ID:         rec.ID,
		Type:       domain.AtomEvent,
		Name:       rec.Name,
		TruthValue: truthValue(rec.Confidence),
		Metadata:   md,
	}), nil
}

// AddRelationship records a directed RELATIONSHIP link from source to target.
// Without an explicit id the link id is derived from its name and endpoints, so
// recording the same relationship twice keeps one link.
func (s *CaseService) AddRelationship(rec domain.RelationshipRecord) (domain.Atom, error) {
	if err := s.check(rec); err != nil {
		return domain.Atom{}, err
	}
	md, err := metadataFrom(rec.Metadata)
	if err != nil {
		return domain.Atom{}, err
	}
	targets := []string{rec.SourceID, rec.TargetID}
	id := rec.ID
	if id == "" {
		id = atomspace.LinkID(domain.AtomRelationship, rec.Name, targets)
	}
	for _, t := range targets {
		if !s.space.Has(t) {
			s.logger.Debug("relationship endpoint not yet known", zap.String("link_id", id), zap.String("target", t))
		}
	}
	return s.store(domain.Atom{
		ID:         id,
		Type:       domain.AtomRelationship,
		Name:       rec.Name,
		TruthValue: truthValue(rec.Confidence),
		Metadata:   md,
		Targets:    targets,
	}), nil
}

func (s *CaseService) AddEvidence(rec domain.EvidenceRecord) (domain.Atom, error) {
	if err := s.check(rec); err != nil {
		return domain.Atom{}, err
	}
	md, err := metadataFrom(rec.Metadata)
	if err != nil {
		return domain.Atom{}, err
	}
	if len(rec.References) > 0 {
		md.References = append([]string{}, rec.References...)
	}
	if rec.Description != "" {
		md.Description = rec.Description
	}
	if rec.SourceFile != "" {
		md.SourceFile = rec.SourceFile
	}
	return s.store(domain.Atom{
		ID:         rec.ID,
		Type:       domain.AtomEvidence,
		Name:       rec.Name,
		TruthValue: truthValue(rec.Confidence),
		Metadata:   md,
	}), nil
}

// ImportResult counts the records taken from a case file.
type ImportResult struct {
	Entities      int `json:"entities"`
	Events        int `json:"events"`
	Relationships int `json:"relationships"`
	Evidence      int `json:"evidence"`
}

// ImportCase validates a whole case file before adding any of it.
func (s *CaseService) ImportCase(cf domain.CaseFile) (ImportResult, error) {
	var res ImportResult
	if cf.CaseID != s.caseID {
		return res, fmt.Errorf("%w: file is for %q, service holds %q", ErrCaseMismatch, cf.CaseID, s.caseID)
	}
	if err := s.check(cf); err != nil {
		return res, err
	}
	for _, rec := range cf.Entities {
		if _, err := s.AddEntity(rec); err != nil {
			return res, err
		}
		res.Entities++
	}
	for _, rec := range cf.Events {
		if _, err := s.AddEvent(rec); err != nil {
			return res, err
		}
		res.Events++
	}
	for _, rec := range cf.Relationships {
		if _, err := s.AddRelationship(rec); err != nil {
			return res, err
		}
		res.Relationships++
	}
	for _, rec := range cf.Evidence {
		if _, err := s.AddEvidence(rec); err != nil {
			return res, err
		}
		res.Evidence++
	}
	s.logger.Info("case file imported",
		zap.Int("entities", res.Entities),
		zap.Int("events", res.Events),
		zap.Int("relationships", res.Relationships),
		zap.Int("evidence", res.Evidence),
	)
	return res, nil
}

// AtomFilter narrows the Query* methods. Nil and empty fields do not filter.
type AtomFilter struct {
	MinConfidence *float64
	Metadata      map[string]string
}

func (s *CaseService) queryType(t domain.AtomType, f AtomFilter) []domain.Atom {
	out := s.space.Query(atomspace.Filter{Type: &t, MinConfidence: f.MinConfidence, Metadata: f.Metadata})
	if out == nil {
		out = []domain.Atom{}
	}
	return out
}

func (s *CaseService) QueryEntities(f AtomFilter) []domain.Atom {
	return s.queryType(domain.AtomEntity, f)
}

func (s *CaseService) QueryEvents(f AtomFilter) []domain.Atom {
	return s.queryType(domain.AtomEvent, f)
}

func (s *CaseService) QueryRelationships(f AtomFilter) []domain.Atom {
	return s.queryType(domain.AtomRelationship, f)
}

func (s *CaseService) QueryEvidence(f AtomFilter) []domain.Atom {
	return s.queryType(domain.AtomEvidence, f)
}

// Atom returns a single atom by id.
func (s *CaseService) Atom(id string) (domain.Atom, bool) {
	return s.space.Get(id)
}

func (s *CaseService) QueryHGNNQL(query string) hgnnql.Result {
	res := s.query.Execute(query)
	metrics.ObserveQuery(res.Command, res.OK())
	return res
}

// RunInference forward-chains until fixpoint or maxIterations; <= 0 uses the
// configured cap.
func (s *CaseService) RunInference(maxIterations int) inference.ChainResult {
	start := time.Now()
	res := s.engine.ForwardChain(maxIterations)
	metrics.ObserveInference(start, res.ReachedFixpoint, res.RuleFirings)
	return res
}

func (s *CaseService) Rules() []domain.RuleInfo {
	return s.engine.Rules()
}

// LoadRules registers extra YAML rules on this case's engine.
func (s *CaseService) LoadRules(data []byte) (int, error) {
	return s.engine.LoadRules(data)
}

func (s *CaseService) DetectPatterns() []domain.DetectedPattern {
	return s.engine.DetectPatterns()
}

func (s *CaseService) GenerateHypotheses(evidenceIDs []string) []domain.Hypothesis {
	return s.engine.GenerateHypotheses(evidenceIDs)
}

// TrainingReport pairs a training run with the introspection that follows it.
type TrainingReport struct {
	Training      trainer.TrainingSummary     `json:"training"`
	Introspection trainer.IntrospectionReport `json:"introspection"`
}

func (s *CaseService) TrainIntrospection() TrainingReport {
	summary := s.trainer.Train()
	byPriority := map[domain.LeadPriority]int{}
	for _, l := range s.trainer.Leads() {
		byPriority[l.Priority]++
	}
	for _, p := range []domain.LeadPriority{domain.PriorityLow, domain.PriorityMedium, domain.PriorityHigh, domain.PriorityCritical} {
		metrics.LeadsGenerated.WithLabelValues(string(p)).Set(float64(byPriority[p]))
	}
	return TrainingReport{Training: summary, Introspection: s.trainer.Introspect()}
}

func (s *CaseService) Leads() []domain.InvestigationLead {
	return s.trainer.Leads()
}

func (s *CaseService) Reason(ctx context.Context, question string) caselm.Answer {
	return s.llm.ReasonAboutCase(ctx, question)
}

func (s *CaseService) Similar(ctx context.Context, atomID string, k int) []caselm.Neighbor {
	return s.llm.MostSimilar(ctx, atomID, k)
}
