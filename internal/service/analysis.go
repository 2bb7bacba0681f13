package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Harshitk-cp/hyperholmes/internal/buildconfig"
	"github.com/Harshitk-cp/hyperholmes/internal/domain"
	"github.com/Harshitk-cp/hyperholmes/internal/inference"
	"github.com/Harshitk-cp/hyperholmes/internal/metrics"
	"github.com/Harshitk-cp/hyperholmes/internal/store"
	"github.com/Harshitk-cp/hyperholmes/internal/trainer"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const topLeadsInReport = 10

type AnalysisSummary struct {
	TotalAtoms       int `json:"total_atoms"`
	Inferences       int `json:"inferences"`
	PatternsDetected int `json:"patterns_detected"`
	PatternsLearned  int `json:"patterns_learned"`
	LeadsGenerated   int `json:"leads_generated"`
	CriticalLeads    int `json:"critical_leads"`
	KnowledgeGaps    int `json:"knowledge_gaps"`
}

// AnalysisReport is the output of one full pipeline run.
type AnalysisReport struct {
	CaseID        string                      `json:"case_id"`
	GeneratedAt   time.Time                   `json:"generated_at"`
	Inference     inference.ChainResult       `json:"inference"`
	Patterns      []domain.DetectedPattern    `json:"patterns"`
	Hypotheses    []domain.Hypothesis         `json:"hypotheses"`
	Training      trainer.TrainingSummary     `json:"training"`
	TopLeads      []domain.InvestigationLead  `json:"top_leads"`
	Introspection trainer.IntrospectionReport `json:"introspection"`
	Summary       AnalysisSummary             `json:"summary"`
}

// RunCompleteAnalysis runs inference, pattern detection, hypothesis generation
// over all evidence, training and introspection, in that order. A second run
// over an unchanged case derives nothing new.
func (s *CaseService) RunCompleteAnalysis() AnalysisReport {
	s.logger.Info("starting complete analysis", zap.Int("atoms", s.space.Len()))
	metrics.AnalysisRuns.Inc()

	chain := s.RunInference(0)
	patterns := s.DetectPatterns()

	var evidenceIDs []string
	for _, a := range s.space.ByType(domain.AtomEvidence) {
		evidenceIDs = append(evidenceIDs, a.ID)
	}
	hypotheses := s.GenerateHypotheses(evidenceIDs)
	if hypotheses == nil {
		hypotheses = []domain.Hypothesis{}
	}

	training := s.TrainIntrospection()
	top := s.trainer.TopLeads(topLeadsInReport)

	critical := 0
	for _, l := range s.trainer.Leads() {
		if l.Priority == domain.PriorityCritical {
			critical++
		}
	}

	report := AnalysisReport{
		CaseID:        s.caseID,
		GeneratedAt:   s.now().UTC(),
		Inference:     chain,
		Patterns:      patterns,
		Hypotheses:    hypotheses,
		Training:      training.Training,
		TopLeads:      top,
		Introspection: training.Introspection,
		Summary: AnalysisSummary{
			TotalAtoms:       s.space.Len(),
			Inferences:       chain.TotalInferences,
			PatternsDetected: len(patterns),
			PatternsLearned:  training.Training.PatternsLearned,
			LeadsGenerated:   training.Training.LeadsGenerated,
			CriticalLeads:    critical,
			KnowledgeGaps:    len(training.Introspection.KnowledgeGaps),
		},
	}

	s.logger.Info("complete analysis finished",
		zap.Int("inferences", report.Summary.Inferences),
		zap.Int("patterns_detected", report.Summary.PatternsDetected),
		zap.Int("leads", report.Summary.LeadsGenerated),
		zap.Int("critical_leads", critical),
	)
	return report
}

type ExportStatistics struct {
	TotalAtoms      int                     `json:"total_atoms"`
	ByType          map[domain.AtomType]int `json:"by_type"`
	TotalLinks      int                     `json:"total_links"`
	DanglingTargets []string                `json:"dangling_targets"`
}

// ExportDocument is the JSON interchange form of a knowledge base.
type ExportDocument struct {
	CaseID     string           `json:"case_id"`
	ExportedAt time.Time        `json:"exported_at"`
	Atoms      []domain.Atom    `json:"atoms"`
	Statistics ExportStatistics `json:"statistics"`
}

func (s *CaseService) Export() ExportDocument {
	atoms := s.space.All()
	if atoms == nil {
		atoms = []domain.Atom{}
	}
	dangling := s.space.DanglingTargets()
	if dangling == nil {
		dangling = []string{}
	}
	return ExportDocument{
		CaseID:     s.caseID,
		ExportedAt: s.now().UTC(),
		Atoms:      atoms,
		Statistics: ExportStatistics{
			TotalAtoms:      s.space.Len(),
			ByType:          s.space.CountByType(),
			TotalLinks:      len(s.space.Links()),
			DanglingTargets: dangling,
		},
	}
}

// ExportKnowledgeBase writes the export document to path, creating parent
// directories as needed.
func (s *CaseService) ExportKnowledgeBase(path string) (ExportDocument, error) {
	doc := s.Export()
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return doc, fmt.Errorf("encode export: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return doc, fmt.Errorf("create export dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return doc, fmt.Errorf("write export: %w", err)
	}
	s.logger.Info("knowledge base exported", zap.String("path", path), zap.Int("atoms", doc.Statistics.TotalAtoms))
	return doc, nil
}

type AtomSpaceStatus struct {
	TotalAtoms int                     `json:"total_atoms"`
	TotalLinks int                     `json:"total_links"`
	ByType     map[domain.AtomType]int `json:"by_type"`
}

type InferenceStatus struct {
	TotalRules      int            `json:"total_rules"`
	TotalInferences int            `json:"total_inferences"`
	Runs            int            `json:"runs"`
	RuleFirings     map[string]int `json:"rule_firings"`
}

type TrainerStatus struct {
	Trained         bool `json:"trained"`
	PatternsLearned int  `json:"patterns_learned"`
	LeadsGenerated  int  `json:"leads_generated"`
}

type LLMStatus struct {
	EmbeddingDimension int `json:"embedding_dim"`
}

// SystemStatus reports per-component counters without changing any state.
type SystemStatus struct {
	CaseID          string            `json:"case_id"`
	Build           map[string]string `json:"build"`
	AtomSpace       AtomSpaceStatus   `json:"atomspace"`
	InferenceEngine InferenceStatus   `json:"inference_engine"`
	Trainer         TrainerStatus     `json:"trainer"`
	LLM             LLMStatus         `json:"llm"`
}

func (s *CaseService) GetSystemStatus() SystemStatus {
	stats := s.engine.Stats()
	return SystemStatus{
		CaseID: s.caseID,
		Build:  buildconfig.VersionInfo(),
		AtomSpace: AtomSpaceStatus{
			TotalAtoms: s.space.Len(),
			TotalLinks: len(s.space.Links()),
			ByType:     s.space.CountByType(),
		},
		InferenceEngine: InferenceStatus{
			TotalRules:      stats.TotalRules,
			TotalInferences: stats.TotalInferences,
			Runs:            stats.Runs,
			RuleFirings:     stats.RuleFirings,
		},
		Trainer: TrainerStatus{
			Trained:         s.trainer.Trained(),
			PatternsLearned: len(s.trainer.Patterns()),
			LeadsGenerated:  len(s.trainer.Leads()),
		},
		LLM: LLMStatus{EmbeddingDimension: s.llm.Dimension()},
	}
}

// Snapshot captures every atom together with its embedding.
func (s *CaseService) Snapshot(ctx context.Context) *domain.Snapshot {
	atoms := s.space.All()
	embeddings := make(map[string][]float32, len(atoms))
	for _, a := range atoms {
		embeddings[a.ID] = s.llm.EmbedAtom(ctx, a)
	}
	return &domain.Snapshot{
		ID:         uuid.New(),
		CaseID:     s.caseID,
		CreatedAt:  s.now().UTC(),
		Atoms:      atoms,
		Embeddings: embeddings,
	}
}

func (s *CaseService) Persist(ctx context.Context, st domain.SnapshotStore) error {
	snap := s.Snapshot(ctx)
	if err := st.Save(ctx, snap); err != nil {
		return fmt.Errorf("persist case %s: %w", s.caseID, err)
	}
	s.logger.Info("case persisted", zap.String("snapshot_id", snap.ID.String()), zap.Int("atoms", len(snap.Atoms)))
	return nil
}

// Restore loads the latest snapshot of this case into the AtomSpace. Atoms
// already present with the same id are overwritten. It reports false when the
// store holds no snapshot for the case.
func (s *CaseService) Restore(ctx context.Context, st domain.SnapshotStore) (bool, error) {
	snap, err := st.Load(ctx, s.caseID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("restore case %s: %w", s.caseID, err)
	}
	for _, a := range snap.Atoms {
		s.space.AddAtom(a)
	}
	s.logger.Info("case restored", zap.String("snapshot_id", snap.ID.String()), zap.Int("atoms", len(snap.Atoms)))
	return true, nil
}

// ErrSearchUnsupported is returned when the snapshot store cannot rank atoms.
var ErrSearchUnsupported = errors.New("snapshot store does not support similarity search")

// SearchPersisted ranks the atoms of the case's latest persisted snapshot by
// similarity to text.
func (s *CaseService) SearchPersisted(ctx context.Context, st domain.SnapshotStore, text string, k int) ([]domain.ScoredAtom, error) {
	searcher, ok := st.(domain.SimilaritySearcher)
	if !ok {
		return nil, ErrSearchUnsupported
	}
	vec, err := s.llm.EmbedText(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	out, err := searcher.SimilarAtoms(ctx, s.caseID, vec, k)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.ScoredAtom{}
	}
	return out, nil
}
