package handlers

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Harshitk-cp/hyperholmes/internal/service"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	defaultSimilarK = 5
	maxSimilarK     = 100
)

// AnalysisHandler serves inference, training, reasoning and export.
type AnalysisHandler struct {
	registry  *service.CaseRegistry
	exportDir string
	logger    *zap.Logger
}

func NewAnalysisHandler(registry *service.CaseRegistry, exportDir string, logger *zap.Logger) *AnalysisHandler {
	return &AnalysisHandler{registry: registry, exportDir: exportDir, logger: logger}
}

type inferenceRequest struct {
	MaxIterations int `json:"max_iterations"`
}

func (h *AnalysisHandler) RunInference(w http.ResponseWriter, r *http.Request) {
	var req inferenceRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	with(w, r, h.registry, false, func(svc *service.CaseService) error {
		writeJSON(w, http.StatusOK, svc.RunInference(req.MaxIterations))
		return nil
	})
}

func (h *AnalysisHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	with(w, r, h.registry, false, func(svc *service.CaseService) error {
		writeJSON(w, http.StatusOK, map[string]any{"rules": svc.Rules()})
		return nil
	})
}

// LoadRules accepts a YAML rule file body. Valid rules are registered even
// when others in the file are rejected.
func (h *AnalysisHandler) LoadRules(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	with(w, r, h.registry, false, func(svc *service.CaseService) error {
		n, err := svc.LoadRules(data)
		resp := map[string]any{"loaded": n}
		status := http.StatusOK
		if err != nil {
			resp["error"] = err.Error()
			if n == 0 {
				status = http.StatusBadRequest
			}
		}
		writeJSON(w, status, resp)
		return nil
	})
}

func (h *AnalysisHandler) DetectPatterns(w http.ResponseWriter, r *http.Request) {
	with(w, r, h.registry, false, func(svc *service.CaseService) error {
		patterns := svc.DetectPatterns()
		writeJSON(w, http.StatusOK, map[string]any{"count": len(patterns), "patterns": patterns})
		return nil
	})
}

type hypothesesRequest struct {
	EvidenceIDs []string `json:"evidence_ids"`
}

func (h *AnalysisHandler) GenerateHypotheses(w http.ResponseWriter, r *http.Request) {
	var req hypothesesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	with(w, r, h.registry, false, func(svc *service.CaseService) error {
		hyps := svc.GenerateHypotheses(req.EvidenceIDs)
		if hyps == nil {
			writeJSON(w, http.StatusOK, map[string]any{"count": 0, "hypotheses": []any{}})
			return nil
		}
		writeJSON(w, http.StatusOK, map[string]any{"count": len(hyps), "hypotheses": hyps})
		return nil
	})
}

func (h *AnalysisHandler) Train(w http.ResponseWriter, r *http.Request) {
	with(w, r, h.registry, false, func(svc *service.CaseService) error {
		writeJSON(w, http.StatusOK, svc.TrainIntrospection())
		return nil
	})
}

func (h *AnalysisHandler) Leads(w http.ResponseWriter, r *http.Request) {
	with(w, r, h.registry, false, func(svc *service.CaseService) error {
		leads := svc.Leads()
		writeJSON(w, http.StatusOK, map[string]any{"count": len(leads), "leads": leads})
		return nil
	})
}

func (h *AnalysisHandler) RunAnalysis(w http.ResponseWriter, r *http.Request) {
	with(w, r, h.registry, false, func(svc *service.CaseService) error {
		writeJSON(w, http.StatusOK, svc.RunCompleteAnalysis())
		return nil
	})
}

type reasonRequest struct {
	Question string `json:"question"`
}

func (h *AnalysisHandler) Reason(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}
	with(w, r, h.registry, false, func(svc *service.CaseService) error {
		writeJSON(w, http.StatusOK, svc.Reason(r.Context(), req.Question))
		return nil
	})
}

func parseK(r *http.Request) (int, error) {
	v := r.URL.Query().Get("k")
	if v == "" {
		return defaultSimilarK, nil
	}
	k, err := strconv.Atoi(v)
	if err != nil || k <= 0 || k > maxSimilarK {
		return 0, fmt.Errorf("k must be between 1 and %d", maxSimilarK)
	}
	return k, nil
}

func (h *AnalysisHandler) Similar(w http.ResponseWriter, r *http.Request) {
	k, err := parseK(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	atomID := chi.URLParam(r, "atomID")
	with(w, r, h.registry, false, func(svc *service.CaseService) error {
		if _, ok := svc.Atom(atomID); !ok {
			writeError(w, http.StatusNotFound, "atom not found")
			return nil
		}
		writeJSON(w, http.StatusOK, map[string]any{"atom_id": atomID, "neighbors": svc.Similar(r.Context(), atomID, k)})
		return nil
	})
}

// Search ranks atoms of the latest persisted snapshot against ?q=.
func (h *AnalysisHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	k, err := parseK(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	st := h.registry.Store()
	if st == nil {
		writeError(w, http.StatusNotImplemented, "no snapshot store configured")
		return
	}
	with(w, r, h.registry, false, func(svc *service.CaseService) error {
		hits, err := svc.SearchPersisted(r.Context(), st, q, k)
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, map[string]any{"query": q, "results": hits})
		return nil
	})
}

func (h *AnalysisHandler) Persist(w http.ResponseWriter, r *http.Request) {
	st := h.registry.Store()
	if st == nil {
		writeError(w, http.StatusNotImplemented, "no snapshot store configured")
		return
	}
	with(w, r, h.registry, false, func(svc *service.CaseService) error {
		if err := svc.Persist(r.Context(), st); err != nil {
			h.logger.Error("failed to persist case", zap.String("case_id", svc.CaseID()), zap.Error(err))
			return err
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "persisted"})
		return nil
	})
}

func (h *AnalysisHandler) Export(w http.ResponseWriter, r *http.Request) {
	with(w, r, h.registry, false, func(svc *service.CaseService) error {
		writeJSON(w, http.StatusOK, svc.Export())
		return nil
	})
}

// ExportToFile writes the export under the configured export directory.
func (h *AnalysisHandler) ExportToFile(w http.ResponseWriter, r *http.Request) {
	with(w, r, h.registry, false, func(svc *service.CaseService) error {
		name := fmt.Sprintf("%s-%s.json", filepath.Base(svc.CaseID()), time.Now().UTC().Format("20060102T150405Z"))
		path := filepath.Join(h.exportDir, name)
		doc, err := svc.ExportKnowledgeBase(path)
		if err != nil {
			h.logger.Error("failed to export knowledge base", zap.String("case_id", svc.CaseID()), zap.Error(err))
			return err
		}
		writeJSON(w, http.StatusCreated, map[string]any{"path": path, "statistics": doc.Statistics})
		return nil
	})
}

func (h *AnalysisHandler) Status(w http.ResponseWriter, r *http.Request) {
	with(w, r, h.registry, false, func(svc *service.CaseService) error {
		writeJSON(w, http.StatusOK, svc.GetSystemStatus())
		return nil
	})
}
