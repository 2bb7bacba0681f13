package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/Harshitk-cp/hyperholmes/internal/domain"
	"github.com/Harshitk-cp/hyperholmes/internal/service"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CaseHandler serves case lifecycle, record ingestion and atom queries.
type CaseHandler struct {
	registry *service.CaseRegistry
	logger   *zap.Logger
}

func NewCaseHandler(registry *service.CaseRegistry, logger *zap.Logger) *CaseHandler {
	return &CaseHandler{registry: registry, logger: logger}
}

// with runs fn on the case named in the URL, writing any error.
func with(w http.ResponseWriter, r *http.Request, reg *service.CaseRegistry, create bool, fn func(*service.CaseService) error) {
	caseID := chi.URLParam(r, "caseID")
	if err := reg.With(r.Context(), caseID, create, fn); err != nil {
		writeServiceError(w, err)
	}
}

type createCaseRequest struct {
	CaseID string `json:"case_id"`
}

func (h *CaseHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createCaseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.CaseID == "" {
		writeError(w, http.StatusBadRequest, "case_id is required")
		return
	}
	svc, err := h.registry.Open(r.Context(), req.CaseID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"case_id": svc.CaseID()})
}

type listCasesResponse struct {
	Open      []string `json:"open"`
	Persisted []string `json:"persisted"`
}

func (h *CaseHandler) List(w http.ResponseWriter, r *http.Request) {
	resp := listCasesResponse{Open: h.registry.List(), Persisted: []string{}}
	if st := h.registry.Store(); st != nil {
		persisted, err := st.ListCases(r.Context())
		if err != nil {
			h.logger.Error("failed to list persisted cases", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to list cases")
			return
		}
		if persisted != nil {
			resp.Persisted = persisted
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *CaseHandler) Close(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Close(chi.URLParam(r, "caseID")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CaseHandler) Import(w http.ResponseWriter, r *http.Request) {
	var cf domain.CaseFile
	if !decodeJSON(w, r, &cf) {
		return
	}
	with(w, r, h.registry, true, func(svc *service.CaseService) error {
		res, err := svc.ImportCase(cf)
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusCreated, res)
		return nil
	})
}

// addRecord decodes one record of type T and stores it through add.
func addRecord[T any](h *CaseHandler, add func(*service.CaseService, T) (domain.Atom, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var rec T
		if !decodeJSON(w, r, &rec) {
			return
		}
		with(w, r, h.registry, true, func(svc *service.CaseService) error {
			atom, err := add(svc, rec)
			if err != nil {
				return err
			}
			writeJSON(w, http.StatusCreated, atom)
			return nil
		})
	}
}

func (h *CaseHandler) AddEntity() http.HandlerFunc {
	return addRecord(h, (*service.CaseService).AddEntity)
}

func (h *CaseHandler) AddEvent() http.HandlerFunc {
	return addRecord(h, (*service.CaseService).AddEvent)
}

func (h *CaseHandler) AddRelationship() http.HandlerFunc {
	return addRecord(h, (*service.CaseService).AddRelationship)
}

func (h *CaseHandler) AddEvidence() http.HandlerFunc {
	return addRecord(h, (*service.CaseService).AddEvidence)
}

// parseFilter reads ?min_confidence=0.5 and any number of ?meta.<key>=<value>.
func parseFilter(r *http.Request) (service.AtomFilter, error) {
	var f service.AtomFilter
	q := r.URL.Query()
	if v := q.Get("min_confidence"); v != "" {
		c, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return f, errors.New("invalid min_confidence")
		}
		f.MinConfidence = &c
	}
	for key, values := range q {
		name, ok := strings.CutPrefix(key, "meta.")
		if !ok || name == "" || len(values) == 0 {
			continue
		}
		if f.Metadata == nil {
			f.Metadata = map[string]string{}
		}
		f.Metadata[name] = values[0]
	}
	return f, nil
}

func (h *CaseHandler) listAtoms(query func(*service.CaseService, service.AtomFilter) []domain.Atom) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := parseFilter(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		with(w, r, h.registry, false, func(svc *service.CaseService) error {
			atoms := query(svc, f)
			writeJSON(w, http.StatusOK, map[string]any{"count": len(atoms), "atoms": atoms})
			return nil
		})
	}
}

func (h *CaseHandler) ListEntities() http.HandlerFunc {
	return h.listAtoms((*service.CaseService).QueryEntities)
}

func (h *CaseHandler) ListEvents() http.HandlerFunc {
	return h.listAtoms((*service.CaseService).QueryEvents)
}

func (h *CaseHandler) ListRelationships() http.HandlerFunc {
	return h.listAtoms((*service.CaseService).QueryRelationships)
}

func (h *CaseHandler) ListEvidence() http.HandlerFunc {
	return h.listAtoms((*service.CaseService).QueryEvidence)
}

func (h *CaseHandler) GetAtom(w http.ResponseWriter, r *http.Request) {
	atomID := chi.URLParam(r, "atomID")
	with(w, r, h.registry, false, func(svc *service.CaseService) error {
		atom, ok := svc.Atom(atomID)
		if !ok {
			writeError(w, http.StatusNotFound, "atom not found")
			return nil
		}
		writeJSON(w, http.StatusOK, atom)
		return nil
	})
}

type queryRequest struct {
	Query string `json:"query"`
}

// Query runs one HGNNQL command. Malformed commands still answer 200 with
// an error field, matching the query engine's contract.
func (h *CaseHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	with(w, r, h.registry, false, func(svc *service.CaseService) error {
		writeJSON(w, http.StatusOK, svc.QueryHGNNQL(req.Query))
		return nil
	})
}
