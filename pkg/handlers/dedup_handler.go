package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/caseworks-io/dedup-engine/pkg/apperrors"
	"github.com/caseworks-io/dedup-engine/pkg/models"
	"github.com/caseworks-io/dedup-engine/pkg/services"
)

// DecisionRequest is the wire form of a decision submission. Because the
// engine is stateless between calls, the request carries the search snapshot
// (criteria and candidates as shown) that the audit entry must freeze.
type DecisionRequest struct {
	CaseID                 string                       `json:"caseId"`
	Decision               models.DecisionType          `json:"decision"`
	Rationale              string                       `json:"rationale"`
	SelectedExistingCaseID string                       `json:"selectedExistingCaseId,omitempty"`
	SearchCriteria         models.DeduplicationCriteria `json:"searchCriteria"`
	Candidates             []models.ScoredMatch         `json:"candidates"`
}

// DecisionResponse acknowledges a recorded decision.
type DecisionResponse struct {
	Status  string    `json:"status"`
	EntryID uuid.UUID `json:"entryId"`
	CaseID  uuid.UUID `json:"caseId"`
}

// HistoryResponse wraps a case's audit trail.
type HistoryResponse struct {
	CaseID  uuid.UUID                 `json:"caseId"`
	Entries []*models.DedupAuditEntry `json:"entries"`
}

// DedupHandler handles deduplication HTTP requests.
type DedupHandler struct {
	dedupService services.DeduplicationService
	logger       *zap.Logger
}

// NewDedupHandler creates a new deduplication handler.
func NewDedupHandler(dedupService services.DeduplicationService, logger *zap.Logger) *DedupHandler {
	return &DedupHandler{
		dedupService: dedupService,
		logger:       logger.Named("dedup-handler"),
	}
}

// RegisterRoutes registers the deduplication routes on the given mux.
func (h *DedupHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/cases/dedup/search", h.Search)
	mux.HandleFunc("POST /api/cases/dedup/decision", h.RecordDecision)
	mux.HandleFunc("GET /api/cases/{caseID}/dedup/history", h.History)
}

// Search handles POST /api/cases/dedup/search.
// The body is a flat criteria object; unrecognized fields are ignored.
func (h *DedupHandler) Search(w http.ResponseWriter, r *http.Request) {
	var criteria models.DeduplicationCriteria
	if err := json.NewDecoder(r.Body).Decode(&criteria); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Request body must be a JSON criteria object")
		return
	}

	result, err := h.dedupService.FindDuplicates(r.Context(), criteria)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrInvalidCriteria):
			h.writeError(w, http.StatusBadRequest, "invalid_criteria", "At least one search field is required")
		case errors.Is(err, apperrors.ErrSearchFailed):
			h.logger.Error("Duplicate search failed", zap.Error(err))
			h.writeError(w, http.StatusInternalServerError, "search_failed", "Candidate search failed")
		default:
			h.logger.Error("Unexpected search error", zap.Error(err))
			h.writeError(w, http.StatusInternalServerError, "internal_error", "Duplicate search failed")
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// RecordDecision handles POST /api/cases/dedup/decision.
// The actor comes from the X-Performed-By header; authentication itself is
// the surrounding gateway's concern.
func (h *DedupHandler) RecordDecision(w http.ResponseWriter, r *http.Request) {
	var req DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Request body must be a JSON decision object")
		return
	}

	caseID, err := uuid.Parse(req.CaseID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_case_id", "caseId must be a valid UUID")
		return
	}
	if !req.Decision.Valid() {
		h.writeError(w, http.StatusBadRequest, "invalid_decision", "decision must be CREATE_NEW, USE_EXISTING, or MERGE_CASES")
		return
	}

	decision := models.DeduplicationDecision{
		CaseID:    caseID,
		Decision:  req.Decision,
		Rationale: req.Rationale,
	}
	if req.SelectedExistingCaseID != "" {
		selected, err := uuid.Parse(req.SelectedExistingCaseID)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_selection", "selectedExistingCaseId must be a valid UUID")
			return
		}
		decision.SelectedExistingCaseID = &selected
	}

	performedBy := r.Header.Get("X-Performed-By")
	if performedBy == "" {
		performedBy = "system"
	}

	entry, err := h.dedupService.RecordDecision(r.Context(), decision, req.SearchCriteria, req.Candidates, performedBy)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrMissingRationale):
			h.writeError(w, http.StatusBadRequest, "missing_rationale", "A rationale is required for every decision")
		case errors.Is(err, apperrors.ErrInvalidSelection):
			h.writeError(w, http.StatusUnprocessableEntity, "invalid_selection", "Selected case was not among the presented candidates")
		case errors.Is(err, apperrors.ErrNotFound):
			h.writeError(w, http.StatusNotFound, "case_not_found", "Case does not exist")
		case errors.Is(err, apperrors.ErrPartialFailure):
			h.logger.Error("Partial decision failure", zap.String("case_id", req.CaseID), zap.Error(err))
			h.writeError(w, http.StatusInternalServerError, "partial_failure", "Decision outcome indeterminate; do not retry, reconcile manually")
		case errors.Is(err, apperrors.ErrRecordFailed):
			h.logger.Error("Decision recording failed", zap.String("case_id", req.CaseID), zap.Error(err))
			h.writeError(w, http.StatusInternalServerError, "record_failed", "Failed to record decision")
		default:
			h.logger.Error("Unexpected decision error", zap.String("case_id", req.CaseID), zap.Error(err))
			h.writeError(w, http.StatusBadRequest, "invalid_decision", err.Error())
		}
		return
	}

	response := DecisionResponse{
		Status:  "recorded",
		EntryID: entry.ID,
		CaseID:  entry.CaseID,
	}
	if err := WriteJSON(w, http.StatusCreated, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// History handles GET /api/cases/{caseID}/dedup/history.
// A case with no recorded decisions yields an empty entries list.
func (h *DedupHandler) History(w http.ResponseWriter, r *http.Request) {
	caseID, err := uuid.Parse(r.PathValue("caseID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_case_id", "caseID must be a valid UUID")
		return
	}

	entries, err := h.dedupService.History(r.Context(), caseID)
	if err != nil {
		h.logger.Error("Failed to read dedup history", zap.String("case_id", caseID.String()), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "history_failed", "Failed to read deduplication history")
		return
	}

	response := HistoryResponse{
		CaseID:  caseID,
		Entries: entries,
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (h *DedupHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	if err := ErrorResponse(w, status, code, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}
