package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/caseworks-io/dedup-engine/pkg/apperrors"
	"github.com/caseworks-io/dedup-engine/pkg/config"
	"github.com/caseworks-io/dedup-engine/pkg/database"
	"github.com/caseworks-io/dedup-engine/pkg/logging"
	"github.com/caseworks-io/dedup-engine/pkg/models"
	"github.com/caseworks-io/dedup-engine/pkg/repositories"
)

// DeduplicationService finds previously created cases that plausibly refer
// to the same person and records which decision an operator made about them.
// It is advisory: it proposes ranked candidates and audits the outcome, it
// never decides by itself whether two records are the same person.
//
// Two concurrent case creations can each search before either case exists,
// both see no duplicate, and both proceed with CREATE_NEW. That race is
// inherent to the advisory contract; closing it would need a uniqueness
// constraint on normalized identity fields, which this service does not own.
type DeduplicationService interface {
	// FindDuplicates searches for candidate duplicates of the supplied
	// identity criteria and returns them ranked by confidence.
	FindDuplicates(ctx context.Context, criteria models.DeduplicationCriteria) (*models.DeduplicationResult, error)

	// RecordDecision persists the operator's decision together with the
	// criteria and candidate set that were shown, and stamps the subject
	// case. The audit entry and the stamp are applied in one transaction.
	RecordDecision(ctx context.Context, decision models.DeduplicationDecision, criteria models.DeduplicationCriteria, matches []models.ScoredMatch, performedBy string) (*models.DedupAuditEntry, error)

	// History returns prior audit entries for a case, newest first. A case
	// that was never deduplication-checked yields an empty slice.
	History(ctx context.Context, caseID uuid.UUID) ([]*models.DedupAuditEntry, error)
}

type dedupService struct {
	caseRepo  repositories.CaseRepository
	auditRepo repositories.DedupAuditRepository
	db        database.TxBeginner
	scorer    matchScorer
	maxCands  int
	logger    *zap.Logger
}

// NewDeduplicationService creates a new DeduplicationService.
func NewDeduplicationService(
	caseRepo repositories.CaseRepository,
	auditRepo repositories.DedupAuditRepository,
	db database.TxBeginner,
	cfg *config.Config,
	logger *zap.Logger,
) DeduplicationService {
	return &dedupService{
		caseRepo:  caseRepo,
		auditRepo: auditRepo,
		db:        db,
		scorer:    matchScorer{nameThreshold: cfg.Dedup.NameSimilarityThreshold},
		maxCands:  cfg.Dedup.MaxCandidates,
		logger:    logger.Named("dedup-service"),
	}
}

var _ DeduplicationService = (*dedupService)(nil)

func (s *dedupService) FindDuplicates(ctx context.Context, criteria models.DeduplicationCriteria) (*models.DeduplicationResult, error) {
	normalized := criteria.Normalized()
	if normalized.IsEmpty() {
		return nil, apperrors.ErrInvalidCriteria
	}

	candidates, err := s.caseRepo.SearchCandidates(ctx, normalized, s.maxCands)
	if err != nil {
		s.logger.Error("Candidate search failed",
			append(logging.CriteriaFields(normalized), zap.Error(err))...)
		return nil, fmt.Errorf("%w: %v", apperrors.ErrSearchFailed, err)
	}

	matches := []models.ScoredMatch{}
	for _, candidate := range candidates {
		if !s.scorer.includes(normalized, *candidate) {
			// Row only cleared the loose SQL name prefilter.
			continue
		}
		matches = append(matches, s.scorer.score(normalized, *candidate))
	}
	rank(matches)

	s.logger.Debug("Duplicate search completed",
		append(logging.CriteriaFields(normalized), zap.Int("matches", len(matches)))...)

	return &models.DeduplicationResult{
		Matches:      matches,
		Criteria:     criteria,
		TotalMatches: len(matches),
	}, nil
}

func (s *dedupService) RecordDecision(ctx context.Context, decision models.DeduplicationDecision, criteria models.DeduplicationCriteria, matches []models.ScoredMatch, performedBy string) (*models.DedupAuditEntry, error) {
	if strings.TrimSpace(decision.Rationale) == "" {
		return nil, apperrors.ErrMissingRationale
	}
	if !decision.Decision.Valid() {
		return nil, fmt.Errorf("unknown decision type %q", decision.Decision)
	}
	if decision.Decision.RequiresSelection() {
		if decision.SelectedExistingCaseID == nil {
			return nil, apperrors.ErrInvalidSelection
		}
		if !containsCaseID(matches, *decision.SelectedExistingCaseID) {
			return nil, apperrors.ErrInvalidSelection
		}
	}

	entry := &models.DedupAuditEntry{
		CaseID:                 decision.CaseID,
		SearchCriteriaSnapshot: criteria,
		CandidatesSnapshot:     matches,
		Decision:               decision.Decision,
		Rationale:              decision.Rationale,
		PerformedBy:            performedBy,
		PerformedAt:            time.Now(),
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrRecordFailed, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.auditRepo.Create(ctx, tx, entry); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrRecordFailed, err)
	}

	if err := s.caseRepo.StampDeduplication(ctx, tx, decision.CaseID, decision.Decision, decision.Rationale, entry.PerformedAt); err != nil {
		// Rollback undoes the audit insert, so this is a clean failure,
		// not a partial one.
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", apperrors.ErrRecordFailed, err)
	}

	if err := tx.Commit(ctx); err != nil {
		// The commit outcome is unknown: the audit entry and stamp may or
		// may not be durable. Surface this distinctly so callers reconcile
		// instead of retrying into a duplicate audit entry.
		s.logger.Error("Decision commit outcome indeterminate",
			zap.String("case_id", decision.CaseID.String()),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", apperrors.ErrPartialFailure, err)
	}

	s.logger.Info("Deduplication decision recorded",
		zap.String("case_id", decision.CaseID.String()),
		zap.String("decision", string(decision.Decision)),
		zap.String("performed_by", performedBy),
		zap.Int("candidates_shown", len(matches)))

	return entry, nil
}

func (s *dedupService) History(ctx context.Context, caseID uuid.UUID) ([]*models.DedupAuditEntry, error) {
	entries, err := s.auditRepo.ListByCase(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to read dedup history: %w", err)
	}
	return entries, nil
}

func containsCaseID(matches []models.ScoredMatch, id uuid.UUID) bool {
	for _, m := range matches {
		if m.ID == id {
			return true
		}
	}
	return false
}
