package handlers

import (
	"context"

	"github.com/google/uuid"

	"github.com/caseworks-io/dedup-engine/pkg/models"
)

// mockDedupService is a configurable mock for all handler tests.
type mockDedupService struct {
	result  *models.DeduplicationResult
	entry   *models.DedupAuditEntry
	history []*models.DedupAuditEntry
	err     error

	lastCriteria    models.DeduplicationCriteria
	lastDecision    models.DeduplicationDecision
	lastMatches     []models.ScoredMatch
	lastPerformedBy string
}

func (m *mockDedupService) FindDuplicates(ctx context.Context, criteria models.DeduplicationCriteria) (*models.DeduplicationResult, error) {
	m.lastCriteria = criteria
	if m.err != nil {
		return nil, m.err
	}
	if m.result != nil {
		return m.result, nil
	}
	return &models.DeduplicationResult{
		Matches:      []models.ScoredMatch{},
		Criteria:     criteria,
		TotalMatches: 0,
	}, nil
}

func (m *mockDedupService) RecordDecision(ctx context.Context, decision models.DeduplicationDecision, criteria models.DeduplicationCriteria, matches []models.ScoredMatch, performedBy string) (*models.DedupAuditEntry, error) {
	m.lastDecision = decision
	m.lastCriteria = criteria
	m.lastMatches = matches
	m.lastPerformedBy = performedBy
	if m.err != nil {
		return nil, m.err
	}
	if m.entry != nil {
		return m.entry, nil
	}
	return &models.DedupAuditEntry{
		ID:       uuid.New(),
		CaseID:   decision.CaseID,
		Decision: decision.Decision,
	}, nil
}

func (m *mockDedupService) History(ctx context.Context, caseID uuid.UUID) ([]*models.DedupAuditEntry, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.history != nil {
		return m.history, nil
	}
	return []*models.DedupAuditEntry{}, nil
}
