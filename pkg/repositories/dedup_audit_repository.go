package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/caseworks-io/dedup-engine/pkg/database"
	"github.com/caseworks-io/dedup-engine/pkg/models"
)

// DedupAuditRepository provides data access for the deduplication audit log.
// The log is append-only: entries are created exactly once per decision
// event and never updated or deleted.
type DedupAuditRepository interface {
	// Create inserts a new audit entry. Runs on the supplied querier so the
	// service can place it in the same transaction as the case stamp.
	Create(ctx context.Context, q database.Querier, entry *models.DedupAuditEntry) error

	// ListByCase returns all audit entries for a case, newest first.
	// A case with no entries yields an empty slice, not an error.
	ListByCase(ctx context.Context, caseID uuid.UUID) ([]*models.DedupAuditEntry, error)
}

type dedupAuditRepository struct {
	db *database.DB
}

// NewDedupAuditRepository creates a new audit log repository.
func NewDedupAuditRepository(db *database.DB) DedupAuditRepository {
	return &dedupAuditRepository{db: db}
}

var _ DedupAuditRepository = (*dedupAuditRepository)(nil)

func (r *dedupAuditRepository) Create(ctx context.Context, q database.Querier, entry *models.DedupAuditEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.PerformedAt.IsZero() {
		entry.PerformedAt = time.Now()
	}

	criteriaJSON, err := json.Marshal(entry.SearchCriteriaSnapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal criteria snapshot: %w", err)
	}

	candidates := entry.CandidatesSnapshot
	if candidates == nil {
		candidates = []models.ScoredMatch{}
	}
	candidatesJSON, err := json.Marshal(candidates)
	if err != nil {
		return fmt.Errorf("failed to marshal candidates snapshot: %w", err)
	}

	query := `
		INSERT INTO dedup_audit_log (
			id, case_id, search_criteria_snapshot, candidates_snapshot,
			decision, rationale, performed_by, performed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = q.Exec(ctx, query,
		entry.ID,
		entry.CaseID,
		criteriaJSON,
		candidatesJSON,
		string(entry.Decision),
		entry.Rationale,
		entry.PerformedBy,
		entry.PerformedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit entry: %w", err)
	}
	return nil
}

func (r *dedupAuditRepository) ListByCase(ctx context.Context, caseID uuid.UUID) ([]*models.DedupAuditEntry, error) {
	query := `
		SELECT id, case_id, search_criteria_snapshot, candidates_snapshot,
		       decision, rationale, performed_by, performed_at
		FROM dedup_audit_log
		WHERE case_id = $1
		ORDER BY performed_at DESC`

	rows, err := r.db.Query(ctx, query, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	entries := []*models.DedupAuditEntry{}
	for rows.Next() {
		entry := &models.DedupAuditEntry{}
		var criteriaJSON, candidatesJSON []byte
		var decision string

		err := rows.Scan(
			&entry.ID,
			&entry.CaseID,
			&criteriaJSON,
			&candidatesJSON,
			&decision,
			&entry.Rationale,
			&entry.PerformedBy,
			&entry.PerformedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}

		if err := json.Unmarshal(criteriaJSON, &entry.SearchCriteriaSnapshot); err != nil {
			return nil, fmt.Errorf("failed to unmarshal criteria snapshot: %w", err)
		}
		if err := json.Unmarshal(candidatesJSON, &entry.CandidatesSnapshot); err != nil {
			return nil, fmt.Errorf("failed to unmarshal candidates snapshot: %w", err)
		}
		entry.Decision = models.DecisionType(decision)

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}

	return entries, nil
}
