package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/caseworks-io/dedup-engine/pkg/apperrors"
	"github.com/caseworks-io/dedup-engine/pkg/database"
	"github.com/caseworks-io/dedup-engine/pkg/matching"
	"github.com/caseworks-io/dedup-engine/pkg/models"
)

// normalizedNameExpr mirrors matching.Normalize in SQL: lower-case, trim,
// collapse internal whitespace. The Levenshtein prefilter must compare the
// same strings the service compares, or its bound is meaningless.
const normalizedNameExpr = `lower(regexp_replace(btrim(full_name), '\s+', ' ', 'g'))`

// maxLevenshteinArg is the argument length limit of fuzzystrmatch's
// levenshtein functions.
const maxLevenshteinArg = 255

// CaseRepository provides data access for case records.
type CaseRepository interface {
	// Create inserts a new case row.
	Create(ctx context.Context, c *models.Case) error

	// GetByID returns a case by id, or apperrors.ErrNotFound.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Case, error)

	// SearchCandidates returns case rows matching any of the supplied
	// criteria fields, most recently created first, capped at limit.
	// The criteria must already be normalized and non-empty.
	SearchCandidates(ctx context.Context, criteria models.DeduplicationCriteria, limit int) ([]*models.CandidateCase, error)

	// StampDeduplication marks a case as deduplication-checked with the
	// recorded decision and rationale. Runs on the supplied querier so the
	// service can place it in the same transaction as the audit insert.
	StampDeduplication(ctx context.Context, q database.Querier, caseID uuid.UUID, decision models.DecisionType, rationale string, checkedAt time.Time) error
}

// caseRepository implements CaseRepository using PostgreSQL.
type caseRepository struct {
	db            *database.DB
	nameThreshold float64
}

// NewCaseRepository creates a new case repository. nameThreshold is the
// service-level fuzzy-name threshold; the repository uses it to derive an
// edit-distance bound for the SQL name prefilter.
func NewCaseRepository(db *database.DB, nameThreshold float64) CaseRepository {
	return &caseRepository{db: db, nameThreshold: nameThreshold}
}

var _ CaseRepository = (*caseRepository)(nil)

const caseColumns = `id, case_reference, full_name, national_id, secondary_national_id,
		phone, email, bank_account_number, status, owner_name,
		dedup_checked, dedup_decision, dedup_rationale, dedup_checked_at,
		created_at, updated_at`

const candidateColumns = `id, case_reference, full_name, national_id, secondary_national_id,
		phone, email, bank_account_number, status, owner_name, created_at`

func (r *caseRepository) Create(ctx context.Context, c *models.Case) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	if c.Status == "" {
		c.Status = "open"
	}

	query := `
		INSERT INTO cases (
			id, case_reference, full_name, national_id, secondary_national_id,
			phone, email, bank_account_number, status, owner_name,
			dedup_checked, dedup_decision, dedup_rationale, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := r.db.Exec(ctx, query,
		c.ID,
		c.CaseReference,
		c.FullName,
		strings.ToUpper(strings.TrimSpace(c.NationalID)),
		strings.ToUpper(strings.TrimSpace(c.SecondaryNationalID)),
		strings.TrimSpace(c.Phone),
		strings.TrimSpace(c.Email),
		strings.TrimSpace(c.BankAccountNumber),
		c.Status,
		c.OwnerName,
		c.DedupChecked,
		c.DedupDecision,
		c.DedupRationale,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create case: %w", err)
	}
	return nil
}

func (r *caseRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE id = $1`

	c := &models.Case{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&c.ID,
		&c.CaseReference,
		&c.FullName,
		&c.NationalID,
		&c.SecondaryNationalID,
		&c.Phone,
		&c.Email,
		&c.BankAccountNumber,
		&c.Status,
		&c.OwnerName,
		&c.DedupChecked,
		&c.DedupDecision,
		&c.DedupRationale,
		&c.DedupCheckedAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get case: %w", err)
	}
	return c, nil
}

func (r *caseRepository) SearchCandidates(ctx context.Context, criteria models.DeduplicationCriteria, limit int) ([]*models.CandidateCase, error) {
	predicates, args := buildCandidatePredicates(criteria, r.nameThreshold)
	if len(predicates) == 0 {
		return nil, apperrors.ErrInvalidCriteria
	}

	args = append(args, limit)
	query := fmt.Sprintf(`
		SELECT `+candidateColumns+`
		FROM cases
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d`,
		strings.Join(predicates, " OR "), len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer rows.Close()

	var candidates []*models.CandidateCase
	for rows.Next() {
		c := &models.CandidateCase{}
		err := rows.Scan(
			&c.ID,
			&c.CaseReference,
			&c.FullName,
			&c.NationalID,
			&c.SecondaryNationalID,
			&c.Phone,
			&c.Email,
			&c.BankAccountNumber,
			&c.Status,
			&c.OwnerName,
			&c.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		candidates = append(candidates, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candidates: %w", err)
	}

	return candidates, nil
}

// buildCandidatePredicates assembles the disjunctive filter from whichever
// criteria fields are present. Values are always bound as parameters; user
// input never reaches the query text.
func buildCandidatePredicates(criteria models.DeduplicationCriteria, nameThreshold float64) ([]string, []any) {
	var predicates []string
	var args []any

	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if criteria.NationalID != "" {
		predicates = append(predicates, fmt.Sprintf("national_id = %s", next(criteria.NationalID)))
	}
	if criteria.SecondaryNationalID != "" {
		predicates = append(predicates, fmt.Sprintf("secondary_national_id = %s", next(criteria.SecondaryNationalID)))
	}
	if criteria.Phone != "" {
		predicates = append(predicates, fmt.Sprintf("phone = %s", next(criteria.Phone)))
	}
	if criteria.Email != "" {
		predicates = append(predicates, fmt.Sprintf("lower(email) = %s", next(criteria.Email)))
	}
	if criteria.BankAccountNumber != "" {
		predicates = append(predicates, fmt.Sprintf("bank_account_number = %s", next(criteria.BankAccountNumber)))
	}
	if criteria.Name != "" {
		// Prefilter, deliberately a superset of the fuzzy rule the service
		// re-applies: substring either direction, or Levenshtein distance
		// within a bound derived from the criteria and the threshold. The
		// service rejects the extra rows; the SQL side must never drop a row
		// the rule would include.
		name := matching.Normalize(criteria.Name)
		p := next(name)
		if len(name) <= maxLevenshteinArg {
			// fuzzystrmatch caps levenshtein arguments at 255 chars, so the
			// stored name gets a length guard. A guarded-out row would need
			// a criteria name near that length to clear the rule anyway.
			b := next(editDistanceBound(len(name), nameThreshold))
			predicates = append(predicates, fmt.Sprintf(
				"(full_name <> '' AND (lower(full_name) LIKE '%%' || %s || '%%' OR %s LIKE '%%' || lower(full_name) || '%%' OR (char_length(full_name) <= %d AND levenshtein_less_equal(%s, %s, %s) <= %s)))",
				p, p, maxLevenshteinArg, normalizedNameExpr, p, b, b))
		} else {
			predicates = append(predicates, fmt.Sprintf(
				"(full_name <> '' AND (lower(full_name) LIKE '%%' || %s || '%%' OR %s LIKE '%%' || lower(full_name) || '%%'))",
				p, p))
		}
	}

	return predicates, args
}

// editDistanceBound returns the largest edit distance a candidate name can
// have from a criteria name of the given length while still clearing the
// similarity threshold. The rule includes a row when
// 1 - d/maxLen > t, so d < (1-t)*maxLen; maxLen never exceeds nameLen + d,
// which gives d < ((1-t)/t)*nameLen. Truncation rounds the bound up relative
// to the strict inequality, so the prefilter only ever over-selects.
func editDistanceBound(nameLen int, threshold float64) int {
	return int((1 - threshold) / threshold * float64(nameLen))
}

func (r *caseRepository) StampDeduplication(ctx context.Context, q database.Querier, caseID uuid.UUID, decision models.DecisionType, rationale string, checkedAt time.Time) error {
	query := `
		UPDATE cases
		SET dedup_checked = TRUE,
		    dedup_decision = $2,
		    dedup_rationale = $3,
		    dedup_checked_at = $4,
		    updated_at = $4
		WHERE id = $1`

	tag, err := q.Exec(ctx, query, caseID, string(decision), rationale, checkedAt)
	if err != nil {
		return fmt.Errorf("failed to stamp case %s: %w", caseID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
