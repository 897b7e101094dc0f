package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DeduplicationCriteria is the search input. All fields are optional, but a
// criteria set with zero non-empty fields is invalid and is rejected before
// any query executes.
type DeduplicationCriteria struct {
	Name                string `json:"name,omitempty"`
	NationalID          string `json:"nationalId,omitempty"`
	SecondaryNationalID string `json:"secondaryNationalId,omitempty"`
	Phone               string `json:"phone,omitempty"`
	Email               string `json:"email,omitempty"`
	BankAccountNumber   string `json:"bankAccountNumber,omitempty"`
}

// Normalized returns a copy with whitespace trimmed on every field,
// government identifiers upper-cased, and the email lower-cased.
func (c DeduplicationCriteria) Normalized() DeduplicationCriteria {
	return DeduplicationCriteria{
		Name:                strings.TrimSpace(c.Name),
		NationalID:          strings.ToUpper(strings.TrimSpace(c.NationalID)),
		SecondaryNationalID: strings.ToUpper(strings.TrimSpace(c.SecondaryNationalID)),
		Phone:               strings.TrimSpace(c.Phone),
		Email:               strings.ToLower(strings.TrimSpace(c.Email)),
		BankAccountNumber:   strings.TrimSpace(c.BankAccountNumber),
	}
}

// IsEmpty reports whether no search field carries a usable value.
func (c DeduplicationCriteria) IsEmpty() bool {
	n := c.Normalized()
	return n.Name == "" &&
		n.NationalID == "" &&
		n.SecondaryNationalID == "" &&
		n.Phone == "" &&
		n.Email == "" &&
		n.BankAccountNumber == ""
}

// Matched field names as they appear in ScoredMatch.MatchedFields and in
// audit snapshots. The declaration order is the fixed evaluation order.
const (
	FieldNationalID          = "nationalId"
	FieldSecondaryNationalID = "secondaryNationalId"
	FieldPhone               = "phone"
	FieldEmail               = "email"
	FieldBankAccountNumber   = "bankAccountNumber"
	FieldName                = "name"
)

// ScoredMatch is a candidate annotated with which fields matched and a
// weighted confidence score. Constructed fresh per search; only persisted
// as part of an audit snapshot.
type ScoredMatch struct {
	CandidateCase
	MatchedFields []string `json:"matchedFields"`
	Score         int      `json:"score"`
}

// DeduplicationResult is the ranked outcome of one search call.
type DeduplicationResult struct {
	Matches      []ScoredMatch         `json:"duplicatesFound"`
	Criteria     DeduplicationCriteria `json:"searchCriteria"`
	TotalMatches int                   `json:"totalMatches"`
}

// DecisionType enumerates the operator choices after reviewing candidates.
type DecisionType string

const (
	DecisionCreateNew   DecisionType = "CREATE_NEW"
	DecisionUseExisting DecisionType = "USE_EXISTING"
	DecisionMergeCases  DecisionType = "MERGE_CASES"
)

// Valid reports whether the decision is one of the known choices.
func (d DecisionType) Valid() bool {
	switch d {
	case DecisionCreateNew, DecisionUseExisting, DecisionMergeCases:
		return true
	}
	return false
}

// RequiresSelection reports whether the decision must reference one of the
// candidates that were shown.
func (d DecisionType) RequiresSelection() bool {
	return d == DecisionUseExisting || d == DecisionMergeCases
}

// DeduplicationDecision is the caller-supplied outcome for a case.
type DeduplicationDecision struct {
	CaseID                 uuid.UUID    `json:"caseId"`
	Decision               DecisionType `json:"decision"`
	Rationale              string       `json:"rationale"`
	SelectedExistingCaseID *uuid.UUID   `json:"selectedExistingCaseId,omitempty"`
}

// DedupAuditEntry is the immutable record of one decision event: the
// criteria as submitted and the candidates as shown, frozen at decision
// time. Never updated or deleted; read back keyed by case id.
type DedupAuditEntry struct {
	ID                     uuid.UUID             `json:"id"`
	CaseID                 uuid.UUID             `json:"caseId"`
	SearchCriteriaSnapshot DeduplicationCriteria `json:"searchCriteriaSnapshot"`
	CandidatesSnapshot     []ScoredMatch         `json:"candidatesSnapshot"`
	Decision               DecisionType          `json:"decision"`
	Rationale              string                `json:"rationale"`
	PerformedBy            string                `json:"performedBy"`
	PerformedAt            time.Time             `json:"performedAt"`
}
