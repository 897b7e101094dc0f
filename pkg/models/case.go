package models

import (
	"time"

	"github.com/google/uuid"
)

// Case is a case record as stored in the CRM. The deduplication engine
// reads cases as duplicate candidates and stamps the originating case
// when a decision is recorded; it never mutates anything else on the row.
type Case struct {
	ID                  uuid.UUID  `json:"id"`
	CaseReference       string     `json:"caseReference"`
	FullName            string     `json:"fullName"`
	NationalID          string     `json:"nationalId"`
	SecondaryNationalID string     `json:"secondaryNationalId"`
	Phone               string     `json:"phone"`
	Email               string     `json:"email"`
	BankAccountNumber   string     `json:"bankAccountNumber"`
	Status              string     `json:"status"`
	OwnerName           string     `json:"ownerName"`
	DedupChecked        bool       `json:"deduplicationChecked"`
	DedupDecision       string     `json:"deduplicationDecision,omitempty"`
	DedupRationale      string     `json:"deduplicationRationale,omitempty"`
	DedupCheckedAt      *time.Time `json:"deduplicationCheckedAt,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// CandidateCase is a case row returned by candidate search. It is the
// read-only projection the scorer works on; OwnerName is the display label
// for the organization that owns the case.
type CandidateCase struct {
	ID                  uuid.UUID `json:"id"`
	CaseReference       string    `json:"caseReference"`
	FullName            string    `json:"fullName"`
	NationalID          string    `json:"nationalId"`
	SecondaryNationalID string    `json:"secondaryNationalId"`
	Phone               string    `json:"phone"`
	Email               string    `json:"email"`
	BankAccountNumber   string    `json:"bankAccountNumber"`
	Status              string    `json:"status"`
	OwnerName           string    `json:"ownerName"`
	CreatedAt           time.Time `json:"createdAt"`
}
