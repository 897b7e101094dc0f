// Package logging redacts personally identifying data before it reaches
// structured logs. Search criteria carry raw government identifiers, phone
// numbers, and bank accounts; logs must never carry them in the clear.
package logging

import (
	"strings"

	"go.uber.org/zap"

	"github.com/caseworks-io/dedup-engine/pkg/models"
)

// RedactedText is the replacement used when a value is too short to mask.
const RedactedText = "[REDACTED]"

// MaskIdentifier hides an identifier except for its last two characters, so
// operators can still correlate log lines against a known record.
func MaskIdentifier(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return RedactedText
	}
	return strings.Repeat("*", len(s)-2) + s[len(s)-2:]
}

// MaskEmail keeps the first character of the local part and the full domain.
func MaskEmail(s string) string {
	if s == "" {
		return ""
	}
	at := strings.LastIndex(s, "@")
	if at <= 0 {
		return RedactedText
	}
	return s[:1] + "***" + s[at:]
}

// CriteriaFields returns zap fields describing which criteria were used,
// with every identity value masked. Empty fields are omitted entirely.
func CriteriaFields(c models.DeduplicationCriteria) []zap.Field {
	fields := make([]zap.Field, 0, 6)
	if c.Name != "" {
		// Names are quasi-identifying on their own; log only their presence.
		fields = append(fields, zap.Bool("criteria_name_present", true))
	}
	if c.NationalID != "" {
		fields = append(fields, zap.String("criteria_national_id", MaskIdentifier(c.NationalID)))
	}
	if c.SecondaryNationalID != "" {
		fields = append(fields, zap.String("criteria_secondary_national_id", MaskIdentifier(c.SecondaryNationalID)))
	}
	if c.Phone != "" {
		fields = append(fields, zap.String("criteria_phone", MaskIdentifier(c.Phone)))
	}
	if c.Email != "" {
		fields = append(fields, zap.String("criteria_email", MaskEmail(c.Email)))
	}
	if c.BankAccountNumber != "" {
		fields = append(fields, zap.String("criteria_bank_account", MaskIdentifier(c.BankAccountNumber)))
	}
	return fields
}
