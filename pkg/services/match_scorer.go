package services

import (
	"math"
	"sort"
	"strings"

	"github.com/caseworks-io/dedup-engine/pkg/matching"
	"github.com/caseworks-io/dedup-engine/pkg/models"
)

// Field weights for the confidence score. The table is data, not control
// flow, so weights stay independently testable and tunable.
const (
	weightNationalID          = 100
	weightSecondaryNationalID = 100
	weightBankAccountNumber   = 90
	weightPhone               = 80
	weightEmail               = 70
	weightNameMax             = 60
)

// exactFieldRule describes one exact-equality field comparison. Rules are
// evaluated in declaration order; that order is what MatchedFields reports,
// so it must stay stable for audit display.
type exactFieldRule struct {
	field     string
	weight    int
	criterion func(models.DeduplicationCriteria) string
	candidate func(models.CandidateCase) string
}

var exactFieldRules = []exactFieldRule{
	{
		field:     models.FieldNationalID,
		weight:    weightNationalID,
		criterion: func(c models.DeduplicationCriteria) string { return c.NationalID },
		candidate: func(c models.CandidateCase) string { return strings.ToUpper(strings.TrimSpace(c.NationalID)) },
	},
	{
		field:     models.FieldSecondaryNationalID,
		weight:    weightSecondaryNationalID,
		criterion: func(c models.DeduplicationCriteria) string { return c.SecondaryNationalID },
		candidate: func(c models.CandidateCase) string { return strings.ToUpper(strings.TrimSpace(c.SecondaryNationalID)) },
	},
	{
		field:     models.FieldPhone,
		weight:    weightPhone,
		criterion: func(c models.DeduplicationCriteria) string { return c.Phone },
		candidate: func(c models.CandidateCase) string { return strings.TrimSpace(c.Phone) },
	},
	{
		field:     models.FieldEmail,
		weight:    weightEmail,
		criterion: func(c models.DeduplicationCriteria) string { return c.Email },
		candidate: func(c models.CandidateCase) string { return strings.ToLower(strings.TrimSpace(c.Email)) },
	},
	{
		field:     models.FieldBankAccountNumber,
		weight:    weightBankAccountNumber,
		criterion: func(c models.DeduplicationCriteria) string { return c.BankAccountNumber },
		candidate: func(c models.CandidateCase) string { return strings.TrimSpace(c.BankAccountNumber) },
	},
}

// matchScorer annotates candidates with matched fields and a weighted
// confidence score. Criteria are expected to be normalized already.
type matchScorer struct {
	nameThreshold float64
}

// score evaluates every supplied criteria field against the candidate and
// accumulates the contributing weights. The name contributes
// floor(similarity x 60) when similarity clears the threshold.
func (s matchScorer) score(criteria models.DeduplicationCriteria, candidate models.CandidateCase) models.ScoredMatch {
	match := models.ScoredMatch{
		CandidateCase: candidate,
		MatchedFields: []string{},
	}

	for _, rule := range exactFieldRules {
		want := rule.criterion(criteria)
		if want == "" {
			continue
		}
		if rule.candidate(candidate) == want {
			match.Score += rule.weight
			match.MatchedFields = append(match.MatchedFields, rule.field)
		}
	}

	if criteria.Name != "" {
		sim := matching.Similarity(criteria.Name, candidate.FullName)
		if sim > s.nameThreshold {
			match.Score += int(math.Floor(sim * weightNameMax))
			match.MatchedFields = append(match.MatchedFields, models.FieldName)
		}
	}

	return match
}

// includes reports whether the candidate satisfies the search definition for
// the given criteria. The SQL name prefilter over-selects (its distance
// bound is looser than the threshold), so rows that only cleared the
// prefilter are re-checked here against the exact rule: similarity above
// threshold, or one name containing the other case-insensitively.
func (s matchScorer) includes(criteria models.DeduplicationCriteria, candidate models.CandidateCase) bool {
	for _, rule := range exactFieldRules {
		want := rule.criterion(criteria)
		if want != "" && rule.candidate(candidate) == want {
			return true
		}
	}
	if criteria.Name != "" && candidate.FullName != "" {
		if matching.Similarity(criteria.Name, candidate.FullName) > s.nameThreshold {
			return true
		}
		if matching.ContainsEitherWay(criteria.Name, candidate.FullName) {
			return true
		}
	}
	return false
}

// rank orders matches by score descending, ties broken by most recent
// createdAt first. The sort is stable, so candidates equal on both keys keep
// their candidate-search order.
func rank(matches []models.ScoredMatch) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
}
