package repositories

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseworks-io/dedup-engine/pkg/matching"
	"github.com/caseworks-io/dedup-engine/pkg/models"
)

func TestBuildCandidatePredicates_OnePredicatePerField(t *testing.T) {
	criteria := models.DeduplicationCriteria{
		Name:              "jon smith",
		NationalID:        "ABCDE1234F",
		Phone:             "+15550100",
		Email:             "jon@example.com",
		BankAccountNumber: "0001112223",
	}

	predicates, args := buildCandidatePredicates(criteria, 0.6)

	assert.Len(t, predicates, 5)
	// Name binds the normalized value and the distance bound.
	assert.Len(t, args, 6)
}

func TestBuildCandidatePredicates_EmptyCriteria(t *testing.T) {
	predicates, args := buildCandidatePredicates(models.DeduplicationCriteria{}, 0.6)

	assert.Empty(t, predicates)
	assert.Empty(t, args)
}

func TestBuildCandidatePredicates_NameUsesLevenshteinBound(t *testing.T) {
	predicates, args := buildCandidatePredicates(models.DeduplicationCriteria{Name: "Jon Smith"}, 0.6)

	require.Len(t, predicates, 1)
	assert.True(t, strings.Contains(predicates[0], "levenshtein_less_equal"))
	require.Len(t, args, 2)
	assert.Equal(t, "jon smith", args[0])
	assert.Equal(t, editDistanceBound(len("jon smith"), 0.6), args[1])
}

func TestBuildCandidatePredicates_OverlongNameSkipsLevenshtein(t *testing.T) {
	long := strings.Repeat("a", maxLevenshteinArg+1)

	predicates, args := buildCandidatePredicates(models.DeduplicationCriteria{Name: long}, 0.6)

	require.Len(t, predicates, 1)
	assert.False(t, strings.Contains(predicates[0], "levenshtein_less_equal"))
	assert.Len(t, args, 1)
}

func TestEditDistanceBound(t *testing.T) {
	// floor(((1-0.6)/0.6) * 9) = 6
	assert.Equal(t, 6, editDistanceBound(9, 0.6))
	// A stricter threshold shrinks the bound.
	assert.Equal(t, 2, editDistanceBound(9, 0.8))
	// A looser threshold widens it.
	assert.Equal(t, 9, editDistanceBound(9, 0.5))
}

// The bound exists so the SQL prefilter never drops a row the scoring rule
// would include: for every candidate with similarity above the threshold,
// the edit distance must be within the bound derived from the criteria alone.
func TestEditDistanceBound_AdmitsEveryRuleMatch(t *testing.T) {
	const threshold = 0.6

	tests := []struct {
		name      string
		criterion string
		candidate string
	}{
		// Substitution-heavy variant: high edit similarity, almost no shared
		// trigrams, no containment either way.
		{"smith smythe", "Smith", "Smythe"},
		{"jon john", "Jon Smith", "John Smith"},
		{"transposed", "Maria Santos", "Marai Santos"},
		{"dropped letter", "Katherine Oduya", "Katherin Oduya"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			na := matching.Normalize(tt.criterion)
			nb := matching.Normalize(tt.candidate)
			require.Greater(t, matching.Similarity(na, nb), threshold,
				"test pair must be included by the scoring rule")

			bound := editDistanceBound(len(na), threshold)
			assert.LessOrEqual(t, matching.LevenshteinDistance(na, nb), bound)
		})
	}
}
