//go:build integration

package repositories

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseworks-io/dedup-engine/pkg/apperrors"
	"github.com/caseworks-io/dedup-engine/pkg/models"
	"github.com/caseworks-io/dedup-engine/pkg/testhelpers"
)

// seedCase inserts a case with a unique reference so tests sharing the
// container do not collide.
func seedCase(t *testing.T, repo CaseRepository, c models.Case) models.Case {
	t.Helper()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CaseReference == "" {
		c.CaseReference = "CASE-" + c.ID.String()[:8]
	}
	require.NoError(t, repo.Create(context.Background(), &c))
	return c
}

func TestIntegrationCaseRepository_CreateAndGetByID(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	repo := NewCaseRepository(testDB.DB, 0.6)
	ctx := context.Background()

	created := seedCase(t, repo, models.Case{
		FullName:   "Amina Okafor",
		NationalID: "  ng-a1b2c3 ", // stored trimmed and upper-cased
		Phone:      "+2348012345678",
		Email:      "amina@example.org",
		OwnerName:  "Lagos Field Office",
	})

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)

	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "Amina Okafor", got.FullName)
	assert.Equal(t, "NG-A1B2C3", got.NationalID)
	assert.Equal(t, "open", got.Status)
	assert.False(t, got.DedupChecked)
	assert.Nil(t, got.DedupCheckedAt)
}

func TestIntegrationCaseRepository_GetByIDNotFound(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	repo := NewCaseRepository(testDB.DB, 0.6)

	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestIntegrationCaseRepository_SearchByExactIdentifiers(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	repo := NewCaseRepository(testDB.DB, 0.6)
	ctx := context.Background()

	nationalID := "INTEG-" + uuid.New().String()[:8]
	match := seedCase(t, repo, models.Case{
		FullName:   "Boris Kimura",
		NationalID: nationalID,
	})
	seedCase(t, repo, models.Case{
		FullName:   "Unrelated Person",
		NationalID: "OTHER-" + uuid.New().String()[:8],
	})

	criteria := models.DeduplicationCriteria{NationalID: nationalID}.Normalized()
	candidates, err := repo.SearchCandidates(ctx, criteria, 50)
	require.NoError(t, err)

	require.Len(t, candidates, 1)
	assert.Equal(t, match.ID, candidates[0].ID)
}

func TestIntegrationCaseRepository_EmailMatchIsCaseInsensitive(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	repo := NewCaseRepository(testDB.DB, 0.6)
	ctx := context.Background()

	unique := uuid.New().String()[:8]
	match := seedCase(t, repo, models.Case{
		FullName: "Carla Mendes",
		Email:    "Carla.Mendes+" + unique + "@Example.COM",
	})

	criteria := models.DeduplicationCriteria{
		Email: "carla.mendes+" + unique + "@example.com",
	}.Normalized()
	candidates, err := repo.SearchCandidates(ctx, criteria, 50)
	require.NoError(t, err)

	require.Len(t, candidates, 1)
	assert.Equal(t, match.ID, candidates[0].ID)
}

func TestIntegrationCaseRepository_NamePrefilter(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	repo := NewCaseRepository(testDB.DB, 0.6)
	ctx := context.Background()

	unique := uuid.New().String()[:8]
	fuzzy := seedCase(t, repo, models.Case{FullName: "Johnq Smithvilleton " + unique})
	substring := seedCase(t, repo, models.Case{FullName: "Dr Jonq Smithvilleton " + unique + " Junior"})
	seedCase(t, repo, models.Case{FullName: "Zyx Qwerty"})

	// The prefilter over-selects: it returns rows by substring either way or
	// edit distance within the derived bound, and the caller re-applies the
	// exact rule.
	criteria := models.DeduplicationCriteria{Name: "Jonq Smithvilleton " + unique}.Normalized()
	candidates, err := repo.SearchCandidates(ctx, criteria, 50)
	require.NoError(t, err)

	ids := candidateIDs(candidates)
	assert.Contains(t, ids, fuzzy.ID)
	assert.Contains(t, ids, substring.ID)
}

func TestIntegrationCaseRepository_SubstitutionHeavyNameVariant(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	repo := NewCaseRepository(testDB.DB, 0.6)
	ctx := context.Background()

	// "Smythe" vs "Smith": edit similarity 1 - 2/6 ~ 0.67 clears the 0.6
	// threshold, but the names share almost no trigrams and neither contains
	// the other. The prefilter must still return the row.
	unique := uuid.New().String()[:8]
	variant := seedCase(t, repo, models.Case{FullName: "Smythe" + unique})

	criteria := models.DeduplicationCriteria{Name: "Smith" + unique}.Normalized()
	candidates, err := repo.SearchCandidates(ctx, criteria, 50)
	require.NoError(t, err)

	assert.Contains(t, candidateIDs(candidates), variant.ID)
}

func TestIntegrationCaseRepository_DisjunctiveCriteria(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	repo := NewCaseRepository(testDB.DB, 0.6)
	ctx := context.Background()

	phone := "+1555" + fmt.Sprintf("%07d", time.Now().UnixNano()%1e7)
	bank := "ACCT-" + uuid.New().String()[:8]
	byPhone := seedCase(t, repo, models.Case{FullName: "Phone Holder", Phone: phone})
	byBank := seedCase(t, repo, models.Case{FullName: "Account Holder", BankAccountNumber: bank})

	criteria := models.DeduplicationCriteria{
		Phone:             phone,
		BankAccountNumber: bank,
	}.Normalized()
	candidates, err := repo.SearchCandidates(ctx, criteria, 50)
	require.NoError(t, err)

	ids := candidateIDs(candidates)
	assert.Contains(t, ids, byPhone.ID)
	assert.Contains(t, ids, byBank.ID)
}

func TestIntegrationCaseRepository_LimitAndRecencyOrder(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	repo := NewCaseRepository(testDB.DB, 0.6)
	ctx := context.Background()

	nationalID := "CAP-" + uuid.New().String()[:8]
	var newest uuid.UUID
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		c := seedCase(t, repo, models.Case{
			FullName:   fmt.Sprintf("Holder %d", i),
			NationalID: nationalID,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		})
		newest = c.ID
	}

	criteria := models.DeduplicationCriteria{NationalID: nationalID}.Normalized()
	candidates, err := repo.SearchCandidates(ctx, criteria, 3)
	require.NoError(t, err)

	require.Len(t, candidates, 3)
	assert.Equal(t, newest, candidates[0].ID)
	assert.True(t, candidates[0].CreatedAt.After(candidates[1].CreatedAt))
	assert.True(t, candidates[1].CreatedAt.After(candidates[2].CreatedAt))
}

func TestIntegrationCaseRepository_StampDeduplication(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	repo := NewCaseRepository(testDB.DB, 0.6)
	ctx := context.Background()

	created := seedCase(t, repo, models.Case{FullName: "Stamp Target"})
	checkedAt := time.Now()

	tx, err := testDB.DB.BeginTx(ctx)
	require.NoError(t, err)
	err = repo.StampDeduplication(ctx, tx, created.ID, models.DecisionCreateNew, "no plausible duplicate", checkedAt)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, got.DedupChecked)
	assert.Equal(t, string(models.DecisionCreateNew), got.DedupDecision)
	assert.Equal(t, "no plausible duplicate", got.DedupRationale)
	require.NotNil(t, got.DedupCheckedAt)
	assert.WithinDuration(t, checkedAt, *got.DedupCheckedAt, time.Second)
}

func TestIntegrationCaseRepository_StampUnknownCase(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	repo := NewCaseRepository(testDB.DB, 0.6)
	ctx := context.Background()

	tx, err := testDB.DB.BeginTx(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback(ctx) }()

	err = repo.StampDeduplication(ctx, tx, uuid.New(), models.DecisionCreateNew, "x", time.Now())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func candidateIDs(candidates []*models.CandidateCase) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.ID)
	}
	return ids
}
