package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/prmonitor/internal/domain/model"
)

func samplePR(repo string, number int) model.PullRequest {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	return model.PullRequest{
		RepoFullName:       repo,
		Number:             number,
		GitHubID:           int64(number * 1000),
		Title:              "Sample change",
		Body:               "body text",
		State:              model.PRStateOpen,
		URL:                "https://github.com/" + repo + "/pull/1",
		Author:             "octocat",
		Assignees:          []string{"me"},
		RequestedReviewers: []string{"carol"},
		RequestedTeamSlugs: []string{"platform"},
		Reviews: []model.Review{
			{Reviewer: "carol", State: model.ReviewStateApproved, SubmittedAt: now.Add(-time.Hour)},
		},
		CreatedAt:               now.Add(-24 * time.Hour),
		UpdatedAt:               now,
		UserIsAssigned:          true,
		UserIsRequestedReviewer: false,
		UserHasReviewed:         false,
		Status:                  model.StatusNeedsReview,
	}
}

func TestPRRepo_UpsertBatchAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPRRepo(db)
	ctx := context.Background()

	pr := samplePR("acme/widgets", 1)
	require.NoError(t, repo.UpsertBatch(ctx, []model.PullRequest{pr, samplePR("acme/widgets", 2)}))

	got, err := repo.GetByNumber(ctx, "acme/widgets", 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, pr, *got)

	all, err := repo.GetByRepository(ctx, "acme/widgets")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestPRRepo_UpsertReplacesRow(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPRRepo(db)
	ctx := context.Background()

	pr := samplePR("acme/widgets", 1)
	require.NoError(t, repo.UpsertBatch(ctx, []model.PullRequest{pr}))

	pr.Title = "Retitled"
	pr.State = model.PRStateMerged
	pr.Status = model.StatusOpen
	pr.UpdatedAt = pr.UpdatedAt.Add(time.Hour)
	require.NoError(t, repo.UpsertBatch(ctx, []model.PullRequest{pr}))

	got, err := repo.GetByNumber(ctx, "acme/widgets", 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Retitled", got.Title)
	assert.Equal(t, model.PRStateMerged, got.State)

	all, err := repo.GetByRepository(ctx, "acme/widgets")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestPRRepo_GetByNumberMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPRRepo(db)

	got, err := repo.GetByNumber(context.Background(), "acme/widgets", 99)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPRRepo_GetByScope(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPRRepo(db)
	assoc := NewAssociationRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.UpsertBatch(ctx, []model.PullRequest{
		samplePR("acme/widgets", 1),
		samplePR("acme/gadgets", 7),
	}))
	// acme/gadgets#7 was discovered through a team scope.
	require.NoError(t, assoc.ReplaceForPR(ctx, "acme/gadgets", 7, []string{"acme/platform"}))

	byRepo, err := repo.GetByScope(ctx, "acme/widgets")
	require.NoError(t, err)
	require.Len(t, byRepo, 1)
	assert.Equal(t, 1, byRepo[0].Number)

	byTeam, err := repo.GetByScope(ctx, "acme/platform")
	require.NoError(t, err)
	require.Len(t, byTeam, 1)
	assert.Equal(t, "acme/gadgets", byTeam[0].RepoFullName)
}

func TestPRRepo_DeleteRemovesRowAndAssociations(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPRRepo(db)
	assoc := NewAssociationRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.UpsertBatch(ctx, []model.PullRequest{samplePR("acme/widgets", 1)}))
	require.NoError(t, assoc.ReplaceForPR(ctx, "acme/widgets", 1, []string{"acme/platform"}))

	require.NoError(t, repo.Delete(ctx, "acme/widgets", 1))

	got, err := repo.GetByNumber(ctx, "acme/widgets", 1)
	require.NoError(t, err)
	assert.Nil(t, got)

	keys, err := assoc.ListForPR(ctx, "acme/widgets", 1)
	require.NoError(t, err)
	assert.Empty(t, keys)

	// Deleting an absent row is quiet.
	assert.NoError(t, repo.Delete(ctx, "acme/widgets", 1))
}
