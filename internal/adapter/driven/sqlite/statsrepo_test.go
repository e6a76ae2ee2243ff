package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/prmonitor/internal/domain/model"
)

func TestStatsRepo_RoundTrip(t *testing.T) {
	db := setupTestDB(t)
	repo := NewStatsRepo(db)
	ctx := context.Background()

	stats := model.ScopeStats{
		ScopeKey:       "acme/widgets",
		TotalOpen:      5,
		AssignedToUser: 2,
		ReviewRequests: 1,
		NeedsReview:    3,
		LastUpdated:    time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Upsert(ctx, stats))

	got, err := repo.Get(ctx, "acme/widgets")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, stats, *got)
}

func TestStatsRepo_GetMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewStatsRepo(db)

	got, err := repo.Get(context.Background(), "acme/unknown")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStatsRepo_UpsertReplacesAndListAll(t *testing.T) {
	db := setupTestDB(t)
	repo := NewStatsRepo(db)
	ctx := context.Background()

	first := model.ScopeStats{ScopeKey: "acme/widgets", TotalOpen: 1, LastUpdated: time.Now().UTC()}
	require.NoError(t, repo.Upsert(ctx, first))

	first.TotalOpen = 9
	require.NoError(t, repo.Upsert(ctx, first))
	require.NoError(t, repo.Upsert(ctx, model.ScopeStats{ScopeKey: "acme/platform", LastUpdated: time.Now().UTC()}))

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "acme/platform", all[0].ScopeKey)
	assert.Equal(t, 9, all[1].TotalOpen)
}
