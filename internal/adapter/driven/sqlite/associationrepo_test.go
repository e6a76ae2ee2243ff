package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssociationRepo_ReplaceForPR(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAssociationRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.ReplaceForPR(ctx, "acme/widgets", 55, []string{"acme/platform", "acme/infra"}))

	keys, err := repo.ListForPR(ctx, "acme/widgets", 55)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme/infra", "acme/platform"}, keys)

	// A replace is a full swap, not a merge.
	require.NoError(t, repo.ReplaceForPR(ctx, "acme/widgets", 55, []string{"acme/platform"}))
	keys, err = repo.ListForPR(ctx, "acme/widgets", 55)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme/platform"}, keys)

	// Replacing with an empty set clears the PR's associations.
	require.NoError(t, repo.ReplaceForPR(ctx, "acme/widgets", 55, nil))
	keys, err = repo.ListForPR(ctx, "acme/widgets", 55)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestAssociationRepo_DuplicateKeysCollapse(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAssociationRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.ReplaceForPR(ctx, "acme/widgets", 1, []string{"acme/platform", "acme/platform"}))

	keys, err := repo.ListForPR(ctx, "acme/widgets", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme/platform"}, keys)
}
