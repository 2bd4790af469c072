package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vanban_gateway/internal/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	cfg := DefaultDBConfig()
	cfg.DSN = ":memory:"
	db, err := NewDB(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSeedDefaults_PopulatesEmptyCatalog(t *testing.T) {
	db := newTestDB(t)
	repo := db.NewPlanRepository()
	ctx := context.Background()

	require.NoError(t, repo.SeedDefaults(ctx))

	plans, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, plans, 4)

	// Stable order: sort_order, ties by id.
	assert.Equal(t, "free", plans[0].ID)
	assert.Equal(t, "basic", plans[1].ID)
	assert.Equal(t, "pro", plans[2].ID)
	assert.Equal(t, "enterprise", plans[3].ID)
}

func TestSeedDefaults_Idempotent(t *testing.T) {
	db := newTestDB(t)
	repo := db.NewPlanRepository()
	ctx := context.Background()

	require.NoError(t, repo.SeedDefaults(ctx))
	require.NoError(t, repo.SeedDefaults(ctx))

	plans, err := repo.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, plans, 4, "second seed must not duplicate plans")
}

func TestSeedDefaults_PreservesAdminEdits(t *testing.T) {
	db := newTestDB(t)
	repo := db.NewPlanRepository()
	ctx := context.Background()

	require.NoError(t, repo.SeedDefaults(ctx))

	edited, err := repo.GetByID(ctx, "free")
	require.NoError(t, err)
	edited.MaxRequestsPerMonth = 75
	require.NoError(t, repo.Upsert(ctx, edited))

	// A later seed call (e.g. a restart) must not revert the edit.
	require.NoError(t, repo.SeedDefaults(ctx))

	got, err := repo.GetByID(ctx, "free")
	require.NoError(t, err)
	assert.Equal(t, 75, got.MaxRequestsPerMonth)
}

func TestPlanRepository_GetByID_NotFound(t *testing.T) {
	db := newTestDB(t)
	repo := db.NewPlanRepository()

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestPlanRepository_ListActive_ExcludesDeactivated(t *testing.T) {
	db := newTestDB(t)
	repo := db.NewPlanRepository()
	ctx := context.Background()

	require.NoError(t, repo.SeedDefaults(ctx))

	free, err := repo.GetByID(ctx, "free")
	require.NoError(t, err)
	free.IsActive = false
	require.NoError(t, repo.Upsert(ctx, free))

	plans, err := repo.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, plans, 3)
	for _, plan := range plans {
		assert.NotEqual(t, "free", plan.ID)
	}

	// Deactivated plans stay resolvable: historical events reference them.
	got, err := repo.GetByID(ctx, "free")
	require.NoError(t, err)
	assert.False(t, got.IsActive)
}

func TestPlanRepository_Upsert_Insert(t *testing.T) {
	db := newTestDB(t)
	repo := db.NewPlanRepository()
	ctx := context.Background()

	plan := &models.Plan{
		ID:                  "trial",
		Name:                "Dùng thử",
		MaxRequestsPerMonth: 10,
		MaxTokensPerMonth:   10_000,
		MaxTokensPerRequest: 1024,
		IsActive:            true,
		SortOrder:           99,
	}
	require.NoError(t, repo.Upsert(ctx, plan))

	got, err := repo.GetByID(ctx, "trial")
	require.NoError(t, err)
	assert.Equal(t, "Dùng thử", got.Name)
	assert.Equal(t, 10, got.MaxRequestsPerMonth)
}
