package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vanban_gateway/internal/models"
)

func createSubscriber(t *testing.T, repo *SubscriberRepository, email, keyHash string, active bool) *models.Subscriber {
	t.Helper()
	sub := &models.Subscriber{
		Email:    email,
		FullName: "Nguyễn Văn A",
		IsActive: active,
	}
	require.NoError(t, repo.Create(context.Background(), sub, "bcrypt-hash", keyHash))
	return sub
}

func TestSubscriberRepository_CreateAndGet(t *testing.T) {
	db := newTestDB(t)
	repo := db.NewSubscriberRepository()
	ctx := context.Background()

	sub := createSubscriber(t, repo, "a@example.vn", "hash-a", true)
	assert.NotEmpty(t, sub.ID)
	assert.Equal(t, "free", sub.PlanID, "new subscribers land on the free tier")
	assert.Equal(t, models.RoleUser, sub.Role)

	got, err := repo.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@example.vn", got.Email)
	assert.Nil(t, got.SubscriptionEndDate)
	assert.True(t, got.IsActive)
}

func TestSubscriberRepository_GetByAPIKeyHash(t *testing.T) {
	db := newTestDB(t)
	repo := db.NewSubscriberRepository()
	ctx := context.Background()

	sub := createSubscriber(t, repo, "a@example.vn", "hash-a", true)

	got, err := repo.GetByAPIKeyHash(ctx, "hash-a")
	require.NoError(t, err)
	assert.Equal(t, sub.ID, got.ID)

	_, err = repo.GetByAPIKeyHash(ctx, "hash-unknown")
	assert.ErrorIs(t, err, ErrSubscriberNotFound)
}

func TestSubscriberRepository_DuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	repo := db.NewSubscriberRepository()

	createSubscriber(t, repo, "a@example.vn", "hash-a", true)

	dup := &models.Subscriber{Email: "a@example.vn", IsActive: true}
	err := repo.Create(context.Background(), dup, "hash", "hash-b")
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestSubscriberRepository_UpdatePlan(t *testing.T) {
	db := newTestDB(t)
	repo := db.NewSubscriberRepository()
	ctx := context.Background()

	sub := createSubscriber(t, repo, "a@example.vn", "hash-a", true)

	end := time.Date(2027, 8, 28, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.UpdatePlan(ctx, sub.ID, "pro", &end))

	got, err := repo.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "pro", got.PlanID)
	require.NotNil(t, got.SubscriptionEndDate)
	assert.True(t, got.SubscriptionEndDate.Equal(end))

	// Clearing the end date removes the expiry.
	require.NoError(t, repo.UpdatePlan(ctx, sub.ID, "enterprise", nil))
	got, err = repo.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Nil(t, got.SubscriptionEndDate)

	assert.ErrorIs(t, repo.UpdatePlan(ctx, "ghost", "pro", nil), ErrSubscriberNotFound)
}

func TestSubscriberRepository_UpdateAPIKeyHash(t *testing.T) {
	db := newTestDB(t)
	repo := db.NewSubscriberRepository()
	ctx := context.Background()

	sub := createSubscriber(t, repo, "a@example.vn", "hash-old", true)

	require.NoError(t, repo.UpdateAPIKeyHash(ctx, sub.ID, "hash-new"))

	got, err := repo.GetByAPIKeyHash(ctx, "hash-new")
	require.NoError(t, err)
	assert.Equal(t, sub.ID, got.ID)

	// The rotated-out hash no longer resolves.
	_, err = repo.GetByAPIKeyHash(ctx, "hash-old")
	assert.ErrorIs(t, err, ErrSubscriberNotFound)

	assert.ErrorIs(t, repo.UpdateAPIKeyHash(ctx, "ghost", "hash-x"), ErrSubscriberNotFound)
}

func TestSubscriberRepository_SetActive(t *testing.T) {
	db := newTestDB(t)
	repo := db.NewSubscriberRepository()
	ctx := context.Background()

	sub := createSubscriber(t, repo, "a@example.vn", "hash-a", true)

	require.NoError(t, repo.SetActive(ctx, sub.ID, false))
	got, err := repo.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	require.NoError(t, repo.SetActive(ctx, sub.ID, true))
	got, err = repo.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)

	assert.ErrorIs(t, repo.SetActive(ctx, "ghost", true), ErrSubscriberNotFound)
}

func TestSubscriberRepository_ListAll(t *testing.T) {
	db := newTestDB(t)
	repo := db.NewSubscriberRepository()

	createSubscriber(t, repo, "a@example.vn", "hash-a", true)
	createSubscriber(t, repo, "b@example.vn", "hash-b", false)

	subs, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, subs, 2)
}

func TestSubscriberRepository_PasswordHashByEmail(t *testing.T) {
	db := newTestDB(t)
	repo := db.NewSubscriberRepository()
	ctx := context.Background()

	createSubscriber(t, repo, "a@example.vn", "hash-a", true)

	hash, err := repo.PasswordHashByEmail(ctx, "a@example.vn")
	require.NoError(t, err)
	assert.Equal(t, "bcrypt-hash", hash)

	_, err = repo.PasswordHashByEmail(ctx, "nobody@example.vn")
	assert.ErrorIs(t, err, ErrSubscriberNotFound)
}
