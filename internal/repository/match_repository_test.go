package repository_test

import (
	"context"
	"testing"

	"github.com/kindling-app/kindling/internal/db"
	"github.com/kindling-app/kindling/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalPair(t *testing.T) {
	a, b := repository.CanonicalPair(7, 3)
	assert.EqualValues(t, 3, a)
	assert.EqualValues(t, 7, b)

	a, b = repository.CanonicalPair(3, 7)
	assert.EqualValues(t, 3, a)
	assert.EqualValues(t, 7, b)
}

// Both orderings and repeated triggers must converge on a single physical
// row with a stable id (insert-or-ignore semantics).
func TestMatchCreateIdempotent(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewMatchRepository(dbase)

	first, err := repo.Create(ctx, 2, 1)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.EqualValues(t, 1, first.User1ID)
	assert.EqualValues(t, 2, first.User2ID)

	// double-trigger from the reverse direction
	second, err := repo.Create(ctx, 1, 2)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, dbase.Model(&db.Match{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestMatchFindAndAreMatched(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewMatchRepository(dbase)

	_, err := repo.Create(ctx, 5, 9)
	require.NoError(t, err)

	m, err := repo.Find(ctx, 9, 5)
	require.NoError(t, err)
	require.NotNil(t, m)

	matched, err := repo.AreMatched(ctx, 5, 9)
	assert.NoError(t, err)
	assert.True(t, matched)

	matched, err = repo.AreMatched(ctx, 5, 8)
	assert.NoError(t, err)
	assert.False(t, matched)
}

func TestMatchDelete(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewMatchRepository(dbase)

	_, err := repo.Create(ctx, 1, 2)
	require.NoError(t, err)

	// deletion accepts either ordering
	removed, err := repo.Delete(ctx, 2, 1)
	assert.NoError(t, err)
	assert.True(t, removed)

	removed, err = repo.Delete(ctx, 1, 2)
	assert.NoError(t, err)
	assert.False(t, removed)
}

func TestMatchListAndCounters(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewMatchRepository(dbase)

	user := db.User{ID: 1, Username: "u1", Email: "u1@test.com", PasswordHash: "x", Gender: "male"}
	require.NoError(t, dbase.Create(&user).Error)

	for _, other := range []uint64{2, 3, 4} {
		_, err := repo.Create(ctx, 1, other)
		require.NoError(t, err)
	}

	page1, err := repo.ListByUser(ctx, 1, 1, 2)
	require.NoError(t, err)
	assert.Len(t, page1, 2)

	page2, err := repo.ListByUser(ctx, 1, 2, 2)
	require.NoError(t, err)
	assert.Len(t, page2, 1)

	count, err := repo.RefreshMatchCount(ctx, 1)
	assert.NoError(t, err)
	assert.EqualValues(t, 3, count)

	var got db.User
	require.NoError(t, dbase.First(&got, 1).Error)
	assert.EqualValues(t, 3, got.MatchCount)
}
