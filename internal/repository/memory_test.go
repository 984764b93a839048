package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryPresenceRepository(t *testing.T) {
	repo := NewMemoryPresenceRepository()
	now := time.Date(2026, time.October, 16, 21, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, repo.Touch(ctx, "DJ_A", time.Minute))
	require.NoError(t, repo.Touch(ctx, "dj_b", 10*time.Minute))

	online, err := repo.IsOnline(ctx, "dj_a")
	require.NoError(t, err)
	assert.True(t, online)

	users, err := repo.Online(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"dj_a", "dj_b"}, users)

	now = now.Add(2 * time.Minute)

	online, err = repo.IsOnline(ctx, "dj_a")
	require.NoError(t, err)
	assert.False(t, online)

	users, err = repo.Online(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"dj_b"}, users)

	require.NoError(t, repo.Remove(ctx, "dj_b"))
	users, err = repo.Online(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)

	online, err = repo.IsOnline(ctx, "never")
	require.NoError(t, err)
	assert.False(t, online)
}
