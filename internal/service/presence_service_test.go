package service

import (
	"context"
	"testing"
	"time"

	"djbooking/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresenceService(t *testing.T) {
	svc := NewPresenceService(repository.NewMemoryPresenceRepository(), time.Minute, testLogger())
	ctx := context.Background()

	require.NoError(t, svc.Heartbeat(ctx, "@DJ_Nova"))
	require.NoError(t, svc.Heartbeat(ctx, "dj_echo"))

	online, err := svc.IsOnline(ctx, "dj_nova")
	require.NoError(t, err)
	assert.True(t, online)

	users, err := svc.Online(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"dj_echo", "dj_nova"}, users)

	require.NoError(t, svc.Leave(ctx, "DJ_NOVA"))
	online, err = svc.IsOnline(ctx, "dj_nova")
	require.NoError(t, err)
	assert.False(t, online)

	assert.ErrorIs(t, svc.Heartbeat(ctx, "  "), ErrValidation)
	assert.ErrorIs(t, svc.Leave(ctx, "@"), ErrValidation)
	_, err = svc.IsOnline(ctx, "")
	assert.ErrorIs(t, err, ErrValidation)
}
