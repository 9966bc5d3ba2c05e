package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBlacklist_Redis(t *testing.T) {
	m, client := newRedis(t)
	bl := NewBlacklist(client)

	ctx := context.Background()
	token := "access-token-1"
	require.NoError(t, bl.Add(ctx, token, 2*time.Second))

	ok, err := bl.Contains(ctx, token)
	require.NoError(t, err)
	require.True(t, ok)

	m.FastForward(3 * time.Second)

	ok2, err := bl.Contains(ctx, token)
	require.NoError(t, err)
	require.False(t, ok2)
}

// Without Redis the blacklist keeps working in process.
func TestBlacklist_LocalFallback(t *testing.T) {
	bl := NewBlacklist(nil)
	base := time.Now()
	bl.now = func() time.Time { return base }

	ctx := context.Background()
	require.NoError(t, bl.Add(ctx, "tok", time.Second))
	ok, err := bl.Contains(ctx, "tok")
	require.NoError(t, err)
	require.True(t, ok)

	bl.now = func() time.Time { return base.Add(2 * time.Second) }
	ok, err = bl.Contains(ctx, "tok")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, bl.Add(ctx, "expired", 0))
	ok, err = bl.Contains(ctx, "expired")
	require.NoError(t, err)
	require.False(t, ok)
}
