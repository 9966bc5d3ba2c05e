package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.Get(ctx, "pdf/a")
	assert.ErrorIs(t, err, ErrNotFound)

	buf := []byte("%PDF-1.4")
	require.NoError(t, s.Put(ctx, "pdf/a", buf, "application/pdf"))
	buf[0] = 'X'

	got, err := s.Get(ctx, "pdf/a")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(got))

	require.NoError(t, s.Delete(ctx, "pdf/a"))
	_, err = s.Get(ctx, "pdf/a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreListOldestFirst(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "pdf/1", []byte("a"), ""))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, s.Put(ctx, "pdf/2", []byte("bb"), ""))
	require.NoError(t, s.Put(ctx, "other/x", []byte("c"), ""))

	objs, err := s.List(ctx, "pdf/")
	require.NoError(t, err)
	require.Len(t, objs, 2)
	assert.Equal(t, "pdf/1", objs[0].Key)
	assert.Equal(t, int64(2), objs[1].Size)
}
