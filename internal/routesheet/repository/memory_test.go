package repository

import (
	"context"
	"testing"

	"github.com/fedtaxi/hojaruta/internal/models"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepoOwnerScoping(t *testing.T) {
	r := NewMemoryRepo()
	ctx := context.Background()

	id, err := r.Create(ctx, &models.RouteSheet{OwnerID: "u1", Origin: "Sol", Destination: "Barajas", PDF: []byte("%PDF")})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	_, err = r.Create(ctx, &models.RouteSheet{OwnerID: "u2", Origin: "Atocha", Destination: "Chamartín"})
	require.NoError(t, err)

	got, err := r.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, got.HasPDF)
	require.Nil(t, got.PDF)

	list, err := r.ListByOwner(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "Sol", list[0].Origin)

	pdf, err := r.PDF(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "%PDF", string(pdf))

	_, err = r.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRepoPDFMissing(t *testing.T) {
	r := NewMemoryRepo()
	ctx := context.Background()
	id, err := r.Create(ctx, &models.RouteSheet{OwnerID: "u1"})
	require.NoError(t, err)
	_, err = r.PDF(ctx, id)
	require.ErrorIs(t, err, ErrNotFound)
}
