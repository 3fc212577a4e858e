package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mahmoodamara/storefront/internal/domain"
	apperrors "github.com/mahmoodamara/storefront/pkg/errors"
)

func newTestRepo(t *testing.T) (*CartRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCartRepository(client, time.Hour), mr
}

func TestCartRepository_SaveAndGet(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	cart := &domain.Cart{
		UserID: "user-001",
		Items: []domain.CartItem{
			{ProductID: "prod-001", VariantID: "var-001", Quantity: 2},
		},
	}

	require.NoError(t, repo.Save(ctx, cart))

	got, err := repo.Get(ctx, "user-001")
	require.NoError(t, err)
	assert.Equal(t, "user-001", got.UserID)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 2, got.Items[0].Quantity)
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestCartRepository_Get_NotFound(t *testing.T) {
	repo, _ := newTestRepo(t)

	_, err := repo.Get(context.Background(), "nobody")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCartRepository_Save_SetsTTL(t *testing.T) {
	repo, mr := newTestRepo(t)

	cart := &domain.Cart{UserID: "user-001", Items: []domain.CartItem{{ProductID: "p", VariantID: "v", Quantity: 1}}}
	require.NoError(t, repo.Save(context.Background(), cart))

	assert.Greater(t, mr.TTL("cart:user-001"), time.Duration(0))
}

func TestCartRepository_Delete(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	cart := &domain.Cart{UserID: "user-001", Items: []domain.CartItem{{ProductID: "p", VariantID: "v", Quantity: 1}}}
	require.NoError(t, repo.Save(ctx, cart))
	require.NoError(t, repo.Delete(ctx, "user-001"))

	_, err := repo.Get(ctx, "user-001")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCartRepository_Delete_MissingIsNoop(t *testing.T) {
	repo, _ := newTestRepo(t)
	assert.NoError(t, repo.Delete(context.Background(), "nobody"))
}
