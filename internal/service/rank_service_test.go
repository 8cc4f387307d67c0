package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kleo-network/kleo-backend/internal/errors"
	"github.com/kleo-network/kleo-backend/internal/models"
	"github.com/kleo-network/kleo-backend/internal/storage"
	"github.com/redis/go-redis/v9"
)

const (
	rankAddrA = "0x4444444444444444444444444444444444444444"
	rankAddrB = "0x5555555555555555555555555555555555555555"
	rankAddrC = "0x6666666666666666666666666666666666666666"
	rankAddrD = "0x7777777777777777777777777777777777777777"
)

func seedRankStore() *mockUserStore {
	store := newMockUserStore()
	store.seed(&models.User{Address: rankAddrA, KleoPoints: 300})
	store.seed(&models.User{Address: rankAddrB, KleoPoints: 200})
	store.seed(&models.User{Address: rankAddrC, KleoPoints: 200})
	store.seed(&models.User{Address: rankAddrD, KleoPoints: 100})
	return store
}

func testCacheService(t *testing.T) *storage.CacheService {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return storage.NewCacheService(storage.NewRedisCacheFromClient(client), 20*time.Second)
}

func TestTopUsersAssignsPositionalRanks(t *testing.T) {
	svc := NewRankService(seedRankStore(), nil)

	users, err := svc.TopUsers(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, users, 3)

	assert.Equal(t, 1, users[0].Rank)
	assert.Equal(t, rankAddrA, users[0].Address)
	assert.Equal(t, 2, users[1].Rank)
	assert.Equal(t, 3, users[2].Rank)
	// Ties are ordered by address for a stable leaderboard
	assert.Equal(t, rankAddrB, users[1].Address)
	assert.Equal(t, rankAddrC, users[2].Address)
}

func TestRankOfSharesRankAcrossTies(t *testing.T) {
	svc := NewRankService(seedRankStore(), nil)
	ctx := context.Background()

	top, err := svc.RankOf(ctx, rankAddrA)
	require.NoError(t, err)
	assert.Equal(t, int64(1), top.Rank)
	assert.Equal(t, int64(4), top.TotalUsers)

	tiedB, err := svc.RankOf(ctx, rankAddrB)
	require.NoError(t, err)
	tiedC, err := svc.RankOf(ctx, rankAddrC)
	require.NoError(t, err)
	assert.Equal(t, int64(2), tiedB.Rank)
	assert.Equal(t, int64(2), tiedC.Rank)

	last, err := svc.RankOf(ctx, rankAddrD)
	require.NoError(t, err)
	assert.Equal(t, int64(4), last.Rank)
}

func TestRankOfUnknownUser(t *testing.T) {
	svc := NewRankService(newMockUserStore(), nil)

	_, err := svc.RankOf(context.Background(), rankAddrA)
	require.Error(t, err)

	var catErr *apperrors.CategorizedError
	require.ErrorAs(t, err, &catErr)
	assert.Equal(t, 404, catErr.StatusCode)
}

func TestTopUsersServesCachedResult(t *testing.T) {
	store := seedRankStore()
	svc := NewRankService(store, testCacheService(t))
	ctx := context.Background()

	first, err := svc.TopUsers(ctx, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)

	// A write after caching is invisible until the TTL lapses
	store.users[rankAddrD].KleoPoints = 10000

	second, err := svc.TopUsers(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRankOfServesCachedResult(t *testing.T) {
	store := seedRankStore()
	svc := NewRankService(store, testCacheService(t))
	ctx := context.Background()

	first, err := svc.RankOf(ctx, rankAddrD)
	require.NoError(t, err)
	assert.Equal(t, int64(4), first.Rank)

	store.users[rankAddrD].KleoPoints = 10000

	second, err := svc.RankOf(ctx, rankAddrD)
	require.NoError(t, err)
	assert.Equal(t, first.Rank, second.Rank)
}
