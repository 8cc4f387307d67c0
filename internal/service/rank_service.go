package service

import (
	"context"

	apperrors "github.com/kleo-network/kleo-backend/internal/errors"
	"github.com/kleo-network/kleo-backend/internal/logging"
	"github.com/kleo-network/kleo-backend/internal/models"
	"github.com/kleo-network/kleo-backend/internal/storage"
)

// RankService computes the Kleo-points leaderboard and per-user ranks.
// Results are served through a short-TTL read-through cache; a stale entry
// is at most one TTL old.
type RankService struct {
	users UserStore
	cache *storage.CacheService
}

// NewRankService creates a new rank service. The cache may be nil, in which
// case every call hits the store.
func NewRankService(users UserStore, cache *storage.CacheService) *RankService {
	return &RankService{
		users: users,
		cache: cache,
	}
}

// TopUsers returns at most limit users ordered by points descending, with
// 1-based contiguous ranks assigned by position.
func (s *RankService) TopUsers(ctx context.Context, limit int) ([]models.RankedUser, error) {
	logger := logging.FromContext(ctx)

	var cacheKey string
	if s.cache != nil {
		cacheKey = s.cache.GenerateLeaderboardKey(limit)
		var cached []models.RankedUser
		hit, err := s.cache.Get(ctx, cacheKey, &cached)
		if err != nil {
			// Cache trouble never fails a read
			logger.WithError(err).Warn("Leaderboard cache read failed")
		} else if hit {
			return cached, nil
		}
	}

	users, err := s.users.TopByPoints(ctx, limit)
	if err != nil {
		return nil, apperrors.NewStoreError("top users", err)
	}

	for i := range users {
		users[i].Rank = i + 1
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, users); err != nil {
			logger.WithError(err).Warn("Leaderboard cache write failed")
		}
	}

	return users, nil
}

// RankOf returns the user's rank: one more than the number of users with
// strictly greater points. Tied users therefore share a rank value.
// TotalUsers is the full population count, recomputed per call.
func (s *RankService) RankOf(ctx context.Context, address string) (*models.UserRank, error) {
	logger := logging.FromContext(ctx)

	var cacheKey string
	if s.cache != nil {
		cacheKey = s.cache.GenerateRankKey(address)
		var cached models.UserRank
		hit, err := s.cache.Get(ctx, cacheKey, &cached)
		if err != nil {
			logger.WithError(err).Warn("Rank cache read failed")
		} else if hit {
			return &cached, nil
		}
	}

	user, err := s.users.FindByAddress(ctx, address)
	if err != nil {
		return nil, apperrors.NewStoreError("find user", err)
	}
	if user == nil {
		return nil, apperrors.NewUserNotFoundError(address)
	}

	higher, err := s.users.CountWithPointsGreaterThan(ctx, user.KleoPoints)
	if err != nil {
		return nil, apperrors.NewStoreError("count higher-ranked users", err)
	}

	total, err := s.users.CountAll(ctx)
	if err != nil {
		return nil, apperrors.NewStoreError("count users", err)
	}

	rank := &models.UserRank{
		Address:    user.Address,
		KleoPoints: user.KleoPoints,
		Rank:       higher + 1,
		TotalUsers: total,
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, rank); err != nil {
			logger.WithError(err).Warn("Rank cache write failed")
		}
	}

	return rank, nil
}
