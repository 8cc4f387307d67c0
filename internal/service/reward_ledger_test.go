package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kleo-network/kleo-backend/internal/errors"
	"github.com/kleo-network/kleo-backend/internal/models"
)

const (
	newUserAddr  = "0x1111111111111111111111111111111111111111"
	referrerAddr = "0x2222222222222222222222222222222222222222"
)

func TestApplyReferralBonus(t *testing.T) {
	store := newMockUserStore()
	store.seed(&models.User{Address: referrerAddr, KleoPoints: 500})
	store.seed(&models.User{Address: newUserAddr})

	ledger := NewRewardLedger(store, 100)

	err := ledger.ApplyReferralBonus(context.Background(), newUserAddr, referrerAddr)
	require.NoError(t, err)

	referrer := store.users[referrerAddr]
	newUser := store.users[newUserAddr]

	assert.Equal(t, int64(600), referrer.KleoPoints)
	assert.Equal(t, int64(100), newUser.KleoPoints)
	assert.Equal(t, int64(1), referrer.Milestones.ReferredCount)
	require.Len(t, referrer.Referrals, 1)
	assert.Equal(t, newUserAddr, referrer.Referrals[0].Address)
	assert.NotZero(t, referrer.Referrals[0].JoiningDate)
	require.NotNil(t, newUser.Referee)
	assert.Equal(t, referrerAddr, *newUser.Referee)
}

func TestApplyReferralBonusIsIdempotent(t *testing.T) {
	store := newMockUserStore()
	store.seed(&models.User{Address: referrerAddr, KleoPoints: 500})
	store.seed(&models.User{Address: newUserAddr})

	ledger := NewRewardLedger(store, 100)
	ctx := context.Background()

	require.NoError(t, ledger.ApplyReferralBonus(ctx, newUserAddr, referrerAddr))

	// Second application loses the referee claim and moves no points
	require.NoError(t, ledger.ApplyReferralBonus(ctx, newUserAddr, referrerAddr))

	assert.Equal(t, int64(600), store.users[referrerAddr].KleoPoints)
	assert.Equal(t, int64(100), store.users[newUserAddr].KleoPoints)
	assert.Len(t, store.users[referrerAddr].Referrals, 1)
	assert.Equal(t, int64(1), store.users[referrerAddr].Milestones.ReferredCount)
}

func TestApplyReferralBonusRejectsSelfReferral(t *testing.T) {
	store := newMockUserStore()
	store.seed(&models.User{Address: newUserAddr})

	ledger := NewRewardLedger(store, 100)

	err := ledger.ApplyReferralBonus(context.Background(), newUserAddr, newUserAddr)
	require.Error(t, err)

	var catErr *apperrors.CategorizedError
	require.ErrorAs(t, err, &catErr)
	assert.Equal(t, 400, catErr.StatusCode)
	assert.Equal(t, int64(0), store.users[newUserAddr].KleoPoints)
}

func TestApplyReferralBonusUnknownReferrer(t *testing.T) {
	store := newMockUserStore()
	store.seed(&models.User{Address: newUserAddr})

	ledger := NewRewardLedger(store, 100)

	err := ledger.ApplyReferralBonus(context.Background(), newUserAddr, referrerAddr)
	require.Error(t, err)

	var catErr *apperrors.CategorizedError
	require.ErrorAs(t, err, &catErr)
	assert.Equal(t, 404, catErr.StatusCode)

	// No referee recorded for the new user
	assert.Nil(t, store.users[newUserAddr].Referee)
}

func TestReferralsEnrichesCurrentPoints(t *testing.T) {
	store := newMockUserStore()
	store.seed(&models.User{
		Address: referrerAddr,
		Referrals: []models.ReferralRecord{
			{Address: newUserAddr, JoiningDate: 1700000000000},
		},
	})
	store.seed(&models.User{Address: newUserAddr, KleoPoints: 250})

	ledger := NewRewardLedger(store, 100)

	details, err := ledger.Referrals(context.Background(), referrerAddr)
	require.NoError(t, err)
	require.Len(t, details, 1)
	assert.Equal(t, newUserAddr, details[0].Address)
	assert.Equal(t, int64(1700000000000), details[0].JoiningDate)
	assert.Equal(t, int64(250), details[0].KleoPoints)
}

func TestReferralsUnknownUser(t *testing.T) {
	ledger := NewRewardLedger(newMockUserStore(), 100)

	_, err := ledger.Referrals(context.Background(), referrerAddr)
	require.Error(t, err)

	var catErr *apperrors.CategorizedError
	require.ErrorAs(t, err, &catErr)
	assert.Equal(t, 404, catErr.StatusCode)
}
