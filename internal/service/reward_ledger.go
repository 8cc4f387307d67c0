package service

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/kleo-network/kleo-backend/internal/errors"
	"github.com/kleo-network/kleo-backend/internal/logging"
	"github.com/kleo-network/kleo-backend/internal/models"
)

// RewardLedger applies the one-time referral bonus to both sides of a
// referral.
type RewardLedger struct {
	users UserStore
	bonus int64
}

// NewRewardLedger creates a new reward ledger
func NewRewardLedger(users UserStore, bonus int64) *RewardLedger {
	return &RewardLedger{
		users: users,
		bonus: bonus,
	}
}

// ApplyReferralBonus records the referral and credits both parties:
// the new user's referee field is claimed, the referrer gains the bonus,
// a referral record, and a referred-count bump, and the new user gains the
// same bonus as a signup reward.
//
// The referee claim is conditional on the field still being unset; when the
// claim is lost (already applied, possibly by a concurrent signup) no points
// move. A repeat call is therefore a no-op rather than a double credit.
func (l *RewardLedger) ApplyReferralBonus(ctx context.Context, newUserAddress, referrerAddress string) error {
	logger := logging.FromContext(ctx)

	if newUserAddress == referrerAddress {
		return apperrors.NewValidationError("referrer", "users cannot refer themselves")
	}

	referrer, err := l.users.FindByAddress(ctx, referrerAddress)
	if err != nil {
		return apperrors.NewStoreError("find referrer", err)
	}
	if referrer == nil {
		return apperrors.NewUserNotFoundError(referrerAddress)
	}

	claimed, err := l.users.SetRefereeIfUnset(ctx, newUserAddress, referrerAddress)
	if err != nil {
		return apperrors.NewStoreError("set referee", err)
	}
	if !claimed {
		logger.WithFields(map[string]interface{}{
			"address":  newUserAddress,
			"referrer": referrerAddress,
		}).Info("Referral bonus already applied, skipping")
		return nil
	}

	if err := l.users.IncrementPoints(ctx, referrerAddress, l.bonus); err != nil {
		return apperrors.NewStoreError("credit referrer", err)
	}
	if err := l.users.IncrementReferredCount(ctx, referrerAddress); err != nil {
		return apperrors.NewStoreError("bump referred count", err)
	}

	record := models.ReferralRecord{
		Address:     newUserAddress,
		JoiningDate: time.Now().UTC().UnixMilli(),
	}
	if err := l.users.AppendReferral(ctx, referrerAddress, record); err != nil {
		return apperrors.NewStoreError("append referral", err)
	}

	if err := l.users.IncrementPoints(ctx, newUserAddress, l.bonus); err != nil {
		return apperrors.NewStoreError("credit new user", err)
	}

	logger.WithFields(map[string]interface{}{
		"address":  newUserAddress,
		"referrer": referrerAddress,
		"bonus":    l.bonus,
	}).Info("Referral bonus applied")

	return nil
}

// Referrals returns the referrer's referral list enriched with each
// referred user's current points balance.
func (l *RewardLedger) Referrals(ctx context.Context, address string) ([]models.ReferralDetail, error) {
	user, err := l.users.FindByAddress(ctx, address)
	if err != nil {
		return nil, apperrors.NewStoreError("find user", err)
	}
	if user == nil {
		return nil, apperrors.NewUserNotFoundError(address)
	}

	details := make([]models.ReferralDetail, 0, len(user.Referrals))
	for _, ref := range user.Referrals {
		var points int64
		referred, err := l.users.FindByAddress(ctx, ref.Address)
		if err != nil {
			return nil, apperrors.NewStoreError(fmt.Sprintf("find referred user %s", ref.Address), err)
		}
		if referred != nil {
			points = referred.KleoPoints
		}

		details = append(details, models.ReferralDetail{
			Address:     ref.Address,
			JoiningDate: ref.JoiningDate,
			KleoPoints:  points,
		})
	}

	return details, nil
}
