// Package service implements the history-ingestion and referral/reward
// pipeline for the Kleo backend.
package service

import (
	"context"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	apperrors "github.com/kleo-network/kleo-backend/internal/errors"
	"github.com/kleo-network/kleo-backend/internal/models"
)

// UserStore is the users-collection gateway consumed by the pipeline.
// Implemented by storage.UserRepository.
type UserStore interface {
	FindByAddress(ctx context.Context, address string) (*models.User, error)
	FindByAddressFold(ctx context.Context, address string) (*models.User, error)
	CreateIfAbsent(ctx context.Context, user *models.User) (*models.User, bool, error)
	IncrementPoints(ctx context.Context, address string, delta int64) error
	SetRefereeIfUnset(ctx context.Context, address, referrer string) (bool, error)
	IncrementReferredCount(ctx context.Context, address string) error
	AppendReferral(ctx context.Context, address string, record models.ReferralRecord) error
	AddDataQuantity(ctx context.Context, address string, n int64) error
	TopByPoints(ctx context.Context, limit int) ([]models.RankedUser, error)
	CountWithPointsGreaterThan(ctx context.Context, n int64) (int64, error)
	CountAll(ctx context.Context) (int64, error)
	GetActivityJSON(ctx context.Context, address string) (map[string]interface{}, error)
	SetActivityJSON(ctx context.Context, address string, activity map[string]interface{}) error
}

// HistoryStore is the history-collection gateway consumed by the pipeline.
// Implemented by storage.HistoryRepository.
type HistoryStore interface {
	InsertBatch(ctx context.Context, records []*models.HistoryRecord) error
	CountByAddressFold(ctx context.Context, address string) (int64, error)
}

// NormalizeAddress validates a wallet address and returns its canonical
// lowercase form.
func NormalizeAddress(address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", apperrors.NewInvalidAddressError(address)
	}
	return strings.ToLower(common.HexToAddress(address).Hex()), nil
}
