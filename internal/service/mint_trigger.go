package service

import (
	"context"

	"github.com/kleo-network/kleo-backend/internal/config"
	apperrors "github.com/kleo-network/kleo-backend/internal/errors"
	"github.com/kleo-network/kleo-backend/internal/models"
)

// FirstHashSentinel is the previous-hash argument used for a user's first
// mint, before any on-chain hash has been recorded.
const FirstHashSentinel = "firstHash"

// MintTrigger decides when a user's accumulated history volume qualifies
// for an on-chain mint and assembles the advisory transaction payload.
// Eligibility is recomputed on every qualifying request; there is no
// minted-at watermark.
type MintTrigger struct {
	users   UserStore
	history HistoryStore
	cfg     config.MintConfig
}

// NewMintTrigger creates a new threshold-mint trigger
func NewMintTrigger(users UserStore, history HistoryStore, cfg config.MintConfig) *MintTrigger {
	if cfg.HistoryThreshold <= 0 {
		cfg.HistoryThreshold = 50
	}
	return &MintTrigger{
		users:   users,
		history: history,
		cfg:     cfg,
	}
}

// ShouldMint reports whether the user's history count strictly exceeds the
// configured threshold. Address matching is case-insensitive.
func (m *MintTrigger) ShouldMint(ctx context.Context, address string) (bool, error) {
	count, err := m.history.CountByAddressFold(ctx, address)
	if err != nil {
		return false, apperrors.NewStoreError("count history", err)
	}
	return count > m.cfg.HistoryThreshold, nil
}

// BuildMintPayload assembles the mint call description for an external
// signer. The payload is generated fresh each time and never persisted;
// submitting the transaction and rotating previous_hash are out of scope.
func (m *MintTrigger) BuildMintPayload(ctx context.Context, address string) (*models.MintPayload, error) {
	user, err := m.users.FindByAddressFold(ctx, address)
	if err != nil {
		return nil, apperrors.NewStoreError("find user", err)
	}
	if user == nil {
		return nil, apperrors.NewUserNotFoundError(address)
	}

	previousHash := user.PreviousHash
	if previousHash == "" {
		previousHash = FirstHashSentinel
	}

	return &models.MintPayload{
		Chain:           m.cfg.Chain,
		RPCURL:          m.cfg.RPCURL,
		ContractAddress: m.cfg.ContractAddress,
		FunctionName:    m.cfg.FunctionName,
		Args:            []string{user.Address, previousHash},
	}, nil
}
