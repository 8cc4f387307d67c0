package service

import (
	"context"

	"github.com/google/uuid"
	apperrors "github.com/kleo-network/kleo-backend/internal/errors"
	"github.com/kleo-network/kleo-backend/internal/logging"
	"github.com/kleo-network/kleo-backend/internal/models"
)

// ClassificationDispatcher is the worker-pool boundary consumed by the
// pipeline. Implemented by Dispatcher.
type ClassificationDispatcher interface {
	SubmitBatch(ctx context.Context, address string, items []models.HistoryItem) (*DispatchOutcome, error)
	SubmitSingle(ctx context.Context, address string, item models.HistoryItem) (*DispatchOutcome, error)
}

// BonusApplier is the reward-ledger boundary consumed by the pipeline.
// Implemented by RewardLedger.
type BonusApplier interface {
	ApplyReferralBonus(ctx context.Context, newUserAddress, referrerAddress string) error
}

// ThresholdMinter is the mint-trigger boundary consumed by the pipeline.
// Implemented by MintTrigger.
type ThresholdMinter interface {
	ShouldMint(ctx context.Context, address string) (bool, error)
	BuildMintPayload(ctx context.Context, address string) (*models.MintPayload, error)
}

// SaveHistoryRequest is the save-history use case input
type SaveHistoryRequest struct {
	Address string               `json:"address"`
	Signup  bool                 `json:"signup"`
	History []models.HistoryItem `json:"history"`
}

// SaveHistoryResponse is the save-history use case output
type SaveHistoryResponse struct {
	Address      string              `json:"address"`
	Signup       bool                `json:"signup"`
	SavedCount   int                 `json:"saved_count"`
	SkippedCount int                 `json:"skipped_count"`
	BatchTask    *DispatchOutcome    `json:"batch_task,omitempty"`
	TaskResults  []DispatchOutcome   `json:"task_results,omitempty"`
	MintPayload  *models.MintPayload `json:"mint_payload,omitempty"`
}

// HistoryPipeline orchestrates the save-history use case: user lookup,
// referral handling, classification dispatch, persistence, and the
// threshold-mint check. It performs no retries of its own; dispatcher
// outcomes are surfaced as-is.
type HistoryPipeline struct {
	users      UserStore
	history    HistoryStore
	detector   *ReferralDetector
	ledger     BonusApplier
	dispatcher ClassificationDispatcher
	minter     ThresholdMinter
}

// NewHistoryPipeline creates a new save-history orchestrator
func NewHistoryPipeline(
	users UserStore,
	history HistoryStore,
	detector *ReferralDetector,
	ledger BonusApplier,
	dispatcher ClassificationDispatcher,
	minter ThresholdMinter,
) *HistoryPipeline {
	return &HistoryPipeline{
		users:      users,
		history:    history,
		detector:   detector,
		ledger:     ledger,
		dispatcher: dispatcher,
		minter:     minter,
	}
}

// SaveHistory runs the ingestion pipeline for one request
func (p *HistoryPipeline) SaveHistory(ctx context.Context, req *SaveHistoryRequest) (*SaveHistoryResponse, error) {
	address, err := NormalizeAddress(req.Address)
	if err != nil {
		return nil, err
	}

	valid, skipped := p.validateItems(ctx, req.History)

	if req.Signup {
		return p.saveSignup(ctx, address, valid, skipped)
	}
	return p.saveRoutine(ctx, address, valid, skipped)
}

// validateItems partitions the batch into well-formed and malformed items.
// Malformed items are skipped, never fatal.
func (p *HistoryPipeline) validateItems(ctx context.Context, items []models.HistoryItem) ([]models.HistoryItem, int) {
	logger := logging.FromContext(ctx)

	valid := make([]models.HistoryItem, 0, len(items))
	skipped := 0
	for _, item := range items {
		if err := item.Validate(); err != nil {
			logger.WithFields(map[string]interface{}{
				"url":    item.URL,
				"reason": err.Error(),
			}).Debug("Skipping malformed history item")
			skipped++
			continue
		}
		valid = append(valid, item)
	}
	return valid, skipped
}

func (p *HistoryPipeline) saveSignup(ctx context.Context, address string, items []models.HistoryItem, skipped int) (*SaveHistoryResponse, error) {
	logger := logging.FromContext(ctx).WithField("address", address)

	user := &models.User{
		Address:       address,
		Slug:          uuid.New().String(),
		Stage:         1,
		FirstTimeUser: true,
		Referrals:     []models.ReferralRecord{},
	}
	if _, _, err := p.users.CreateIfAbsent(ctx, user); err != nil {
		return nil, apperrors.NewStoreError("create user", err)
	}

	// Referral bonuses are best-effort: a ledger failure is logged and the
	// signup continues.
	if referrer, found := p.detector.DetectReferrer(items); found {
		if referrer == address {
			logger.Warn("Ignoring self-referral marker")
		} else if err := p.ledger.ApplyReferralBonus(ctx, address, referrer); err != nil {
			logger.WithField("referrer", referrer).WithError(err).Warn("Referral bonus application failed")
		}
	}

	outcome, err := p.dispatcher.SubmitBatch(ctx, address, items)
	if err != nil {
		return nil, apperrors.NewInternalError("batch dispatch failed", err)
	}
	if !outcome.Accepted() {
		return nil, apperrors.NewDispatchRejectedError(outcome.StatusCode, outcome.Body)
	}

	if err := p.persistItems(ctx, address, items); err != nil {
		return nil, err
	}

	return &SaveHistoryResponse{
		Address:      address,
		Signup:       true,
		SavedCount:   len(items),
		SkippedCount: skipped,
		BatchTask:    outcome,
	}, nil
}

func (p *HistoryPipeline) saveRoutine(ctx context.Context, address string, items []models.HistoryItem, skipped int) (*SaveHistoryResponse, error) {
	logger := logging.FromContext(ctx).WithField("address", address)

	user, err := p.users.FindByAddress(ctx, address)
	if err != nil {
		return nil, apperrors.NewStoreError("find user", err)
	}
	if user == nil {
		return nil, apperrors.NewUserNotFoundError(address)
	}

	priorCount, err := p.history.CountByAddressFold(ctx, address)
	if err != nil {
		return nil, apperrors.NewStoreError("count history", err)
	}
	logger.WithField("prior_count", priorCount).Debug("Processing routine history batch")

	if err := p.persistItems(ctx, address, items); err != nil {
		return nil, err
	}

	// Sequential per-item dispatch: the first rejection aborts the rest of
	// the loop.
	results := make([]DispatchOutcome, 0, len(items))
	for _, item := range items {
		if item.Content == "" {
			continue
		}
		outcome, err := p.dispatcher.SubmitSingle(ctx, address, item)
		if err != nil {
			return nil, apperrors.NewInternalError("item dispatch failed", err)
		}
		results = append(results, *outcome)
		if !outcome.Accepted() {
			rejection := apperrors.NewDispatchRejectedError(outcome.StatusCode, outcome.Body)
			rejection.Details["completed_tasks"] = len(results) - 1
			return nil, rejection
		}
	}

	resp := &SaveHistoryResponse{
		Address:      address,
		Signup:       false,
		SavedCount:   len(items),
		SkippedCount: skipped,
		TaskResults:  results,
	}

	eligible, err := p.minter.ShouldMint(ctx, address)
	if err != nil {
		return nil, err
	}
	if eligible {
		payload, err := p.minter.BuildMintPayload(ctx, address)
		if err != nil {
			return nil, err
		}
		resp.MintPayload = payload
	}

	return resp, nil
}

func (p *HistoryPipeline) persistItems(ctx context.Context, address string, items []models.HistoryItem) error {
	if len(items) == 0 {
		return nil
	}

	records := make([]*models.HistoryRecord, 0, len(items))
	for _, item := range items {
		records = append(records, models.NewHistoryRecord(address, item))
	}
	if err := p.history.InsertBatch(ctx, records); err != nil {
		return apperrors.NewStoreError("insert history", err)
	}
	if err := p.users.AddDataQuantity(ctx, address, int64(len(items))); err != nil {
		return apperrors.NewStoreError("update data quantity", err)
	}
	return nil
}
