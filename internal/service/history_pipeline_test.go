package service

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kleo-network/kleo-backend/internal/errors"
	"github.com/kleo-network/kleo-backend/internal/models"
	"github.com/kleo-network/kleo-backend/internal/types"
)

type pipelineFixture struct {
	users      *mockUserStore
	history    *mockHistoryStore
	dispatcher *mockDispatcher
	pipeline   *HistoryPipeline
}

func newPipelineFixture() *pipelineFixture {
	users := newMockUserStore()
	history := &mockHistoryStore{}
	dispatcher := &mockDispatcher{}

	detector := NewReferralDetector(testLandingPage, testReferralParam)
	ledger := NewRewardLedger(users, 100)
	minter := NewMintTrigger(users, history, testMintConfig())

	return &pipelineFixture{
		users:      users,
		history:    history,
		dispatcher: dispatcher,
		pipeline:   NewHistoryPipeline(users, history, detector, ledger, dispatcher, minter),
	}
}

func rejectedOutcome(status int, body string) *DispatchOutcome {
	return &DispatchOutcome{
		TaskID:     "test-task",
		Status:     types.DispatchRejected,
		StatusCode: status,
		Body:       body,
	}
}

func TestSaveHistorySignupWithReferral(t *testing.T) {
	f := newPipelineFixture()
	f.users.seed(&models.User{Address: referrerAddr, KleoPoints: 500})

	markerURL := fmt.Sprintf("https://%s?%s=%s", testLandingPage, testReferralParam, referrerAddr)
	req := &SaveHistoryRequest{
		Address: newUserAddr,
		Signup:  true,
		History: append(historyWithURLs(markerURL), testItem()),
	}

	resp, err := f.pipeline.SaveHistory(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, newUserAddr, resp.Address)
	assert.True(t, resp.Signup)
	assert.Equal(t, 2, resp.SavedCount)
	assert.Equal(t, 0, resp.SkippedCount)
	require.NotNil(t, resp.BatchTask)
	assert.True(t, resp.BatchTask.Accepted())

	// Both sides credited exactly once
	newUser := f.users.users[newUserAddr]
	referrer := f.users.users[referrerAddr]
	require.NotNil(t, newUser)
	assert.Equal(t, int64(100), newUser.KleoPoints)
	assert.Equal(t, int64(600), referrer.KleoPoints)
	require.NotNil(t, newUser.Referee)
	assert.Equal(t, referrerAddr, *newUser.Referee)
	require.Len(t, referrer.Referrals, 1)
	assert.Equal(t, newUserAddr, referrer.Referrals[0].Address)

	// One batch task, items persisted, data quantity tracked
	assert.Equal(t, 1, f.dispatcher.batchCalls)
	assert.Len(t, f.history.records, 2)
	assert.Equal(t, int64(2), newUser.TotalDataQuantity)
}

func TestSaveHistorySignupSelfReferralIgnored(t *testing.T) {
	f := newPipelineFixture()

	markerURL := fmt.Sprintf("https://%s?%s=%s", testLandingPage, testReferralParam, newUserAddr)
	req := &SaveHistoryRequest{
		Address: newUserAddr,
		Signup:  true,
		History: historyWithURLs(markerURL),
	}

	resp, err := f.pipeline.SaveHistory(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.SavedCount)

	newUser := f.users.users[newUserAddr]
	assert.Equal(t, int64(0), newUser.KleoPoints)
	assert.Nil(t, newUser.Referee)
}

// A ledger failure never fails the signup itself.
func TestSaveHistorySignupUnknownReferrerStillSucceeds(t *testing.T) {
	f := newPipelineFixture()

	markerURL := fmt.Sprintf("https://%s?%s=%s", testLandingPage, testReferralParam, referrerAddr)
	req := &SaveHistoryRequest{
		Address: newUserAddr,
		Signup:  true,
		History: historyWithURLs(markerURL),
	}

	resp, err := f.pipeline.SaveHistory(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.SavedCount)
	assert.Equal(t, int64(0), f.users.users[newUserAddr].KleoPoints)
}

func TestSaveHistorySignupBatchRejectionAborts(t *testing.T) {
	f := newPipelineFixture()
	f.dispatcher.batchOutcome = rejectedOutcome(http.StatusServiceUnavailable, "worker down")

	req := &SaveHistoryRequest{
		Address: newUserAddr,
		Signup:  true,
		History: []models.HistoryItem{testItem()},
	}

	_, err := f.pipeline.SaveHistory(context.Background(), req)
	require.Error(t, err)

	var catErr *apperrors.CategorizedError
	require.ErrorAs(t, err, &catErr)
	assert.Equal(t, http.StatusServiceUnavailable, catErr.StatusCode)
	assert.Equal(t, "worker down", catErr.Details["upstream_body"])

	// Nothing persisted on rejection
	assert.Empty(t, f.history.records)
}

func TestSaveHistoryRoutine(t *testing.T) {
	f := newPipelineFixture()
	f.users.seed(&models.User{Address: newUserAddr, KleoPoints: 50})

	req := &SaveHistoryRequest{
		Address: newUserAddr,
		History: []models.HistoryItem{testItem(), testItem()},
	}

	resp, err := f.pipeline.SaveHistory(context.Background(), req)
	require.NoError(t, err)

	assert.False(t, resp.Signup)
	assert.Equal(t, 2, resp.SavedCount)
	assert.Len(t, resp.TaskResults, 2)
	assert.Nil(t, resp.MintPayload)
	assert.Len(t, f.dispatcher.singleItems, 2)
	assert.Len(t, f.history.records, 2)
}

func TestSaveHistoryRoutineSkipsEmptyContent(t *testing.T) {
	f := newPipelineFixture()
	f.users.seed(&models.User{Address: newUserAddr})

	empty := testItem()
	empty.Content = ""

	req := &SaveHistoryRequest{
		Address: newUserAddr,
		History: []models.HistoryItem{empty, testItem()},
	}

	resp, err := f.pipeline.SaveHistory(context.Background(), req)
	require.NoError(t, err)

	// Both items persisted, only one dispatched
	assert.Equal(t, 2, resp.SavedCount)
	assert.Len(t, resp.TaskResults, 1)
	assert.Len(t, f.dispatcher.singleItems, 1)
	assert.Len(t, f.history.records, 2)
}

func TestSaveHistoryRoutineCrossesMintThreshold(t *testing.T) {
	f := newPipelineFixture()
	f.users.seed(&models.User{Address: newUserAddr})
	f.history.priorCount = 50

	req := &SaveHistoryRequest{
		Address: newUserAddr,
		History: []models.HistoryItem{testItem()},
	}

	resp, err := f.pipeline.SaveHistory(context.Background(), req)
	require.NoError(t, err)

	require.NotNil(t, resp.MintPayload)
	assert.Equal(t, "safeMint", resp.MintPayload.FunctionName)
	assert.Equal(t, []string{newUserAddr, FirstHashSentinel}, resp.MintPayload.Args)
}

func TestSaveHistoryRoutineBelowThresholdNoMint(t *testing.T) {
	f := newPipelineFixture()
	f.users.seed(&models.User{Address: newUserAddr})
	f.history.priorCount = 48

	req := &SaveHistoryRequest{
		Address: newUserAddr,
		History: []models.HistoryItem{testItem()},
	}

	resp, err := f.pipeline.SaveHistory(context.Background(), req)
	require.NoError(t, err)
	assert.Nil(t, resp.MintPayload)
}

func TestSaveHistoryRoutineRejectionAbortsRemainingItems(t *testing.T) {
	f := newPipelineFixture()
	f.users.seed(&models.User{Address: newUserAddr})
	f.dispatcher.singleOutcomes = []*DispatchOutcome{
		acceptedOutcome(),
		rejectedOutcome(http.StatusInternalServerError, "classifier crashed"),
	}

	req := &SaveHistoryRequest{
		Address: newUserAddr,
		History: []models.HistoryItem{testItem(), testItem(), testItem()},
	}

	_, err := f.pipeline.SaveHistory(context.Background(), req)
	require.Error(t, err)

	var catErr *apperrors.CategorizedError
	require.ErrorAs(t, err, &catErr)
	assert.Equal(t, http.StatusInternalServerError, catErr.StatusCode)
	assert.Equal(t, "classifier crashed", catErr.Details["upstream_body"])
	assert.Equal(t, 1, catErr.Details["completed_tasks"])

	// Third item never dispatched
	assert.Len(t, f.dispatcher.singleItems, 2)
}

func TestSaveHistoryRoutineUnknownUser(t *testing.T) {
	f := newPipelineFixture()

	req := &SaveHistoryRequest{
		Address: newUserAddr,
		History: []models.HistoryItem{testItem()},
	}

	_, err := f.pipeline.SaveHistory(context.Background(), req)
	require.Error(t, err)

	var catErr *apperrors.CategorizedError
	require.ErrorAs(t, err, &catErr)
	assert.Equal(t, 404, catErr.StatusCode)
}

func TestSaveHistorySkipsMalformedItems(t *testing.T) {
	f := newPipelineFixture()
	f.users.seed(&models.User{Address: newUserAddr})

	noURL := testItem()
	noURL.URL = ""
	noCategory := testItem()
	noCategory.Category = ""

	req := &SaveHistoryRequest{
		Address: newUserAddr,
		History: []models.HistoryItem{noURL, testItem(), noCategory},
	}

	resp, err := f.pipeline.SaveHistory(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 1, resp.SavedCount)
	assert.Equal(t, 2, resp.SkippedCount)
	assert.Len(t, f.history.records, 1)
}

func TestSaveHistoryInvalidAddress(t *testing.T) {
	f := newPipelineFixture()

	_, err := f.pipeline.SaveHistory(context.Background(), &SaveHistoryRequest{Address: "not-an-address"})
	require.Error(t, err)

	var catErr *apperrors.CategorizedError
	require.ErrorAs(t, err, &catErr)
	assert.Equal(t, 400, catErr.StatusCode)
}
