package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kleo-network/kleo-backend/internal/models"
	"github.com/kleo-network/kleo-backend/internal/types"
)

// In-memory gateways for testing

type mockUserStore struct {
	users      map[string]*models.User
	shouldFail bool
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{users: make(map[string]*models.User)}
}

func (m *mockUserStore) seed(user *models.User) *models.User {
	m.users[user.Address] = user
	return user
}

func (m *mockUserStore) FindByAddress(ctx context.Context, address string) (*models.User, error) {
	if m.shouldFail {
		return nil, fmt.Errorf("store unavailable")
	}
	if u, ok := m.users[address]; ok {
		return u, nil
	}
	return nil, nil
}

func (m *mockUserStore) FindByAddressFold(ctx context.Context, address string) (*models.User, error) {
	if m.shouldFail {
		return nil, fmt.Errorf("store unavailable")
	}
	for addr, u := range m.users {
		if strings.EqualFold(addr, address) {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockUserStore) CreateIfAbsent(ctx context.Context, user *models.User) (*models.User, bool, error) {
	if m.shouldFail {
		return nil, false, fmt.Errorf("store unavailable")
	}
	if existing, ok := m.users[user.Address]; ok {
		return existing, false, nil
	}
	m.users[user.Address] = user
	return user, true, nil
}

func (m *mockUserStore) IncrementPoints(ctx context.Context, address string, delta int64) error {
	u, ok := m.users[address]
	if !ok {
		return fmt.Errorf("user %s not found", address)
	}
	u.KleoPoints += delta
	return nil
}

func (m *mockUserStore) SetRefereeIfUnset(ctx context.Context, address, referrer string) (bool, error) {
	u, ok := m.users[address]
	if !ok || u.Referee != nil {
		return false, nil
	}
	u.Referee = &referrer
	return true, nil
}

func (m *mockUserStore) IncrementReferredCount(ctx context.Context, address string) error {
	u, ok := m.users[address]
	if !ok {
		return fmt.Errorf("user %s not found", address)
	}
	u.Milestones.ReferredCount++
	return nil
}

func (m *mockUserStore) AppendReferral(ctx context.Context, address string, record models.ReferralRecord) error {
	u, ok := m.users[address]
	if !ok {
		return fmt.Errorf("user %s not found", address)
	}
	u.Referrals = append(u.Referrals, record)
	return nil
}

func (m *mockUserStore) AddDataQuantity(ctx context.Context, address string, n int64) error {
	u, ok := m.users[address]
	if !ok {
		return fmt.Errorf("user %s not found", address)
	}
	u.TotalDataQuantity += n
	return nil
}

func (m *mockUserStore) TopByPoints(ctx context.Context, limit int) ([]models.RankedUser, error) {
	if m.shouldFail {
		return nil, fmt.Errorf("store unavailable")
	}
	all := make([]*models.User, 0, len(m.users))
	for _, u := range m.users {
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].KleoPoints != all[j].KleoPoints {
			return all[i].KleoPoints > all[j].KleoPoints
		}
		return all[i].Address < all[j].Address
	})
	if limit < len(all) {
		all = all[:limit]
	}
	ranked := make([]models.RankedUser, 0, len(all))
	for _, u := range all {
		ranked = append(ranked, models.RankedUser{Address: u.Address, KleoPoints: u.KleoPoints})
	}
	return ranked, nil
}

func (m *mockUserStore) CountWithPointsGreaterThan(ctx context.Context, n int64) (int64, error) {
	var count int64
	for _, u := range m.users {
		if u.KleoPoints > n {
			count++
		}
	}
	return count, nil
}

func (m *mockUserStore) CountAll(ctx context.Context) (int64, error) {
	return int64(len(m.users)), nil
}

func (m *mockUserStore) GetActivityJSON(ctx context.Context, address string) (map[string]interface{}, error) {
	if u, ok := m.users[address]; ok {
		return u.ActivityJSON, nil
	}
	return nil, nil
}

func (m *mockUserStore) SetActivityJSON(ctx context.Context, address string, activity map[string]interface{}) error {
	u, ok := m.users[address]
	if !ok {
		return fmt.Errorf("user %s not found", address)
	}
	u.ActivityJSON = activity
	return nil
}

type mockHistoryStore struct {
	records    []*models.HistoryRecord
	priorCount int64
	shouldFail bool
}

func (m *mockHistoryStore) InsertBatch(ctx context.Context, records []*models.HistoryRecord) error {
	if m.shouldFail {
		return fmt.Errorf("store unavailable")
	}
	m.records = append(m.records, records...)
	return nil
}

func (m *mockHistoryStore) CountByAddressFold(ctx context.Context, address string) (int64, error) {
	if m.shouldFail {
		return 0, fmt.Errorf("store unavailable")
	}
	count := m.priorCount
	for _, r := range m.records {
		if strings.EqualFold(r.Address, address) {
			count++
		}
	}
	return count, nil
}

// mockDispatcher replays scripted admission outcomes.
type mockDispatcher struct {
	batchOutcome   *DispatchOutcome
	singleOutcomes []*DispatchOutcome

	batchCalls  int
	singleItems []models.HistoryItem
}

func (m *mockDispatcher) SubmitBatch(ctx context.Context, address string, items []models.HistoryItem) (*DispatchOutcome, error) {
	m.batchCalls++
	if m.batchOutcome != nil {
		return m.batchOutcome, nil
	}
	return acceptedOutcome(), nil
}

func (m *mockDispatcher) SubmitSingle(ctx context.Context, address string, item models.HistoryItem) (*DispatchOutcome, error) {
	m.singleItems = append(m.singleItems, item)
	if len(m.singleOutcomes) > 0 {
		next := m.singleOutcomes[0]
		m.singleOutcomes = m.singleOutcomes[1:]
		return next, nil
	}
	return acceptedOutcome(), nil
}

func acceptedOutcome() *DispatchOutcome {
	return &DispatchOutcome{
		TaskID:     "test-task",
		Status:     types.DispatchAccepted,
		StatusCode: 202,
	}
}
