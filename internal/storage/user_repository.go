package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/kleo-network/kleo-backend/internal/models"
)

// UserRepository is the users-collection gateway. All lookups key on the
// lowercase wallet address.
type UserRepository struct {
	db *PostgresDB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *PostgresDB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `
	address, slug, name, stage, verified, about, pfp, kleo_points,
	previous_hash, referee, referrals, milestones, settings, activity_json,
	first_time_user, total_data_quantity, pii_removed_count, created_at, updated_at
`

// FindByAddress retrieves a user by exact address. Returns (nil, nil) when
// the user does not exist.
func (r *UserRepository) FindByAddress(ctx context.Context, address string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE address = $1`, userColumns)
	return r.queryOne(ctx, query, address)
}

// FindByAddressFold retrieves a user matching the address case-insensitively.
// Returns (nil, nil) when the user does not exist.
func (r *UserRepository) FindByAddressFold(ctx context.Context, address string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE lower(address) = lower($1)`, userColumns)
	return r.queryOne(ctx, query, address)
}

func (r *UserRepository) queryOne(ctx context.Context, query string, args ...interface{}) (*models.User, error) {
	row := r.db.Pool().QueryRow(ctx, query, args...)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return user, nil
}

// CreateIfAbsent inserts a user record unless one already exists for the
// address. It returns the stored record either way, and whether a new row
// was created. This makes signup idempotent.
func (r *UserRepository) CreateIfAbsent(ctx context.Context, user *models.User) (*models.User, bool, error) {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	referralsJSON, err := json.Marshal(user.Referrals)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal referrals: %w", err)
	}
	milestonesJSON, err := json.Marshal(user.Milestones)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal milestones: %w", err)
	}
	settingsJSON, err := json.Marshal(user.Settings)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal settings: %w", err)
	}
	activityJSON, err := json.Marshal(user.ActivityJSON)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal activity json: %w", err)
	}

	query := `
		INSERT INTO users (
			address, slug, name, stage, verified, about, pfp, kleo_points,
			previous_hash, referee, referrals, milestones, settings, activity_json,
			first_time_user, total_data_quantity, pii_removed_count, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (address) DO NOTHING
	`

	tag, err := r.db.Pool().Exec(ctx, query,
		user.Address,
		user.Slug,
		user.Name,
		user.Stage,
		user.Verified,
		user.About,
		user.Pfp,
		user.KleoPoints,
		user.PreviousHash,
		user.Referee,
		referralsJSON,
		milestonesJSON,
		settingsJSON,
		activityJSON,
		user.FirstTimeUser,
		user.TotalDataQuantity,
		user.PIIRemovedCount,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create user: %w", err)
	}

	created := tag.RowsAffected() > 0
	stored, err := r.FindByAddress(ctx, user.Address)
	if err != nil {
		return nil, created, err
	}
	if stored == nil {
		return nil, created, fmt.Errorf("user %s missing after insert", user.Address)
	}
	return stored, created, nil
}

// IncrementPoints adds delta to the user's points balance
func (r *UserRepository) IncrementPoints(ctx context.Context, address string, delta int64) error {
	query := `
		UPDATE users
		SET kleo_points = kleo_points + $2, updated_at = now()
		WHERE address = $1
	`
	tag, err := r.db.Pool().Exec(ctx, query, address, delta)
	if err != nil {
		return fmt.Errorf("failed to increment points: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user not found: %s", address)
	}
	return nil
}

// SetRefereeIfUnset claims the referee slot for a user. It only writes when
// the slot is still empty and reports whether the claim succeeded, so a
// second concurrent signup for the same user cannot re-apply the bonus.
func (r *UserRepository) SetRefereeIfUnset(ctx context.Context, address, referrer string) (bool, error) {
	query := `
		UPDATE users
		SET referee = $2, updated_at = now()
		WHERE address = $1 AND referee IS NULL
	`
	tag, err := r.db.Pool().Exec(ctx, query, address, referrer)
	if err != nil {
		return false, fmt.Errorf("failed to set referee: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// IncrementReferredCount bumps the referrer's referred-count milestone
func (r *UserRepository) IncrementReferredCount(ctx context.Context, address string) error {
	query := `
		UPDATE users
		SET milestones = jsonb_set(
			milestones,
			'{referred_count}',
			to_jsonb(COALESCE((milestones->>'referred_count')::bigint, 0) + 1)
		),
		updated_at = now()
		WHERE address = $1
	`
	tag, err := r.db.Pool().Exec(ctx, query, address)
	if err != nil {
		return fmt.Errorf("failed to increment referred count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user not found: %s", address)
	}
	return nil
}

// AppendReferral appends a referral record to the referrer's referral list
func (r *UserRepository) AppendReferral(ctx context.Context, address string, record models.ReferralRecord) error {
	recordJSON, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal referral record: %w", err)
	}

	query := `
		UPDATE users
		SET referrals = referrals || $2::jsonb, updated_at = now()
		WHERE address = $1
	`
	tag, err := r.db.Pool().Exec(ctx, query, address, recordJSON)
	if err != nil {
		return fmt.Errorf("failed to append referral: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user not found: %s", address)
	}
	return nil
}

// AddDataQuantity adds n to the user's owned-data counters
func (r *UserRepository) AddDataQuantity(ctx context.Context, address string, n int64) error {
	query := `
		UPDATE users
		SET total_data_quantity = total_data_quantity + $2,
			milestones = jsonb_set(
				milestones,
				'{data_owned}',
				to_jsonb(COALESCE((milestones->>'data_owned')::bigint, 0) + $2)
			),
			updated_at = now()
		WHERE address = $1
	`
	tag, err := r.db.Pool().Exec(ctx, query, address, n)
	if err != nil {
		return fmt.Errorf("failed to add data quantity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user not found: %s", address)
	}
	return nil
}

// TopByPoints returns up to limit users ordered by points descending.
// Ties keep the store's stable address order.
func (r *UserRepository) TopByPoints(ctx context.Context, limit int) ([]models.RankedUser, error) {
	query := `
		SELECT address, kleo_points
		FROM users
		ORDER BY kleo_points DESC, address ASC
		LIMIT $1
	`
	rows, err := r.db.Pool().Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top users: %w", err)
	}
	defer rows.Close()

	users := make([]models.RankedUser, 0, limit)
	for rows.Next() {
		var u models.RankedUser
		if err := rows.Scan(&u.Address, &u.KleoPoints); err != nil {
			return nil, fmt.Errorf("failed to scan top user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate top users: %w", err)
	}
	return users, nil
}

// CountWithPointsGreaterThan counts users with strictly more points than n
func (r *UserRepository) CountWithPointsGreaterThan(ctx context.Context, n int64) (int64, error) {
	var count int64
	err := r.db.Pool().QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE kleo_points > $1`, n).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count users by points: %w", err)
	}
	return count, nil
}

// CountAll returns the full user population count
func (r *UserRepository) CountAll(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.Pool().QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// GetActivityJSON returns the user's stored activity graph document
func (r *UserRepository) GetActivityJSON(ctx context.Context, address string) (map[string]interface{}, error) {
	var raw []byte
	err := r.db.Pool().QueryRow(ctx, `SELECT activity_json FROM users WHERE address = $1`, address).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get activity json: %w", err)
	}

	activity := map[string]interface{}{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &activity); err != nil {
			return nil, fmt.Errorf("failed to unmarshal activity json: %w", err)
		}
	}
	return activity, nil
}

// SetActivityJSON replaces the user's stored activity graph document
func (r *UserRepository) SetActivityJSON(ctx context.Context, address string, activity map[string]interface{}) error {
	raw, err := json.Marshal(activity)
	if err != nil {
		return fmt.Errorf("failed to marshal activity json: %w", err)
	}

	query := `UPDATE users SET activity_json = $2, updated_at = now() WHERE address = $1`
	tag, err := r.db.Pool().Exec(ctx, query, address, raw)
	if err != nil {
		return fmt.Errorf("failed to set activity json: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user not found: %s", address)
	}
	return nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var (
		user           models.User
		referralsJSON  []byte
		milestonesJSON []byte
		settingsJSON   []byte
		activityJSON   []byte
	)

	err := row.Scan(
		&user.Address,
		&user.Slug,
		&user.Name,
		&user.Stage,
		&user.Verified,
		&user.About,
		&user.Pfp,
		&user.KleoPoints,
		&user.PreviousHash,
		&user.Referee,
		&referralsJSON,
		&milestonesJSON,
		&settingsJSON,
		&activityJSON,
		&user.FirstTimeUser,
		&user.TotalDataQuantity,
		&user.PIIRemovedCount,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.Referrals = []models.ReferralRecord{}
	if len(referralsJSON) > 0 {
		if err := json.Unmarshal(referralsJSON, &user.Referrals); err != nil {
			return nil, fmt.Errorf("failed to unmarshal referrals: %w", err)
		}
	}
	if len(milestonesJSON) > 0 {
		if err := json.Unmarshal(milestonesJSON, &user.Milestones); err != nil {
			return nil, fmt.Errorf("failed to unmarshal milestones: %w", err)
		}
	}
	if len(settingsJSON) > 0 {
		if err := json.Unmarshal(settingsJSON, &user.Settings); err != nil {
			return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
		}
	}
	if len(activityJSON) > 0 {
		if err := json.Unmarshal(activityJSON, &user.ActivityJSON); err != nil {
			return nil, fmt.Errorf("failed to unmarshal activity json: %w", err)
		}
	}

	return &user, nil
}
