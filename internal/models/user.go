// Package models provides data models for the Kleo reward backend.
package models

import (
	"time"
)

// User represents a user profile keyed by lowercase wallet address
type User struct {
	Address           string                 `json:"address" db:"address"`
	Slug              string                 `json:"slug" db:"slug"`
	Name              string                 `json:"name" db:"name"`
	Stage             int                    `json:"stage" db:"stage"`
	Verified          bool                   `json:"verified" db:"verified"`
	About             string                 `json:"about" db:"about"`
	Pfp               string                 `json:"pfp" db:"pfp"`
	KleoPoints        int64                  `json:"kleo_points" db:"kleo_points"`
	PreviousHash      string                 `json:"previous_hash" db:"previous_hash"`
	Referee           *string                `json:"referee,omitempty" db:"referee"`
	Referrals         []ReferralRecord       `json:"referrals" db:"referrals"`
	Milestones        Milestones             `json:"milestones" db:"milestones"`
	Settings          map[string]interface{} `json:"settings,omitempty" db:"settings"`
	ActivityJSON      map[string]interface{} `json:"activity_json,omitempty" db:"activity_json"`
	FirstTimeUser     bool                   `json:"first_time_user" db:"first_time_user"`
	TotalDataQuantity int64                  `json:"total_data_quantity" db:"total_data_quantity"`
	PIIRemovedCount   int64                  `json:"pii_removed_count" db:"pii_removed_count"`
	CreatedAt         time.Time              `json:"createdAt" db:"created_at"`
	UpdatedAt         time.Time              `json:"updatedAt" db:"updated_at"`
}

// ReferralRecord is one entry in a referrer's referral list.
// JoiningDate is epoch milliseconds.
type ReferralRecord struct {
	Address     string `json:"address"`
	JoiningDate int64  `json:"joining_date"`
}

// Milestones tracks per-user progress counters
type Milestones struct {
	TweetActivityGraph bool  `json:"tweet_activity_graph"`
	DataOwned          int64 `json:"data_owned"`
	ReferredCount      int64 `json:"referred_count"`
	FollowedOnTwitter  bool  `json:"followed_on_twitter"`
}

// RankedUser is one leaderboard entry
type RankedUser struct {
	Rank       int    `json:"rank"`
	Address    string `json:"address"`
	KleoPoints int64  `json:"kleo_points"`
}

// UserRank describes a single user's position in the leaderboard
type UserRank struct {
	Address    string `json:"address"`
	KleoPoints int64  `json:"kleo_points"`
	Rank       int64  `json:"rank"`
	TotalUsers int64  `json:"total_users"`
}

// ReferralDetail is a referral list entry enriched with the referred
// user's current points balance.
type ReferralDetail struct {
	Address     string `json:"address"`
	JoiningDate int64  `json:"joining_date"`
	KleoPoints  int64  `json:"kleo_points"`
}
