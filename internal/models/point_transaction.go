package models

// PointReason explains a point balance change.
type PointReason string

const (
	PointReasonChallengeSuccess PointReason = "challenge_success"
	PointReasonRewardRedemption PointReason = "reward_redemption"
)

// PointTransaction is an append-only entry in a user's point history.
type PointTransaction struct {
	Base
	UserID           string      `gorm:"type:uuid;not null;index" json:"user_id"`
	Change           int64       `gorm:"not null" json:"change"`
	ExperienceChange int64       `gorm:"not null;default:0" json:"experience_change"`
	BalanceAfter     int64       `gorm:"not null" json:"balance_after"`
	Reason           PointReason `gorm:"not null" json:"reason"`
	ReferenceType    string      `json:"reference_type,omitempty"`
	ReferenceID      string      `gorm:"index" json:"reference_id,omitempty"`
}
