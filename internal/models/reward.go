package models

import "time"

// Reward is an item users can buy with points.
type Reward struct {
	Base
	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`
	Cost        int64  `gorm:"not null" json:"cost"`
	ValidDays   int    `gorm:"not null" json:"valid_days"`
	IsActive    bool   `gorm:"default:true" json:"is_active"`
	Category    string `gorm:"not null;default:'etc'" json:"category"`
}

// RedemptionStatus is the state of a redeemed reward.
type RedemptionStatus string

const (
	RedemptionStatusAvailable RedemptionStatus = "available"
	RedemptionStatusUsed      RedemptionStatus = "used"
	RedemptionStatusExpired   RedemptionStatus = "expired"
)

// RewardRedemption records a reward exchanged for points.
type RewardRedemption struct {
	Base
	UserID     string           `gorm:"type:uuid;not null;index" json:"user_id"`
	RewardID   string           `gorm:"type:uuid;not null;index" json:"reward_id"`
	Cost       int64            `gorm:"not null" json:"cost"`
	Status     RedemptionStatus `gorm:"not null" json:"status"`
	RedeemedAt time.Time        `gorm:"not null" json:"redeemed_at"`
	ExpireAt   time.Time        `gorm:"not null" json:"expire_at"`

	// Relationships
	Reward *Reward `gorm:"foreignKey:RewardID" json:"reward,omitempty"`
}

// EffectiveStatus reports expired once ExpireAt has passed, without a write.
func (r *RewardRedemption) EffectiveStatus(now time.Time) RedemptionStatus {
	if r.Status == RedemptionStatusAvailable && now.After(r.ExpireAt) {
		return RedemptionStatusExpired
	}
	return r.Status
}
