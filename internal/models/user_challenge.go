package models

import (
	"math"
	"time"

	"geumjjoki/internal/clock"
)

// UserChallengeStatus is the persisted state of one join attempt.
type UserChallengeStatus string

const (
	UserChallengeStatusActive    UserChallengeStatus = "active"
	UserChallengeStatusSucceeded UserChallengeStatus = "succeeded"
	UserChallengeStatusFailed    UserChallengeStatus = "failed"
)

// UserChallenge is one user's attempt at a challenge. Amounts are in won.
//
// The partial unique indexes allow at most one active row per (user, challenge)
// and per (user, category); settled rows are unconstrained so a user may rejoin.
type UserChallenge struct {
	Base
	UserID      string  `gorm:"type:uuid;not null;index;uniqueIndex:idx_uc_active_challenge,where:status = 'active';uniqueIndex:idx_uc_active_category,where:status = 'active' AND category_id IS NOT NULL" json:"user_id"`
	ChallengeID string  `gorm:"type:uuid;not null;index;uniqueIndex:idx_uc_active_challenge,where:status = 'active'" json:"challenge_id"`
	CategoryID  *string `gorm:"type:uuid;uniqueIndex:idx_uc_active_category,where:status = 'active' AND category_id IS NOT NULL" json:"category_id,omitempty"`

	TargetExpense   int64   `gorm:"type:bigint;not null;default:0" json:"target_expense"`
	PreviousExpense int64   `gorm:"type:bigint;not null;default:0" json:"previous_expense"`
	TotalExpense    int64   `gorm:"type:bigint;not null;default:0" json:"total_expense"`
	ProgressPercent float64 `gorm:"not null;default:0" json:"progress_percent"`

	Status            UserChallengeStatus `gorm:"not null;index" json:"status"`
	InstanceStartDate time.Time           `gorm:"not null" json:"instance_start_date"`
	InstanceEndDate   time.Time           `gorm:"not null" json:"instance_end_date"`
	SettledAt         *time.Time          `json:"settled_at,omitempty"`

	// Relationships
	Challenge *Challenge `gorm:"foreignKey:ChallengeID" json:"challenge,omitempty"`
}

// ProgressPercent is the share of the baseline spend avoided so far, rounded
// to two decimals and floored at zero. It is not progress toward a target.
func ProgressPercent(previous, total int64) float64 {
	if previous <= 0 {
		return 0
	}
	p := float64(previous-total) / float64(previous) * 100
	p = math.Round(p*100) / 100
	if p < 0 {
		return 0
	}
	return p
}

// IsActive reports whether the attempt is still running.
func (uc *UserChallenge) IsActive() bool {
	return uc.Status == UserChallengeStatusActive
}

// WindowStart is the first civil day attributed to this attempt.
func (uc *UserChallenge) WindowStart(loc *time.Location) time.Time {
	return clock.DateOf(uc.InstanceStartDate, loc)
}

// WindowEnd is the last civil day attributed to this attempt.
func (uc *UserChallenge) WindowEnd(loc *time.Location) time.Time {
	return clock.DateOf(uc.InstanceEndDate, loc)
}

// Covers reports whether the civil date day falls inside the attempt's window.
func (uc *UserChallenge) Covers(day time.Time, loc *time.Location) bool {
	return !day.Before(uc.WindowStart(loc)) && !day.After(uc.WindowEnd(loc))
}

// WindowClosed reports whether the window has fully elapsed by today.
func (uc *UserChallenge) WindowClosed(today time.Time, loc *time.Location) bool {
	return today.After(uc.WindowEnd(loc))
}

// Succeeded reports whether attributed spending stayed within the target.
func (uc *UserChallenge) Succeeded() bool {
	return uc.TotalExpense <= uc.TargetExpense
}
