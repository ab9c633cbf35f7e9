package models

import (
	"time"

	"geumjjoki/internal/clock"
)

// ChallengeStatus is the lifecycle state of a challenge derived from the wall clock.
// It is never persisted.
type ChallengeStatus string

const (
	ChallengeStatusUpcoming    ChallengeStatus = "upcoming"
	ChallengeStatusJoinable    ChallengeStatus = "joinable"
	ChallengeStatusNotJoinable ChallengeStatus = "not-joinable"
	ChallengeStatusClosed      ChallengeStatus = "closed"
)

// ProgramLengths are the goal lengths, in days, whose joins are gated on prior spending.
var ProgramLengths = map[int]bool{7: true, 28: true}

// Challenge is a time-boxed spend-less goal users can join.
type Challenge struct {
	Base
	Title       string    `gorm:"not null" json:"title"`
	Content     string    `json:"content"`
	CategoryID  *string   `gorm:"type:uuid;index" json:"category_id,omitempty"`
	GoalAmount  int64     `gorm:"type:bigint;not null;default:0" json:"goal_amount"`
	GoalDays    int       `gorm:"not null" json:"goal_days"`
	PointReward int64     `gorm:"not null;default:0" json:"point_reward"`
	StartDate   time.Time `gorm:"not null" json:"start_date"`
	EndDate     time.Time `gorm:"not null" json:"end_date"`
	IsActive    bool      `gorm:"default:true" json:"is_active"`

	// ComputedStatus is filled in at read time by WithStatus.
	ComputedStatus ChallengeStatus `gorm:"-" json:"computed_status,omitempty"`

	// Relationships
	Category *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}

// ResolveChallengeStatus maps a posting window and goal length to a lifecycle
// state at the instant now. Both window boundaries are inclusive days.
func ResolveChallengeStatus(start, end time.Time, goalDays int, now time.Time, loc *time.Location) ChallengeStatus {
	today := clock.DateOf(now, loc)
	startDay := clock.DateOf(start, loc)
	endDay := clock.DateOf(end, loc)

	switch {
	case today.Before(startDay):
		return ChallengeStatusUpcoming
	case today.After(endDay):
		return ChallengeStatusClosed
	case clock.DaysBetween(today, endDay) < goalDays:
		return ChallengeStatusNotJoinable
	default:
		return ChallengeStatusJoinable
	}
}

// StatusAt resolves the challenge's lifecycle state at now.
func (c *Challenge) StatusAt(now time.Time, loc *time.Location) ChallengeStatus {
	return ResolveChallengeStatus(c.StartDate, c.EndDate, c.GoalDays, now, loc)
}

// WithStatus sets ComputedStatus for serialization and returns c.
func (c *Challenge) WithStatus(now time.Time, loc *time.Location) *Challenge {
	c.ComputedStatus = c.StatusAt(now, loc)
	return c
}

// PostingDays is the number of calendar days in the posting window, both ends included.
func (c *Challenge) PostingDays(loc *time.Location) int {
	return clock.DaysBetween(clock.DateOf(c.StartDate, loc), clock.DateOf(c.EndDate, loc)) + 1
}

// StatusRank orders statuses for listings: joinable first, closed last.
func StatusRank(s ChallengeStatus) int {
	switch s {
	case ChallengeStatusJoinable:
		return 0
	case ChallengeStatusNotJoinable:
		return 1
	case ChallengeStatusUpcoming:
		return 2
	case ChallengeStatusClosed:
		return 3
	}
	return 99
}
