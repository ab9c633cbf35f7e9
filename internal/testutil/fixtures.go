package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"geumjjoki/internal/models"

	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// Day returns the civil date y-m-d.
func Day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CreateTestUser creates an active user with a unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()

	n := nextID()
	user := &models.User{
		Email:    fmt.Sprintf("user%d@test.com", n),
		Nickname: fmt.Sprintf("user%d", n),
		IsActive: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestProfile creates a profile for userID with the given point balance.
func CreateTestProfile(t *testing.T, db *gorm.DB, userID string, point int64) *models.UserProfile {
	t.Helper()

	profile := &models.UserProfile{UserID: userID, Point: point, Level: 1}
	if err := db.Create(profile).Error; err != nil {
		t.Fatalf("failed to create test profile: %v", err)
	}
	return profile
}

// CreateTestCategory creates a category under parentID, or a root when parentID is nil.
func CreateTestCategory(t *testing.T, db *gorm.DB, name string, parentID *string) *models.Category {
	t.Helper()

	if name == "" {
		name = fmt.Sprintf("Test Category %d", nextID())
	}
	category := &models.Category{Name: name, ParentID: parentID}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create test category: %v", err)
	}
	return category
}

// CreateTestExpense inserts an expense row directly, bypassing attribution.
func CreateTestExpense(t *testing.T, db *gorm.DB, userID string, categoryID *string, amount int64, date time.Time) *models.Expense {
	t.Helper()

	expense := &models.Expense{
		UserID:     userID,
		CategoryID: categoryID,
		Amount:     amount,
		Date:       date,
	}
	if err := db.Create(expense).Error; err != nil {
		t.Fatalf("failed to create test expense: %v", err)
	}
	return expense
}

// ChallengeOption customizes a fixture challenge.
type ChallengeOption func(*models.Challenge)

// WithGoal sets the goal amount and length.
func WithGoal(amount int64, days int) ChallengeOption {
	return func(c *models.Challenge) {
		c.GoalAmount = amount
		c.GoalDays = days
	}
}

// WithWindow sets the posting window.
func WithWindow(start, end time.Time) ChallengeOption {
	return func(c *models.Challenge) {
		c.StartDate = start
		c.EndDate = end
	}
}

// WithReward sets the point reward.
func WithReward(points int64) ChallengeOption {
	return func(c *models.Challenge) {
		c.PointReward = points
	}
}

// CreateTestChallenge creates an active 7-day challenge in categoryID whose window
// spans 2026-03-01 through 2026-03-31 unless overridden.
func CreateTestChallenge(t *testing.T, db *gorm.DB, categoryID *string, opts ...ChallengeOption) *models.Challenge {
	t.Helper()

	challenge := &models.Challenge{
		Title:       fmt.Sprintf("Test Challenge %d", nextID()),
		CategoryID:  categoryID,
		GoalAmount:  50000,
		GoalDays:    7,
		PointReward: 100,
		StartDate:   Day(2026, 3, 1),
		EndDate:     Day(2026, 3, 31),
		IsActive:    true,
	}
	for _, opt := range opts {
		opt(challenge)
	}
	if err := db.Create(challenge).Error; err != nil {
		t.Fatalf("failed to create test challenge: %v", err)
	}
	return challenge
}

// CreateTestUserChallenge inserts an attempt directly with the given window and target.
func CreateTestUserChallenge(t *testing.T, db *gorm.DB, userID string, challenge *models.Challenge, start time.Time, target, previous int64) *models.UserChallenge {
	t.Helper()

	uc := &models.UserChallenge{
		UserID:            userID,
		ChallengeID:       challenge.ID,
		CategoryID:        challenge.CategoryID,
		TargetExpense:     target,
		PreviousExpense:   previous,
		Status:            models.UserChallengeStatusActive,
		InstanceStartDate: start,
		InstanceEndDate:   start.AddDate(0, 0, challenge.GoalDays),
	}
	if err := db.Create(uc).Error; err != nil {
		t.Fatalf("failed to create test user challenge: %v", err)
	}
	return uc
}

// CreateTestReward creates an active reward.
func CreateTestReward(t *testing.T, db *gorm.DB, cost int64, validDays int) *models.Reward {
	t.Helper()

	reward := &models.Reward{
		Name:      fmt.Sprintf("Test Reward %d", nextID()),
		Cost:      cost,
		ValidDays: validDays,
		IsActive:  true,
		Category:  "etc",
	}
	if err := db.Create(reward).Error; err != nil {
		t.Fatalf("failed to create test reward: %v", err)
	}
	return reward
}

// StrPtr returns a pointer to s.
func StrPtr(s string) *string {
	return &s
}
