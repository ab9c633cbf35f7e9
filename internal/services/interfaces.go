package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"geumjjoki/internal/models"
	"geumjjoki/internal/pagination"
)

// CategoryUpdate holds the optional fields of a category update.
// ClearParent promotes the category to a root.
type CategoryUpdate struct {
	Name        *string
	Description *string
	Icon        *string
	Color       *string
	ParentID    *string
	ClearParent bool
}

// CategoryServicer defines the contract for the shared category tree.
type CategoryServicer interface {
	CreateCategory(ctx context.Context, name, description, icon, color string, parentID *string) (*models.Category, error)
	GetRootCategories(ctx context.Context) ([]models.Category, error)
	GetCategoryByID(ctx context.Context, categoryID string) (*models.Category, error)
	GetChildCategories(ctx context.Context, categoryID string) ([]models.Category, error)
	UpdateCategory(ctx context.Context, categoryID string, update CategoryUpdate) (*models.Category, error)
	DeleteCategory(ctx context.Context, categoryID string) error
	RootOf(ctx context.Context, categoryID string) (*models.Category, error)
}

// ExpenseFilter holds optional filter parameters for listing expenses.
// CategoryID matches the category and all of its descendants.
type ExpenseFilter struct {
	FromDate        *time.Time
	ToDate          *time.Time
	CategoryID      *string
	MinAmount       *int64
	MaxAmount       *int64
	UserChallengeID *string
}

// ExpenseInput holds the fields of a new expense. Date is a civil date.
type ExpenseInput struct {
	CategoryID  *string
	Amount      int64
	Description string
	Date        time.Time
}

// ExpenseUpdate holds the optional fields of an expense update.
// ClearCategory moves the expense to the unclassified bucket.
type ExpenseUpdate struct {
	CategoryID    *string
	ClearCategory bool
	Amount        *int64
	Description   *string
	Date          *time.Time
}

// CategorySpend is one bucket of a monthly summary.
type CategorySpend struct {
	CategoryID   *string `json:"category_id"`
	CategoryName string  `json:"category_name"`
	Amount       int64   `json:"amount"`
	Count        int64   `json:"count"`
}

// MonthSpend is the per-root-category breakdown of one month.
type MonthSpend struct {
	Year       int             `json:"year"`
	Month      int             `json:"month"`
	Total      int64           `json:"total"`
	Categories []CategorySpend `json:"categories"`
}

// MonthlySummary compares a month with the one before it.
type MonthlySummary struct {
	Current  MonthSpend `json:"current"`
	Previous MonthSpend `json:"previous"`
}

// ExpenseServicer defines the contract for the expense ledger. Every write runs
// attribution in the same database transaction.
type ExpenseServicer interface {
	CreateExpense(ctx context.Context, userID string, input ExpenseInput) (*models.Expense, error)
	GetUserExpenses(ctx context.Context, userID string, page pagination.PageRequest, filter ExpenseFilter) (*pagination.PageResponse[models.Expense], error)
	GetExpenseByID(ctx context.Context, userID, expenseID string) (*models.Expense, error)
	UpdateExpense(ctx context.Context, userID, expenseID string, update ExpenseUpdate) (*models.Expense, error)
	DeleteExpense(ctx context.Context, userID, expenseID string) error
	GetMonthlySummary(ctx context.Context, userID string, year int, month time.Month) (*MonthlySummary, error)
}

// ReattributeResult reports what a full reattribution changed.
type ReattributeResult struct {
	UserID          string `json:"user_id"`
	ExpensesScanned int    `json:"expenses_scanned"`
	LinksChanged    int    `json:"links_changed"`
	Recomputed      int    `json:"recomputed"`
}

// AttributionServicer links expenses to active user challenges and keeps their
// totals equal to a full re-aggregation of the linked rows.
type AttributionServicer interface {
	// AttributeExpense relinks expense inside tx and recomputes both the
	// previous link target and the new one. A deleted expense is unlinked.
	AttributeExpense(ctx context.Context, tx *gorm.DB, expense *models.Expense, previousLink *string) error
	// Recompute re-aggregates one user challenge's total and progress.
	Recompute(ctx context.Context, tx *gorm.DB, userChallengeID string) (*models.UserChallenge, error)
	// AttachUserChallenge links already-recorded expenses that fall inside a
	// newly created attempt's window.
	AttachUserChallenge(ctx context.Context, tx *gorm.DB, uc *models.UserChallenge) error
	// Reattribute rebuilds every link of a user's ledger against their active challenges.
	Reattribute(ctx context.Context, userID string) (*ReattributeResult, error)
}

// ChallengeInput holds the fields of a new challenge.
type ChallengeInput struct {
	Title       string
	Content     string
	CategoryID  *string
	GoalAmount  int64
	GoalDays    int
	PointReward int64
	StartDate   time.Time
	EndDate     time.Time
}

// ChallengeFilter holds optional filter parameters for listing challenges.
// Sort is a column name with an optional "-" prefix for descending order.
type ChallengeFilter struct {
	Title      *string
	CategoryID *string
	GoalDays   *int
	IsActive   *bool
	Status     *models.ChallengeStatus
	Sort       string
}

// ChallengeServicer defines the contract for the challenge catalog and joins.
type ChallengeServicer interface {
	CreateChallenge(ctx context.Context, input ChallengeInput) (*models.Challenge, error)
	GetChallenges(ctx context.Context, page pagination.PageRequest, filter ChallengeFilter) (*pagination.PageResponse[models.Challenge], error)
	GetChallengeByID(ctx context.Context, challengeID string) (*models.Challenge, error)
	GetChallengeStatus(ctx context.Context, challengeID string) (models.ChallengeStatus, error)
	JoinChallenge(ctx context.Context, userID, challengeID string) (*models.UserChallenge, error)
}

// SettlementResult is a user challenge after a settlement check.
type SettlementResult struct {
	UserChallenge *models.UserChallenge `json:"user_challenge"`
	Settled       bool                  `json:"settled"`
}

// SettleDueResult counts the outcome of a settlement sweep.
type SettleDueResult struct {
	Checked   int `json:"checked"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Errors    int `json:"errors"`
}

// UserChallengeStatusView is the derived state of one attempt.
type UserChallengeStatusView struct {
	ID              string                     `json:"id"`
	Status          models.UserChallengeStatus `json:"status"`
	ChallengeStatus models.ChallengeStatus     `json:"challenge_status"`
	TotalExpense    int64                      `json:"total_expense"`
	TargetExpense   int64                      `json:"target_expense"`
	ProgressPercent float64                    `json:"progress_percent"`
	DaysRemaining   int                        `json:"days_remaining"`
}

// UserChallengeServicer defines the contract for a user's attempts. Every read
// settles attempts whose window has closed before returning them.
type UserChallengeServicer interface {
	GetUserChallenges(ctx context.Context, userID string, status *models.UserChallengeStatus, page pagination.PageRequest) (*pagination.PageResponse[models.UserChallenge], error)
	GetUserChallengeByID(ctx context.Context, userID, userChallengeID string) (*models.UserChallenge, error)
	GetUserChallengeStatus(ctx context.Context, userID, userChallengeID string) (*UserChallengeStatusView, error)
	Settle(ctx context.Context, userChallengeID string) (*SettlementResult, error)
	SettleDue(ctx context.Context) (*SettleDueResult, error)
}

// PointChange describes one credit or debit of a user's balances.
type PointChange struct {
	Points        int64
	Experience    int64
	Reason        models.PointReason
	ReferenceType string
	ReferenceID   string
}

// ProfileServicer defines the contract for gamification balances.
type ProfileServicer interface {
	GetProfile(ctx context.Context, userID string) (*models.UserProfile, error)
	GetPointHistory(ctx context.Context, userID string, page pagination.PageRequest) (*pagination.PageResponse[models.PointTransaction], error)
	// ApplyPointChange updates point, experience and level inside tx and writes
	// a ledger row. A debit beyond the balance fails with ErrInsufficientPoints.
	ApplyPointChange(ctx context.Context, tx *gorm.DB, userID string, change PointChange) (*models.UserProfile, error)
}

// RewardInput holds the fields of a new reward.
type RewardInput struct {
	Name        string
	Description string
	Cost        int64
	ValidDays   int
	Category    string
}

// RewardServicer defines the contract for the reward shop.
type RewardServicer interface {
	CreateReward(ctx context.Context, input RewardInput) (*models.Reward, error)
	GetActiveRewards(ctx context.Context, page pagination.PageRequest) (*pagination.PageResponse[models.Reward], error)
	RedeemReward(ctx context.Context, userID, rewardID string) (*models.RewardRedemption, error)
	GetUserRedemptions(ctx context.Context, userID string, page pagination.PageRequest) (*pagination.PageResponse[models.RewardRedemption], error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(ctx context.Context, userID, action, resourceType, resourceID, ipAddress string, changes map[string]any)
}
