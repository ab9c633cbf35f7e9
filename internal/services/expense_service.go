package services

import (
	"context"
	"errors"
	"sort"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"geumjjoki/internal/clock"
	apperrors "geumjjoki/internal/errors"
	"geumjjoki/internal/models"
	"geumjjoki/internal/pagination"
)

// UnclassifiedBucket names the summary bucket of expenses without a category.
const UnclassifiedBucket = "Unclassified"

// expenseService handles the expense ledger.
type expenseService struct {
	db          *gorm.DB
	clock       clock.Clock
	attribution AttributionServicer
	locks       *UserLocks
}

// NewExpenseService creates a new ExpenseServicer.
func NewExpenseService(db *gorm.DB, clk clock.Clock, attribution AttributionServicer, locks *UserLocks) ExpenseServicer {
	return &expenseService{
		db:          db,
		clock:       clk,
		attribution: attribution,
		locks:       locks,
	}
}

// CreateExpense records an expense and attributes it in the same transaction.
// A zero date means today.
func (s *expenseService) CreateExpense(ctx context.Context, userID string, input ExpenseInput) (*models.Expense, error) {
	if input.Amount < 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must not be negative")
	}

	date := clock.DateOf(input.Date, time.UTC)
	if input.Date.IsZero() {
		date = clock.Today(s.clock)
	}

	db := s.db.WithContext(ctx)
	if input.CategoryID != nil {
		if _, err := findCategory(db, *input.CategoryID); err != nil {
			return nil, err
		}
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	expense := &models.Expense{
		UserID:      userID,
		CategoryID:  input.CategoryID,
		Amount:      input.Amount,
		Description: input.Description,
		Date:        date,
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := lockProfile(tx, userID); err != nil {
			return err
		}
		if err := tx.Create(expense).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return s.attribution.AttributeExpense(ctx, tx, expense, nil)
	})
	if err != nil {
		return nil, err
	}
	return expense, nil
}

// GetUserExpenses retrieves a paginated, filtered list of a user's expenses, newest first.
func (s *expenseService) GetUserExpenses(ctx context.Context, userID string, page pagination.PageRequest, filter ExpenseFilter) (*pagination.PageResponse[models.Expense], error) {
	page.Defaults()

	db := s.db.WithContext(ctx)
	base := db.Model(&models.Expense{}).Where("user_id = ?", userID)
	base, err := applyExpenseFilters(db, base, filter)
	if err != nil {
		return nil, err
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var expenses []models.Expense
	if err := base.Preload("Category").
		Scopes(pagination.Paginate(page)).
		Order("date DESC, created_at DESC").
		Find(&expenses).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(expenses, page.Page, page.PageSize, totalItems)
	return &result, nil
}

func applyExpenseFilters(db, q *gorm.DB, f ExpenseFilter) (*gorm.DB, error) {
	if f.FromDate != nil {
		q = q.Where("date >= ?", clock.DateOf(*f.FromDate, time.UTC))
	}
	if f.ToDate != nil {
		q = q.Where("date <= ?", clock.DateOf(*f.ToDate, time.UTC))
	}
	if f.CategoryID != nil {
		tree, err := loadCategoryTree(db)
		if err != nil {
			return nil, err
		}
		ids := tree.Subtree(*f.CategoryID)
		if ids == nil {
			return nil, apperrors.ErrCategoryNotFound
		}
		q = q.Where("category_id IN ?", ids)
	}
	if f.MinAmount != nil {
		q = q.Where("amount >= ?", *f.MinAmount)
	}
	if f.MaxAmount != nil {
		q = q.Where("amount <= ?", *f.MaxAmount)
	}
	if f.UserChallengeID != nil {
		q = q.Where("user_challenge_id = ?", *f.UserChallengeID)
	}
	return q, nil
}

// GetExpenseByID retrieves an expense by ID for a specific user
func (s *expenseService) GetExpenseByID(ctx context.Context, userID, expenseID string) (*models.Expense, error) {
	var expense models.Expense
	if err := s.db.WithContext(ctx).Preload("Category").
		Where("id = ? AND user_id = ?", expenseID, userID).
		First(&expense).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrExpenseNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &expense, nil
}

// UpdateExpense edits an expense and re-runs attribution for its old and new links.
func (s *expenseService) UpdateExpense(ctx context.Context, userID, expenseID string, update ExpenseUpdate) (*models.Expense, error) {
	if update.Amount != nil && *update.Amount < 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must not be negative")
	}

	db := s.db.WithContext(ctx)
	if update.CategoryID != nil && !update.ClearCategory {
		if _, err := findCategory(db, *update.CategoryID); err != nil {
			return nil, err
		}
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	var expense *models.Expense
	err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := lockProfile(tx, userID); err != nil {
			return err
		}
		var err error
		expense, err = lockExpense(tx, userID, expenseID)
		if err != nil {
			return err
		}
		if err := ensureExpenseUnlocked(tx, expense); err != nil {
			return err
		}

		previous := expense.UserChallengeID
		switch {
		case update.ClearCategory:
			expense.CategoryID = nil
		case update.CategoryID != nil:
			expense.CategoryID = update.CategoryID
		}
		if update.Amount != nil {
			expense.Amount = *update.Amount
		}
		if update.Description != nil {
			expense.Description = *update.Description
		}
		if update.Date != nil {
			expense.Date = clock.DateOf(*update.Date, time.UTC)
		}

		if err := tx.Save(expense).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return s.attribution.AttributeExpense(ctx, tx, expense, previous)
	})
	if err != nil {
		return nil, err
	}
	return expense, nil
}

// DeleteExpense soft-deletes an expense and recomputes the attempt it was linked to.
func (s *expenseService) DeleteExpense(ctx context.Context, userID, expenseID string) error {
	unlock := s.locks.Lock(userID)
	defer unlock()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockProfile(tx, userID); err != nil {
			return err
		}
		expense, err := lockExpense(tx, userID, expenseID)
		if err != nil {
			return err
		}
		if err := ensureExpenseUnlocked(tx, expense); err != nil {
			return err
		}

		previous := expense.UserChallengeID
		if err := tx.Delete(expense).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if !expense.DeletedAt.Valid {
			expense.DeletedAt = gorm.DeletedAt{Time: s.clock.Now(), Valid: true}
		}
		return s.attribution.AttributeExpense(ctx, tx, expense, previous)
	})
}

// GetMonthlySummary buckets a month's spending by root category, alongside the previous month.
func (s *expenseService) GetMonthlySummary(ctx context.Context, userID string, year int, month time.Month) (*MonthlySummary, error) {
	if month < time.January || month > time.December {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "month must be between 1 and 12")
	}

	db := s.db.WithContext(ctx)
	// Soft-deleted categories still name historical spending.
	tree, err := loadCategoryTree(db.Unscoped())
	if err != nil {
		return nil, err
	}

	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	current, err := monthSpend(db, tree, userID, first)
	if err != nil {
		return nil, err
	}
	previous, err := monthSpend(db, tree, userID, first.AddDate(0, -1, 0))
	if err != nil {
		return nil, err
	}
	return &MonthlySummary{Current: *current, Previous: *previous}, nil
}

type categoryTotal struct {
	CategoryID *string
	Amount     int64
	Count      int64
}

func monthSpend(db *gorm.DB, tree *models.CategoryTree, userID string, first time.Time) (*MonthSpend, error) {
	var rows []categoryTotal
	if err := db.Model(&models.Expense{}).
		Select("category_id, COALESCE(SUM(amount), 0) AS amount, COUNT(*) AS count").
		Where("user_id = ? AND date >= ? AND date < ?", userID, first, first.AddDate(0, 1, 0)).
		Group("category_id").
		Scan(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	out := &MonthSpend{Year: first.Year(), Month: int(first.Month()), Categories: []CategorySpend{}}
	buckets := map[string]*CategorySpend{}
	var unclassified *CategorySpend
	for _, r := range rows {
		out.Total += r.Amount

		var bucket *CategorySpend
		if r.CategoryID == nil {
			if unclassified == nil {
				unclassified = &CategorySpend{CategoryName: UnclassifiedBucket}
			}
			bucket = unclassified
		} else {
			key, name := *r.CategoryID, ""
			if root, err := tree.Root(key); err == nil {
				key, name = root.ID, root.Name
			}
			bucket = buckets[key]
			if bucket == nil {
				id := key
				bucket = &CategorySpend{CategoryID: &id, CategoryName: name}
				buckets[key] = bucket
			}
		}
		bucket.Amount += r.Amount
		bucket.Count += r.Count
	}

	for _, b := range buckets {
		out.Categories = append(out.Categories, *b)
	}
	sort.Slice(out.Categories, func(i, j int) bool {
		if out.Categories[i].Amount != out.Categories[j].Amount {
			return out.Categories[i].Amount > out.Categories[j].Amount
		}
		return out.Categories[i].CategoryName < out.Categories[j].CategoryName
	})
	if unclassified != nil {
		out.Categories = append(out.Categories, *unclassified)
	}
	return out, nil
}

// lockExpense loads a user's expense with a row lock.
func lockExpense(tx *gorm.DB, userID, expenseID string) (*models.Expense, error) {
	var expense models.Expense
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND user_id = ?", expenseID, userID).
		First(&expense).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrExpenseNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &expense, nil
}

// ensureExpenseUnlocked rejects edits to expenses counted by a settled attempt.
func ensureExpenseUnlocked(tx *gorm.DB, expense *models.Expense) error {
	if expense.UserChallengeID == nil {
		return nil
	}
	var uc models.UserChallenge
	err := tx.Select("id", "status").Where("id = ?", *expense.UserChallengeID).First(&uc).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil
	case err != nil:
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	case !uc.IsActive():
		return apperrors.ErrExpenseLocked
	}
	return nil
}
